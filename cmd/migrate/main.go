package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/bluelagoon/travel-booking-backend/internal/config"
	"github.com/bluelagoon/travel-booking-backend/internal/database"
	"github.com/joho/godotenv"
)

// booking data in dependency order; travel_packages are reference data and survive a reset
var bookingTables = []string{
	"payment_audits",
	"payment_transactions",
	"travelers",
	"bookings",
}

func main() {
	var (
		dbURLFlag string
		driver    string
		reset     bool
	)
	flag.StringVar(&dbURLFlag, "database-url", "", "PostgreSQL connection string (overrides DATABASE_URL)")
	flag.StringVar(&driver, "driver", "", "database/sql driver: postgres or pgx (overrides DATABASE_DRIVER)")
	flag.BoolVar(&reset, "reset", false, "truncate bookings, travelers and payments after migrating")
	flag.Parse()

	// Try loading .env from current working directory (optional)
	_ = godotenv.Load()

	dbURL := dbURLFlag
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set and -database-url was not provided")
	}
	if driver == "" {
		driver = os.Getenv("DATABASE_DRIVER")
	}

	// Build minimal database config without loading full app config
	db, err := database.NewConnection(config.DatabaseConfig{
		URL:                dbURL,
		Driver:             driver,
		MaxConnections:     5,
		MaxIdleConnections: 2,
	})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	fmt.Println("Connected to database. Applying schema...")
	if err := database.Migrate(ctx, db.DB); err != nil {
		log.Fatalf("migration failed: %v", err)
	}
	fmt.Println("Schema is up to date.")

	if !reset {
		return
	}

	fmt.Println("Truncating booking data...")
	for _, t := range bookingTables {
		if _, err := db.ExecContext(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", t)); err != nil {
			log.Fatalf("failed to truncate %s: %v", t, err)
		}
	}

	fmt.Println("Post-reset row counts:")
	for _, t := range append(bookingTables, "travel_packages") {
		var count int
		if err := db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", t)).Scan(&count); err != nil {
			fmt.Printf("  %s: error: %v\n", t, err)
			continue
		}
		fmt.Printf("  %s: %d\n", t, count)
	}
}
