package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Schema creates the tables owned by the booking engine. travel_packages is
// maintained by the content side of the platform and is created here only so a
// fresh database is usable.
const Schema = `
CREATE TABLE IF NOT EXISTS travel_packages (
	id              UUID PRIMARY KEY,
	title           TEXT NOT NULL,
	destination     TEXT NOT NULL DEFAULT '',
	price           NUMERIC(12,2) NOT NULL CHECK (price >= 0),
	child_price     NUMERIC(12,2),
	min_travelers   INTEGER NOT NULL DEFAULT 1,
	max_travelers   INTEGER NOT NULL DEFAULT 50,
	available_slots INTEGER,
	start_date      DATE,
	end_date        DATE,
	is_active       BOOLEAN NOT NULL DEFAULT TRUE,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS bookings (
	id                  UUID PRIMARY KEY,
	booking_reference   VARCHAR(32) NOT NULL,
	user_id             UUID,
	travel_package_id   UUID NOT NULL REFERENCES travel_packages(id),
	travel_date         DATE NOT NULL,
	number_of_adults    INTEGER NOT NULL CHECK (number_of_adults >= 0),
	number_of_children  INTEGER NOT NULL CHECK (number_of_children >= 0),
	number_of_travelers INTEGER NOT NULL CHECK (number_of_travelers >= 1),
	subtotal            NUMERIC(12,2) NOT NULL,
	discount_amount     NUMERIC(12,2) NOT NULL DEFAULT 0,
	total_amount        NUMERIC(12,2) NOT NULL,
	amount_paid         NUMERIC(12,2) NOT NULL DEFAULT 0,
	amount_due          NUMERIC(12,2) NOT NULL,
	payment_status      VARCHAR(20) NOT NULL DEFAULT 'pending',
	booking_status      VARCHAR(20) NOT NULL DEFAULT 'pending',
	guest_first_name    TEXT,
	guest_last_name     TEXT,
	guest_email         TEXT,
	guest_phone         TEXT,
	special_requests    TEXT,
	cancellation_reason TEXT,
	cancelled_by        UUID,
	cancelled_at        TIMESTAMPTZ,
	confirmed_at        TIMESTAMPTZ,
	completed_at        TIMESTAMPTZ,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CONSTRAINT bookings_booking_reference_key UNIQUE (booking_reference),
	CONSTRAINT bookings_amounts_balance CHECK (amount_paid + amount_due = total_amount),
	CONSTRAINT bookings_guest_contact CHECK (
		user_id IS NOT NULL OR (guest_first_name IS NOT NULL AND guest_email IS NOT NULL)
	)
);

CREATE INDEX IF NOT EXISTS idx_bookings_package_date
	ON bookings (travel_package_id, travel_date) WHERE booking_status <> 'cancelled';
CREATE INDEX IF NOT EXISTS idx_bookings_user ON bookings (user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_bookings_created ON bookings (created_at DESC);

CREATE TABLE IF NOT EXISTS travelers (
	id              UUID PRIMARY KEY,
	booking_id      UUID NOT NULL REFERENCES bookings(id),
	first_name      TEXT NOT NULL,
	last_name       TEXT NOT NULL,
	email           TEXT,
	phone           TEXT,
	date_of_birth   DATE,
	gender          VARCHAR(10),
	passport_number VARCHAR(50),
	passport_expiry DATE,
	nationality     VARCHAR(100),
	traveler_type   VARCHAR(10) NOT NULL DEFAULT 'adult',
	special_needs   TEXT,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_travelers_booking ON travelers (booking_id);

CREATE TABLE IF NOT EXISTS payment_transactions (
	id                     UUID PRIMARY KEY,
	booking_id             UUID NOT NULL REFERENCES bookings(id),
	user_id                UUID,
	transaction_reference  VARCHAR(40) NOT NULL,
	gateway_reference      VARCHAR(100),
	gateway_transaction_id VARCHAR(100),
	amount                 NUMERIC(12,2) NOT NULL CHECK (amount > 0),
	currency               VARCHAR(3) NOT NULL DEFAULT 'NGN',
	type                   VARCHAR(20) NOT NULL,
	status                 VARCHAR(20) NOT NULL DEFAULT 'pending',
	payment_method         VARCHAR(50),
	card_type              VARCHAR(50),
	card_last4             VARCHAR(4),
	bank_name              VARCHAR(100),
	gateway_response       JSONB,
	metadata               JSONB,
	failure_reason         TEXT,
	paid_at                TIMESTAMPTZ,
	failed_at              TIMESTAMPTZ,
	created_at             TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at             TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CONSTRAINT payment_transactions_reference_key UNIQUE (transaction_reference)
);

CREATE UNIQUE INDEX IF NOT EXISTS payment_transactions_gateway_reference_key
	ON payment_transactions (gateway_reference) WHERE gateway_reference IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_payment_transactions_booking ON payment_transactions (booking_id, status);

CREATE TABLE IF NOT EXISTS payment_audits (
	id                     UUID PRIMARY KEY,
	booking_id             UUID,
	transaction_id         UUID,
	transaction_reference  VARCHAR(40),
	gateway_reference      VARCHAR(100),
	event_type             VARCHAR(40) NOT NULL,
	event_source           VARCHAR(40) NOT NULL,
	expected_amount        NUMERIC(12,2),
	received_amount        NUMERIC(12,2),
	currency               VARCHAR(3),
	amounts_match          BOOLEAN,
	payment_status         VARCHAR(20),
	gateway_transaction_id VARCHAR(100),
	request_payload        JSONB,
	response_payload       JSONB,
	raw_body               TEXT,
	http_status_code       INTEGER,
	http_method            VARCHAR(10),
	endpoint_url           TEXT,
	error_message          TEXT,
	processing_time_ms     INTEGER,
	is_duplicate           BOOLEAN NOT NULL DEFAULT FALSE,
	idempotency_key        VARCHAR(200),
	ip_address             VARCHAR(64),
	user_agent             TEXT,
	device_info            JSONB,
	correlation_id         VARCHAR(100),
	created_at             TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	processed_at           TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_payment_audits_reference ON payment_audits (transaction_reference, created_at);
`

// Migrate applies Schema. Every statement is idempotent.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
