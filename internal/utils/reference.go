package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

const (
	BookingReferencePrefix     = "BLT"
	TransactionReferencePrefix = "TXN"
)

// RandomHex returns n cryptographically secure random bytes as uppercase hex
func RandomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return strings.ToUpper(hex.EncodeToString(b)), nil
}

// NewBookingReference returns a candidate reference of the form BLT-YYYYMMDD-XXXXXX
func NewBookingReference(now time.Time) (string, error) {
	suffix, err := RandomHex(3)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s-%s", BookingReferencePrefix, now.UTC().Format("20060102"), suffix), nil
}

// NewTransactionReference returns a candidate reference of the form TXN-YYYYMMDD-XXXXXXXX
func NewTransactionReference(now time.Time) (string, error) {
	suffix, err := RandomHex(4)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s-%s", TransactionReferencePrefix, now.UTC().Format("20060102"), suffix), nil
}
