package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/bluelagoon/travel-booking-backend/internal/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestClassifyError(t *testing.T) {
	plain := errors.New("connection refused")

	tests := []struct {
		name      string
		err       error
		want      error
		retryable bool
	}{
		{"nil", nil, nil, false},
		{"plain error unchanged", plain, plain, false},
		{"pq unique violation", &pq.Error{Code: "23505"}, models.ErrDuplicateReference, true},
		{"pgx unique violation", &pgconn.PgError{Code: "23505"}, models.ErrDuplicateReference, true},
		{"pq serialization failure", &pq.Error{Code: "40001"}, models.ErrSerializationFailure, true},
		{"pgx deadlock", &pgconn.PgError{Code: "40P01"}, models.ErrSerializationFailure, true},
		{"wrapped pgx deadlock", fmt.Errorf("commit: %w", &pgconn.PgError{Code: "40P01"}), models.ErrSerializationFailure, true},
		{"pq check violation unchanged", &pq.Error{Code: "23514"}, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyError(tt.err)
			if tt.err == nil {
				assert.NoError(t, got)
				return
			}
			if tt.want != nil {
				assert.ErrorIs(t, got, tt.want)
			}
			assert.Equal(t, tt.retryable, IsRetryable(got))
		})
	}
}
