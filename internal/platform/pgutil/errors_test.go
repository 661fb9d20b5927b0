package pgutil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, IsUniqueViolation(errors.New("duplicate key value")), "message text is not classification")
	assert.False(t, IsUniqueViolation(nil))
}

func TestIsTransient(t *testing.T) {
	transient := []error{
		context.DeadlineExceeded,
		io.EOF,
		io.ErrUnexpectedEOF,
		&net.OpError{Op: "dial", Err: errors.New("connection refused")},
		&pgconn.PgError{Code: "40001"}, // serialization_failure
		&pgconn.PgError{Code: "40P01"}, // deadlock_detected
		&pgconn.PgError{Code: "57P03"}, // cannot_connect_now
		&pgconn.PgError{Code: "53300"}, // too_many_connections
		&pgconn.PgError{Code: "08006"}, // connection_failure
		fmt.Errorf("query: %w", &pgconn.PgError{Code: "40001"}),
	}
	for _, err := range transient {
		assert.True(t, IsTransient(err), "%v should be transient", err)
	}

	permanent := []error{
		nil,
		&pgconn.PgError{Code: "23505"}, // unique_violation
		&pgconn.PgError{Code: "22P02"}, // invalid_text_representation
		&pgconn.PgError{Code: "42703"}, // undefined_column
		errors.New("some application error"),
	}
	for _, err := range permanent {
		assert.False(t, IsTransient(err), "%v should not be transient", err)
	}
}
