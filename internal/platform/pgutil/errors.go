// Package pgutil classifies Postgres failures for handler-level retry
// decisions. Classification is by error type and SQLSTATE, never by message
// text.
package pgutil

import (
	"context"
	"errors"
	"io"
	"net"

	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE classes that indicate a transient condition worth retrying.
const (
	codeUniqueViolation = "23505"

	classConnectionException = "08" // connection_exception family
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
	codeAdminShutdown        = "57P01"
	codeCrashShutdown        = "57P02"
	codeCannotConnectNow     = "57P03"
	codeTooManyConnections   = "53300"
)

// IsUniqueViolation reports a unique-constraint conflict. Callers treat it as
// "already processed", not as an error, at idempotency fences.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation
}

// IsTransient reports whether a storage failure is worth retrying: lost or
// refused connections, timeouts, deadlocks, serialization failures, and
// server shutdown states.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	if pgconn.Timeout(err) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable,
			codeAdminShutdown, codeCrashShutdown, codeCannotConnectNow,
			codeTooManyConnections:
			return true
		}
		return len(pgErr.Code) >= 2 && pgErr.Code[:2] == classConnectionException
	}

	var connErr *pgconn.ConnectError
	return errors.As(err, &connErr)
}
