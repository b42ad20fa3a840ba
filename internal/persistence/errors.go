package persistence

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// uniqueViolation is the SQLSTATE raised when a UNIQUE constraint rejects a write.
const uniqueViolation = "23505"

var (
	// ErrStorage matches every failure reported by this package.
	ErrStorage = errors.New("storage failure")
	// ErrSessionClosed is returned when a statement runs on a released session.
	ErrSessionClosed = errors.New("session already closed")
)

// Error wraps a failure of a single persistence step.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports every *Error as ErrStorage.
func (e *Error) Is(target error) bool {
	return target == ErrStorage
}

// IsUniqueViolation reports whether err was caused by a uniqueness constraint.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError

	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
