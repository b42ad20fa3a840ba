package shortener

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound            = errors.New("short url not found")
	ErrDeleted             = errors.New("short url deleted")
	ErrConflict            = errors.New("short url already exists")
	ErrAllocationExhausted = errors.New("no free short key after retries")
	ErrValidation          = errors.New("invalid input")
	ErrStorage             = errors.New("storage failure")

	// ErrKeyTaken signals a collision on a candidate key. It never leaves the allocator.
	ErrKeyTaken = errors.New("short key taken")
)

const (
	// MsgNotFound is shown for unknown keys.
	MsgNotFound = "The requested Short URL was not found in the system."
	// MsgConflict is shown when a custom key is already taken.
	MsgConflict = "CONFLICT! Short URL already exists."
)

// DeletedTimeLayout formats tombstone times in user facing messages.
const DeletedTimeLayout = "01/02/2006, 15:04:05"

// DeletedError reports a tombstoned key together with its deletion time.
type DeletedError struct {
	Key       Key
	DeletedAt time.Time
}

func (e *DeletedError) Error() string {
	return fmt.Sprintf("This Short URL was deleted at %s", e.DeletedAt.Format(DeletedTimeLayout))
}

func (e *DeletedError) Is(target error) bool {
	return target == ErrDeleted
}

// ValidationError describes rejected input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func deletedError(res *Resolution) error {
	deletedAt := res.DateCreated
	if res.DateModified != nil {
		deletedAt = *res.DateModified
	}

	return &DeletedError{Key: res.HashKey, DeletedAt: deletedAt}
}
