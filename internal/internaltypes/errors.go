package internaltypes

import "errors"

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")

	// ErrInvalidInput covers caller mistakes; never retried.
	ErrInvalidInput    = errors.New("invalid input")
	ErrNotInFuture     = wrap(ErrInvalidInput, "date is not in the future")
	ErrUnknownPriority = wrap(ErrInvalidInput, "unknown priority")

	ErrStoreUnavailable    = errors.New("slot store unavailable")
	ErrAllocationExhausted = errors.New("no legal slot found")
	ErrLockBusy            = errors.New("scheduling lock held by another process")
)

type childError struct {
	parent error
	msg    string
}

func (e *childError) Error() string { return e.msg }
func (e *childError) Unwrap() error { return e.parent }

func wrap(parent error, msg string) error {
	return &childError{parent: parent, msg: msg}
}
