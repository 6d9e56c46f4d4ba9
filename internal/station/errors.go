package station

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidIdentifier means no provider recognizes the identifier.
	ErrInvalidIdentifier = errors.New("invalid identifier")
	// ErrNoCapabilities means a provider recognizes the identifier but none
	// of its products returned data.
	ErrNoCapabilities = errors.New("no capabilities")
)

// ResolveError reports why an identifier could not be turned into a
// capability set. Cause is the last probe failure, if any.
type ResolveError struct {
	Identifier string
	Err        error
	Cause      error
}

func (e *ResolveError) Error() string {
	msg := fmt.Sprintf("resolving %q: %v", e.Identifier, e.Err)
	if e.Cause != nil {
		msg += fmt.Sprintf(" (last error: %v)", e.Cause)
	}
	return msg
}

func (e *ResolveError) Unwrap() error {
	return e.Err
}
