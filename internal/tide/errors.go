package tide

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrMalformedSequence = errors.New("malformed event sequence")
	ErrOutOfWindow       = errors.New("query time outside event window")
)

// SequenceError reports an ordering or alternation violation in an upstream
// event batch.
type SequenceError struct {
	Index   int
	Message string
}

func (e *SequenceError) Error() string {
	return fmt.Sprintf("%s at index %d: %s", ErrMalformedSequence, e.Index, e.Message)
}

func (e *SequenceError) Unwrap() error {
	return ErrMalformedSequence
}

func newSequenceError(index int, format string, args ...any) *SequenceError {
	return &SequenceError{Index: index, Message: fmt.Sprintf(format, args...)}
}

// WindowError reports a query instant that the fetched events do not cover.
type WindowError struct {
	Now   time.Time
	First time.Time
	Last  time.Time
}

func (e *WindowError) Error() string {
	return fmt.Sprintf("%s: %s not in [%s, %s)", ErrOutOfWindow,
		e.Now.Format(time.RFC3339), e.First.Format(time.RFC3339), e.Last.Format(time.RFC3339))
}

func (e *WindowError) Unwrap() error {
	return ErrOutOfWindow
}
