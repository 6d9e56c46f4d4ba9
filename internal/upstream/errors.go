package upstream

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/bbernstein/flowebb/tidesensors/internal/models"
)

type ErrorKind string

const (
	KindNotFound          ErrorKind = "not_found"
	KindRateLimited       ErrorKind = "rate_limited"
	KindTimeout           ErrorKind = "timeout"
	KindMalformedResponse ErrorKind = "malformed_response"
	KindUnavailable       ErrorKind = "unavailable"
)

var (
	ErrNotFound          = errors.New("upstream: not found")
	ErrRateLimited       = errors.New("upstream: rate limited")
	ErrTimeout           = errors.New("upstream: timeout")
	ErrMalformedResponse = errors.New("upstream: malformed response")
	// ErrUnavailable matches every upstream failure.
	ErrUnavailable = errors.New("upstream: unavailable")
)

var kindSentinels = map[ErrorKind]error{
	KindNotFound:          ErrNotFound,
	KindRateLimited:       ErrRateLimited,
	KindTimeout:           ErrTimeout,
	KindMalformedResponse: ErrMalformedResponse,
	KindUnavailable:       ErrUnavailable,
}

// Error is returned by every Fetcher for provider or transport failures.
type Error struct {
	Kind       ErrorKind
	Provider   models.ProviderType
	Identifier string
	Product    models.ProductKind
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s %s/%s: %s", e.Provider, e.Identifier, e.Product, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	if target == ErrUnavailable {
		return true
	}
	return kindSentinels[e.Kind] == target
}

// KindOf returns the kind of an upstream error, or "" for anything else.
func KindOf(err error) ErrorKind {
	var upErr *Error
	if errors.As(err, &upErr) {
		return upErr.Kind
	}
	return ""
}

func kindForStatus(status int) ErrorKind {
	switch {
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status == http.StatusGatewayTimeout || status == http.StatusRequestTimeout:
		return KindTimeout
	default:
		return KindUnavailable
	}
}

func kindForTransport(err error) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindUnavailable
}
