package setup

import (
	"errors"
	"fmt"
)

// Input error codes returned to whoever drives the setup flow.
const (
	CodeInvalidIdentifier   = "invalid_identifier"
	CodeNoCapabilities      = "no_capabilities"
	CodeNoSensors           = "no_sensors"
	CodeUnsupportedSensor   = "unsupported_sensor"
	CodeInvalidInterval     = "invalid_interval"
	CodeInvalidTimezone     = "invalid_timezone"
	CodeInvalidUnitSystem   = "invalid_unit_system"
	CodeUpstreamUnavailable = "upstream_unavailable"
)

var ErrEntryNotFound = errors.New("config entry not found")

// InputError is a user-correctable setup failure tied to one form field.
type InputError struct {
	Field   string
	Code    string
	Message string
	Err     error
}

func (e *InputError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Field, e.Code)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

func (e *InputError) Unwrap() error {
	return e.Err
}

func inputError(field, code, format string, args ...any) *InputError {
	return &InputError{Field: field, Code: code, Message: fmt.Sprintf(format, args...)}
}
