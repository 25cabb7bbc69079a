package engine

import (
	"errors"
	"fmt"
)

// RuntimeError is returned by Register and Dispatch.
//
// Codes:
//   - CONFIGURATION: a setup entry is malformed, fails the schema or names
//     an unknown handler, validator or callable (Register only)
//   - RESOLUTION: a callable reference failed while re-resolving arguments
//     immediately before execution
//   - VALIDATION: a validator rejected a value outside a prompt loop
//   - HANDLER: the handler itself failed
//
// The cause is available through errors.Unwrap.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Key is the setup entry key (registration) or descriptor key (dispatch).
	Key string

	// Event and Action locate a dispatch failure.
	Event  string
	Action string

	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	ErrCodeConfiguration RuntimeErrorCode = "CONFIGURATION"
	ErrCodeResolution    RuntimeErrorCode = "RESOLUTION"
	ErrCodeValidation    RuntimeErrorCode = "VALIDATION"
	ErrCodeHandler       RuntimeErrorCode = "HANDLER"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	switch {
	case e.Event != "" && e.Action != "":
		return fmt.Sprintf("%s: %s (event=%s, action=%s, key=%s)", e.Code, msg, e.Event, e.Action, e.Key)
	case e.Key != "":
		return fmt.Sprintf("%s: %s (key=%s)", e.Code, msg, e.Key)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsConfigurationError reports whether err is a registration failure.
func IsConfigurationError(err error) bool {
	return hasCode(err, ErrCodeConfiguration)
}

// IsResolutionError reports whether err is a dispatch-time resolution failure.
func IsResolutionError(err error) bool {
	return hasCode(err, ErrCodeResolution)
}

// IsValidationError reports whether err is a validator rejection.
func IsValidationError(err error) bool {
	return hasCode(err, ErrCodeValidation)
}

// IsHandlerError reports whether err is a handler failure.
func IsHandlerError(err error) bool {
	return hasCode(err, ErrCodeHandler)
}

func configurationError(key, message string, err error) *RuntimeError {
	return &RuntimeError{Code: ErrCodeConfiguration, Key: key, Message: message, Err: err}
}
