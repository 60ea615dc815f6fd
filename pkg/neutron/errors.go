package neutron

import "errors"

// ValidationError reports a parameter set the class refuses to resolve.
// It is the only error Emit returns; when it is returned no catalog is.
type ValidationError struct {
	// Parameter is the offending parameter or fact name, if one applies.
	Parameter string `json:"parameter,omitempty"`

	// Message is the human-readable failure.
	Message string `json:"message"`
}

func newValidationError(parameter, message string) *ValidationError {
	return &ValidationError{Parameter: parameter, Message: message}
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return e.Message
}

// IsValidationError reports whether err is, or wraps, a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// AsValidationError extracts the ValidationError from err.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	ok := errors.As(err, &ve)
	return ve, ok
}
