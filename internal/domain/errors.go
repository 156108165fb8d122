package domain

import "errors"

var (
	ErrInvalidTimeFormat      = errors.New("invalid time format")
	ErrPastDate               = errors.New("date must be after today")
	ErrSlotUnavailable        = errors.New("slot unavailable")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrNotFound               = errors.New("not found")
	ErrStorageUnavailable     = errors.New("storage unavailable")
	ErrCollaboratorFailed     = errors.New("external collaborator failed")
)

// ValidationError reports a malformed or missing request field.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func NewValidationError(msg string) error {
	return &ValidationError{msg: msg}
}

// IsCallerError reports whether err is a synchronous validation or conflict
// failure that the caller can act on, as opposed to an infrastructure failure.
func IsCallerError(err error) bool {
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return true
	}
	for _, target := range []error{
		ErrInvalidTimeFormat,
		ErrPastDate,
		ErrSlotUnavailable,
		ErrInvalidStateTransition,
		ErrNotFound,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
