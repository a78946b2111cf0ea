package storage

import "errors"

var (
	ErrConflict = errors.New("time slot already booked")
	ErrNotFound = errors.New("appointment not found")
)

// ValidationError reports caller-correctable input problems (missing or
// malformed required fields).
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
