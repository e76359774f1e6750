package services

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrValidation       = errors.New("validation error")
	ErrUnauthenticated  = errors.New("unauthenticated")
	// ErrCodeSpaceExhausted means every generated candidate collided. With six
	// random bytes this indicates a broken generator, not bad luck.
	ErrCodeSpaceExhausted = errors.New("could not allocate a unique short code")
)

func validationErrorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

func IsPermissionDenied(err error) bool { return errors.Is(err, ErrPermissionDenied) }

func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }
