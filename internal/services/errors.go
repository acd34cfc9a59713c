package services

import (
	"errors"
	"fmt"

	"civicpulse/internal/store"
)

// Error taxonomy shared by all services. Handlers map these onto HTTP
// statuses with errors.Is.
var (
	ErrValidation      = errors.New("validation error")
	ErrAuth            = errors.New("unauthorized")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrExternalService = errors.New("external service error")

	// ErrAlreadyExists is a soft failure: nothing was written.
	ErrAlreadyExists     = fmt.Errorf("%w: already exists", ErrConflict)
	ErrInvalidTransition = fmt.Errorf("%w: invalid status transition", ErrConflict)
	ErrInvalidSession    = fmt.Errorf("%w: invalid payment session", ErrValidation)
)

func validation(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// notFound converts store.ErrNotFound into ErrNotFound with context and
// passes other errors through.
func notFound(err error, what string, id interface{}) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s %v", ErrNotFound, what, id)
	}
	return err
}
