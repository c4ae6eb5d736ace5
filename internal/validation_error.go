package internal

import (
	"errors"
	"fmt"
)

// ValidationError reports a vacancy that lacks a field required for storage.
type ValidationError struct {
	Field     string
	VacancyId string
}

func NewValidationError(field string, vacancyId string) *ValidationError {
	return &ValidationError{Field: field, VacancyId: vacancyId}
}

func (e ValidationError) Error() string {
	if e.VacancyId == "" {
		return fmt.Sprintf("vacancy without id is missing required field '%s'", e.Field)
	}

	return fmt.Sprintf("vacancy %s is missing required field '%s'", e.VacancyId, e.Field)
}

func (e ValidationError) Is(target error) bool {
	var t *ValidationError
	ok := errors.As(target, &t)
	return ok
}
