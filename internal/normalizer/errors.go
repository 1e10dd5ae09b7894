package normalizer

import (
	"errors"

	"trades-api/internal/models"
)

// FieldError attaches the offending column to a normalization error.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Err.Error()
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// NewRowError builds the diagnostic reported for a rejected row.
func NewRowError(row int, err error) models.RowError {
	rowErr := models.RowError{
		Row:    row,
		Kind:   models.KindOf(err),
		Reason: err.Error(),
	}
	var fieldErr *FieldError
	if errors.As(err, &fieldErr) {
		rowErr.Field = fieldErr.Field
		rowErr.Reason = fieldErr.Err.Error()
	}
	return rowErr
}
