package store

import (
	"errors"

	"backend-prolink/internal/apperr"
)

// AppError converts a storage error into the caller-facing error for the
// named entity. Errors that are already classified pass through.
func AppError(err error, entity string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound):
		return apperr.NotFoundf("%s not found", entity)
	case errors.Is(err, ErrConflict):
		return &apperr.Error{Kind: apperr.Conflict, Code: "conflict", Message: entity + " already exists", Err: err}
	case errors.Is(err, ErrStale):
		return &apperr.Error{Kind: apperr.InvalidState, Code: "invalid_state", Message: entity + " changed concurrently", Err: err}
	}
	return apperr.Wrap(err, "storage failure")
}
