package client

import (
	"errors"
	"fmt"
	"net/http"

	"badge-studio/internal/models"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("template was changed by someone else")
	ErrNotImplemented = errors.New("not implemented on the server")
	ErrValidation     = errors.New("invalid template")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrImportFailed   = errors.New("import failed, verify the file")
)

// APIError is a non-2xx answer from the badge service.
type APIError struct {
	Status     int
	Message    string
	Details    string
	Violations []models.Violation
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("badge service: %d %s: %s", e.Status, e.Message, e.Details)
	}
	return fmt.Sprintf("badge service: %d %s", e.Status, e.Message)
}

// Is matches the sentinel errors by status code.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrConflict:
		return e.Status == http.StatusConflict
	case ErrNotImplemented:
		return e.Status == http.StatusNotImplemented
	case ErrValidation:
		return e.Status == http.StatusUnprocessableEntity
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
	}
	return false
}
