package shared

import "errors"

var (
	// ErrConnection indicates a tenant storage handle could not be created.
	ErrConnection = errors.New("tenant connection failed")
	// ErrPermissionDenied indicates the role lacks the required permission token.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrProjectAccessDenied indicates the actor is not authorized for the project.
	ErrProjectAccessDenied = errors.New("project access denied")
	// ErrNotFound indicates a referenced record is absent.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates a payload failed validation.
	ErrValidation = errors.New("validation failed")
)
