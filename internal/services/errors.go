package services

import "errors"

// Error kinds returned by the services. Callers match them with errors.Is;
// the message after the kind is meant for logs and API error text.
var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrConflict     = errors.New("conflict")
	// ErrDownstream marks collaborator failures. It never leaves SubmitAction.
	ErrDownstream = errors.New("downstream failure")
	ErrUnknown    = errors.New("unknown error")
)
