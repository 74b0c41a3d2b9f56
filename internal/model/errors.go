package model

import "errors"

// Error taxonomy shared by the engine, policy and stores. Callers match with
// errors.Is; the API layer maps each to an HTTP status in one place.
var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrInvalidState    = errors.New("invalid state")
	ErrForbidden       = errors.New("forbidden")
	ErrConflict        = errors.New("conflict")
	ErrUnavailable     = errors.New("unavailable")
)
