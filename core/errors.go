package core

import "errors"

var (
	// ErrConflict is returned when a record with the same identifier already exists.
	ErrConflict = errors.New("record already exists")
	// ErrNotFound is returned when the target collection or record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrValidation is returned for empty required fields or malformed input.
	ErrValidation = errors.New("validation failed")
	// ErrStorageUnavailable means the backend could not be read or written.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrSessionClosed is returned when a message session is used after Close.
	ErrSessionClosed = errors.New("session closed")
)
