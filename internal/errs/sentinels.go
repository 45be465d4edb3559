// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

var (
	// ErrInvalidCredential indicates a missing, malformed, expired or
	// signature-mismatched token.
	ErrInvalidCredential = errors.New("invalid credential")

	// ErrSuperseded indicates reuse of a refresh token that has already been
	// rotated away. Forces a full re-login.
	ErrSuperseded = errors.New("refresh token superseded")

	// ErrInvalidArgument indicates a missing or malformed required field.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrPersistence indicates a storage-layer failure.
	ErrPersistence = errors.New("persistence failure")

	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., username taken).
	ErrAlreadyExists = errors.New("already exists")
)
