// Package common defines shared sentinel errors used across the layers of
// the tree registry. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Authorization errors. ErrPermissionDenied means the caller identity
	// is known but is not the configured administrator.
	ErrPermissionDenied = errors.New("permission denied")
	ErrUnauthenticated  = errors.New("unauthenticated")

	// Validation errors (malformed or missing input).
	ErrInvalidArgument = errors.New("invalid argument")

	// Blob storage errors raised during image relocation.
	ErrBlobNotFound         = errors.New("blob not found")
	ErrBlobRelocationFailed = errors.New("blob relocation failed")

	// ErrInternal covers data-integrity faults and unexpected store errors,
	// e.g. a pending record whose image reference is missing or malformed.
	ErrInternal = errors.New("internal error")

	// Auth token errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
)
