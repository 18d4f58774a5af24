// Package apperr defines sentinel errors shared across service boundaries.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidQuery  = errors.New("invalid query")
	ErrTenantUnknown = errors.New("unknown tenant")
)
