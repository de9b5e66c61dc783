// Package pkg holds shared utilities: domain errors and the API response
// envelope. Services return domain errors wrapped with fmt.Errorf("%w: ..."),
// handlers map them to HTTP status codes with Error().
package pkg

import "errors"

// Domain-level errors. Compare with errors.Is, never by string.
var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")
	ErrInternal     = errors.New("internal error")
)
