package domain

import "errors"

// ErrNotFound is returned by repo functions when the requested wine does not
// exist in the database. The store turns it into a no-op for update and
// delete; handlers map a read miss to HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrValidation is returned by service functions when input fails business
// rule validation (e.g. nil id, field too long).
// Handlers should map this to HTTP 422 Unprocessable Entity.
var ErrValidation = errors.New("validation error")

// ErrConstraintViolation is returned when an insert would duplicate an
// existing identifier. Identifier generation makes this unreachable in normal
// use, but it is always reported rather than overwriting the existing row.
var ErrConstraintViolation = errors.New("constraint violation")

// ErrNotInitialized is returned when the store is used before Open has
// completed or after Close. It signals a wiring bug, not a user error.
var ErrNotInitialized = errors.New("store not initialized")
