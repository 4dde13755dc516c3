package repository

import "errors"

// ErrNotFound is returned when a lookup matches no row. Callers distinguish it
// from infrastructure failures with errors.Is.
var ErrNotFound = errors.New("record not found")
