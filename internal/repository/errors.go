package repository

import "errors"

var (
	ErrNotFound = errors.New("record not found")
	// ErrStaleWrite means the row changed since it was read and the guarded
	// update touched nothing.
	ErrStaleWrite = errors.New("record was modified concurrently")
)
