package repository

import "errors"

var ErrNotFound = errors.New("not found")

// ErrConflict is returned by conditional writes when the record changed since it was read.
var ErrConflict = errors.New("record changed concurrently")
