package database

import "errors"

var (
	// ErrDatabaseNotFound is returned by Open when CreateIfNotExists is
	// false and the file does not exist.
	ErrDatabaseNotFound = errors.New("database not found")

	// ErrInvalidRun is returned when a run record has no ID.
	ErrInvalidRun = errors.New("run record must have an ID")
)
