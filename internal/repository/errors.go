package repository

import "errors"

var (
	// ErrRunNotFound indicates no run with the requested id was stored
	ErrRunNotFound = errors.New("run not found")

	// ErrInvalidRun indicates a run without id
	ErrInvalidRun = errors.New("invalid run")
)
