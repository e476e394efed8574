package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrPositionExists signals an attempt to open a second position for a
	// market that already has one. This is a programming error in the replay
	// loop and aborts the run rather than silently overwriting.
	ErrPositionExists = errors.New("position already open for market")
	ErrNoSnapshots    = errors.New("no snapshots in range")
)
