package storage

import "errors"

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("storage: not found")

// ErrConflict is returned when a create collides with an existing entity.
var ErrConflict = errors.New("storage: already exists")

// ErrTerminal is returned when an update targets a run that has already
// reached a terminal state. Terminal runs are immutable.
var ErrTerminal = errors.New("storage: run already terminal")
