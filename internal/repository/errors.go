// Package repository defines the reservation record store and the error
// values shared by its implementations.  Higher layers compare against
// these sentinels instead of driver-specific errors, so the workflow
// behaves the same on MySQL, Postgres and the in-memory store.
package repository

import "errors"

// ErrNotFound is returned when no reservation with the requested id
// exists.  Handlers should translate this into an HTTP 404 response.
var ErrNotFound = errors.New("reservation not found")

// ErrDuplicate is returned when an insert would give a (room, date, time)
// triple a second reservation.  The store enforces this with a unique
// index, which closes the window between the availability check and the
// insert.  Handlers should translate this into an HTTP 409 response.
var ErrDuplicate = errors.New("slot already reserved")
