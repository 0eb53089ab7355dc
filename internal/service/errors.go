package service

import (
	"errors"
	"strings"
)

// Validation and workflow errors.  Handlers map them onto HTTP statuses
// with errors.Is.
var (
	ErrNoSlots             = errors.New("no time slots selected")
	ErrInvalidPassword     = errors.New("password must be exactly 4 digits")
	ErrUnknownRoom         = errors.New("unknown room")
	ErrInvalidDate         = errors.New("invalid date")
	ErrInvalidSlot         = errors.New("invalid time slot")
	ErrPasswordMismatch    = errors.New("password does not match")
	ErrReservationNotFound = errors.New("reservation not found")
	ErrSlotUnavailable     = errors.New("time slot already booked")
)

// ConflictError lists the requested slots that are already taken.
type ConflictError struct {
	Slots []string
}

func (e *ConflictError) Error() string {
	return "time slots already booked: " + strings.Join(e.Slots, ", ")
}

func (e *ConflictError) Unwrap() error { return ErrSlotUnavailable }

// StoreError wraps a failure of the reservation store.  The operation can
// be retried; callers should not show Err to end users.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return "reservation store " + e.Op + ": " + e.Err.Error() }

func (e *StoreError) Unwrap() error { return e.Err }
