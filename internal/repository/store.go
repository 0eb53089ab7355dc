package repository

import (
	"context"

	"github.com/iliyamo/meeting-room-reservation/internal/model"
)

// ReservationStore is the CRUD surface of the reservations table.  The
// booking workflow depends only on this interface; ReservationRepo
// (MySQL), PgReservationRepo (Postgres) and MemoryStore implement it.
type ReservationStore interface {
	// Create inserts r and returns it with ID and CreatedAt filled in.
	Create(ctx context.Context, r model.Reservation) (model.Reservation, error)
	// ListAll returns every reservation, newest first.
	ListAll(ctx context.Context) ([]model.Reservation, error)
	// GetByID returns one reservation or ErrNotFound.
	GetByID(ctx context.Context, id uint64) (model.Reservation, error)
	// Update applies patch to the reservation and returns the new row.
	Update(ctx context.Context, id uint64, patch model.ReservationPatch) (model.Reservation, error)
	// DeleteByID removes a reservation and returns the removed row.
	DeleteByID(ctx context.Context, id uint64) (model.Reservation, error)
	// DeleteWhere removes the rows with the given id whose time equals one
	// of times, returning what was removed.  Nothing matching is not an
	// error; the result is simply empty.
	DeleteWhere(ctx context.Context, id uint64, times []string) ([]model.Reservation, error)
}
