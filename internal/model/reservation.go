package model

import "time"

// Reservation is one persisted row of the reservations table.  A row
// covers one or more 30-minute slots of a single room on a single day
// under one reserver and one PIN.  New bookings always write one row per
// slot; rows covering several slots only exist in imported legacy data.
//
// Fields:
//  ID           – primary key, assigned by the store.
//  ReserverName – display name of whoever booked the room.
//  Purpose      – free-text meeting purpose.
//  Room         – room name from the catalogue (see Rooms).
//  Date         – calendar day of the booking.
//  Time         – one or more "HH:MM - HH:MM" ranges, comma separated.
//  Password     – bcrypt hash of the 4-digit PIN (plain PIN on legacy rows).
//  CreatedAt    – insertion timestamp, used for default ordering.
type Reservation struct {
	ID           uint64    `json:"id"`            // reservations.id
	ReserverName string    `json:"reserver_name"` // reservations.reserver_name
	Purpose      string    `json:"purpose"`       // reservations.purpose
	Room         string    `json:"room"`          // reservations.room
	Date         Day       `json:"date"`          // reservations.date
	Time         string    `json:"time"`          // reservations.time
	Password     string    `json:"-"`             // reservations.password
	CreatedAt    time.Time `json:"created_at"`    // reservations.created_at
}

// ReservationPatch lists the columns Update may change.  Nil fields are
// left untouched.
type ReservationPatch struct {
	ReserverName *string
	Purpose      *string
	Time         *string
	Password     *string
}

// Empty reports whether the patch changes nothing.
func (p ReservationPatch) Empty() bool {
	return p.ReserverName == nil && p.Purpose == nil && p.Time == nil && p.Password == nil
}

// Apply copies the set fields of p onto r.
func (p ReservationPatch) Apply(r *Reservation) {
	if p.ReserverName != nil {
		r.ReserverName = *p.ReserverName
	}
	if p.Purpose != nil {
		r.Purpose = *p.Purpose
	}
	if p.Time != nil {
		r.Time = *p.Time
	}
	if p.Password != nil {
		r.Password = *p.Password
	}
}
