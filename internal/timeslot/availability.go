package timeslot

import (
	"sort"

	"github.com/iliyamo/meeting-room-reservation/internal/model"
)

// Set is a set of slot starts ("HH:MM").
type Set map[string]struct{}

// Has reports whether slot is in the set.
func (s Set) Has(slot string) bool {
	_, ok := s[slot]
	return ok
}

// Sorted returns the members in time order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	return SortSlots(out)
}

// BookedSlots returns every slot of room on day covered by some
// reservation in all.  Rooms match by exact name, days by value.
func BookedSlots(all []model.Reservation, room string, day model.Day) Set {
	booked := Set{}
	for _, r := range all {
		if r.Room != room || r.Date != day {
			continue
		}
		for _, s := range Expand(r.Time) {
			booked[s] = struct{}{}
		}
	}
	return booked
}

// Selection is the ordered set of slots a user has picked for booking.
// The zero value is an empty selection.
type Selection struct {
	slots []string
}

// Toggle flips slot in the selection.  A booked slot is never added and
// the call returns false; otherwise a selected slot is removed, an
// unselected one is inserted in time order, and Toggle returns true.
// Unreadable clock strings are ignored like booked slots.
func (s *Selection) Toggle(slot string, booked Set) bool {
	m, err := ToMinutes(slot)
	if err != nil {
		return false
	}
	slot = FromMinutes(m)
	if booked.Has(slot) {
		return false
	}
	for i, v := range s.slots {
		if v == slot {
			s.slots = append(s.slots[:i], s.slots[i+1:]...)
			return true
		}
	}
	s.slots = SortSlots(append(s.slots, slot))
	return true
}

// Contains reports whether slot is selected.
func (s *Selection) Contains(slot string) bool {
	for _, v := range s.slots {
		if v == slot {
			return true
		}
	}
	return false
}

// Slots returns a copy of the selected slots in time order.
func (s *Selection) Slots() []string {
	out := make([]string, len(s.slots))
	copy(out, s.slots)
	return out
}

// Len is the number of selected slots.
func (s *Selection) Len() int { return len(s.slots) }

// Slot statuses shown on the booking grid.
const (
	StatusAvailable = "available"
	StatusSelected  = "selected"
	StatusBooked    = "booked"
)

// SlotStatus is one cell of the booking grid.
type SlotStatus struct {
	Time   string `json:"time"`
	Status string `json:"status"`
}

// Statuses lays the grid out for a room/day.  sel may be nil.
func Statuses(booked Set, sel *Selection) []SlotStatus {
	grid := Grid()
	out := make([]SlotStatus, 0, len(grid))
	for _, g := range grid {
		st := StatusAvailable
		switch {
		case booked.Has(g):
			st = StatusBooked
		case sel != nil && sel.Contains(g):
			st = StatusSelected
		}
		out = append(out, SlotStatus{Time: g, Status: st})
	}
	return out
}

// Row is one cancellable 30-minute piece of an existing reservation.
type Row struct {
	ReservationID uint64 `json:"reservation_id"`
	Time          string `json:"time"` // "HH:MM - HH:MM"
	ReserverName  string `json:"reserver_name"`
}

// Rows splits every reservation of room on day into single-slot rows,
// ordered by time and then by reservation id.
func Rows(all []model.Reservation, room string, day model.Day) []Row {
	var rows []Row
	for _, r := range all {
		if r.Room != room || r.Date != day {
			continue
		}
		for _, s := range Expand(r.Time) {
			rng, err := SlotRange(s)
			if err != nil {
				continue
			}
			rows = append(rows, Row{ReservationID: r.ID, Time: rng, ReserverName: r.ReserverName})
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Time != rows[j].Time {
			return rows[i].Time < rows[j].Time
		}
		return rows[i].ReservationID < rows[j].ReservationID
	})
	return rows
}
