package model

import "strings"

// Room is a bookable meeting room.  The set of rooms is fixed and
// compiled in; reservations reference rooms by Name.
type Room struct {
	ID       int      `json:"id"`
	Name     string   `json:"name"`
	Capacity int      `json:"capacity"`
	Features []string `json:"features"`
}

var rooms = []Room{
	{ID: 1, Name: "Room 1", Capacity: 10, Features: []string{"video connection", "whiteboard", "projector"}},
	{ID: 2, Name: "Room 2", Capacity: 6, Features: []string{"video connection", "whiteboard"}},
	{ID: 3, Name: "Room 3", Capacity: 4, Features: []string{"video connection", "small meetings"}},
}

// Rooms returns a copy of the room catalogue ordered by ID.
func Rooms() []Room {
	out := make([]Room, len(rooms))
	copy(out, rooms)
	return out
}

// RoomByID looks a room up by its numeric id.
func RoomByID(id int) (Room, bool) {
	for _, r := range rooms {
		if r.ID == id {
			return r, true
		}
	}
	return Room{}, false
}

// RoomByName looks a room up by name, ignoring case and surrounding space.
func RoomByName(name string) (Room, bool) {
	n := strings.TrimSpace(name)
	for _, r := range rooms {
		if strings.EqualFold(r.Name, n) {
			return r, true
		}
	}
	return Room{}, false
}
