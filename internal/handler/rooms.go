package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/meeting-room-reservation/internal/model"
)

// ListRooms handles GET /v1/rooms.
func ListRooms(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"rooms": model.Rooms()})
}

// resolveRoom accepts a catalogue id ("2") or a room name ("Room 2").
func resolveRoom(s string) (model.Room, bool) {
	s = strings.TrimSpace(s)
	if id, err := strconv.Atoi(s); err == nil {
		return model.RoomByID(id)
	}
	return model.RoomByName(s)
}
