// Package router defines how HTTP routes are registered for the API.
package router

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/meeting-room-reservation/internal/handler"
)

// RegisterRoutes registers the health check.  ping may be nil.
func RegisterRoutes(e *echo.Echo, ping func(ctx context.Context) error) {
	e.GET("/healthz", handler.Health(ping))
}

// RegisterReservations mounts the booking API under /v1.  cache wraps the
// read-only availability views; write endpoints get limit, and cancel also
// gets pinGuard.  Any middleware may be nil.
func RegisterReservations(e *echo.Echo, h *handler.ReservationHandler, cache, limit, pinGuard echo.MiddlewareFunc) {
	var reads, writes, cancels []echo.MiddlewareFunc
	if cache != nil {
		reads = append(reads, cache)
	}
	if limit != nil {
		writes = append(writes, limit)
		cancels = append(cancels, limit)
	}
	if pinGuard != nil {
		cancels = append(cancels, pinGuard)
	}

	v1 := e.Group("/v1")
	v1.GET("/rooms", handler.ListRooms)
	// slot grid and cancellation rows for one room and day
	v1.GET("/rooms/:id/slots", h.Slots, reads...)
	v1.GET("/rooms/:id/reservations", h.Rows, reads...)

	v1.POST("/reservations", h.Book, writes...)
	v1.POST("/reservations/cancel", h.Cancel, cancels...)
	v1.GET("/confirmations/:token", h.Confirmation)
}
