package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/meeting-room-reservation/internal/model"
	"github.com/iliyamo/meeting-room-reservation/internal/service"
	"github.com/iliyamo/meeting-room-reservation/internal/utils"
)

// ReservationHandler exposes the booking workflow over HTTP.  Every
// successful write, and every write that failed in the store, calls
// Invalidate so cached availability views are dropped.
type ReservationHandler struct {
	Service    *service.BookingService
	Secret     string        // signs confirmation tokens
	TokenTTL   time.Duration // lifetime of confirmation tokens
	Invalidate func(ctx context.Context)
	Log        *zap.Logger
}

// NewReservationHandler constructs a handler.  svc must be non-nil.
func NewReservationHandler(svc *service.BookingService, secret string, ttl time.Duration, invalidate func(context.Context), log *zap.Logger) *ReservationHandler {
	if svc == nil {
		panic("nil service passed to NewReservationHandler")
	}
	if invalidate == nil {
		invalidate = func(context.Context) {}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ReservationHandler{Service: svc, Secret: secret, TokenTTL: ttl, Invalidate: invalidate, Log: log}
}

type bookRequest struct {
	ReserverName string   `json:"reserverName"`
	Purpose      string   `json:"purpose"`
	Room         string   `json:"room"`
	Date         string   `json:"date"`
	Slots        []string `json:"slots"`
	Password     string   `json:"password"`
}

type cancelRow struct {
	ReservationID uint64 `json:"reservationId"`
	Time          string `json:"time"`
}

type cancelRequest struct {
	Room     string      `json:"room"`
	Date     string      `json:"date"`
	Rows     []cancelRow `json:"rows"`
	Password string      `json:"password"`
}

// Slots handles GET /v1/rooms/:id/slots?date=YYYY-MM-DD.  It returns the
// 20 grid slots of the day with status available or booked.
func (h *ReservationHandler) Slots(c echo.Context) error {
	room, ok := resolveRoom(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "room not found"})
	}
	day, err := model.ParseDay(c.QueryParam("date"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "date query parameter must be YYYY-MM-DD"})
	}
	grid, err := h.Service.Availability(c.Request().Context(), room.Name, day)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"room": room.Name, "date": day, "slots": grid})
}

// Rows handles GET /v1/rooms/:id/reservations?date=YYYY-MM-DD, the
// per-slot listing a user picks cancellations from.
func (h *ReservationHandler) Rows(c echo.Context) error {
	room, ok := resolveRoom(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "room not found"})
	}
	day, err := model.ParseDay(c.QueryParam("date"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "date query parameter must be YYYY-MM-DD"})
	}
	rows, err := h.Service.CancellationRows(c.Request().Context(), room.Name, day)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"room": room.Name, "date": day, "rows": rows})
}

// invalidateAfter drops cached views when a write failed inside the store.
// Some records may already have been removed, or a compensating delete
// may have failed, so the cached grid can no longer be trusted.
func (h *ReservationHandler) invalidateAfter(ctx context.Context, err error) {
	var se *service.StoreError
	if errors.As(err, &se) {
		h.Invalidate(ctx)
	}
}

// Book handles POST /v1/reservations.  On success it returns 201 with the
// confirmation, its navigation parameters, a signed confirmation token
// and the records created.  A conflict returns 409 with the taken slots.
func (h *ReservationHandler) Book(c echo.Context) error {
	var body bookRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	room, ok := resolveRoom(body.Room)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown room"})
	}
	day, err := model.ParseDay(body.Date)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid date"})
	}
	ctx := c.Request().Context()
	res, err := h.Service.Book(ctx, service.BookingRequest{
		ReserverName: body.ReserverName,
		Purpose:      body.Purpose,
		Room:         room.Name,
		Date:         day,
		Slots:        body.Slots,
		Password:     body.Password,
	})
	if err != nil {
		h.invalidateAfter(ctx, err)
		return h.fail(c, err)
	}
	h.Invalidate(ctx)
	resp, err := h.confirmationBody(res.Confirmation)
	if err != nil {
		return h.fail(c, err)
	}
	resp["reservations"] = res.Reservations
	return c.JSON(http.StatusCreated, resp)
}

// Cancel handles POST /v1/reservations/cancel.  The password is checked
// against every reservation the rows belong to before anything is
// removed; a mismatch returns 403 and leaves all records untouched.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	var body cancelRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	room, ok := resolveRoom(body.Room)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown room"})
	}
	day, err := model.ParseDay(body.Date)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid date"})
	}
	rows := make([]service.CancelRow, 0, len(body.Rows))
	for _, r := range body.Rows {
		rows = append(rows, service.CancelRow{ReservationID: r.ReservationID, Time: r.Time})
	}
	ctx := c.Request().Context()
	res, err := h.Service.Cancel(ctx, service.CancelRequest{Room: room.Name, Date: day, Rows: rows, Password: body.Password})
	if err != nil {
		h.invalidateAfter(ctx, err)
		return h.fail(c, err)
	}
	h.Invalidate(ctx)
	resp, err := h.confirmationBody(res.Confirmation)
	if err != nil {
		return h.fail(c, err)
	}
	ids := make([]uint64, 0, len(res.Affected))
	for _, r := range res.Affected {
		ids = append(ids, r.ID)
	}
	resp["reservation_ids"] = ids
	return c.JSON(http.StatusOK, resp)
}

// Confirmation handles GET /v1/confirmations/:token and returns the
// confirmation a booking or cancellation produced.
func (h *ReservationHandler) Confirmation(c echo.Context) error {
	claims, err := utils.ParseConfirmationToken(h.Secret, c.Param("token"))
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired confirmation"})
	}
	conf := service.ConfirmationFromClaims(claims)
	return c.JSON(http.StatusOK, echo.Map{"confirmation": conf, "params": conf.Params()})
}

func (h *ReservationHandler) confirmationBody(conf service.Confirmation) (echo.Map, error) {
	token, exp, err := utils.NewConfirmationToken(h.Secret, conf.Claims(), h.TokenTTL)
	if err != nil {
		return nil, err
	}
	return echo.Map{
		"confirmation": conf,
		"params":       conf.Params(),
		"token":        token,
		"expires_at":   exp.UTC().Format(time.RFC3339),
	}, nil
}

// fail maps workflow errors onto HTTP responses.  Nothing is swallowed:
// unknown errors are logged and reported as a retryable 500.
func (h *ReservationHandler) fail(c echo.Context, err error) error {
	var conflict *service.ConflictError
	switch {
	case errors.As(err, &conflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "slot_unavailable", "message": "some of the selected times are already booked", "slots": conflict.Slots})
	case errors.Is(err, service.ErrPasswordMismatch):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "password_mismatch"})
	case errors.Is(err, service.ErrReservationNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
	case errors.Is(err, service.ErrNoSlots),
		errors.Is(err, service.ErrInvalidPassword),
		errors.Is(err, service.ErrInvalidSlot),
		errors.Is(err, service.ErrInvalidDate),
		errors.Is(err, service.ErrUnknownRoom):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	h.Log.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not save your request, please try again"})
}
