// Package service holds the booking and cancellation workflow.  It sits
// between the HTTP handlers and the reservation store and owns every rule
// about which slots may be written or removed.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/meeting-room-reservation/internal/model"
	"github.com/iliyamo/meeting-room-reservation/internal/queue"
	"github.com/iliyamo/meeting-room-reservation/internal/repository"
	"github.com/iliyamo/meeting-room-reservation/internal/timeslot"
	"github.com/iliyamo/meeting-room-reservation/internal/utils"
)

// Options configures a BookingService.  Zero values fall back to sane
// defaults.
type Options struct {
	Events         EventPublisher
	Logger         *zap.Logger
	BcryptCost     int
	DefaultName    string
	DefaultPurpose string
	EventTimeout   time.Duration
}

// BookingService books and cancels meeting-room slots.
type BookingService struct {
	store          repository.ReservationStore
	events         EventPublisher
	log            *zap.Logger
	cost           int
	defaultName    string
	defaultPurpose string
	eventTimeout   time.Duration
	now            func() time.Time
}

// NewBookingService wires a service to its store.
func NewBookingService(store repository.ReservationStore, opts Options) *BookingService {
	s := &BookingService{
		store:          store,
		events:         opts.Events,
		log:            opts.Logger,
		cost:           opts.BcryptCost,
		defaultName:    opts.DefaultName,
		defaultPurpose: opts.DefaultPurpose,
		eventTimeout:   opts.EventTimeout,
		now:            time.Now,
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.cost == 0 {
		s.cost = bcrypt.DefaultCost
	}
	if s.defaultName == "" {
		s.defaultName = "Reserver"
	}
	if s.defaultPurpose == "" {
		s.defaultPurpose = "Meeting"
	}
	if s.eventTimeout == 0 {
		s.eventTimeout = 5 * time.Second
	}
	return s
}

// BookingRequest is a reservation of one or more slots of a room on a day.
// Slots are slot starts ("HH:MM") in any order.
type BookingRequest struct {
	ReserverName string
	Purpose      string
	Room         string
	Date         model.Day
	Slots        []string
	Password     string
}

// BookingResult holds the confirmation and the records written.
type BookingResult struct {
	Confirmation Confirmation
	Reservations []model.Reservation
}

// Book writes one record per selected slot.  All creates run concurrently
// and are awaited together; if any of them fails the ones that succeeded
// are deleted again so that the request leaves nothing behind.
func (s *BookingService) Book(ctx context.Context, req BookingRequest) (*BookingResult, error) {
	if len(req.Slots) == 0 {
		return nil, ErrNoSlots
	}
	if !utils.ValidPIN(req.Password) {
		return nil, ErrInvalidPassword
	}
	room, ok := model.RoomByName(req.Room)
	if !ok {
		return nil, ErrUnknownRoom
	}
	if req.Date.IsZero() {
		return nil, ErrInvalidDate
	}
	requested := make([]string, 0, len(req.Slots))
	for _, slot := range req.Slots {
		if !timeslot.OnGrid(slot) {
			return nil, ErrInvalidSlot
		}
		m, _ := timeslot.ToMinutes(slot)
		requested = append(requested, timeslot.FromMinutes(m))
	}

	all, err := s.store.ListAll(ctx)
	if err != nil {
		s.log.Error("list reservations", zap.Error(err))
		return nil, &StoreError{Op: "list", Err: err}
	}
	booked := timeslot.BookedSlots(all, room.Name, req.Date)

	var sel timeslot.Selection
	var taken []string
	for _, slot := range requested {
		if sel.Contains(slot) {
			continue
		}
		if !sel.Toggle(slot, booked) {
			taken = append(taken, slot)
		}
	}
	if len(taken) > 0 {
		return nil, &ConflictError{Slots: timeslot.SortSlots(taken)}
	}

	hash, err := utils.HashPIN(req.Password, s.cost)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.ReserverName)
	if name == "" {
		name = s.defaultName
	}
	purpose := strings.TrimSpace(req.Purpose)
	if purpose == "" {
		purpose = s.defaultPurpose
	}

	slots := sel.Slots()
	created := make([]model.Reservation, len(slots))
	errs := make([]error, len(slots))
	var g errgroup.Group
	for i, slot := range slots {
		rng, _ := timeslot.SlotRange(slot) // on-grid slots always render
		rec := model.Reservation{
			ReserverName: name,
			Purpose:      purpose,
			Room:         room.Name,
			Date:         req.Date,
			Time:         rng,
			Password:     hash,
		}
		g.Go(func() error {
			out, err := s.store.Create(ctx, rec)
			if err != nil {
				errs[i] = err
				return err
			}
			created[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.compensate(ctx, created)
		var dup []string
		for i, e := range errs {
			if errors.Is(e, repository.ErrDuplicate) {
				dup = append(dup, slots[i])
			}
		}
		if len(dup) > 0 {
			return nil, &ConflictError{Slots: dup}
		}
		s.log.Error("create reservation", zap.String("room", room.Name), zap.Stringer("date", req.Date), zap.Error(err))
		return nil, &StoreError{Op: "create", Err: err}
	}

	conf := Confirmation{
		ReserverName: name,
		Purpose:      purpose,
		Room:         room.Name,
		Date:         req.Date.String(),
		Time:         timeslot.Compact(slots),
	}
	s.publish(ctx, queue.EventBooked, created, conf)
	s.log.Info("reservation booked",
		zap.String("room", room.Name),
		zap.Stringer("date", req.Date),
		zap.String("time", conf.Time),
		zap.Int("records", len(created)))
	return &BookingResult{Confirmation: conf, Reservations: created}, nil
}

// compensate removes records a failed booking managed to create.
func (s *BookingService) compensate(ctx context.Context, created []model.Reservation) {
	ctx = context.WithoutCancel(ctx)
	for _, r := range created {
		if r.ID == 0 {
			continue
		}
		if _, err := s.store.DeleteByID(ctx, r.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
			s.log.Error("rollback reservation", zap.Uint64("id", r.ID), zap.Error(err))
		}
	}
}

// Availability lays out the slot grid of room on day.
func (s *BookingService) Availability(ctx context.Context, room string, day model.Day) ([]timeslot.SlotStatus, error) {
	booked, err := s.booked(ctx, room, day)
	if err != nil {
		return nil, err
	}
	return timeslot.Statuses(booked, nil), nil
}

// CancellationRows lists the single-slot rows a user can pick for
// cancellation.
func (s *BookingService) CancellationRows(ctx context.Context, room string, day model.Day) ([]timeslot.Row, error) {
	r, ok := model.RoomByName(room)
	if !ok {
		return nil, ErrUnknownRoom
	}
	if day.IsZero() {
		return nil, ErrInvalidDate
	}
	all, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, &StoreError{Op: "list", Err: err}
	}
	rows := timeslot.Rows(all, r.Name, day)
	if rows == nil {
		rows = []timeslot.Row{}
	}
	return rows, nil
}

func (s *BookingService) booked(ctx context.Context, room string, day model.Day) (timeslot.Set, error) {
	r, ok := model.RoomByName(room)
	if !ok {
		return nil, ErrUnknownRoom
	}
	if day.IsZero() {
		return nil, ErrInvalidDate
	}
	all, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, &StoreError{Op: "list", Err: err}
	}
	return timeslot.BookedSlots(all, r.Name, day), nil
}

// publish sends an event and only logs failures; the write it describes
// has already succeeded.
func (s *BookingService) publish(ctx context.Context, typ string, recs []model.Reservation, c Confirmation) {
	if s.events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.eventTimeout)
	defer cancel()
	if err := s.events.Publish(ctx, newEvent(typ, recs, c, s.now())); err != nil {
		s.log.Warn("publish reservation event", zap.String("type", typ), zap.Error(err))
	}
}
