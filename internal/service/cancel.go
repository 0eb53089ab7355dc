package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/meeting-room-reservation/internal/model"
	"github.com/iliyamo/meeting-room-reservation/internal/queue"
	"github.com/iliyamo/meeting-room-reservation/internal/repository"
	"github.com/iliyamo/meeting-room-reservation/internal/timeslot"
	"github.com/iliyamo/meeting-room-reservation/internal/utils"
)

// CancelRow picks one slot of an existing reservation.  Time is either a
// single-slot range ("09:00 - 09:30") or a slot start ("09:00").
type CancelRow struct {
	ReservationID uint64
	Time          string
}

// CancelRequest removes the selected rows of room on day.
type CancelRequest struct {
	Room     string
	Date     model.Day
	Rows     []CancelRow
	Password string
}

// CancelResult reports what was removed.
type CancelResult struct {
	Confirmation Confirmation
	// Records as they were before the cancellation touched them.
	Affected []model.Reservation
}

// cancelGroup is the set of slots selected from one reservation.
type cancelGroup struct {
	id    uint64
	slots []string
	rec   model.Reservation
}

// Cancel verifies the password against every reservation involved before
// anything is removed.  A single mismatch aborts the whole request.
func (s *BookingService) Cancel(ctx context.Context, req CancelRequest) (*CancelResult, error) {
	if len(req.Rows) == 0 {
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
	groups, err := groupRows(req.Rows)
	if err != nil {
		return nil, err
	}

	// Verification pass.  Errors are collected per group and the first one
	// in request order wins so the outcome does not depend on scheduling.
	errs := make([]error, len(groups))
	var g errgroup.Group
	for i, grp := range groups {
		g.Go(func() error {
			rec, err := s.store.GetByID(ctx, grp.id)
			switch {
			case errors.Is(err, repository.ErrNotFound):
				errs[i] = ErrReservationNotFound
			case err != nil:
				errs[i] = &StoreError{Op: "get", Err: err}
			case !utils.VerifyPIN(rec.Password, req.Password):
				errs[i] = ErrPasswordMismatch
			case rec.Room != room.Name || rec.Date != req.Date:
				errs[i] = ErrInvalidSlot
			case !covers(rec, grp.slots):
				errs[i] = ErrInvalidSlot
			default:
				groups[i].rec = rec
			}
			return nil
		})
	}
	_ = g.Wait()
	for i, err := range errs {
		if err != nil {
			s.log.Info("cancellation rejected", zap.Uint64("id", groups[i].id), zap.Error(err))
			return nil, err
		}
	}

	// Mutation pass.
	var mg errgroup.Group
	for _, grp := range groups {
		mg.Go(func() error { return s.cancelSlots(ctx, grp) })
	}
	if err := mg.Wait(); err != nil {
		s.log.Error("cancel reservation", zap.Error(err))
		return nil, &StoreError{Op: "delete", Err: err}
	}

	affected := make([]model.Reservation, 0, len(groups))
	var names, purposes, cancelled []string
	for _, grp := range groups {
		affected = append(affected, grp.rec)
		names = appendUnique(names, grp.rec.ReserverName)
		purposes = appendUnique(purposes, grp.rec.Purpose)
		for _, slot := range grp.slots {
			rng, _ := timeslot.SlotRange(slot)
			cancelled = append(cancelled, rng)
		}
	}
	conf := Confirmation{
		ReserverName:   strings.Join(names, ", "),
		Purpose:        strings.Join(purposes, ", "),
		Room:           room.Name,
		Date:           req.Date.String(),
		Time:           strings.Join(cancelled, ", "),
		IsCancellation: true,
	}
	s.publish(ctx, queue.EventCancelled, affected, conf)
	s.log.Info("reservation cancelled",
		zap.String("room", room.Name),
		zap.Stringer("date", req.Date),
		zap.String("time", conf.Time),
		zap.Int("records", len(affected)))
	return &CancelResult{Confirmation: conf, Affected: affected}, nil
}

// cancelSlots removes the selected slots of one reservation.  Per-slot
// records are deleted outright.  A record whose time field spans several
// slots does not match any single-slot range; it is rewritten to the
// slots that remain, or deleted once none remain.
func (s *BookingService) cancelSlots(ctx context.Context, grp cancelGroup) error {
	times := make([]string, 0, len(grp.slots))
	for _, slot := range grp.slots {
		rng, _ := timeslot.SlotRange(slot)
		times = append(times, rng)
	}
	deleted, err := s.store.DeleteWhere(ctx, grp.id, times)
	if err != nil {
		return err
	}
	if len(deleted) > 0 {
		return nil
	}

	drop := make(timeslot.Set, len(grp.slots))
	for _, slot := range grp.slots {
		drop[slot] = struct{}{}
	}
	var remaining []string
	for _, slot := range timeslot.Expand(grp.rec.Time) {
		if !drop.Has(slot) {
			remaining = append(remaining, slot)
		}
	}
	if len(remaining) == 0 {
		_, err := s.store.DeleteByID(ctx, grp.id)
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	}
	rest := timeslot.Compact(remaining)
	_, err = s.store.Update(ctx, grp.id, model.ReservationPatch{Time: &rest})
	return err
}

// groupRows groups rows by reservation id in first-seen order and drops
// repeated slots.
func groupRows(rows []CancelRow) ([]cancelGroup, error) {
	var groups []cancelGroup
	index := map[uint64]int{}
	for _, row := range rows {
		if row.ReservationID == 0 {
			return nil, ErrReservationNotFound
		}
		slots := rowSlots(row.Time)
		if len(slots) == 0 {
			return nil, ErrInvalidSlot
		}
		i, ok := index[row.ReservationID]
		if !ok {
			i = len(groups)
			index[row.ReservationID] = i
			groups = append(groups, cancelGroup{id: row.ReservationID})
		}
		for _, slot := range slots {
			groups[i].slots = appendUnique(groups[i].slots, slot)
		}
	}
	for i := range groups {
		groups[i].slots = timeslot.SortSlots(groups[i].slots)
	}
	return groups, nil
}

func rowSlots(t string) []string {
	if slots := timeslot.Expand(t); len(slots) > 0 {
		return slots
	}
	m, err := timeslot.ToMinutes(strings.TrimSpace(t))
	if err != nil {
		return nil
	}
	return []string{timeslot.FromMinutes(m)}
}

func covers(rec model.Reservation, slots []string) bool {
	have := make(timeslot.Set)
	for _, s := range timeslot.Expand(rec.Time) {
		have[s] = struct{}{}
	}
	for _, s := range slots {
		if !have.Has(s) {
			return false
		}
	}
	return true
}

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}
