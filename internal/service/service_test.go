package service

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/meeting-room-reservation/internal/model"
	"github.com/iliyamo/meeting-room-reservation/internal/queue"
	"github.com/iliyamo/meeting-room-reservation/internal/repository"
	"github.com/iliyamo/meeting-room-reservation/internal/timeslot"
)

// countingStore wraps a MemoryStore, counts calls and injects failures.
type countingStore struct {
	repository.ReservationStore
	mu         sync.Mutex
	lists      int
	creates    int
	deletes    int
	failCreate map[string]error
	staleList  bool
}

func newCountingStore() *countingStore {
	return &countingStore{ReservationStore: repository.NewMemoryStore(), failCreate: map[string]error{}}
}

func (c *countingStore) ListAll(ctx context.Context) ([]model.Reservation, error) {
	c.mu.Lock()
	c.lists++
	stale := c.staleList
	c.mu.Unlock()
	if stale {
		return nil, nil
	}
	return c.ReservationStore.ListAll(ctx)
}

func (c *countingStore) Create(ctx context.Context, r model.Reservation) (model.Reservation, error) {
	c.mu.Lock()
	c.creates++
	err := c.failCreate[r.Time]
	c.mu.Unlock()
	if err != nil {
		return model.Reservation{}, err
	}
	return c.ReservationStore.Create(ctx, r)
}

func (c *countingStore) DeleteByID(ctx context.Context, id uint64) (model.Reservation, error) {
	c.mu.Lock()
	c.deletes++
	c.mu.Unlock()
	return c.ReservationStore.DeleteByID(ctx, id)
}

func (c *countingStore) DeleteWhere(ctx context.Context, id uint64, times []string) ([]model.Reservation, error) {
	c.mu.Lock()
	c.deletes++
	c.mu.Unlock()
	return c.ReservationStore.DeleteWhere(ctx, id, times)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.ReservationEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev queue.ReservationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func newService(store repository.ReservationStore, pub EventPublisher) *BookingService {
	return NewBookingService(store, Options{Events: pub, BcryptCost: bcrypt.MinCost})
}

func day(t *testing.T, s string) model.Day {
	t.Helper()
	d, err := model.ParseDay(s)
	if err != nil {
		t.Fatalf("parse day %q: %v", s, err)
	}
	return d
}

func seed(t *testing.T, store repository.ReservationStore, room, date, tm, pin string) model.Reservation {
	t.Helper()
	r, err := store.Create(context.Background(), model.Reservation{
		ReserverName: "Legacy", Purpose: "Planning", Room: room, Date: day(t, date), Time: tm, Password: pin,
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return r
}

func TestBook_EndToEnd(t *testing.T) {
	store := newCountingStore()
	pub := &recordingPublisher{}
	svc := newService(store, pub)
	ctx := context.Background()

	res, err := svc.Book(ctx, BookingRequest{
		ReserverName: "Kim",
		Purpose:      "Team meeting",
		Room:         "Room 2",
		Date:         day(t, "2025-09-20"),
		Slots:        []string{"13:30", "13:00"},
		Password:     "0000",
	})
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if len(res.Reservations) != 2 {
		t.Fatalf("expected 2 records, got %d", len(res.Reservations))
	}
	times := []string{res.Reservations[0].Time, res.Reservations[1].Time}
	if !reflect.DeepEqual(times, []string{"13:00 - 13:30", "13:30 - 14:00"}) {
		t.Fatalf("unexpected record times %v", times)
	}
	for _, r := range res.Reservations {
		if r.Password == "0000" || bcrypt.CompareHashAndPassword([]byte(r.Password), []byte("0000")) != nil {
			t.Fatalf("password should be stored as a bcrypt hash, got %q", r.Password)
		}
	}
	want := Confirmation{ReserverName: "Kim", Purpose: "Team meeting", Room: "Room 2", Date: "2025-09-20", Time: "13:00 - 14:00"}
	if res.Confirmation != want {
		t.Fatalf("confirmation = %+v, want %+v", res.Confirmation, want)
	}

	grid, err := svc.Availability(ctx, "Room 2", day(t, "2025-09-20"))
	if err != nil {
		t.Fatalf("availability: %v", err)
	}
	for _, st := range grid {
		wantBooked := st.Time == "13:00" || st.Time == "13:30"
		if (st.Status == timeslot.StatusBooked) != wantBooked {
			t.Fatalf("slot %s has status %s", st.Time, st.Status)
		}
	}

	if len(pub.events) != 1 || pub.events[0].Type != queue.EventBooked || len(pub.events[0].ReservationIDs) != 2 {
		t.Fatalf("unexpected events %+v", pub.events)
	}
	if pub.events[0].EventID == "" {
		t.Fatalf("event id not set")
	}
}

func TestBook_DefaultsBlankNameAndPurpose(t *testing.T) {
	svc := NewBookingService(repository.NewMemoryStore(), Options{BcryptCost: bcrypt.MinCost, DefaultName: "Guest", DefaultPurpose: "Meeting"})
	res, err := svc.Book(context.Background(), BookingRequest{
		ReserverName: "  ", Room: "Room 1", Date: day(t, "2025-09-18"), Slots: []string{"9:00"}, Password: "1234",
	})
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if res.Confirmation.ReserverName != "Guest" || res.Confirmation.Purpose != "Meeting" {
		t.Fatalf("placeholders not applied: %+v", res.Confirmation)
	}
	if res.Confirmation.Time != "09:00 - 09:30" {
		t.Fatalf("slot not normalised: %q", res.Confirmation.Time)
	}
}

func TestBook_ValidationMakesNoStoreCalls(t *testing.T) {
	d := day(t, "2025-09-18")
	cases := []struct {
		name string
		req  BookingRequest
		want error
	}{
		{"no slots", BookingRequest{Room: "Room 1", Date: d, Password: "1234"}, ErrNoSlots},
		{"short pin", BookingRequest{Room: "Room 1", Date: d, Slots: []string{"09:00"}, Password: "123"}, ErrInvalidPassword},
		{"non digit pin", BookingRequest{Room: "Room 1", Date: d, Slots: []string{"09:00"}, Password: "12a4"}, ErrInvalidPassword},
		{"unknown room", BookingRequest{Room: "Room 9", Date: d, Slots: []string{"09:00"}, Password: "1234"}, ErrUnknownRoom},
		{"missing date", BookingRequest{Room: "Room 1", Slots: []string{"09:00"}, Password: "1234"}, ErrInvalidDate},
		{"after hours", BookingRequest{Room: "Room 1", Date: d, Slots: []string{"19:00"}, Password: "1234"}, ErrInvalidSlot},
		{"off grid", BookingRequest{Room: "Room 1", Date: d, Slots: []string{"09:15"}, Password: "1234"}, ErrInvalidSlot},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newCountingStore()
			_, err := newService(store, nil).Book(context.Background(), tc.req)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if store.lists+store.creates != 0 {
				t.Fatalf("store was called: lists=%d creates=%d", store.lists, store.creates)
			}
		})
	}
}

func TestBook_ConflictWithLegacyRecord(t *testing.T) {
	store := newCountingStore()
	seed(t, store, "Room 1", "2025. 9. 18.", "09:00 - 10:00", "1234")
	svc := newService(store, nil)

	_, err := svc.Book(context.Background(), BookingRequest{
		Room: "Room 1", Date: day(t, "2025-09-18"), Slots: []string{"09:30", "10:00"}, Password: "5555",
	})
	var ce *ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("conflict should wrap ErrSlotUnavailable")
	}
	if !reflect.DeepEqual(ce.Slots, []string{"09:30"}) {
		t.Fatalf("unexpected conflict slots %v", ce.Slots)
	}
	if store.creates != 1 { // the seed only
		t.Fatalf("no record should be written, creates=%d", store.creates)
	}
}

func TestBook_OtherRoomAndDayDoNotConflict(t *testing.T) {
	store := newCountingStore()
	seed(t, store, "Room 1", "2025-09-18", "09:00 - 10:00", "1234")
	svc := newService(store, nil)
	ctx := context.Background()
	if _, err := svc.Book(ctx, BookingRequest{Room: "Room 2", Date: day(t, "2025-09-18"), Slots: []string{"09:00"}, Password: "1111"}); err != nil {
		t.Fatalf("other room: %v", err)
	}
	if _, err := svc.Book(ctx, BookingRequest{Room: "Room 1", Date: day(t, "2025-09-19"), Slots: []string{"09:00"}, Password: "1111"}); err != nil {
		t.Fatalf("other day: %v", err)
	}
}

func TestBook_RollsBackPartialFailure(t *testing.T) {
	store := newCountingStore()
	store.failCreate["10:00 - 10:30"] = errors.New("connection reset")
	svc := newService(store, nil)
	ctx := context.Background()

	_, err := svc.Book(ctx, BookingRequest{
		Room: "Room 3", Date: day(t, "2025-09-19"), Slots: []string{"09:30", "10:00", "10:30"}, Password: "1234",
	})
	var se *StoreError
	if !errors.As(err, &se) {
		t.Fatalf("expected StoreError, got %v", err)
	}
	all, _ := store.ReservationStore.ListAll(ctx)
	if len(all) != 0 {
		t.Fatalf("partial records left behind: %+v", all)
	}
}

func TestBook_StoreDuplicateBecomesConflict(t *testing.T) {
	store := newCountingStore()
	seed(t, store, "Room 1", "2025-09-18", "09:00 - 09:30", "1234")
	store.staleList = true // another writer won between read and write
	svc := newService(store, nil)
	ctx := context.Background()

	_, err := svc.Book(ctx, BookingRequest{
		Room: "Room 1", Date: day(t, "2025-09-18"), Slots: []string{"09:00", "09:30"}, Password: "4321",
	})
	var ce *ConflictError
	if !errors.As(err, &ce) || !reflect.DeepEqual(ce.Slots, []string{"09:00"}) {
		t.Fatalf("expected conflict on 09:00, got %v", err)
	}
	all, _ := store.ReservationStore.ListAll(ctx)
	if len(all) != 1 || all[0].ReserverName != "Legacy" {
		t.Fatalf("only the original record should remain: %+v", all)
	}
}

func TestBook_StoreListFailure(t *testing.T) {
	svc := newService(failingStore{}, nil)
	_, err := svc.Book(context.Background(), BookingRequest{Room: "Room 1", Date: day(t, "2025-09-18"), Slots: []string{"09:00"}, Password: "1234"})
	var se *StoreError
	if !errors.As(err, &se) || se.Op != "list" {
		t.Fatalf("expected list StoreError, got %v", err)
	}
}

type failingStore struct{ repository.ReservationStore }

func (failingStore) ListAll(context.Context) ([]model.Reservation, error) {
	return nil, errors.New("db down")
}

func TestCancel_PasswordMismatchDeletesNothing(t *testing.T) {
	store := newCountingStore()
	svc := newService(store, nil)
	ctx := context.Background()
	d := day(t, "2025-09-18")
	a, err := svc.Book(ctx, BookingRequest{Room: "Room 1", Date: d, Slots: []string{"09:00"}, Password: "1111"})
	if err != nil {
		t.Fatalf("book a: %v", err)
	}
	b, err := svc.Book(ctx, BookingRequest{Room: "Room 1", Date: d, Slots: []string{"10:00"}, Password: "2222"})
	if err != nil {
		t.Fatalf("book b: %v", err)
	}

	_, err = svc.Cancel(ctx, CancelRequest{
		Room: "Room 1",
		Date: d,
		Rows: []CancelRow{
			{ReservationID: a.Reservations[0].ID, Time: "09:00 - 09:30"},
			{ReservationID: b.Reservations[0].ID, Time: "10:00 - 10:30"},
		},
		Password: "1111",
	})
	if !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("expected ErrPasswordMismatch, got %v", err)
	}
	if store.deletes != 0 {
		t.Fatalf("expected zero deletions, got %d", store.deletes)
	}
	all, _ := store.ListAll(ctx)
	if len(all) != 2 {
		t.Fatalf("records should be untouched, got %d", len(all))
	}
}

func TestCancel_PerSlotRecords(t *testing.T) {
	store := newCountingStore()
	pub := &recordingPublisher{}
	svc := newService(store, pub)
	ctx := context.Background()
	d := day(t, "2025-09-20")
	booked, err := svc.Book(ctx, BookingRequest{ReserverName: "Kim", Purpose: "Sync", Room: "Room 2", Date: d, Slots: []string{"13:00", "13:30"}, Password: "0000"})
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	first := booked.Reservations[0]

	res, err := svc.Cancel(ctx, CancelRequest{
		Room: "Room 2", Date: d, Password: "0000",
		Rows: []CancelRow{{ReservationID: first.ID, Time: "13:00 - 13:30"}, {ReservationID: first.ID, Time: "13:00"}},
	})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	want := Confirmation{ReserverName: "Kim", Purpose: "Sync", Room: "Room 2", Date: "2025-09-20", Time: "13:00 - 13:30", IsCancellation: true}
	if res.Confirmation != want {
		t.Fatalf("confirmation = %+v, want %+v", res.Confirmation, want)
	}
	rows, _ := svc.CancellationRows(ctx, "Room 2", d)
	if len(rows) != 1 || rows[0].Time != "13:30 - 14:00" {
		t.Fatalf("unexpected remaining rows %+v", rows)
	}
	if last := pub.events[len(pub.events)-1]; last.Type != queue.EventCancelled {
		t.Fatalf("expected cancellation event, got %s", last.Type)
	}
}

func TestCancel_TrimsLegacyMultiSlotRecord(t *testing.T) {
	store := newCountingStore()
	legacy := seed(t, store, "Room 3", "2025.09.19", "15:00 - 16:30", "1234")
	svc := newService(store, nil)
	ctx := context.Background()
	d := day(t, "2025-09-19")

	rows, err := svc.CancellationRows(ctx, "Room 3", d)
	if err != nil || len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %+v, %v", rows, err)
	}

	if _, err := svc.Cancel(ctx, CancelRequest{Room: "Room 3", Date: d, Password: "1234",
		Rows: []CancelRow{{ReservationID: legacy.ID, Time: "15:30 - 16:00"}}}); err != nil {
		t.Fatalf("cancel middle: %v", err)
	}
	got, err := store.GetByID(ctx, legacy.ID)
	if err != nil {
		t.Fatalf("record should remain: %v", err)
	}
	if got.Time != "15:00 - 15:30, 16:00 - 16:30" {
		t.Fatalf("unexpected remaining time %q", got.Time)
	}

	if _, err := svc.Cancel(ctx, CancelRequest{Room: "Room 3", Date: d, Password: "1234",
		Rows: []CancelRow{{ReservationID: legacy.ID, Time: "15:00 - 15:30"}, {ReservationID: legacy.ID, Time: "16:00 - 16:30"}}}); err != nil {
		t.Fatalf("cancel rest: %v", err)
	}
	if _, err := store.GetByID(ctx, legacy.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("record should be gone, got %v", err)
	}
}

func TestCancel_Rejections(t *testing.T) {
	store := newCountingStore()
	legacy := seed(t, store, "Room 1", "2025-09-18", "09:00 - 10:00", "1234")
	svc := newService(store, nil)
	ctx := context.Background()
	d := day(t, "2025-09-18")

	cases := []struct {
		name string
		req  CancelRequest
		want error
	}{
		{"no rows", CancelRequest{Room: "Room 1", Date: d, Password: "1234"}, ErrNoSlots},
		{"bad pin", CancelRequest{Room: "Room 1", Date: d, Password: "12", Rows: []CancelRow{{legacy.ID, "09:00"}}}, ErrInvalidPassword},
		{"missing record", CancelRequest{Room: "Room 1", Date: d, Password: "1234", Rows: []CancelRow{{999, "09:00"}}}, ErrReservationNotFound},
		{"slot not covered", CancelRequest{Room: "Room 1", Date: d, Password: "1234", Rows: []CancelRow{{legacy.ID, "11:00"}}}, ErrInvalidSlot},
		{"other room", CancelRequest{Room: "Room 2", Date: d, Password: "1234", Rows: []CancelRow{{legacy.ID, "09:00"}}}, ErrInvalidSlot},
		{"garbage time", CancelRequest{Room: "Room 1", Date: d, Password: "1234", Rows: []CancelRow{{legacy.ID, "soon"}}}, ErrInvalidSlot},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Cancel(ctx, tc.req); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
	if store.deletes != 0 {
		t.Fatalf("rejected cancellations must not delete, got %d", store.deletes)
	}
}

func TestConfirmationParams(t *testing.T) {
	c := Confirmation{ReserverName: "Kim", Purpose: "Sync", Room: "Room 1", Date: "2025-09-18", Time: "09:00 - 10:00"}
	if _, ok := c.Params()["isCancellation"]; ok {
		t.Fatalf("booking params must not carry isCancellation")
	}
	c.IsCancellation = true
	p := c.Params()
	if p["isCancellation"] != "true" || p["time"] != "09:00 - 10:00" || len(p) != 6 {
		t.Fatalf("unexpected params %v", p)
	}
	cl := c.Claims()
	if back := ConfirmationFromClaims(&cl); back != c {
		t.Fatalf("claims round trip lost data: %+v", back)
	}
}
