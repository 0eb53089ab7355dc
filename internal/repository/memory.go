package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/meeting-room-reservation/internal/model"
)

// MemoryStore keeps reservations in process memory.  It enforces the same
// (room, date, time) uniqueness as the SQL schema and is safe for
// concurrent use.  It backs STORE_DRIVER=memory and the test suites.
type MemoryStore struct {
	mu     sync.Mutex
	nextID uint64
	rows   map[uint64]model.Reservation
	now    func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1, rows: map[uint64]model.Reservation{}, now: time.Now}
}

func (s *MemoryStore) Create(_ context.Context, r model.Reservation) (model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ex := range s.rows {
		if ex.Room == r.Room && ex.Date == r.Date && ex.Time == r.Time {
			return model.Reservation{}, ErrDuplicate
		}
	}
	r.ID = s.nextID
	s.nextID++
	// strictly increasing timestamps keep ListAll ordering deterministic
	r.CreatedAt = s.now().UTC().Add(time.Duration(r.ID) * time.Nanosecond)
	s.rows[r.ID] = r
	return r, nil
}

func (s *MemoryStore) ListAll(_ context.Context) ([]model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Reservation, 0, len(s.rows))
	for _, r := range s.rows {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) GetByID(_ context.Context, id uint64) (model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok {
		return model.Reservation{}, ErrNotFound
	}
	return r, nil
}

func (s *MemoryStore) Update(_ context.Context, id uint64, patch model.ReservationPatch) (model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok {
		return model.Reservation{}, ErrNotFound
	}
	patch.Apply(&r)
	for _, ex := range s.rows {
		if ex.ID != id && ex.Room == r.Room && ex.Date == r.Date && ex.Time == r.Time {
			return model.Reservation{}, ErrDuplicate
		}
	}
	s.rows[id] = r
	return r, nil
}

func (s *MemoryStore) DeleteByID(_ context.Context, id uint64) (model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok {
		return model.Reservation{}, ErrNotFound
	}
	delete(s.rows, id)
	return r, nil
}

func (s *MemoryStore) DeleteWhere(_ context.Context, id uint64, times []string) ([]model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok {
		return nil, nil
	}
	for _, t := range times {
		if r.Time == t {
			delete(s.rows, id)
			return []model.Reservation{r}, nil
		}
	}
	return nil, nil
}
