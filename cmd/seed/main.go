// Command seed creates the reservations schema and loads sample bookings.
package main

import (
	"context"
	"errors"
	"flag"
	"log"

	"go.uber.org/zap"

	"github.com/iliyamo/meeting-room-reservation/internal/config"
	"github.com/iliyamo/meeting-room-reservation/internal/database"
	"github.com/iliyamo/meeting-room-reservation/internal/logger"
	"github.com/iliyamo/meeting-room-reservation/internal/model"
	"github.com/iliyamo/meeting-room-reservation/internal/repository"
	"github.com/iliyamo/meeting-room-reservation/internal/utils"
)

type sample struct {
	name, purpose, room, date, time, pin string
}

// Multi-slot rows on purpose: they exercise the legacy trimming path of
// cancellation.
var samples = []sample{
	{"Kim", "Team meeting", "Room 1", "2025. 9. 18.", "09:00 - 10:30", "1234"},
	{"Lee", "Department meeting", "Room 2", "2025. 9. 18.", "14:00 - 15:30", "5678"},
	{"Park", "Vendor meeting", "Room 1", "2025. 9. 19.", "10:00 - 11:00", "9999"},
	{"Choi", "Work review", "Room 3", "2025. 9. 19.", "15:00 - 16:30", "1111"},
	{"Jung", "Team meeting", "Room 2", "2025. 9. 20.", "11:00 - 12:00", "2222"},
}

func main() {
	reset := flag.Bool("reset", false, "delete all reservations before seeding")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	lg, err := logger.New(cfg.IsProd())
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	ctx := context.Background()
	store, err := database.OpenStore(ctx, cfg, true)
	if err != nil {
		lg.Fatal("open store", zap.Error(err))
	}
	defer store.Close()

	if *reset {
		n, err := clearAll(ctx, store.Reservations)
		if err != nil {
			lg.Fatal("clear reservations", zap.Error(err))
		}
		lg.Info("cleared reservations", zap.Int("count", n))
	}
	created, err := seed(ctx, store.Reservations, cfg.BcryptCost, lg)
	if err != nil {
		lg.Fatal("seed", zap.Error(err))
	}
	lg.Info("seeding completed", zap.Int("created", created))
}

func clearAll(ctx context.Context, s repository.ReservationStore) (int, error) {
	all, err := s.ListAll(ctx)
	if err != nil {
		return 0, err
	}
	for _, r := range all {
		if _, err := s.DeleteByID(ctx, r.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return 0, err
		}
	}
	return len(all), nil
}

// seed inserts the samples.  Rows that already exist are skipped so the
// command can be re-run.
func seed(ctx context.Context, s repository.ReservationStore, cost int, lg *zap.Logger) (int, error) {
	created := 0
	for _, smp := range samples {
		day, err := model.ParseDay(smp.date)
		if err != nil {
			return created, err
		}
		hash, err := utils.HashPIN(smp.pin, cost)
		if err != nil {
			return created, err
		}
		_, err = s.Create(ctx, model.Reservation{
			ReserverName: smp.name,
			Purpose:      smp.purpose,
			Room:         smp.room,
			Date:         day,
			Time:         smp.time,
			Password:     hash,
		})
		if errors.Is(err, repository.ErrDuplicate) {
			lg.Info("sample already present", zap.String("reserver", smp.name))
			continue
		}
		if err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}
