package database

import (
	"context"
	"fmt"

	"github.com/iliyamo/meeting-room-reservation/internal/config"
	"github.com/iliyamo/meeting-room-reservation/internal/repository"
)

// Store bundles the reservation store chosen by STORE_DRIVER with its
// health check and cleanup.
type Store struct {
	Reservations repository.ReservationStore
	Ping         func(ctx context.Context) error // nil for the memory store
	Close        func()
}

// OpenStore connects the configured backend.  With migrate set the schema
// is created first.
func OpenStore(ctx context.Context, cfg config.Config, migrate bool) (*Store, error) {
	switch cfg.StoreDriver {
	case config.DriverMySQL:
		db, err := OpenMySQL(ctx, MySQLParams{User: cfg.DBUser, Pass: cfg.DBPass, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName})
		if err != nil {
			return nil, fmt.Errorf("open mysql: %w", err)
		}
		if migrate {
			if err := MigrateMySQL(ctx, db); err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("migrate mysql: %w", err)
			}
		}
		return &Store{
			Reservations: repository.NewReservationRepo(db),
			Ping:         db.PingContext,
			Close:        func() { _ = db.Close() },
		}, nil
	case config.DriverPostgres:
		pool, err := OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if migrate {
			if err := MigratePostgres(ctx, pool); err != nil {
				pool.Close()
				return nil, fmt.Errorf("migrate postgres: %w", err)
			}
		}
		return &Store{
			Reservations: repository.NewPgReservationRepo(pool),
			Ping:         pool.Ping,
			Close:        pool.Close,
		}, nil
	case config.DriverMemory:
		return &Store{Reservations: repository.NewMemoryStore(), Close: func() {}}, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}
