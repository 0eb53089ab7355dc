package database

import (
	"context"
	"database/sql"

	"github.com/jackc/pgx/v5/pgxpool"
)

// The reservations table is the only table.  date holds the canonical
// YYYY-MM-DD string and time one or more "HH:MM - HH:MM" ranges.  The
// unique key on (room, date, time) is what stops two per-slot bookings of
// the same slot from both succeeding.

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS reservations (
		id            BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		reserver_name VARCHAR(100)    NOT NULL,
		purpose       VARCHAR(255)    NOT NULL,
		room          VARCHAR(50)     NOT NULL,
		date          VARCHAR(10)     NOT NULL,
		time          VARCHAR(255)    NOT NULL,
		password      VARCHAR(100)    NOT NULL,
		created_at    DATETIME(6)     NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		PRIMARY KEY (id),
		UNIQUE KEY uq_reservations_slot (room, date, time),
		KEY idx_reservations_created (created_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS reservations (
		id            BIGSERIAL PRIMARY KEY,
		reserver_name TEXT        NOT NULL,
		purpose       TEXT        NOT NULL,
		room          TEXT        NOT NULL,
		date          TEXT        NOT NULL,
		time          TEXT        NOT NULL,
		password      TEXT        NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_reservations_slot ON reservations (room, date, time)`,
	`CREATE INDEX IF NOT EXISTS idx_reservations_created ON reservations (created_at DESC)`,
}

// MigrateMySQL creates the reservations table if it does not exist.
func MigrateMySQL(ctx context.Context, db *sql.DB) error {
	for _, stmt := range mysqlSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// MigratePostgres creates the reservations table and its indexes if missing.
func MigratePostgres(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range postgresSchema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
