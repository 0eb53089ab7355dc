package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iliyamo/meeting-room-reservation/internal/model"
)

// pgUniqueViolation is the SQLSTATE Postgres reports for a unique index hit.
const pgUniqueViolation = "23505"

// PgReservationRepo is the reservation store on Postgres, the engine the
// hosted table originally ran on.  It mirrors ReservationRepo but relies
// on RETURNING instead of read-back queries.
type PgReservationRepo struct {
	pool *pgxpool.Pool
}

// NewPgReservationRepo binds the repository to a pgx pool.
func NewPgReservationRepo(pool *pgxpool.Pool) *PgReservationRepo {
	return &PgReservationRepo{pool: pool}
}

func (r *PgReservationRepo) Create(ctx context.Context, res model.Reservation) (model.Reservation, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO reservations (reserver_name, purpose, room, date, time, password)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+reservationColumns,
		res.ReserverName, res.Purpose, res.Room, res.Date.String(), res.Time, res.Password)
	out, err := scanPgReservation(row)
	if err != nil {
		return model.Reservation{}, mapPgError(err)
	}
	return out, nil
}

func (r *PgReservationRepo) ListAll(ctx context.Context) ([]model.Reservation, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+reservationColumns+` FROM reservations ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Reservation
	for rows.Next() {
		res, err := scanPgReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

func (r *PgReservationRepo) GetByID(ctx context.Context, id uint64) (model.Reservation, error) {
	res, err := scanPgReservation(r.pool.QueryRow(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = $1`, int64(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Reservation{}, ErrNotFound
	}
	return res, err
}

func (r *PgReservationRepo) Update(ctx context.Context, id uint64, patch model.ReservationPatch) (model.Reservation, error) {
	if patch.Empty() {
		return r.GetByID(ctx, id)
	}
	sets, args := patchAssignments(patch, func(n int) string { return fmt.Sprintf("$%d", n) })
	args = append(args, int64(id))
	q := `UPDATE reservations SET ` + strings.Join(sets, ", ") +
		fmt.Sprintf(` WHERE id = $%d RETURNING `, len(args)) + reservationColumns
	res, err := scanPgReservation(r.pool.QueryRow(ctx, q, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Reservation{}, ErrNotFound
	}
	if err != nil {
		return model.Reservation{}, mapPgError(err)
	}
	return res, nil
}

func (r *PgReservationRepo) DeleteByID(ctx context.Context, id uint64) (model.Reservation, error) {
	res, err := scanPgReservation(r.pool.QueryRow(ctx, `DELETE FROM reservations WHERE id = $1 RETURNING `+reservationColumns, int64(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Reservation{}, ErrNotFound
	}
	return res, err
}

func (r *PgReservationRepo) DeleteWhere(ctx context.Context, id uint64, times []string) ([]model.Reservation, error) {
	if len(times) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx,
		`DELETE FROM reservations WHERE id = $1 AND time = ANY($2) RETURNING `+reservationColumns,
		int64(id), times)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Reservation
	for rows.Next() {
		res, err := scanPgReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// scanPgReservation reads the date column as text so legacy dotted dates
// and DATE columns both go through model.ParseDay.
func scanPgReservation(row pgx.Row) (model.Reservation, error) {
	var (
		res  model.Reservation
		id   int64
		date string
	)
	if err := row.Scan(&id, &res.ReserverName, &res.Purpose, &res.Room, &date, &res.Time, &res.Password, &res.CreatedAt); err != nil {
		return model.Reservation{}, err
	}
	if err := res.Date.Scan(date); err != nil {
		return model.Reservation{}, err
	}
	res.ID = uint64(id)
	return res, nil
}

func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return ErrDuplicate
	}
	return err
}
