package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/meeting-room-reservation/internal/model"
)

// mysqlDuplicateEntry is the MySQL error number for a unique key violation.
const mysqlDuplicateEntry = 1062

// ReservationRepo provides the reservation store on MySQL.  Every row
// lives in the reservations table; the unique key uq_reservations_slot
// over (room, date, time) rejects a second booking of the same slot.
// Timestamps are stored in UTC.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// DB exposes the underlying handle for readiness checks.
func (r *ReservationRepo) DB() *sql.DB { return r.db }

const reservationColumns = `id, reserver_name, purpose, room, date, time, password, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReservation(s rowScanner) (model.Reservation, error) {
	var res model.Reservation
	err := s.Scan(&res.ID, &res.ReserverName, &res.Purpose, &res.Room, &res.Date, &res.Time, &res.Password, &res.CreatedAt)
	return res, err
}

// Create inserts a reservation and reads the row back so the generated
// ID and created_at are populated.  A unique key violation is reported as
// ErrDuplicate.
func (r *ReservationRepo) Create(ctx context.Context, res model.Reservation) (model.Reservation, error) {
	const q = `INSERT INTO reservations (reserver_name, purpose, room, date, time, password) VALUES (?, ?, ?, ?, ?, ?)`
	result, err := r.db.ExecContext(ctx, q, res.ReserverName, res.Purpose, res.Room, res.Date, res.Time, res.Password)
	if err != nil {
		return model.Reservation{}, mapMySQLError(err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return model.Reservation{}, err
	}
	return r.GetByID(ctx, uint64(id))
}

// ListAll returns all reservations ordered by creation time, newest first.
func (r *ReservationRepo) ListAll(ctx context.Context) ([]model.Reservation, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+reservationColumns+` FROM reservations ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetByID returns a single reservation or ErrNotFound.
func (r *ReservationRepo) GetByID(ctx context.Context, id uint64) (model.Reservation, error) {
	res, err := scanReservation(r.db.QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Reservation{}, ErrNotFound
	}
	return res, err
}

// Update changes the columns set in patch.  An empty patch just returns
// the current row.
func (r *ReservationRepo) Update(ctx context.Context, id uint64, patch model.ReservationPatch) (model.Reservation, error) {
	if patch.Empty() {
		return r.GetByID(ctx, id)
	}
	sets, args := patchAssignments(patch, func(int) string { return "?" })
	args = append(args, id)
	q := `UPDATE reservations SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, q, args...); err != nil {
		return model.Reservation{}, mapMySQLError(err)
	}
	// RowsAffected is 0 both for a missing id and an unchanged row, so
	// existence is decided by reading the row back.
	return r.GetByID(ctx, id)
}

// DeleteByID removes a reservation inside a transaction so the returned
// row is exactly what was deleted.
func (r *ReservationRepo) DeleteByID(ctx context.Context, id uint64) (model.Reservation, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Reservation{}, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	res, err := scanReservation(tx.QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ? FOR UPDATE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Reservation{}, ErrNotFound
	}
	if err != nil {
		return model.Reservation{}, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM reservations WHERE id = ?`, id); err != nil {
		return model.Reservation{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Reservation{}, err
	}
	committed = true
	return res, nil
}

// DeleteWhere removes rows with the given id whose time column equals one
// of times.  Passing an empty slice has no effect and returns nil.
func (r *ReservationRepo) DeleteWhere(ctx context.Context, id uint64, times []string) ([]model.Reservation, error) {
	if len(times) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(times)), ",")
	args := make([]any, 0, len(times)+1)
	args = append(args, id)
	for _, t := range times {
		args = append(args, t)
	}
	where := `WHERE id = ? AND time IN (` + placeholders + `)`

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	rows, err := tx.QueryContext(ctx, `SELECT `+reservationColumns+` FROM reservations `+where+` FOR UPDATE`, args...)
	if err != nil {
		return nil, err
	}
	var deleted []model.Reservation
	for rows.Next() {
		res, scanErr := scanReservation(rows)
		if scanErr != nil {
			rows.Close()
			return nil, scanErr
		}
		deleted = append(deleted, res)
	}
	if err = rows.Close(); err != nil {
		return nil, err
	}
	if len(deleted) == 0 {
		return nil, nil
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM reservations `+where, args...); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return deleted, nil
}

// patchAssignments builds "column = placeholder" pairs for the set fields
// of patch.  ph renders the placeholder for the n-th argument (1-based) so
// the same helper serves MySQL's ? and Postgres' $n.
func patchAssignments(patch model.ReservationPatch, ph func(n int) string) ([]string, []any) {
	var sets []string
	var args []any
	add := func(col string, v *string) {
		if v == nil {
			return
		}
		args = append(args, *v)
		sets = append(sets, col+" = "+ph(len(args)))
	}
	add("reserver_name", patch.ReserverName)
	add("purpose", patch.Purpose)
	add("time", patch.Time)
	add("password", patch.Password)
	return sets, args
}

func mapMySQLError(err error) error {
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == mysqlDuplicateEntry {
		return ErrDuplicate
	}
	return err
}
