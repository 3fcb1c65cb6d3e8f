package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"dormhub/api/internal/models"
)

var (
	ErrReservationNotFound = errors.New("reservation not found")
	ErrSlotTaken           = errors.New("slot already reserved")
)

type LaundryRepository struct {
	pool *pgxpool.Pool
}

func NewLaundryRepository(pool *pgxpool.Pool) *LaundryRepository {
	return &LaundryRepository{pool: pool}
}

// Reserve claims a machine/time slot for a day. The unique index on
// (date, machine, time_index) turns double-booking into ErrSlotTaken.
func (r *LaundryRepository) Reserve(ctx context.Context, resv models.LaundryReservation) error {
	const query = `
		INSERT INTO laundry_reservations (id, user_id, user_name, room_number, date, machine, time_index, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (date, machine, time_index) DO NOTHING
	`
	cmd, err := r.pool.Exec(ctx, query,
		resv.ID,
		resv.UserID,
		resv.UserName,
		resv.RoomNumber,
		resv.Date,
		resv.Machine,
		resv.TimeIndex,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrSlotTaken
	}
	return nil
}

func (r *LaundryRepository) ListByDate(ctx context.Context, date time.Time) ([]models.LaundryReservation, error) {
	const query = `
		SELECT id, user_id, user_name, room_number, date, machine, time_index, created_at
		FROM laundry_reservations
		WHERE date = $1
		ORDER BY machine, time_index
	`

	rows, err := r.pool.Query(ctx, query, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reservations []models.LaundryReservation
	for rows.Next() {
		var resv models.LaundryReservation
		if err := rows.Scan(
			&resv.ID,
			&resv.UserID,
			&resv.UserName,
			&resv.RoomNumber,
			&resv.Date,
			&resv.Machine,
			&resv.TimeIndex,
			&resv.CreatedAt,
		); err != nil {
			return nil, err
		}
		reservations = append(reservations, resv)
	}
	return reservations, rows.Err()
}

func (r *LaundryRepository) GetByID(ctx context.Context, id string) (models.LaundryReservation, error) {
	const query = `
		SELECT id, user_id, user_name, room_number, date, machine, time_index, created_at
		FROM laundry_reservations
		WHERE id = $1
	`
	var resv models.LaundryReservation
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&resv.ID,
		&resv.UserID,
		&resv.UserName,
		&resv.RoomNumber,
		&resv.Date,
		&resv.Machine,
		&resv.TimeIndex,
		&resv.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.LaundryReservation{}, ErrReservationNotFound
		}
		return models.LaundryReservation{}, err
	}
	return resv, nil
}

func (r *LaundryRepository) Cancel(ctx context.Context, id string, userID string) error {
	const query = `DELETE FROM laundry_reservations WHERE id = $1 AND user_id = $2`
	cmd, err := r.pool.Exec(ctx, query, id, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrReservationNotFound
	}
	return nil
}

func (r *LaundryRepository) DeleteBefore(ctx context.Context, date time.Time) (int64, error) {
	const query = `DELETE FROM laundry_reservations WHERE date < $1`
	cmd, err := r.pool.Exec(ctx, query, date)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
