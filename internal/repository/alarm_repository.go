package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"

	"dormhub/api/internal/models"
)

var ErrAlarmNotFound = errors.New("alarm not found")

type AlarmRepository struct {
	pool *pgxpool.Pool
}

func NewAlarmRepository(pool *pgxpool.Pool) *AlarmRepository {
	return &AlarmRepository{pool: pool}
}

func (r *AlarmRepository) Create(ctx context.Context, alarm models.Alarm) error {
	const query = `
		INSERT INTO alarms (id, user_id, title, body, read, created_at)
		VALUES ($1, $2, $3, $4, FALSE, NOW())
	`
	_, err := r.pool.Exec(ctx, query,
		alarm.ID,
		alarm.UserID,
		alarm.Title,
		alarm.Body,
	)
	return err
}

// CreateForAllStudents fans one announcement out to every active student.
func (r *AlarmRepository) CreateForAllStudents(ctx context.Context, title, body string) (int64, error) {
	const query = `
		INSERT INTO alarms (id, user_id, title, body, read, created_at)
		SELECT gen_random_uuid()::text, id, $1, $2, FALSE, NOW()
		FROM profiles
		WHERE role = 'student' AND status = 'active'
	`
	cmd, err := r.pool.Exec(ctx, query, title, body)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *AlarmRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Alarm, error) {
	const query = `
		SELECT id, user_id, title, body, read, created_at
		FROM alarms
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alarms []models.Alarm
	for rows.Next() {
		var alarm models.Alarm
		if err := rows.Scan(
			&alarm.ID,
			&alarm.UserID,
			&alarm.Title,
			&alarm.Body,
			&alarm.Read,
			&alarm.CreatedAt,
		); err != nil {
			return nil, err
		}
		alarms = append(alarms, alarm)
	}
	return alarms, rows.Err()
}

func (r *AlarmRepository) MarkRead(ctx context.Context, id string, userID string) error {
	const query = `UPDATE alarms SET read = TRUE WHERE id = $1 AND user_id = $2`
	cmd, err := r.pool.Exec(ctx, query, id, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAlarmNotFound
	}
	return nil
}

func (r *AlarmRepository) MarkAllRead(ctx context.Context, userID string) error {
	const query = `UPDATE alarms SET read = TRUE WHERE user_id = $1 AND read = FALSE`
	_, err := r.pool.Exec(ctx, query, userID)
	return err
}
