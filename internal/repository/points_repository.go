package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"dormhub/api/internal/models"
)

type PointsRepository struct {
	pool *pgxpool.Pool
}

func NewPointsRepository(pool *pgxpool.Pool) *PointsRepository {
	return &PointsRepository{pool: pool}
}

func (r *PointsRepository) Create(ctx context.Context, entry models.PointEntry) error {
	const query = `
		INSERT INTO points_history (id, user_id, kind, points, reason, issued_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`
	_, err := r.pool.Exec(ctx, query,
		entry.ID,
		entry.UserID,
		entry.Kind,
		entry.Points,
		entry.Reason,
		entry.IssuedBy,
	)
	return err
}

func (r *PointsRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.PointEntry, error) {
	const query = `
		SELECT id, user_id, kind, points, reason, issued_by, created_at
		FROM points_history
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.PointEntry
	for rows.Next() {
		var entry models.PointEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.UserID,
			&entry.Kind,
			&entry.Points,
			&entry.Reason,
			&entry.IssuedBy,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
