package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"dormhub/api/internal/models"
)

var ErrApplicationNotFound = errors.New("application not found")

type ApplicationRepository struct {
	pool *pgxpool.Pool
}

func NewApplicationRepository(pool *pgxpool.Pool) *ApplicationRepository {
	return &ApplicationRepository{pool: pool}
}

const applicationColumns = `
	id, user_id, type, date, reason, status, decided_by, created_at, updated_at
`

func scanApplication(row pgx.Row) (models.Application, error) {
	var app models.Application
	if err := row.Scan(
		&app.ID,
		&app.UserID,
		&app.Type,
		&app.Date,
		&app.Reason,
		&app.Status,
		&app.DecidedBy,
		&app.CreatedAt,
		&app.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Application{}, ErrApplicationNotFound
		}
		return models.Application{}, err
	}
	return app, nil
}

func (r *ApplicationRepository) Create(ctx context.Context, app models.Application) error {
	const query = `
		INSERT INTO applications (id, user_id, type, date, reason, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
	`
	_, err := r.pool.Exec(ctx, query,
		app.ID,
		app.UserID,
		app.Type,
		app.Date,
		app.Reason,
		app.Status,
	)
	return err
}

// ExistsForDate reports whether the student already has an application of
// any type for the given day. One application per student per date.
func (r *ApplicationRepository) ExistsForDate(ctx context.Context, userID string, date time.Time) (bool, error) {
	const query = `SELECT COUNT(*) FROM applications WHERE user_id = $1 AND date = $2`
	var count int
	if err := r.pool.QueryRow(ctx, query, userID, date).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *ApplicationRepository) GetByID(ctx context.Context, id string) (models.Application, error) {
	const query = `SELECT ` + applicationColumns + ` FROM applications WHERE id = $1`
	return scanApplication(r.pool.QueryRow(ctx, query, id))
}

func (r *ApplicationRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Application, error) {
	const query = `
		SELECT ` + applicationColumns + `
		FROM applications
		WHERE user_id = $1
		ORDER BY date DESC
		LIMIT $2 OFFSET $3
	`
	return r.list(ctx, query, userID, limit, offset)
}

func (r *ApplicationRepository) ListByStatus(ctx context.Context, status models.ApplicationStatus, limit, offset int) ([]models.Application, error) {
	const query = `
		SELECT ` + applicationColumns + `
		FROM applications
		WHERE status = $1
		ORDER BY date ASC
		LIMIT $2 OFFSET $3
	`
	return r.list(ctx, query, status, limit, offset)
}

func (r *ApplicationRepository) list(ctx context.Context, query string, args ...any) ([]models.Application, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var apps []models.Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}
	return apps, rows.Err()
}

func (r *ApplicationRepository) Decide(ctx context.Context, id string, status models.ApplicationStatus, decidedBy string) error {
	const query = `
		UPDATE applications
		SET status = $2, decided_by = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`
	cmd, err := r.pool.Exec(ctx, query, id, status, decidedBy)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrApplicationNotFound
	}
	return nil
}

// RejectStalePending rejects pending applications whose date has already
// passed and returns how many were touched.
func (r *ApplicationRepository) RejectStalePending(ctx context.Context, before time.Time) (int64, error) {
	const query = `
		UPDATE applications
		SET status = 'rejected', updated_at = NOW()
		WHERE status = 'pending' AND date < $1
	`
	cmd, err := r.pool.Exec(ctx, query, before)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
