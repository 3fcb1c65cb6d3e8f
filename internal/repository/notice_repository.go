package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"dormhub/api/internal/models"
)

var ErrNoticeNotFound = errors.New("notice not found")

type NoticeRepository struct {
	pool *pgxpool.Pool
}

func NewNoticeRepository(pool *pgxpool.Pool) *NoticeRepository {
	return &NoticeRepository{pool: pool}
}

func (r *NoticeRepository) Create(ctx context.Context, notice models.Notice) error {
	const query = `
		INSERT INTO notices (id, title, body, author_id, pinned, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
	`
	_, err := r.pool.Exec(ctx, query,
		notice.ID,
		notice.Title,
		notice.Body,
		notice.AuthorID,
		notice.Pinned,
	)
	return err
}

func (r *NoticeRepository) GetByID(ctx context.Context, id string) (models.Notice, error) {
	const query = `
		SELECT id, title, body, author_id, pinned, created_at, updated_at
		FROM notices WHERE id = $1
	`
	var notice models.Notice
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&notice.ID,
		&notice.Title,
		&notice.Body,
		&notice.AuthorID,
		&notice.Pinned,
		&notice.CreatedAt,
		&notice.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Notice{}, ErrNoticeNotFound
		}
		return models.Notice{}, err
	}
	return notice, nil
}

func (r *NoticeRepository) List(ctx context.Context, limit, offset int) ([]models.Notice, error) {
	const query = `
		SELECT id, title, body, author_id, pinned, created_at, updated_at
		FROM notices
		ORDER BY pinned DESC, created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notices []models.Notice
	for rows.Next() {
		var notice models.Notice
		if err := rows.Scan(
			&notice.ID,
			&notice.Title,
			&notice.Body,
			&notice.AuthorID,
			&notice.Pinned,
			&notice.CreatedAt,
			&notice.UpdatedAt,
		); err != nil {
			return nil, err
		}
		notices = append(notices, notice)
	}
	return notices, rows.Err()
}

func (r *NoticeRepository) Update(ctx context.Context, notice models.Notice) error {
	const query = `
		UPDATE notices SET title = $2, body = $3, pinned = $4, updated_at = NOW()
		WHERE id = $1
	`
	cmd, err := r.pool.Exec(ctx, query, notice.ID, notice.Title, notice.Body, notice.Pinned)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNoticeNotFound
	}
	return nil
}

func (r *NoticeRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM notices WHERE id = $1`
	cmd, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNoticeNotFound
	}
	return nil
}
