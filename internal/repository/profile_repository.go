package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"dormhub/api/internal/models"
)

var ErrProfileNotFound = errors.New("profile not found")

type ProfileRepository struct {
	pool *pgxpool.Pool
}

func NewProfileRepository(pool *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{pool: pool}
}

const profileColumns = `
	id, email, password_hash, name, role, status, room_number, address,
	merit_points, demerit_points, info_complete, avatar_url, created_at, updated_at
`

func scanProfile(row pgx.Row) (models.Profile, error) {
	var p models.Profile
	if err := row.Scan(
		&p.ID,
		&p.Email,
		&p.PasswordHash,
		&p.Name,
		&p.Role,
		&p.Status,
		&p.RoomNumber,
		&p.Address,
		&p.MeritPoints,
		&p.DemeritPoints,
		&p.InfoComplete,
		&p.AvatarURL,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Profile{}, ErrProfileNotFound
		}
		return models.Profile{}, err
	}
	return p, nil
}

func (r *ProfileRepository) Create(ctx context.Context, p models.Profile) error {
	const query = `
		INSERT INTO profiles (
			id, email, password_hash, name, role, status, room_number, address,
			merit_points, demerit_points, info_complete, avatar_url, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW()
		)
	`

	_, err := r.pool.Exec(ctx, query,
		p.ID,
		p.Email,
		p.PasswordHash,
		p.Name,
		p.Role,
		p.Status,
		p.RoomNumber,
		p.Address,
		p.MeritPoints,
		p.DemeritPoints,
		p.InfoComplete,
		p.AvatarURL,
	)
	return err
}

func (r *ProfileRepository) GetByID(ctx context.Context, id string) (models.Profile, error) {
	const query = `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`
	return scanProfile(r.pool.QueryRow(ctx, query, id))
}

func (r *ProfileRepository) FindByEmail(ctx context.Context, email string) (models.Profile, error) {
	const query = `SELECT ` + profileColumns + ` FROM profiles WHERE email = $1`
	return scanProfile(r.pool.QueryRow(ctx, query, email))
}

// UpdateInfo fills in the onboarding fields and flips info_complete.
func (r *ProfileRepository) UpdateInfo(ctx context.Context, id string, name, roomNumber, address string) error {
	const query = `
		UPDATE profiles
		SET name = $2, room_number = $3, address = $4, info_complete = TRUE, updated_at = NOW()
		WHERE id = $1
	`
	cmd, err := r.pool.Exec(ctx, query, id, name, roomNumber, address)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrProfileNotFound
	}
	return nil
}

func (r *ProfileRepository) UpdateAvatarURL(ctx context.Context, id string, avatarURL string) error {
	const query = `UPDATE profiles SET avatar_url = $2, updated_at = NOW() WHERE id = $1`
	cmd, err := r.pool.Exec(ctx, query, id, avatarURL)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrProfileNotFound
	}
	return nil
}

func (r *ProfileRepository) AdjustPoints(ctx context.Context, id string, kind models.PointKind, delta int) error {
	column := "merit_points"
	if kind == models.PointDemerit {
		column = "demerit_points"
	}
	query := `
		UPDATE profiles
		SET ` + column + ` = GREATEST(COALESCE(` + column + `, 0) + $2, 0), updated_at = NOW()
		WHERE id = $1
	`
	cmd, err := r.pool.Exec(ctx, query, id, delta)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrProfileNotFound
	}
	return nil
}

func (r *ProfileRepository) UpdateStatus(ctx context.Context, id string, status models.UserStatus) error {
	const query = `UPDATE profiles SET status = $2, updated_at = NOW() WHERE id = $1`
	cmd, err := r.pool.Exec(ctx, query, id, status)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrProfileNotFound
	}
	return nil
}

func (r *ProfileRepository) ListStudents(ctx context.Context, limit, offset int) ([]models.Profile, error) {
	const query = `
		SELECT ` + profileColumns + `
		FROM profiles
		WHERE role = 'student'
		ORDER BY room_number NULLS LAST, name
		LIMIT $1 OFFSET $2
	`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []models.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}
