// Package tutors stores the durable tutor records the live core reads and
// flags.
package tutors

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tutorlive/backend/internal/models"
)

// Repository handles tutor persistence in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a tutor repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Upsert inserts or replaces a tutor record.
func (r *Repository) Upsert(ctx context.Context, t *models.Tutor) error {
	const q = `INSERT INTO tutors (id, name, image, skills, branch, approved, is_live)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, image = EXCLUDED.image,
			skills = EXCLUDED.skills, branch = EXCLUDED.branch, approved = EXCLUDED.approved,
			is_live = EXCLUDED.is_live, updated_at = NOW()`
	_, err := r.pool.Exec(ctx, q, t.ID, t.Name, t.Image, t.Skills, t.Branch, t.Approved, t.IsLive)
	return err
}

// GetByID returns a tutor by ID, or nil when there is none.
func (r *Repository) GetByID(ctx context.Context, id string) (*models.Tutor, error) {
	const q = `SELECT id, name, image, skills, branch, approved, is_live FROM tutors WHERE id = $1`
	var t models.Tutor
	err := r.pool.QueryRow(ctx, q, id).Scan(&t.ID, &t.Name, &t.Image, &t.Skills, &t.Branch, &t.Approved, &t.IsLive)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// SetLive sets the isLive flag. An unknown id updates nothing.
func (r *Repository) SetLive(ctx context.Context, id string, live bool) error {
	_, err := r.pool.Exec(ctx, `UPDATE tutors SET is_live = $2, updated_at = NOW() WHERE id = $1`, id, live)
	return err
}

// ListLive returns approved tutors flagged live.
func (r *Repository) ListLive(ctx context.Context) ([]models.LiveTutor, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, image, skills FROM tutors
		WHERE is_live AND approved ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []models.LiveTutor{}
	for rows.Next() {
		var t models.LiveTutor
		if err := rows.Scan(&t.ID, &t.Name, &t.Image, &t.Skills); err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}

// LiveIDs returns the ids of every tutor flagged live, approved or not.
func (r *Repository) LiveIDs(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM tutors WHERE is_live ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
