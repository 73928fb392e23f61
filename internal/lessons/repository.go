package lessons

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumina-classroom/backend/internal/models"
)

// Repository handles lesson persistence. It is also the lesson store
// boundary for the session layer: due-lesson queries for the scheduler
// and status transitions for the registry and actors.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a lesson repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new lesson.
func (r *Repository) Create(ctx context.Context, l *models.Lesson) error {
	const q = `INSERT INTO lessons (title, subject, description, scheduled_at, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, status, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, l.Title, l.Subject, l.Description, l.ScheduledAt, l.CreatedBy).
		Scan(&l.ID, &l.Status, &l.CreatedAt, &l.UpdatedAt)
}

// GetByID returns a lesson by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Lesson, error) {
	const q = `SELECT id, title, subject, description, scheduled_at, status, started_at, completed_at, created_by, created_at, updated_at
		FROM lessons WHERE id = $1`
	var l models.Lesson
	err := r.pool.QueryRow(ctx, q, id).Scan(&l.ID, &l.Title, &l.Subject, &l.Description, &l.ScheduledAt,
		&l.Status, &l.StartedAt, &l.CompletedAt, &l.CreatedBy, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// List returns all lessons ordered by schedule, optionally filtered by creator.
func (r *Repository) List(ctx context.Context, createdBy *uuid.UUID) ([]models.Lesson, error) {
	base := `SELECT id, title, subject, description, scheduled_at, status, started_at, completed_at, created_by, created_at, updated_at FROM lessons`
	var args []interface{}
	cond := ""
	if createdBy != nil {
		cond = " WHERE created_by = $1"
		args = append(args, *createdBy)
	}
	rows, err := r.pool.Query(ctx, base+cond+" ORDER BY scheduled_at DESC", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Lesson
	for rows.Next() {
		var l models.Lesson
		if err := rows.Scan(&l.ID, &l.Title, &l.Subject, &l.Description, &l.ScheduledAt,
			&l.Status, &l.StartedAt, &l.CompletedAt, &l.CreatedBy, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, l)
	}
	return list, rows.Err()
}

// Update updates lesson fields (title, subject, description, scheduled_at).
func (r *Repository) Update(ctx context.Context, id uuid.UUID, title, subject, description string, scheduledAt *time.Time) error {
	const q = `UPDATE lessons SET title = $1, subject = $2, description = $3,
		scheduled_at = COALESCE($4, scheduled_at), updated_at = NOW() WHERE id = $5`
	_, err := r.pool.Exec(ctx, q, title, subject, description, scheduledAt, id)
	return err
}

// Delete removes a lesson by ID.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	const q = `DELETE FROM lessons WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, id)
	return err
}

// DueLessons returns lessons whose scheduled time has passed and that were
// never started. The status filter prevents re-triggering lessons that
// already ran and were persisted as finished.
func (r *Repository) DueLessons(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	const q = `SELECT id FROM lessons WHERE status = 'scheduled' AND scheduled_at <= $1`
	rows, err := r.pool.Query(ctx, q, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// MarkStarted transitions the lesson record to in_progress. started_at is
// set only on the first start.
func (r *Repository) MarkStarted(ctx context.Context, lessonID uuid.UUID, at time.Time) error {
	const q = `UPDATE lessons SET status = 'in_progress', started_at = COALESCE(started_at, $2), updated_at = NOW()
		WHERE id = $1 AND status <> 'completed'`
	_, err := r.pool.Exec(ctx, q, lessonID, at)
	return err
}

// MarkCompleted transitions the lesson record to completed.
func (r *Repository) MarkCompleted(ctx context.Context, lessonID uuid.UUID, at time.Time) error {
	const q = `UPDATE lessons SET status = 'completed', completed_at = COALESCE(completed_at, $2), updated_at = NOW()
		WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, lessonID, at)
	return err
}
