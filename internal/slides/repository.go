package slides

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumina-classroom/backend/internal/models"
)

// Repository handles slide persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a slide repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a slide at a fixed position within a lesson.
func (r *Repository) Create(ctx context.Context, s *models.Slide) error {
	const q = `INSERT INTO lesson_slides (lesson_id, position, text, audio_key, image_key)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, s.LessonID, s.Position, s.Text, s.AudioKey, s.ImageKey).
		Scan(&s.ID, &s.CreatedAt)
}

// GetByPosition returns the slide at a 1-based position.
func (r *Repository) GetByPosition(ctx context.Context, lessonID uuid.UUID, position int) (*models.Slide, error) {
	const q = `SELECT id, lesson_id, position, text, audio_key, image_key, created_at
		FROM lesson_slides WHERE lesson_id = $1 AND position = $2`
	var s models.Slide
	err := r.pool.QueryRow(ctx, q, lessonID, position).
		Scan(&s.ID, &s.LessonID, &s.Position, &s.Text, &s.AudioKey, &s.ImageKey, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListByLesson returns all slides of a lesson in presentation order.
func (r *Repository) ListByLesson(ctx context.Context, lessonID uuid.UUID) ([]models.Slide, error) {
	const q = `SELECT id, lesson_id, position, text, audio_key, image_key, created_at
		FROM lesson_slides WHERE lesson_id = $1 ORDER BY position ASC`
	rows, err := r.pool.Query(ctx, q, lessonID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Slide
	for rows.Next() {
		var s models.Slide
		if err := rows.Scan(&s.ID, &s.LessonID, &s.Position, &s.Text, &s.AudioKey, &s.ImageKey, &s.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

// CountByLesson returns how many slides a lesson has.
func (r *Repository) CountByLesson(ctx context.Context, lessonID uuid.UUID) (int, error) {
	const q = `SELECT COUNT(*) FROM lesson_slides WHERE lesson_id = $1`
	var n int
	err := r.pool.QueryRow(ctx, q, lessonID).Scan(&n)
	return n, err
}

// DeleteByLesson removes all slides of a lesson.
func (r *Repository) DeleteByLesson(ctx context.Context, lessonID uuid.UUID) error {
	const q = `DELETE FROM lesson_slides WHERE lesson_id = $1`
	_, err := r.pool.Exec(ctx, q, lessonID)
	return err
}
