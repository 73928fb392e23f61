package reports

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumina-classroom/backend/internal/models"
)

// Repository persists post-lesson reports.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a report repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Upsert writes the report for a lesson, replacing any previous run.
// Report jobs can retry, so writes must be safe to repeat.
func (r *Repository) Upsert(ctx context.Context, rep *models.LessonReport) error {
	const q = `INSERT INTO lesson_reports (lesson_id, attendee_count, question_count, answered_count, slide_count, generated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (lesson_id)
		DO UPDATE SET attendee_count = EXCLUDED.attendee_count,
			question_count = EXCLUDED.question_count,
			answered_count = EXCLUDED.answered_count,
			slide_count = EXCLUDED.slide_count,
			generated_at = EXCLUDED.generated_at
		RETURNING id`
	return r.pool.QueryRow(ctx, q, rep.LessonID, rep.AttendeeCount, rep.QuestionCount, rep.AnsweredCount, rep.SlideCount, rep.GeneratedAt).
		Scan(&rep.ID)
}

// GetByLesson returns the report for a lesson.
func (r *Repository) GetByLesson(ctx context.Context, lessonID uuid.UUID) (*models.LessonReport, error) {
	const q = `SELECT id, lesson_id, attendee_count, question_count, answered_count, slide_count, generated_at
		FROM lesson_reports WHERE lesson_id = $1`
	var rep models.LessonReport
	err := r.pool.QueryRow(ctx, q, lessonID).
		Scan(&rep.ID, &rep.LessonID, &rep.AttendeeCount, &rep.QuestionCount, &rep.AnsweredCount, &rep.SlideCount, &rep.GeneratedAt)
	if err != nil {
		return nil, err
	}
	return &rep, nil
}
