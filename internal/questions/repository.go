package questions

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumina-classroom/backend/internal/models"
)

// Repository persists student questions and their generated answers.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a question repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// RecordAnswer stores a question together with its answer.
func (r *Repository) RecordAnswer(ctx context.Context, q *models.LessonQuestion) error {
	const stmt = `INSERT INTO lesson_questions (lesson_id, asked_by, question, answer_text, audio_key, found, asked_at, answered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`
	return r.pool.QueryRow(ctx, stmt, q.LessonID, q.AskedBy, q.Question, q.AnswerText, q.AudioKey, q.Found, q.AskedAt, q.AnsweredAt).
		Scan(&q.ID)
}

// ListByLesson returns all questions asked during a lesson.
func (r *Repository) ListByLesson(ctx context.Context, lessonID uuid.UUID) ([]models.LessonQuestion, error) {
	const stmt = `SELECT id, lesson_id, asked_by, question, answer_text, audio_key, found, asked_at, answered_at
		FROM lesson_questions WHERE lesson_id = $1 ORDER BY asked_at ASC`
	rows, err := r.pool.Query(ctx, stmt, lessonID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.LessonQuestion
	for rows.Next() {
		var q models.LessonQuestion
		if err := rows.Scan(&q.ID, &q.LessonID, &q.AskedBy, &q.Question, &q.AnswerText, &q.AudioKey, &q.Found, &q.AskedAt, &q.AnsweredAt); err != nil {
			return nil, err
		}
		list = append(list, q)
	}
	return list, rows.Err()
}

// CountByLesson returns total and answered question counts for a lesson.
func (r *Repository) CountByLesson(ctx context.Context, lessonID uuid.UUID) (total, answered int, err error) {
	const stmt = `SELECT COUNT(*), COUNT(*) FILTER (WHERE found) FROM lesson_questions WHERE lesson_id = $1`
	err = r.pool.QueryRow(ctx, stmt, lessonID).Scan(&total, &answered)
	return total, answered, err
}
