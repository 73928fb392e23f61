package attendance

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumina-classroom/backend/internal/models"
)

// Repository persists attendance records.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an attendance repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Record upserts a recognized student. A student scanned twice keeps the
// first row; the higher confidence wins.
func (r *Repository) Record(ctx context.Context, rec *models.AttendanceRecord) error {
	const q = `INSERT INTO lesson_attendance (lesson_id, student_id, confidence, photo_key, recorded_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (lesson_id, student_id)
		DO UPDATE SET confidence = GREATEST(lesson_attendance.confidence, EXCLUDED.confidence)
		RETURNING id`
	return r.pool.QueryRow(ctx, q, rec.LessonID, rec.StudentID, rec.Confidence, rec.PhotoKey, rec.RecordedAt).
		Scan(&rec.ID)
}

// ListByLesson returns all attendance records for a lesson.
func (r *Repository) ListByLesson(ctx context.Context, lessonID uuid.UUID) ([]models.AttendanceRecord, error) {
	const q = `SELECT id, lesson_id, student_id, confidence, photo_key, recorded_at
		FROM lesson_attendance WHERE lesson_id = $1 ORDER BY recorded_at ASC`
	rows, err := r.pool.Query(ctx, q, lessonID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.AttendanceRecord
	for rows.Next() {
		var rec models.AttendanceRecord
		if err := rows.Scan(&rec.ID, &rec.LessonID, &rec.StudentID, &rec.Confidence, &rec.PhotoKey, &rec.RecordedAt); err != nil {
			return nil, err
		}
		list = append(list, rec)
	}
	return list, rows.Err()
}

// CountByLesson returns the number of distinct recognized students.
func (r *Repository) CountByLesson(ctx context.Context, lessonID uuid.UUID) (int, error) {
	const q = `SELECT COUNT(*) FROM lesson_attendance WHERE lesson_id = $1`
	var n int
	err := r.pool.QueryRow(ctx, q, lessonID).Scan(&n)
	return n, err
}
