package models

import (
	"time"

	"github.com/google/uuid"
)

// AttendanceRecord is one recognized student from an attendance scan.
type AttendanceRecord struct {
	ID         uuid.UUID `json:"id"`
	LessonID   uuid.UUID `json:"lesson_id"`
	StudentID  uuid.UUID `json:"student_id"`
	Confidence float64   `json:"confidence"`
	PhotoKey   string    `json:"-"`
	PhotoURL   string    `json:"photo_url,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}
