package models

import (
	"time"

	"github.com/google/uuid"
)

// LessonStatus is the durable lifecycle status of a lesson record.
// It is distinct from the in-memory session phase: the status only tracks
// whether a live session has ever been started or finished for the lesson.
type LessonStatus string

const (
	LessonScheduled  LessonStatus = "scheduled"
	LessonInProgress LessonStatus = "in_progress"
	LessonCompleted  LessonStatus = "completed"
)

// Lesson represents a scheduled classroom lesson.
type Lesson struct {
	ID          uuid.UUID    `json:"id"`
	Title       string       `json:"title"`
	Subject     string       `json:"subject"`
	Description string       `json:"description"`
	ScheduledAt time.Time    `json:"scheduled_at"`
	Status      LessonStatus `json:"status"`
	StartedAt   *time.Time   `json:"started_at,omitempty"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
	CreatedBy   uuid.UUID    `json:"created_by"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}
