package models

import (
	"time"

	"github.com/google/uuid"
)

// LessonReport holds aggregated counters computed after a lesson ends.
type LessonReport struct {
	ID            uuid.UUID `json:"id"`
	LessonID      uuid.UUID `json:"lesson_id"`
	AttendeeCount int       `json:"attendee_count"`
	QuestionCount int       `json:"question_count"`
	AnsweredCount int       `json:"answered_count"`
	SlideCount    int       `json:"slide_count"`
	GeneratedAt   time.Time `json:"generated_at"`
}
