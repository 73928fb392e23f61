package models

import (
	"time"

	"github.com/google/uuid"
)

// LessonQuestion is a student question asked during a live session,
// stored together with the generated answer once it arrives.
type LessonQuestion struct {
	ID         uuid.UUID  `json:"id"`
	LessonID   uuid.UUID  `json:"lesson_id"`
	AskedBy    uuid.UUID  `json:"asked_by"`
	Question   string     `json:"question"`
	AnswerText string     `json:"answer_text"`
	AudioKey   string     `json:"-"`
	Found      bool       `json:"found"`
	AskedAt    time.Time  `json:"asked_at"`
	AnsweredAt *time.Time `json:"answered_at,omitempty"`
}
