package models

import (
	"time"

	"github.com/google/uuid"
)

// Slide is one page of a lesson presentation. Narration audio and the
// rendered image live in object storage; the keys are resolved to
// presigned URLs when the slide is served.
type Slide struct {
	ID        uuid.UUID `json:"id"`
	LessonID  uuid.UUID `json:"lesson_id"`
	Position  int       `json:"position"` // 1-based slide number
	Text      string    `json:"text"`
	AudioKey  string    `json:"-"`
	ImageKey  string    `json:"-"`
	AudioURL  string    `json:"audio_url,omitempty"`
	ImageURL  string    `json:"image_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
