// Package session implements the live lesson orchestrator: a per-lesson
// actor that serializes commands against a phase state machine, a registry
// of active sessions, and a scheduler that auto-starts due lessons.
package session

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Phase is the discrete stage of a live lesson session.
type Phase int

const (
	PhaseScheduled Phase = iota
	PhaseAttendanceActive
	PhasePresentationActive
	PhasePaused
	PhaseQAActive
	PhaseCompleted
)

// String returns the wire name of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseScheduled:
		return "scheduled"
	case PhaseAttendanceActive:
		return "attendance_active"
	case PhasePresentationActive:
		return "presentation_active"
	case PhasePaused:
		return "paused"
	case PhaseQAActive:
		return "qa_active"
	case PhaseCompleted:
		return "completed"
	}
	return fmt.Sprintf("unknown(%d)", int(p))
}

// MarshalJSON encodes the phase as its wire name.
func (p Phase) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// pendingQuestion is the single in-flight question slot of a session.
type pendingQuestion struct {
	Question string
	AskedBy  uuid.UUID
	AskedAt  time.Time
}

// sessionState is owned exclusively by the lesson's actor goroutine and is
// never touched from outside it. Snapshots are copies taken inside the loop.
type sessionState struct {
	LessonID              uuid.UUID
	Phase                 Phase
	CurrentSlide          int  // valid only in PresentationActive/Paused, 1-based
	TotalSlides           int
	PresentationLoading   bool // slide count fetch in flight, start not yet applied
	AttendanceStartedAt   *time.Time
	AttendanceEndedAt     *time.Time
	PresentationStartedAt *time.Time
	PausedAt              *time.Time
	CompletedAt           *time.Time
	Pending               *pendingQuestion
}

// Snapshot is the full session state sent to a newly joined connection so
// it can render without replaying history.
type Snapshot struct {
	LessonID              uuid.UUID  `json:"lesson_id"`
	Phase                 Phase      `json:"phase"`
	CurrentSlide          int        `json:"current_slide"`
	TotalSlides           int        `json:"total_slides"`
	PresentationLoading   bool       `json:"presentation_loading,omitempty"`
	PendingQuestion       string     `json:"pending_question,omitempty"`
	AttendanceStartedAt   *time.Time `json:"attendance_started_at,omitempty"`
	AttendanceEndedAt     *time.Time `json:"attendance_ended_at,omitempty"`
	PresentationStartedAt *time.Time `json:"presentation_started_at,omitempty"`
	PausedAt              *time.Time `json:"paused_at,omitempty"`
	CompletedAt           *time.Time `json:"completed_at,omitempty"`
}

func (s *sessionState) snapshot() Snapshot {
	snap := Snapshot{
		LessonID:              s.LessonID,
		Phase:                 s.Phase,
		CurrentSlide:          s.CurrentSlide,
		TotalSlides:           s.TotalSlides,
		PresentationLoading:   s.PresentationLoading,
		AttendanceStartedAt:   s.AttendanceStartedAt,
		AttendanceEndedAt:     s.AttendanceEndedAt,
		PresentationStartedAt: s.PresentationStartedAt,
		PausedAt:              s.PausedAt,
		CompletedAt:           s.CompletedAt,
	}
	if s.Pending != nil {
		snap.PendingQuestion = s.Pending.Question
	}
	return snap
}
