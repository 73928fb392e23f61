package session

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestPhaseString(t *testing.T) {
	tests := []struct {
		phase Phase
		want  string
	}{
		{PhaseScheduled, "scheduled"},
		{PhaseAttendanceActive, "attendance_active"},
		{PhasePresentationActive, "presentation_active"},
		{PhasePaused, "paused"},
		{PhaseQAActive, "qa_active"},
		{PhaseCompleted, "completed"},
		{Phase(42), "unknown(42)"},
	}
	for _, tt := range tests {
		if got := tt.phase.String(); got != tt.want {
			t.Errorf("Phase(%d).String() = %q, want %q", int(tt.phase), got, tt.want)
		}
	}
}

func TestPhaseMarshalJSON(t *testing.T) {
	b, err := json.Marshal(PhaseQAActive)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `"qa_active"` {
		t.Errorf("marshal = %s, want %q", b, `"qa_active"`)
	}
}

func TestSnapshotCopiesPendingQuestion(t *testing.T) {
	id := uuid.New()
	st := sessionState{
		LessonID:     id,
		Phase:        PhasePresentationActive,
		CurrentSlide: 2,
		TotalSlides:  5,
		Pending:      &pendingQuestion{Question: "what is osmosis?", AskedBy: uuid.New(), AskedAt: time.Now()},
	}
	snap := st.snapshot()
	if snap.LessonID != id {
		t.Errorf("LessonID = %v, want %v", snap.LessonID, id)
	}
	if snap.PendingQuestion != "what is osmosis?" {
		t.Errorf("PendingQuestion = %q", snap.PendingQuestion)
	}
	if snap.CurrentSlide != 2 || snap.TotalSlides != 5 {
		t.Errorf("slides = %d/%d, want 2/5", snap.CurrentSlide, snap.TotalSlides)
	}

	st.Pending = nil
	if snap.PendingQuestion != "what is osmosis?" {
		t.Error("snapshot should not alias live state")
	}
}
