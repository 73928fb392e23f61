package session

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/lumina-classroom/backend/internal/models"
)

func TestParseCommand(t *testing.T) {
	issuer := uuid.New()
	tests := []struct {
		name    string
		event   string
		data    string
		want    Command
		wantErr bool
	}{
		{"start attendance", CmdStartAttendance, "", StartAttendance{}, false},
		{"end attendance", CmdEndAttendance, "", EndAttendance{}, false},
		{"start presentation", CmdStartPresentation, "", StartPresentation{}, false},
		{"next slide", CmdNextSlide, "", NextSlide{}, false},
		{"previous slide", CmdPreviousSlide, "", PreviousSlide{}, false},
		{"pause", CmdPausePresentation, "", PausePresentation{}, false},
		{"resume", CmdResumePresentation, "", ResumePresentation{}, false},
		{"start qa", CmdStartQA, "", StartQA{}, false},
		{"end lesson", CmdEndLesson, "", EndLesson{}, false},
		{"ask text question", CmdAskQuestion, `{"question":"why?","method":"text"}`,
			AskQuestion{Question: "why?", Method: "text", AskedBy: issuer}, false},
		{"ask defaults to text", CmdAskQuestion, `{"question":"why?"}`,
			AskQuestion{Question: "why?", Method: "text", AskedBy: issuer}, false},
		{"ask audio question", CmdAskQuestion, `{"question":"why?","method":"audio"}`,
			AskQuestion{Question: "why?", Method: "audio", AskedBy: issuer}, false},
		{"ask without question", CmdAskQuestion, `{"method":"text"}`, nil, true},
		{"ask with bad method", CmdAskQuestion, `{"question":"why?","method":"video"}`, nil, true},
		{"ask with bad payload", CmdAskQuestion, `{`, nil, true},
		{"unknown command", "reboot_projector", "", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCommand(tt.event, json.RawMessage(tt.data), issuer)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseCommand(%q) succeeded, want error", tt.event)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseCommand(%q): %v", tt.event, err)
			}
			if got != tt.want {
				t.Errorf("ParseCommand(%q) = %#v, want %#v", tt.event, got, tt.want)
			}
		})
	}
}

func TestParseCommandUnknownSentinel(t *testing.T) {
	_, err := ParseCommand("nonsense", nil, uuid.Nil)
	if !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("err = %v, want ErrUnknownCommand", err)
	}
}

func TestRoleAllowed(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
		role models.Role
		want bool
	}{
		{"teacher controls slides", NextSlide{}, models.RoleTeacher, true},
		{"admin controls slides", NextSlide{}, models.RoleAdmin, true},
		{"student cannot control slides", NextSlide{}, models.RoleStudent, false},
		{"student cannot end lesson", EndLesson{}, models.RoleStudent, false},
		{"student cannot start attendance", StartAttendance{}, models.RoleStudent, false},
		{"student asks question", AskQuestion{}, models.RoleStudent, true},
		{"teacher asks question", AskQuestion{}, models.RoleTeacher, true},
		{"unknown role read-only", NextSlide{}, models.Role("viewer"), false},
		{"unknown role cannot ask", AskQuestion{}, models.Role("viewer"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RoleAllowed(tt.cmd, tt.role); got != tt.want {
				t.Errorf("RoleAllowed(%s, %s) = %v, want %v", tt.cmd.Name(), tt.role, got, tt.want)
			}
		})
	}
}

func TestDispatchRequiresActiveSession(t *testing.T) {
	r := newTestRegistry(&fakeMarker{})
	defer r.Shutdown()
	d := NewDispatcher(r, nil)

	err := d.Dispatch(context.Background(), uuid.New(), models.RoleTeacher, uuid.New(), CmdNextSlide, nil)
	if !errors.Is(err, ErrNoActiveSession) {
		t.Errorf("err = %v, want ErrNoActiveSession", err)
	}
}

func TestDispatchRejectsUnpermittedRole(t *testing.T) {
	r := newTestRegistry(&fakeMarker{})
	defer r.Shutdown()
	lessonID := uuid.New()
	r.Start(context.Background(), lessonID)
	d := NewDispatcher(r, nil)

	err := d.Dispatch(context.Background(), lessonID, models.RoleStudent, uuid.New(), CmdEndLesson, nil)
	if !errors.Is(err, ErrNotPermitted) {
		t.Errorf("err = %v, want ErrNotPermitted", err)
	}

	// The rejection left state untouched.
	snap, ok := r.Snapshot(context.Background(), lessonID)
	if !ok || snap.Phase != PhaseScheduled {
		t.Errorf("phase = %s, want scheduled", snap.Phase)
	}
}

func TestDispatchAppliesCommand(t *testing.T) {
	r := newTestRegistry(&fakeMarker{})
	defer r.Shutdown()
	lessonID := uuid.New()
	r.Start(context.Background(), lessonID)
	d := NewDispatcher(r, nil)

	if err := d.Dispatch(context.Background(), lessonID, models.RoleTeacher, uuid.New(), CmdStartPresentation, nil); err != nil {
		t.Fatalf("dispatch start_presentation: %v", err)
	}
	snap, _ := r.Snapshot(context.Background(), lessonID)
	if snap.Phase != PhasePresentationActive {
		t.Errorf("phase = %s, want presentation_active", snap.Phase)
	}
}
