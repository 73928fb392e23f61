package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lumina-classroom/backend/internal/models"
)

// Client -> server command names.
const (
	CmdStartAttendance    = "start_attendance"
	CmdEndAttendance      = "end_attendance"
	CmdStartPresentation  = "start_presentation"
	CmdNextSlide          = "next_slide"
	CmdPreviousSlide      = "previous_slide"
	CmdPausePresentation  = "pause_presentation"
	CmdResumePresentation = "resume_presentation"
	CmdAskQuestion        = "ask_question"
	CmdStartQA            = "start_qa"
	CmdEndLesson          = "end_lesson"
)

var (
	ErrUnknownCommand  = errors.New("unknown command")
	ErrNotPermitted    = errors.New("role not permitted to issue this command")
	ErrNoActiveSession = errors.New("no active session for lesson")
)

// Command is a typed, validated session command. The set is closed: every
// wire message is parsed into exactly one of the types below.
type Command interface {
	Name() string
}

type StartAttendance struct{}
type EndAttendance struct{}
type StartPresentation struct{}
type NextSlide struct{}
type PreviousSlide struct{}
type PausePresentation struct{}
type ResumePresentation struct{}
type StartQA struct{}
type EndLesson struct{}

// AskQuestion carries the question text and how it was captured.
type AskQuestion struct {
	Question string
	Method   string // "text" or "audio"
	AskedBy  uuid.UUID
}

func (StartAttendance) Name() string    { return CmdStartAttendance }
func (EndAttendance) Name() string      { return CmdEndAttendance }
func (StartPresentation) Name() string  { return CmdStartPresentation }
func (NextSlide) Name() string          { return CmdNextSlide }
func (PreviousSlide) Name() string      { return CmdPreviousSlide }
func (PausePresentation) Name() string  { return CmdPausePresentation }
func (ResumePresentation) Name() string { return CmdResumePresentation }
func (AskQuestion) Name() string        { return CmdAskQuestion }
func (StartQA) Name() string            { return CmdStartQA }
func (EndLesson) Name() string          { return CmdEndLesson }

// answerReady is the internal command re-entering serialization after an
// answer generation call finishes. It is never parsed from the wire.
type answerReady struct {
	question string
	askedBy  uuid.UUID
	result   AnswerResult
	ok       bool
}

func (answerReady) Name() string { return "answer_ready" }

// presentationReady is the internal command re-entering serialization after
// the slide count fetch finishes. It carries the reply channel of the
// start_presentation command that initiated the load, so the issuer hears
// the outcome once it is applied.
type presentationReady struct {
	count int
	err   error
	reply chan error
}

func (presentationReady) Name() string { return "presentation_ready" }

type askQuestionPayload struct {
	Question string `json:"question"`
	Method   string `json:"method"`
}

// ParseCommand translates a wire message into a typed command.
func ParseCommand(event string, data json.RawMessage, issuedBy uuid.UUID) (Command, error) {
	switch event {
	case CmdStartAttendance:
		return StartAttendance{}, nil
	case CmdEndAttendance:
		return EndAttendance{}, nil
	case CmdStartPresentation:
		return StartPresentation{}, nil
	case CmdNextSlide:
		return NextSlide{}, nil
	case CmdPreviousSlide:
		return PreviousSlide{}, nil
	case CmdPausePresentation:
		return PausePresentation{}, nil
	case CmdResumePresentation:
		return ResumePresentation{}, nil
	case CmdStartQA:
		return StartQA{}, nil
	case CmdEndLesson:
		return EndLesson{}, nil
	case CmdAskQuestion:
		var p askQuestionPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("ask_question payload: %w", err)
		}
		if p.Question == "" {
			return nil, errors.New("ask_question requires a question")
		}
		if p.Method == "" {
			p.Method = "text"
		}
		if p.Method != "text" && p.Method != "audio" {
			return nil, fmt.Errorf("ask_question method %q not supported", p.Method)
		}
		return AskQuestion{Question: p.Question, Method: p.Method, AskedBy: issuedBy}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, event)
	}
}

// RoleAllowed reports whether the role may issue the command. Control
// commands are restricted to the teacher display (and admins); questions
// are open to students and teachers, viewers are read-only.
func RoleAllowed(cmd Command, role models.Role) bool {
	switch cmd.(type) {
	case AskQuestion:
		return role == models.RoleStudent || role == models.RoleTeacher || role == models.RoleAdmin
	default:
		return role == models.RoleTeacher || role == models.RoleAdmin
	}
}

// Dispatcher translates inbound wire messages into typed commands and
// routes them to the target lesson's actor via the registry.
type Dispatcher struct {
	registry *Registry
	logger   *zap.Logger
}

// NewDispatcher creates a command dispatcher over the registry.
func NewDispatcher(registry *Registry, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{registry: registry, logger: logger}
}

// Dispatch parses, authorizes and applies one command. The returned error
// is for the issuing connection only; it never reflects a state change.
func (d *Dispatcher) Dispatch(ctx context.Context, lessonID uuid.UUID, role models.Role, userID uuid.UUID, event string, data json.RawMessage) error {
	cmd, err := ParseCommand(event, data, userID)
	if err != nil {
		return err
	}
	if !RoleAllowed(cmd, role) {
		return ErrNotPermitted
	}
	actor, ok := d.registry.Get(lessonID)
	if !ok {
		return ErrNoActiveSession
	}
	return actor.Apply(ctx, cmd)
}
