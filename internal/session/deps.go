package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lumina-classroom/backend/internal/models"
	"github.com/lumina-classroom/backend/pkg/queue"
)

// AttendanceScanner is the face-matching collaborator. A scan may take
// seconds; the actor always calls it outside its serialization loop.
type AttendanceScanner interface {
	Scan(ctx context.Context, lessonID uuid.UUID) ([]models.AttendanceRecord, error)
}

// AttendanceLog persists recognized students.
type AttendanceLog interface {
	Record(ctx context.Context, rec *models.AttendanceRecord) error
}

// SlideSource serves the lesson presentation.
type SlideSource interface {
	SlideCount(ctx context.Context, lessonID uuid.UUID) (int, error)
	Slide(ctx context.Context, lessonID uuid.UUID, position int) (*models.Slide, error)
}

// AnswerResult is what the answer generation collaborator produced.
type AnswerResult struct {
	AnswerText string
	AudioRef   string
	Found      bool
}

// AnswerSource is the retrieval-augmented answer collaborator, bounded by
// the actor's answer timeout.
type AnswerSource interface {
	Answer(ctx context.Context, lessonID uuid.UUID, question string) (AnswerResult, error)
}

// LessonMarker persists lifecycle transitions on the durable lesson record.
type LessonMarker interface {
	MarkStarted(ctx context.Context, lessonID uuid.UUID, at time.Time) error
	MarkCompleted(ctx context.Context, lessonID uuid.UUID, at time.Time) error
}

// QuestionLog persists answered questions.
type QuestionLog interface {
	RecordAnswer(ctx context.Context, q *models.LessonQuestion) error
}

// ReportEnqueuer schedules post-lesson report generation.
type ReportEnqueuer interface {
	EnqueueLessonReport(ctx context.Context, payload queue.LessonReportPayload) error
}

// Broadcaster fans an event out to every connection of a lesson.
// Satisfied by the realtime hub.
type Broadcaster interface {
	BroadcastToLessonAndPublish(lessonID uuid.UUID, event string, payload interface{})
}

// Deps bundles the collaborators every session actor uses. Scanner,
// Attendance, Questions and Reports may be nil; the corresponding effects
// are then skipped.
type Deps struct {
	Scanner    AttendanceScanner
	Attendance AttendanceLog
	Slides     SlideSource
	Answers    AnswerSource
	Lessons    LessonMarker
	Questions  QuestionLog
	Reports    ReportEnqueuer
	Broadcast  Broadcaster
	Logger     *zap.Logger

	ScanTimeout   time.Duration
	AnswerTimeout time.Duration
	SlideTimeout  time.Duration
	Linger        time.Duration // teardown grace after Completed
}

func (d *Deps) withDefaults() Deps {
	out := *d
	if out.Logger == nil {
		out.Logger = zap.NewNop()
	}
	if out.ScanTimeout <= 0 {
		out.ScanTimeout = 30 * time.Second
	}
	if out.AnswerTimeout <= 0 {
		out.AnswerTimeout = 45 * time.Second
	}
	if out.SlideTimeout <= 0 {
		out.SlideTimeout = 5 * time.Second
	}
	if out.Linger <= 0 {
		out.Linger = 10 * time.Second
	}
	return out
}
