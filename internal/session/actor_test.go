package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/lumina-classroom/backend/internal/models"
	"github.com/lumina-classroom/backend/pkg/queue"
)

// --- fakes ---

type fakeSlides struct {
	count int
	err   error
	block chan struct{} // when set, SlideCount waits for close
}

func (f *fakeSlides) SlideCount(ctx context.Context, lessonID uuid.UUID) (int, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	return f.count, f.err
}

func (f *fakeSlides) Slide(ctx context.Context, lessonID uuid.UUID, position int) (*models.Slide, error) {
	return &models.Slide{LessonID: lessonID, Position: position, Text: "slide"}, nil
}

type fakeAnswers struct {
	unblock chan struct{} // Answer returns once this is closed
	result  AnswerResult
}

func newFakeAnswers() *fakeAnswers {
	ch := make(chan struct{})
	close(ch)
	return &fakeAnswers{unblock: ch, result: AnswerResult{AnswerText: "because", Found: true}}
}

func (f *fakeAnswers) Answer(ctx context.Context, lessonID uuid.UUID, question string) (AnswerResult, error) {
	select {
	case <-f.unblock:
		return f.result, nil
	case <-ctx.Done():
		return AnswerResult{}, ctx.Err()
	}
}

type fakeScanner struct {
	matches []models.AttendanceRecord
	err     error
}

func (f *fakeScanner) Scan(ctx context.Context, lessonID uuid.UUID) ([]models.AttendanceRecord, error) {
	return f.matches, f.err
}

type fakeAttendanceLog struct {
	mu      sync.Mutex
	records []models.AttendanceRecord
}

func (f *fakeAttendanceLog) Record(ctx context.Context, rec *models.AttendanceRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, *rec)
	return nil
}

func (f *fakeAttendanceLog) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

type fakeQuestionLog struct {
	mu        sync.Mutex
	questions []models.LessonQuestion
}

func (f *fakeQuestionLog) RecordAnswer(ctx context.Context, q *models.LessonQuestion) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.questions = append(f.questions, *q)
	return nil
}

type fakeEnqueuer struct {
	mu       sync.Mutex
	payloads []queue.LessonReportPayload
}

func (f *fakeEnqueuer) EnqueueLessonReport(ctx context.Context, payload queue.LessonReportPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, payload)
	return nil
}

func (f *fakeEnqueuer) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

// broadcastRecorder records events delivered through the hub boundary.
type broadcastRecorder struct {
	mu       sync.Mutex
	events   []string
	payloads map[string][]interface{}
}

func (b *broadcastRecorder) BroadcastToLessonAndPublish(lessonID uuid.UUID, event string, payload interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
	if b.payloads == nil {
		b.payloads = make(map[string][]interface{})
	}
	b.payloads[event] = append(b.payloads[event], payload)
}

func (b *broadcastRecorder) count(event string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, e := range b.events {
		if e == event {
			n++
		}
	}
	return n
}

func (b *broadcastRecorder) payloadsFor(event string) []interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]interface{}(nil), b.payloads[event]...)
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting: %s", msg)
}

type actorFixture struct {
	actor     *Actor
	broadcast *broadcastRecorder
	slides    *fakeSlides
	answers   *fakeAnswers
	enqueuer  *fakeEnqueuer
	retired   chan struct{}
}

func newActorFixture(t *testing.T, slideCount int) *actorFixture {
	t.Helper()
	f := &actorFixture{
		broadcast: &broadcastRecorder{},
		slides:    &fakeSlides{count: slideCount},
		answers:   newFakeAnswers(),
		enqueuer:  &fakeEnqueuer{},
		retired:   make(chan struct{}),
	}
	deps := Deps{
		Slides:    f.slides,
		Answers:   f.answers,
		Reports:   f.enqueuer,
		Broadcast: f.broadcast,
		Linger:    20 * time.Millisecond,
	}
	f.actor = newActor(uuid.New(), deps.withDefaults(), func() { close(f.retired) })
	t.Cleanup(f.actor.stop)
	return f
}

func mustApply(t *testing.T, a *Actor, cmd Command) {
	t.Helper()
	if err := a.Apply(context.Background(), cmd); err != nil {
		t.Fatalf("apply %s: %v", cmd.Name(), err)
	}
}

func mustSnapshot(t *testing.T, a *Actor) Snapshot {
	t.Helper()
	snap, err := a.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	return snap
}

// --- tests ---

func TestStartPresentationBeginsAtFirstSlide(t *testing.T) {
	f := newActorFixture(t, 3)
	mustApply(t, f.actor, StartPresentation{})

	snap := mustSnapshot(t, f.actor)
	if snap.Phase != PhasePresentationActive {
		t.Errorf("phase = %s, want presentation_active", snap.Phase)
	}
	if snap.CurrentSlide != 1 {
		t.Errorf("current_slide = %d, want 1", snap.CurrentSlide)
	}
	if snap.TotalSlides != 3 {
		t.Errorf("total_slides = %d, want 3", snap.TotalSlides)
	}
	waitFor(t, func() bool { return f.broadcast.count(EventSlideChanged) == 1 }, "first slide_changed")
}

func TestStartPresentationWithoutSlides(t *testing.T) {
	f := newActorFixture(t, 0)
	err := f.actor.Apply(context.Background(), StartPresentation{})
	if !errors.Is(err, ErrNoSlides) {
		t.Fatalf("err = %v, want ErrNoSlides", err)
	}
	if snap := mustSnapshot(t, f.actor); snap.Phase != PhaseScheduled {
		t.Errorf("phase = %s, want scheduled after rejected start", snap.Phase)
	}
}

func TestStartPresentationDoesNotBlockOtherCommands(t *testing.T) {
	f := newActorFixture(t, 3)
	f.slides.block = make(chan struct{}) // hold the slide count fetch open

	started := make(chan error, 1)
	go func() {
		started <- f.actor.Apply(context.Background(), StartPresentation{})
	}()
	waitFor(t, func() bool { return mustSnapshot(t, f.actor).PresentationLoading }, "load marked pending")

	// The loop must keep serving while the slide store is slow.
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	snap, err := f.actor.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot stalled behind slide count fetch: %v", err)
	}
	if snap.Phase != PhaseScheduled {
		t.Fatalf("phase = %s, want scheduled while loading", snap.Phase)
	}

	// A second start while the load is in flight is rejected.
	if err := f.actor.Apply(context.Background(), StartPresentation{}); !errors.Is(err, ErrInvalidPhase) {
		t.Errorf("duplicate start: err = %v, want ErrInvalidPhase", err)
	}

	close(f.slides.block)
	if err := <-started; err != nil {
		t.Fatalf("start_presentation: %v", err)
	}
	snap = mustSnapshot(t, f.actor)
	if snap.Phase != PhasePresentationActive || snap.CurrentSlide != 1 {
		t.Errorf("phase = %s slide = %d, want presentation_active slide 1", snap.Phase, snap.CurrentSlide)
	}
}

func TestStartPresentationLoadAfterLessonEnded(t *testing.T) {
	f := newActorFixture(t, 3)
	f.slides.block = make(chan struct{})

	started := make(chan error, 1)
	go func() {
		started <- f.actor.Apply(context.Background(), StartPresentation{})
	}()
	waitFor(t, func() bool { return mustSnapshot(t, f.actor).PresentationLoading }, "load marked pending")

	mustApply(t, f.actor, EndLesson{})
	close(f.slides.block)

	if err := <-started; !errors.Is(err, ErrInvalidPhase) {
		t.Errorf("start after end: err = %v, want ErrInvalidPhase", err)
	}
	if snap := mustSnapshot(t, f.actor); snap.Phase != PhaseCompleted {
		t.Errorf("phase = %s, want completed", snap.Phase)
	}
}

func TestPresentationRunsToOpenQA(t *testing.T) {
	f := newActorFixture(t, 3)
	mustApply(t, f.actor, StartPresentation{})
	mustApply(t, f.actor, NextSlide{}) // 2
	mustApply(t, f.actor, NextSlide{}) // 3
	mustApply(t, f.actor, NextSlide{}) // past the end -> Q&A

	snap := mustSnapshot(t, f.actor)
	if snap.Phase != PhaseQAActive {
		t.Fatalf("phase = %s, want qa_active", snap.Phase)
	}
	if got := f.broadcast.count(EventPresentationCompleted); got != 1 {
		t.Errorf("presentation_completed broadcast %d times, want 1", got)
	}
	if got := f.broadcast.count(EventQAModeStarted); got != 1 {
		t.Errorf("qa_mode_started broadcast %d times, want 1", got)
	}

	if err := f.actor.Apply(context.Background(), NextSlide{}); !errors.Is(err, ErrInvalidPhase) {
		t.Errorf("next_slide in qa_active: err = %v, want ErrInvalidPhase", err)
	}
}

func TestNextSlideBoundaryFiresOnce(t *testing.T) {
	f := newActorFixture(t, 2)
	mustApply(t, f.actor, StartPresentation{})
	mustApply(t, f.actor, NextSlide{}) // at last slide

	const racers = 8
	errs := make(chan error, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- f.actor.Apply(context.Background(), NextSlide{})
		}()
	}
	wg.Wait()
	close(errs)

	accepted := 0
	for err := range errs {
		if err == nil {
			accepted++
		} else if !errors.Is(err, ErrInvalidPhase) {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if accepted != 1 {
		t.Errorf("%d racing next_slide commands accepted, want 1", accepted)
	}
	if got := f.broadcast.count(EventQAModeStarted); got != 1 {
		t.Errorf("qa_mode_started broadcast %d times, want 1", got)
	}
}

func TestPreviousSlideFloorsAtFirst(t *testing.T) {
	f := newActorFixture(t, 3)
	mustApply(t, f.actor, StartPresentation{})
	mustApply(t, f.actor, PreviousSlide{})
	mustApply(t, f.actor, PreviousSlide{})

	if snap := mustSnapshot(t, f.actor); snap.CurrentSlide != 1 {
		t.Errorf("current_slide = %d, want 1", snap.CurrentSlide)
	}
}

func TestPauseResumeIdempotent(t *testing.T) {
	f := newActorFixture(t, 3)
	mustApply(t, f.actor, StartPresentation{})
	mustApply(t, f.actor, NextSlide{}) // slide 2

	mustApply(t, f.actor, PausePresentation{})
	mustApply(t, f.actor, PausePresentation{}) // no-op
	snap := mustSnapshot(t, f.actor)
	if snap.Phase != PhasePaused {
		t.Fatalf("phase = %s, want paused", snap.Phase)
	}
	if got := f.broadcast.count(EventPresentationPaused); got != 1 {
		t.Errorf("presentation_paused broadcast %d times, want 1", got)
	}

	mustApply(t, f.actor, ResumePresentation{})
	mustApply(t, f.actor, ResumePresentation{}) // no-op
	snap = mustSnapshot(t, f.actor)
	if snap.Phase != PhasePresentationActive {
		t.Fatalf("phase = %s, want presentation_active", snap.Phase)
	}
	if snap.CurrentSlide != 2 {
		t.Errorf("current_slide = %d, want 2 after pause/resume", snap.CurrentSlide)
	}
	if snap.PausedAt != nil {
		t.Error("paused_at should be cleared on resume")
	}
}

func TestAskQuestionSingleSlot(t *testing.T) {
	f := newActorFixture(t, 3)
	f.answers.unblock = make(chan struct{}) // hold the answer open
	mustApply(t, f.actor, StartPresentation{})

	student := uuid.New()
	mustApply(t, f.actor, AskQuestion{Question: "why is the sky blue?", Method: "text", AskedBy: student})

	err := f.actor.Apply(context.Background(), AskQuestion{Question: "second", Method: "text", AskedBy: student})
	if !errors.Is(err, ErrQuestionPending) {
		t.Fatalf("second question: err = %v, want ErrQuestionPending", err)
	}

	close(f.answers.unblock)
	waitFor(t, func() bool { return f.broadcast.count(EventQuestionAnswered) == 1 }, "question_answered")
	waitFor(t, func() bool { return mustSnapshot(t, f.actor).PendingQuestion == "" }, "pending slot cleared")

	// Slot free again.
	mustApply(t, f.actor, AskQuestion{Question: "third", Method: "text", AskedBy: student})
}

func TestAskQuestionWhilePausedKeepsSlide(t *testing.T) {
	f := newActorFixture(t, 3)
	mustApply(t, f.actor, StartPresentation{})
	mustApply(t, f.actor, NextSlide{}) // slide 2
	mustApply(t, f.actor, PausePresentation{})

	mustApply(t, f.actor, AskQuestion{Question: "what does this diagram show?", Method: "audio", AskedBy: uuid.New()})
	waitFor(t, func() bool { return f.broadcast.count(EventQuestionAnswered) == 1 }, "question_answered")

	mustApply(t, f.actor, ResumePresentation{})
	snap := mustSnapshot(t, f.actor)
	if snap.CurrentSlide != 2 {
		t.Errorf("current_slide = %d, want 2", snap.CurrentSlide)
	}
}

func TestAttendancePhase(t *testing.T) {
	scanner := &fakeScanner{matches: []models.AttendanceRecord{
		{StudentID: uuid.New(), Confidence: 0.97, PhotoKey: "attendance/lesson/a.jpg"},
		{StudentID: uuid.New(), Confidence: 0.88, PhotoKey: "attendance/lesson/b.jpg"},
	}}
	log := &fakeAttendanceLog{}
	f := &actorFixture{
		broadcast: &broadcastRecorder{},
		slides:    &fakeSlides{count: 3},
		answers:   newFakeAnswers(),
		enqueuer:  &fakeEnqueuer{},
		retired:   make(chan struct{}),
	}
	deps := Deps{
		Scanner:    scanner,
		Attendance: log,
		Slides:     f.slides,
		Answers:    f.answers,
		Reports:    f.enqueuer,
		Broadcast:  f.broadcast,
		Linger:     20 * time.Millisecond,
	}
	f.actor = newActor(uuid.New(), deps.withDefaults(), func() { close(f.retired) })
	t.Cleanup(f.actor.stop)

	mustApply(t, f.actor, StartAttendance{})
	if snap := mustSnapshot(t, f.actor); snap.Phase != PhaseAttendanceActive {
		t.Fatalf("phase = %s, want attendance_active", snap.Phase)
	}
	waitFor(t, func() bool { return f.broadcast.count(EventAttendanceUpdate) == 2 }, "attendance updates")
	waitFor(t, func() bool { return log.len() == 2 }, "attendance persisted")

	// The scan's photo reference must reach the live channel.
	for _, p := range f.broadcast.payloadsFor(EventAttendanceUpdate) {
		payload, ok := p.(AttendanceUpdatePayload)
		if !ok {
			t.Fatalf("attendance_update payload type %T", p)
		}
		if payload.Photo == "" {
			t.Errorf("attendance_update for %s carries no photo reference", payload.StudentID)
		}
	}

	mustApply(t, f.actor, EndAttendance{})
	mustApply(t, f.actor, EndAttendance{}) // idempotent

	if err := f.actor.Apply(context.Background(), StartAttendance{}); !errors.Is(err, ErrInvalidPhase) {
		t.Errorf("restart attendance: err = %v, want ErrInvalidPhase", err)
	}

	// Presentation may follow attendance directly.
	mustApply(t, f.actor, StartPresentation{})
}

func TestEndLessonIsTerminal(t *testing.T) {
	f := newActorFixture(t, 3)
	mustApply(t, f.actor, StartPresentation{})
	mustApply(t, f.actor, EndLesson{})

	snap := mustSnapshot(t, f.actor)
	if snap.Phase != PhaseCompleted {
		t.Fatalf("phase = %s, want completed", snap.Phase)
	}
	if snap.CompletedAt == nil {
		t.Error("completed_at not set")
	}
	if got := f.broadcast.count(EventLessonEnded); got != 1 {
		t.Errorf("lesson_ended broadcast %d times, want 1", got)
	}

	if err := f.actor.Apply(context.Background(), EndLesson{}); !errors.Is(err, ErrInvalidPhase) {
		t.Errorf("end twice: err = %v, want ErrInvalidPhase", err)
	}
	if err := f.actor.Apply(context.Background(), NextSlide{}); !errors.Is(err, ErrInvalidPhase) {
		t.Errorf("command after end: err = %v, want ErrInvalidPhase", err)
	}

	waitFor(t, func() bool { return f.enqueuer.len() == 1 }, "report job enqueued")

	select {
	case <-f.retired:
	case <-time.After(2 * time.Second):
		t.Fatal("actor never retired after linger window")
	}
	f.actor.stop() // the registry stops a retired actor
	if err := f.actor.Apply(context.Background(), NextSlide{}); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("command after retirement: err = %v, want ErrSessionClosed", err)
	}
}

func TestStartQAFromPresentation(t *testing.T) {
	f := newActorFixture(t, 3)
	mustApply(t, f.actor, StartPresentation{})
	mustApply(t, f.actor, StartQA{})

	if snap := mustSnapshot(t, f.actor); snap.Phase != PhaseQAActive {
		t.Errorf("phase = %s, want qa_active", snap.Phase)
	}
	// Questions stay open in Q&A.
	mustApply(t, f.actor, AskQuestion{Question: "any homework?", Method: "text", AskedBy: uuid.New()})
}
