package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lumina-classroom/backend/internal/models"
	"github.com/lumina-classroom/backend/pkg/queue"
)

var (
	ErrSessionClosed   = errors.New("session closed")
	ErrInvalidPhase    = errors.New("command not valid in current phase")
	ErrQuestionPending = errors.New("another question is still being answered")
	ErrNoSlides        = errors.New("lesson has no slides")
)

func phaseErr(cmd string, p Phase) error {
	return fmt.Errorf("%w: %s in phase %s", ErrInvalidPhase, cmd, p)
}

type envelope struct {
	cmd   Command
	reply chan error
	snap  chan Snapshot
}

// Actor is the sole mutator of one lesson's session state. All commands
// funnel through a single goroutine, so at most one command is being
// applied at any instant. Slow collaborator calls (scan, slide content,
// answer generation) run outside the loop and re-enter it only to apply
// their result.
type Actor struct {
	lessonID uuid.UUID
	deps     Deps
	logger   *zap.Logger

	cmds   chan envelope
	ctx    context.Context
	cancel context.CancelFunc

	retire     func()
	retireOnce sync.Once

	state sessionState // owned by the run goroutine
}

// newActor starts the actor goroutine in phase Scheduled. retire is called
// once, after the linger window following completion.
func newActor(lessonID uuid.UUID, deps Deps, retire func()) *Actor {
	ctx, cancel := context.WithCancel(context.Background())
	a := &Actor{
		lessonID: lessonID,
		deps:     deps,
		logger:   deps.Logger.With(zap.String("lesson_id", lessonID.String())),
		cmds:     make(chan envelope, 32),
		ctx:      ctx,
		cancel:   cancel,
		retire:   retire,
		state:    sessionState{LessonID: lessonID, Phase: PhaseScheduled},
	}
	go a.run()
	return a
}

// LessonID returns the lesson this actor owns.
func (a *Actor) LessonID() uuid.UUID { return a.lessonID }

// Apply submits one command and waits for it to be accepted or rejected.
// A rejection means the session state did not change.
func (a *Actor) Apply(ctx context.Context, cmd Command) error {
	env := envelope{cmd: cmd, reply: make(chan error, 1)}
	select {
	case a.cmds <- env:
	case <-a.ctx.Done():
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-env.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns a consistent copy of the session state. The read goes
// through the command channel, so it observes no half-applied command.
func (a *Actor) Snapshot(ctx context.Context) (Snapshot, error) {
	env := envelope{snap: make(chan Snapshot, 1)}
	select {
	case a.cmds <- env:
	case <-a.ctx.Done():
		return Snapshot{}, ErrSessionClosed
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
	select {
	case snap := <-env.snap:
		return snap, nil
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

// stop terminates the actor goroutine. In-flight collaborator results are
// dropped at the channel boundary.
func (a *Actor) stop() {
	a.cancel()
}

func (a *Actor) run() {
	for {
		select {
		case <-a.ctx.Done():
			return
		case env := <-a.cmds:
			if env.snap != nil {
				env.snap <- a.state.snapshot()
				continue
			}
			if _, ok := env.cmd.(StartPresentation); ok {
				// Replies once the slide count load finishes.
				a.startPresentation(env.reply)
				continue
			}
			env.reply <- a.apply(env.cmd)
		}
	}
}

// applyInternal re-enters serialization with a collaborator result. The
// envelope reply is discarded; internal commands cannot be rejected.
// Reports whether the command was accepted before the actor stopped.
func (a *Actor) applyInternal(cmd Command) bool {
	select {
	case a.cmds <- envelope{cmd: cmd, reply: make(chan error, 1)}:
		return true
	case <-a.ctx.Done():
		return false
	}
}

func (a *Actor) broadcast(event string, payload interface{}) {
	if a.deps.Broadcast != nil {
		a.deps.Broadcast.BroadcastToLessonAndPublish(a.lessonID, event, payload)
	}
}

func (a *Actor) apply(cmd Command) error {
	switch c := cmd.(type) {
	case StartAttendance:
		return a.startAttendance()
	case EndAttendance:
		return a.endAttendance()
	case NextSlide:
		return a.nextSlide()
	case PreviousSlide:
		return a.previousSlide()
	case PausePresentation:
		return a.pausePresentation()
	case ResumePresentation:
		return a.resumePresentation()
	case AskQuestion:
		return a.askQuestion(c)
	case StartQA:
		return a.startQA()
	case EndLesson:
		return a.endLesson()
	case answerReady:
		return a.finishQuestion(c)
	case presentationReady:
		return a.finishStartPresentation(c)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownCommand, cmd.Name())
	}
}

func (a *Actor) startAttendance() error {
	if a.state.Phase != PhaseScheduled {
		return phaseErr(CmdStartAttendance, a.state.Phase)
	}
	now := time.Now()
	a.state.Phase = PhaseAttendanceActive
	a.state.AttendanceStartedAt = &now
	a.broadcast(EventAttendanceStarted, nil)
	go a.runAttendanceScan()
	return nil
}

// runAttendanceScan calls the face-matching collaborator and broadcasts
// each match as it is persisted. A scan failure degrades to an empty batch.
func (a *Actor) runAttendanceScan() {
	if a.deps.Scanner == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), a.deps.ScanTimeout)
	defer cancel()
	matches, err := a.deps.Scanner.Scan(ctx, a.lessonID)
	if err != nil {
		a.logger.Warn("attendance scan failed, continuing without results", zap.Error(err))
		return
	}
	for i := range matches {
		rec := &matches[i]
		if a.deps.Attendance != nil {
			if err := a.deps.Attendance.Record(ctx, rec); err != nil {
				a.logger.Warn("record attendance failed", zap.String("student_id", rec.StudentID.String()), zap.Error(err))
			}
		}
		photo := rec.PhotoURL
		if photo == "" {
			photo = rec.PhotoKey
		}
		a.broadcast(EventAttendanceUpdate, AttendanceUpdatePayload{
			StudentID:  rec.StudentID,
			Confidence: rec.Confidence,
			Photo:      photo,
		})
	}
	a.logger.Info("attendance scan finished", zap.Int("matched", len(matches)))
}

func (a *Actor) endAttendance() error {
	if a.state.Phase != PhaseAttendanceActive {
		return phaseErr(CmdEndAttendance, a.state.Phase)
	}
	if a.state.AttendanceEndedAt != nil {
		return nil // already ended
	}
	now := time.Now()
	a.state.AttendanceEndedAt = &now
	a.broadcast(EventAttendanceEnded, nil)
	return nil
}

// startPresentation records that a load is in flight and hands the slide
// count fetch off outside the loop, so a slow slide store cannot stall
// other commands for the lesson. The issuer's reply is deferred until the
// result re-enters serialization.
func (a *Actor) startPresentation(reply chan error) {
	if a.state.Phase != PhaseScheduled && a.state.Phase != PhaseAttendanceActive {
		reply <- phaseErr(CmdStartPresentation, a.state.Phase)
		return
	}
	if a.state.PresentationLoading {
		reply <- fmt.Errorf("%w: start_presentation already in progress", ErrInvalidPhase)
		return
	}
	a.state.PresentationLoading = true
	go a.loadPresentation(reply)
}

func (a *Actor) loadPresentation(reply chan error) {
	ctx, cancel := context.WithTimeout(context.Background(), a.deps.SlideTimeout)
	defer cancel()
	count, err := a.deps.Slides.SlideCount(ctx, a.lessonID)
	if !a.applyInternal(presentationReady{count: count, err: err, reply: reply}) {
		reply <- ErrSessionClosed
	}
}

// finishStartPresentation applies the slide count result. The phase is
// re-checked: the lesson may have ended while the load was in flight.
func (a *Actor) finishStartPresentation(c presentationReady) error {
	a.state.PresentationLoading = false
	if a.state.Phase != PhaseScheduled && a.state.Phase != PhaseAttendanceActive {
		c.reply <- phaseErr(CmdStartPresentation, a.state.Phase)
		return nil
	}
	if c.err != nil {
		c.reply <- fmt.Errorf("load slide count: %w", c.err)
		return nil
	}
	if c.count == 0 {
		c.reply <- ErrNoSlides
		return nil
	}
	now := time.Now()
	a.state.Phase = PhasePresentationActive
	a.state.TotalSlides = c.count
	a.state.CurrentSlide = 1
	a.state.PresentationStartedAt = &now
	a.broadcast(EventPresentationStarted, PresentationStartedPayload{TotalSlides: c.count, Slide: 1})
	go a.pushSlide(1)
	c.reply <- nil
	return nil
}

// pushSlide fetches slide content outside the loop and broadcasts it. On
// failure the event degrades to the slide number only.
func (a *Actor) pushSlide(position int) {
	ctx, cancel := context.WithTimeout(context.Background(), a.deps.SlideTimeout)
	defer cancel()
	s, err := a.deps.Slides.Slide(ctx, a.lessonID, position)
	if err != nil {
		a.logger.Warn("slide fetch failed", zap.Int("position", position), zap.Error(err))
		a.broadcast(EventSlideChanged, SlideChangedPayload{SlideNumber: position})
		return
	}
	a.broadcast(EventSlideChanged, SlideChangedPayload{
		SlideNumber: position,
		Text:        s.Text,
		AudioRef:    s.AudioURL,
		ImageRef:    s.ImageURL,
	})
}

func (a *Actor) nextSlide() error {
	if a.state.Phase != PhasePresentationActive {
		return phaseErr(CmdNextSlide, a.state.Phase)
	}
	if a.state.CurrentSlide < 1 || a.state.CurrentSlide > a.state.TotalSlides {
		return a.fault(fmt.Sprintf("slide index %d out of range [1,%d]", a.state.CurrentSlide, a.state.TotalSlides))
	}
	if a.state.CurrentSlide == a.state.TotalSlides {
		// End of deck: same transition as reaching the last slide. The
		// serialization loop plus the phase guard above make this fire
		// exactly once no matter how many clients race the boundary.
		a.state.Phase = PhaseQAActive
		a.broadcast(EventPresentationCompleted, nil)
		a.broadcast(EventQAModeStarted, nil)
		a.logger.Info("presentation completed, open Q&A started")
		return nil
	}
	a.state.CurrentSlide++
	go a.pushSlide(a.state.CurrentSlide)
	return nil
}

func (a *Actor) previousSlide() error {
	if a.state.Phase != PhasePresentationActive {
		return phaseErr(CmdPreviousSlide, a.state.Phase)
	}
	if a.state.CurrentSlide <= 1 {
		return nil // floor at the first slide
	}
	a.state.CurrentSlide--
	go a.pushSlide(a.state.CurrentSlide)
	return nil
}

func (a *Actor) pausePresentation() error {
	switch a.state.Phase {
	case PhasePaused:
		return nil // idempotent
	case PhasePresentationActive:
		now := time.Now()
		a.state.Phase = PhasePaused
		a.state.PausedAt = &now
		a.broadcast(EventPresentationPaused, nil)
		return nil
	default:
		return phaseErr(CmdPausePresentation, a.state.Phase)
	}
}

func (a *Actor) resumePresentation() error {
	switch a.state.Phase {
	case PhasePresentationActive:
		return nil // idempotent
	case PhasePaused:
		a.state.Phase = PhasePresentationActive
		a.state.PausedAt = nil
		a.broadcast(EventPresentationResumed, nil)
		return nil
	default:
		return phaseErr(CmdResumePresentation, a.state.Phase)
	}
}

func (a *Actor) askQuestion(cmd AskQuestion) error {
	switch a.state.Phase {
	case PhasePresentationActive, PhasePaused, PhaseQAActive:
	default:
		return phaseErr(CmdAskQuestion, a.state.Phase)
	}
	if a.state.Pending != nil {
		return ErrQuestionPending
	}
	a.state.Pending = &pendingQuestion{Question: cmd.Question, AskedBy: cmd.AskedBy, AskedAt: time.Now()}
	a.broadcast(EventQuestionReceived, QuestionReceivedPayload{Question: cmd.Question})
	go a.generateAnswer(cmd)
	return nil
}

// generateAnswer calls the answer collaborator outside the loop and
// re-enters serialization with the result. Failures and timeouts degrade
// to a not-found answer instead of wedging the session.
func (a *Actor) generateAnswer(cmd AskQuestion) {
	ctx, cancel := context.WithTimeout(context.Background(), a.deps.AnswerTimeout)
	defer cancel()
	ready := answerReady{question: cmd.Question, askedBy: cmd.AskedBy}
	res, err := a.deps.Answers.Answer(ctx, a.lessonID, cmd.Question)
	if err != nil {
		a.logger.Warn("answer generation failed", zap.Error(err))
	} else {
		ready.result = res
		ready.ok = true
	}
	a.applyInternal(ready)
}

func (a *Actor) finishQuestion(c answerReady) error {
	if a.state.Phase == PhaseCompleted {
		return nil // late result after the lesson ended
	}
	a.state.Pending = nil
	payload := QuestionAnsweredPayload{Question: c.question}
	if c.ok {
		payload.AnswerText = c.result.AnswerText
		payload.AudioRef = c.result.AudioRef
		payload.Found = c.result.Found
	}
	a.broadcast(EventQuestionAnswered, payload)
	if a.deps.Questions != nil {
		q := &models.LessonQuestion{
			LessonID:   a.lessonID,
			AskedBy:    c.askedBy,
			Question:   c.question,
			AnswerText: payload.AnswerText,
			Found:      payload.Found,
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := a.deps.Questions.RecordAnswer(ctx, q); err != nil {
				a.logger.Warn("record question failed", zap.Error(err))
			}
		}()
	}
	return nil
}

func (a *Actor) startQA() error {
	if a.state.Phase != PhasePresentationActive && a.state.Phase != PhasePaused {
		return phaseErr(CmdStartQA, a.state.Phase)
	}
	a.state.Phase = PhaseQAActive
	a.broadcast(EventQAModeStarted, nil)
	return nil
}

func (a *Actor) endLesson() error {
	if a.state.Phase == PhaseCompleted {
		return phaseErr(CmdEndLesson, a.state.Phase)
	}
	a.complete(time.Now())
	return nil
}

// fault handles an internal invariant violation: log, force Completed so
// the corrupted state cannot propagate, and surface an opaque error.
func (a *Actor) fault(reason string) error {
	a.logger.Error("session invariant violated, forcing completion", zap.String("reason", reason))
	a.complete(time.Now())
	return errors.New("internal session error")
}

func (a *Actor) complete(now time.Time) {
	a.state.Phase = PhaseCompleted
	a.state.CompletedAt = &now
	a.state.Pending = nil
	a.broadcast(EventLessonEnded, nil)
	go a.finalize(now)
	a.retireOnce.Do(func() {
		time.AfterFunc(a.deps.Linger, a.retire)
	})
}

// finalize persists the terminal status and schedules report generation.
// Both are best-effort; the session is already Completed.
func (a *Actor) finalize(completedAt time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if a.deps.Lessons != nil {
		if err := a.deps.Lessons.MarkCompleted(ctx, a.lessonID, completedAt); err != nil {
			a.logger.Warn("mark lesson completed failed", zap.Error(err))
		}
	}
	if a.deps.Reports != nil {
		payload := queue.LessonReportPayload{LessonID: a.lessonID, CompletedAt: completedAt}
		if err := a.deps.Reports.EnqueueLessonReport(ctx, payload); err != nil {
			a.logger.Warn("enqueue lesson report failed", zap.Error(err))
		}
	}
	a.logger.Info("lesson session completed")
}
