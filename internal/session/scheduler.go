package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LessonFinder lists lessons whose scheduled time has passed but that have
// not been started yet.
type LessonFinder interface {
	DueLessons(ctx context.Context, now time.Time) ([]uuid.UUID, error)
}

// Scheduler auto-starts due lessons without any client being connected.
// It never touches session state directly: it issues the same registry
// start a manual operator would, so idempotence comes for free.
type Scheduler struct {
	lessons  LessonFinder
	registry *Registry
	interval time.Duration
	logger   *zap.Logger
}

// NewScheduler creates the auto-start scheduler.
func NewScheduler(lessons LessonFinder, registry *Registry, interval time.Duration, logger *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{lessons: lessons, registry: registry, interval: interval, logger: logger}
}

// Run polls on a fixed interval until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("lesson scheduler started", zap.Duration("interval", s.interval))
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("lesson scheduler stopping")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick performs one sweep. A failure on one lesson never affects the rest.
func (s *Scheduler) tick(ctx context.Context) {
	due, err := s.lessons.DueLessons(ctx, time.Now())
	if err != nil {
		s.logger.Warn("due lesson query failed", zap.Error(err))
		return
	}
	for _, lessonID := range due {
		if _, created := s.registry.Start(ctx, lessonID); created {
			s.logger.Info("lesson session auto-started", zap.String("lesson_id", lessonID.String()))
		}
	}
}
