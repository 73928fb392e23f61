package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Registry is the single authority on which lessons have an active
// session. Nothing outside it holds the lesson -> actor map.
type Registry struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Actor
	deps     Deps
	logger   *zap.Logger
}

// NewRegistry creates a session registry. All actors it creates share deps.
func NewRegistry(deps Deps, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := deps.withDefaults()
	return &Registry{
		sessions: make(map[uuid.UUID]*Actor),
		deps:     d,
		logger:   logger,
	}
}

// Start returns the lesson's actor, creating it when absent. Starting a
// lesson that already has an active session is a no-op (created=false),
// which makes duplicate starts from the scheduler or clients harmless.
func (r *Registry) Start(ctx context.Context, lessonID uuid.UUID) (*Actor, bool) {
	r.mu.Lock()
	if a, ok := r.sessions[lessonID]; ok {
		r.mu.Unlock()
		return a, false
	}
	a := newActor(lessonID, r.deps, func() { r.remove(lessonID) })
	r.sessions[lessonID] = a
	r.mu.Unlock()

	if r.deps.Lessons != nil {
		if err := r.deps.Lessons.MarkStarted(ctx, lessonID, time.Now()); err != nil {
			r.logger.Warn("mark lesson started failed", zap.String("lesson_id", lessonID.String()), zap.Error(err))
		}
	}
	r.logger.Info("lesson session created", zap.String("lesson_id", lessonID.String()))
	return a, true
}

// Get returns the active actor for a lesson.
func (r *Registry) Get(lessonID uuid.UUID) (*Actor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.sessions[lessonID]
	return a, ok
}

// Exists reports whether the lesson has an active session.
func (r *Registry) Exists(lessonID uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[lessonID]
	return ok
}

// Snapshot returns the current state of a lesson's session, if active.
func (r *Registry) Snapshot(ctx context.Context, lessonID uuid.UUID) (Snapshot, bool) {
	a, ok := r.Get(lessonID)
	if !ok {
		return Snapshot{}, false
	}
	snap, err := a.Snapshot(ctx)
	if err != nil {
		return Snapshot{}, false
	}
	return snap, true
}

// remove tears down a lesson's actor. Called by the actor's own retirement
// after the post-completion linger window.
func (r *Registry) remove(lessonID uuid.UUID) {
	r.mu.Lock()
	a := r.sessions[lessonID]
	delete(r.sessions, lessonID)
	r.mu.Unlock()
	if a != nil {
		a.stop()
		r.logger.Info("lesson session removed", zap.String("lesson_id", lessonID.String()))
	}
}

// Shutdown stops every active actor. Used on process shutdown only.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	actors := make([]*Actor, 0, len(r.sessions))
	for _, a := range r.sessions {
		actors = append(actors, a)
	}
	r.sessions = make(map[uuid.UUID]*Actor)
	r.mu.Unlock()
	for _, a := range actors {
		a.stop()
	}
}
