package session

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lumina-classroom/backend/internal/models"
	"github.com/lumina-classroom/backend/pkg/response"
)

// LessonStore looks up durable lesson records for manual session control.
type LessonStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Lesson, error)
}

// Handler exposes manual session control over HTTP: start, inspect, end.
// The WS command path goes through the Dispatcher instead.
type Handler struct {
	registry *Registry
	lessons  LessonStore
	logger   *zap.Logger
}

// NewHandler creates a session HTTP handler.
func NewHandler(registry *Registry, lessons LessonStore, logger *zap.Logger) *Handler {
	return &Handler{registry: registry, lessons: lessons, logger: logger}
}

// Start handles POST /lessons/:id/session/start (teacher/admin).
// Starting an already-active session returns its current snapshot.
func (h *Handler) Start(c *gin.Context) {
	lessonID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid lesson id")
		return
	}
	lesson, err := h.lessons.GetByID(c.Request.Context(), lessonID)
	if err != nil {
		response.NotFound(c, "lesson not found")
		return
	}
	if lesson.Status == models.LessonCompleted {
		response.Conflict(c, "lesson already completed")
		return
	}

	actor, created := h.registry.Start(c.Request.Context(), lessonID)
	snap, err := actor.Snapshot(c.Request.Context())
	if err != nil {
		response.Internal(c, "failed to read session state")
		return
	}
	if created {
		response.Created(c, gin.H{"session": snap})
		return
	}
	response.OK(c, gin.H{"session": snap})
}

// Get handles GET /lessons/:id/session.
func (h *Handler) Get(c *gin.Context) {
	lessonID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid lesson id")
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	snap, ok := h.registry.Snapshot(ctx, lessonID)
	if !ok {
		response.NotFound(c, "no active session for lesson")
		return
	}
	response.OK(c, gin.H{"session": snap})
}

// End handles POST /lessons/:id/session/end (teacher/admin).
func (h *Handler) End(c *gin.Context) {
	lessonID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid lesson id")
		return
	}
	actor, ok := h.registry.Get(lessonID)
	if !ok {
		response.NotFound(c, "no active session for lesson")
		return
	}
	if err := actor.Apply(c.Request.Context(), EndLesson{}); err != nil {
		if errors.Is(err, ErrInvalidPhase) || errors.Is(err, ErrSessionClosed) {
			response.Conflict(c, err.Error())
			return
		}
		h.logger.Error("end lesson failed", zap.String("lesson_id", lessonID.String()), zap.Error(err))
		response.Internal(c, "failed to end lesson")
		return
	}
	response.OK(c, gin.H{"status": "ended"})
}
