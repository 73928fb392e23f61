package lessons

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lumina-classroom/backend/internal/middleware"
	"github.com/lumina-classroom/backend/internal/models"
	"github.com/lumina-classroom/backend/pkg/response"
)

// CreateRequest is the body for POST /lessons.
type CreateRequest struct {
	Title       string    `json:"title" binding:"required"`
	Subject     string    `json:"subject"`
	Description string    `json:"description"`
	ScheduledAt time.Time `json:"scheduled_at" binding:"required"`
}

// UpdateRequest is the body for PATCH /lessons/:id.
type UpdateRequest struct {
	Title       string     `json:"title"`
	Subject     string     `json:"subject"`
	Description string     `json:"description"`
	ScheduledAt *time.Time `json:"scheduled_at"`
}

// AudienceCounter reports live connection counts per lesson.
type AudienceCounter interface {
	AudienceCount(lessonID uuid.UUID) int
}

// Handler handles lesson HTTP endpoints.
type Handler struct {
	repo *Repository
}

// NewHandler creates a lessons handler.
func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

// Create handles POST /lessons (teacher/admin).
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	l := &models.Lesson{
		Title:       req.Title,
		Subject:     req.Subject,
		Description: req.Description,
		ScheduledAt: req.ScheduledAt,
		CreatedBy:   userID,
	}
	if err := h.repo.Create(c.Request.Context(), l); err != nil {
		response.Internal(c, "failed to create lesson")
		return
	}
	response.Created(c, l)
}

// List handles GET /lessons.
func (h *Handler) List(c *gin.Context) {
	var createdBy *uuid.UUID
	if v := c.Query("created_by"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			response.BadRequest(c, "invalid created_by")
			return
		}
		createdBy = &id
	}
	list, err := h.repo.List(c.Request.Context(), createdBy)
	if err != nil {
		response.Internal(c, "failed to list lessons")
		return
	}
	response.OK(c, gin.H{"lessons": list})
}

// GetByID handles GET /lessons/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid lesson id")
		return
	}
	l, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.NotFound(c, "lesson not found")
		return
	}
	response.OK(c, l)
}

// Update handles PATCH /lessons/:id (teacher/admin).
func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid lesson id")
		return
	}
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := h.repo.Update(c.Request.Context(), id, req.Title, req.Subject, req.Description, req.ScheduledAt); err != nil {
		response.Internal(c, "failed to update lesson")
		return
	}
	response.OK(c, gin.H{"status": "updated"})
}

// Delete handles DELETE /lessons/:id (admin).
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid lesson id")
		return
	}
	if err := h.repo.Delete(c.Request.Context(), id); err != nil {
		response.Internal(c, "failed to delete lesson")
		return
	}
	response.NoContent(c)
}

// AudienceCount handles GET /lessons/:id/audience_count.
func (h *Handler) AudienceCount(hub AudienceCounter) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			response.BadRequest(c, "invalid lesson id")
			return
		}
		response.OK(c, gin.H{"count": hub.AudienceCount(id)})
	}
}
