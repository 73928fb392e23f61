package reports

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lumina-classroom/backend/pkg/response"
)

// Handler handles report HTTP endpoints.
type Handler struct {
	repo *Repository
}

// NewHandler creates a reports handler.
func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

// Get handles GET /lessons/:id/report (teacher/admin).
func (h *Handler) Get(c *gin.Context) {
	lessonID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid lesson id")
		return
	}
	rep, err := h.repo.GetByLesson(c.Request.Context(), lessonID)
	if err != nil {
		response.NotFound(c, "report not found")
		return
	}
	response.OK(c, rep)
}
