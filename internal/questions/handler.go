package questions

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lumina-classroom/backend/pkg/response"
)

// Handler handles question HTTP endpoints.
type Handler struct {
	repo *Repository
}

// NewHandler creates a questions handler.
func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

// List handles GET /lessons/:id/questions.
func (h *Handler) List(c *gin.Context) {
	lessonID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid lesson id")
		return
	}
	list, err := h.repo.ListByLesson(c.Request.Context(), lessonID)
	if err != nil {
		response.Internal(c, "failed to list questions")
		return
	}
	response.OK(c, gin.H{"questions": list})
}
