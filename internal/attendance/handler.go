package attendance

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lumina-classroom/backend/pkg/response"
	"github.com/lumina-classroom/backend/pkg/storage"
)

// Handler handles attendance HTTP endpoints.
type Handler struct {
	repo    *Repository
	storage *storage.S3
	logger  *zap.Logger
}

// NewHandler creates an attendance handler. Storage may be nil; records are
// then returned without photo URLs.
func NewHandler(repo *Repository, s3 *storage.S3, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, storage: s3, logger: logger}
}

// List handles GET /lessons/:id/attendance (teacher/admin).
func (h *Handler) List(c *gin.Context) {
	lessonID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid lesson id")
		return
	}
	list, err := h.repo.ListByLesson(c.Request.Context(), lessonID)
	if err != nil {
		response.Internal(c, "failed to list attendance")
		return
	}
	if h.storage != nil {
		for i := range list {
			url, err := h.storage.PresignGet(c.Request.Context(), list[i].PhotoKey)
			if err != nil {
				h.logger.Warn("presign attendance photo failed", zap.Error(err))
				continue
			}
			list[i].PhotoURL = url
		}
	}
	response.OK(c, gin.H{"attendance": list, "count": len(list)})
}
