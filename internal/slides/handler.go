package slides

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lumina-classroom/backend/internal/models"
	"github.com/lumina-classroom/backend/pkg/response"
	"github.com/lumina-classroom/backend/pkg/storage"
)

// CreateRequest is the body for POST /lessons/:id/slides.
type CreateRequest struct {
	Position int    `json:"position" binding:"required,min=1"`
	Text     string `json:"text"`
	AudioKey string `json:"audio_key"`
	ImageKey string `json:"image_key"`
}

// Handler handles slide HTTP endpoints.
type Handler struct {
	svc     *Service
	storage *storage.S3
}

// NewHandler creates a slides handler. Storage may be nil; asset upload is
// then unavailable.
func NewHandler(svc *Service, s3 *storage.S3) *Handler {
	return &Handler{svc: svc, storage: s3}
}

// Create handles POST /lessons/:id/slides (teacher/admin).
func (h *Handler) Create(c *gin.Context) {
	lessonID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid lesson id")
		return
	}
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	s := &models.Slide{
		LessonID: lessonID,
		Position: req.Position,
		Text:     req.Text,
		AudioKey: req.AudioKey,
		ImageKey: req.ImageKey,
	}
	if err := h.svc.repo.Create(c.Request.Context(), s); err != nil {
		response.Internal(c, "failed to create slide")
		return
	}
	response.Created(c, s)
}

// List handles GET /lessons/:id/slides. Asset URLs are resolved so the
// client can prefetch the deck.
func (h *Handler) List(c *gin.Context) {
	lessonID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid lesson id")
		return
	}
	list, err := h.svc.repo.ListByLesson(c.Request.Context(), lessonID)
	if err != nil {
		response.Internal(c, "failed to list slides")
		return
	}
	for i := range list {
		h.svc.resolveURLs(c.Request.Context(), &list[i])
	}
	response.OK(c, gin.H{"slides": list})
}

// Get handles GET /lessons/:id/slides/:position.
func (h *Handler) Get(c *gin.Context) {
	lessonID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid lesson id")
		return
	}
	position, err := strconv.Atoi(c.Param("position"))
	if err != nil || position < 1 {
		response.BadRequest(c, "invalid slide position")
		return
	}
	s, err := h.svc.Slide(c.Request.Context(), lessonID, position)
	if err != nil {
		response.NotFound(c, "slide not found")
		return
	}
	response.OK(c, s)
}

// UploadAsset handles POST /lessons/:id/slides/assets (teacher/admin).
// Accepts a multipart file and returns the storage key to reference from a
// slide record.
func (h *Handler) UploadAsset(c *gin.Context) {
	if h.storage == nil {
		response.BadRequest(c, "asset storage not configured")
		return
	}
	lessonID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid lesson id")
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "file required")
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		response.Internal(c, "failed to read upload")
		return
	}
	defer f.Close()

	key := storage.SlideAssetKey(lessonID.String(), fileHeader.Filename)
	contentType := fileHeader.Header.Get("Content-Type")
	if _, err := h.storage.Upload(c.Request.Context(), key, contentType, f); err != nil {
		response.Internal(c, "failed to store asset")
		return
	}
	response.Created(c, gin.H{"key": key})
}
