package slides

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lumina-classroom/backend/internal/models"
	"github.com/lumina-classroom/backend/pkg/storage"
)

// Service serves slides to the session layer, resolving stored asset keys
// into pre-signed URLs. Storage may be nil; slides are then served with
// text only.
type Service struct {
	repo    *Repository
	storage *storage.S3
	logger  *zap.Logger
}

// NewService creates a slide service.
func NewService(repo *Repository, s3 *storage.S3, logger *zap.Logger) *Service {
	return &Service{repo: repo, storage: s3, logger: logger}
}

// SlideCount returns how many slides a lesson has.
func (s *Service) SlideCount(ctx context.Context, lessonID uuid.UUID) (int, error) {
	return s.repo.CountByLesson(ctx, lessonID)
}

// Slide returns the slide at a 1-based position with asset URLs resolved.
func (s *Service) Slide(ctx context.Context, lessonID uuid.UUID, position int) (*models.Slide, error) {
	slide, err := s.repo.GetByPosition(ctx, lessonID, position)
	if err != nil {
		return nil, err
	}
	s.resolveURLs(ctx, slide)
	return slide, nil
}

// resolveURLs fills AudioURL/ImageURL from the stored keys. A presign
// failure leaves the URL empty rather than failing the slide.
func (s *Service) resolveURLs(ctx context.Context, slide *models.Slide) {
	if s.storage == nil {
		return
	}
	var err error
	if slide.AudioURL, err = s.storage.PresignGet(ctx, slide.AudioKey); err != nil {
		s.logger.Warn("presign audio failed", zap.String("slide_id", slide.ID.String()), zap.Error(err))
	}
	if slide.ImageURL, err = s.storage.PresignGet(ctx, slide.ImageKey); err != nil {
		s.logger.Warn("presign image failed", zap.String("slide_id", slide.ID.String()), zap.Error(err))
	}
}
