package attendance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lumina-classroom/backend/internal/models"
)

// PhotoResolver turns a stored capture photo key into a downloadable URL.
// Satisfied by the S3 storage client.
type PhotoResolver interface {
	PresignGet(ctx context.Context, key string) (string, error)
}

// Scanner calls the external face-matching service over HTTP. A scan can
// take tens of seconds on a full classroom frame; callers bound it with
// their own context. The resolver may be nil; matches then carry the raw
// photo key only.
type Scanner struct {
	baseURL  string
	client   *http.Client
	resolver PhotoResolver
	logger   *zap.Logger
}

// NewScanner creates a scanner client for the face-matching service.
func NewScanner(baseURL string, resolver PhotoResolver, logger *zap.Logger) *Scanner {
	return &Scanner{
		baseURL:  baseURL,
		client:   &http.Client{Timeout: 60 * time.Second},
		resolver: resolver,
		logger:   logger,
	}
}

type scanRequest struct {
	LessonID string `json:"lesson_id"`
}

type scanMatch struct {
	StudentID  uuid.UUID `json:"student_id"`
	Confidence float64   `json:"confidence"`
	PhotoKey   string    `json:"photo_key"`
}

type scanResponse struct {
	Matches []scanMatch `json:"matches"`
}

// Scan requests a classroom scan and returns the recognized students.
func (s *Scanner) Scan(ctx context.Context, lessonID uuid.UUID) ([]models.AttendanceRecord, error) {
	body, err := json.Marshal(scanRequest{LessonID: lessonID.String()})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/scan", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("attendance scan request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("attendance scan: unexpected status %d", resp.StatusCode)
	}

	var out scanResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("attendance scan decode: %w", err)
	}

	now := time.Now()
	records := make([]models.AttendanceRecord, 0, len(out.Matches))
	for _, m := range out.Matches {
		rec := models.AttendanceRecord{
			LessonID:   lessonID,
			StudentID:  m.StudentID,
			Confidence: m.Confidence,
			PhotoKey:   m.PhotoKey,
			RecordedAt: now,
		}
		if s.resolver != nil && m.PhotoKey != "" {
			url, err := s.resolver.PresignGet(ctx, m.PhotoKey)
			if err != nil {
				s.logger.Warn("presign scan photo failed", zap.String("photo_key", m.PhotoKey), zap.Error(err))
			} else {
				rec.PhotoURL = url
			}
		}
		records = append(records, rec)
	}
	return records, nil
}
