package answers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lumina-classroom/backend/internal/session"
)

// Service calls the external answer generation service. Generation runs
// retrieval plus speech synthesis and can take most of a minute; callers
// bound it with their own context.
type Service struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewService creates an answer service client.
func NewService(baseURL string, logger *zap.Logger) *Service {
	return &Service{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 90 * time.Second},
		logger:  logger,
	}
}

type answerRequest struct {
	LessonID string `json:"lesson_id"`
	Question string `json:"question"`
}

type answerResponse struct {
	Found      bool   `json:"found"`
	AnswerText string `json:"answer_text"`
	AudioKey   string `json:"audio_key"`
}

// Answer generates an answer for a student question.
func (s *Service) Answer(ctx context.Context, lessonID uuid.UUID, question string) (session.AnswerResult, error) {
	body, err := json.Marshal(answerRequest{LessonID: lessonID.String(), Question: question})
	if err != nil {
		return session.AnswerResult{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/answer", bytes.NewReader(body))
	if err != nil {
		return session.AnswerResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return session.AnswerResult{}, fmt.Errorf("answer request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return session.AnswerResult{}, fmt.Errorf("answer service: unexpected status %d", resp.StatusCode)
	}

	var out answerResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return session.AnswerResult{}, fmt.Errorf("answer decode: %w", err)
	}
	return session.AnswerResult{
		AnswerText: out.AnswerText,
		AudioRef:   out.AudioKey,
		Found:      out.Found,
	}, nil
}
