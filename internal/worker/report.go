package worker

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/lumina-classroom/backend/internal/attendance"
	"github.com/lumina-classroom/backend/internal/models"
	"github.com/lumina-classroom/backend/internal/questions"
	"github.com/lumina-classroom/backend/internal/reports"
	"github.com/lumina-classroom/backend/internal/slides"
	"github.com/lumina-classroom/backend/pkg/queue"
)

// ReportProcessor consumes lesson report jobs and writes aggregated
// reports. Counts are queried fresh at processing time, so a retried job
// produces the same result.
type ReportProcessor struct {
	queue      *queue.Queue
	attendance *attendance.Repository
	questions  *questions.Repository
	slides     *slides.Repository
	reports    *reports.Repository
	logger     *zap.Logger
}

// NewReportProcessor creates a report worker.
func NewReportProcessor(q *queue.Queue, att *attendance.Repository, qs *questions.Repository, sl *slides.Repository, rep *reports.Repository, logger *zap.Logger) *ReportProcessor {
	return &ReportProcessor{
		queue:      q,
		attendance: att,
		questions:  qs,
		slides:     sl,
		reports:    rep,
		logger:     logger,
	}
}

// Run consumes jobs until ctx is cancelled.
func (p *ReportProcessor) Run(ctx context.Context) {
	p.logger.Info("report worker started")
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("report worker stopped")
			return
		default:
		}

		job, _, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Error("dequeue failed", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		if err := p.process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if rerr := p.queue.Retry(ctx, job); rerr != nil {
				p.logger.Error("retry failed", zap.String("job_id", job.ID), zap.Error(rerr))
			}
		}
	}
}

func (p *ReportProcessor) process(ctx context.Context, job *queue.Job) error {
	switch job.Type {
	case queue.JobTypeLessonReport:
		var payload queue.LessonReportPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			p.logger.Warn("dropping malformed job", zap.String("job_id", job.ID), zap.Error(err))
			return nil
		}
		return p.generate(ctx, payload)
	default:
		p.logger.Warn("unknown job type", zap.String("type", string(job.Type)))
		return nil
	}
}

func (p *ReportProcessor) generate(ctx context.Context, payload queue.LessonReportPayload) error {
	attendees, err := p.attendance.CountByLesson(ctx, payload.LessonID)
	if err != nil {
		return err
	}
	total, answered, err := p.questions.CountByLesson(ctx, payload.LessonID)
	if err != nil {
		return err
	}
	slideCount, err := p.slides.CountByLesson(ctx, payload.LessonID)
	if err != nil {
		return err
	}

	rep := &models.LessonReport{
		LessonID:      payload.LessonID,
		AttendeeCount: attendees,
		QuestionCount: total,
		AnsweredCount: answered,
		SlideCount:    slideCount,
		GeneratedAt:   time.Now(),
	}
	if err := p.reports.Upsert(ctx, rep); err != nil {
		return err
	}
	p.logger.Info("lesson report generated",
		zap.String("lesson_id", payload.LessonID.String()),
		zap.Int("attendees", attendees),
		zap.Int("questions", total))
	return nil
}
