package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/knowledge-assistant/internal/core/domain"
	"github.com/kirillkom/knowledge-assistant/internal/core/ports"
)

// IngestScheduleUseCase runs ingestion inline, or publishes it for the worker
// when a queue is configured so that the worker stays the only index writer.
type IngestScheduleUseCase struct {
	ingest ports.SourceIngestor
	queue  ports.IndexJobQueue
}

func NewIngestScheduleUseCase(ingest ports.SourceIngestor, queue ports.IndexJobQueue) *IngestScheduleUseCase {
	return &IngestScheduleUseCase{ingest: ingest, queue: queue}
}

// Schedule returns the ingest result when run inline, or the job id when queued.
func (uc *IngestScheduleUseCase) Schedule(
	ctx context.Context,
	sess domain.SessionContext,
	req domain.SourceRequest,
) (*domain.IngestResult, string, error) {
	if err := ValidateSourceRequest(req); err != nil {
		return nil, "", err
	}
	if uc.queue == nil {
		result, err := uc.ingest.IngestSource(ctx, sess, req)
		return result, "", err
	}

	job := domain.IndexJob{
		ID:          uuid.NewString(),
		SessionID:   sess.SessionID,
		Request:     req,
		RequestedAt: time.Now().UTC(),
	}
	if err := uc.queue.PublishIndexJob(ctx, job); err != nil {
		return nil, "", fmt.Errorf("publish index job: %w", err)
	}
	return nil, job.ID, nil
}
