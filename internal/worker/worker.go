// Package worker runs the durable background half of transcript export:
// the signaling engine enqueues a job on end-meeting instead of exporting
// inline, so a crashed or slow S3 upload gets retried by a standalone
// process rather than lost with the connection that triggered it. Shape
// carried over from the teacher's recording-upload processor.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/gridmeet/sfu-backend/internal/transcript"
	"github.com/gridmeet/sfu-backend/pkg/queue"
)

// TranscriptProcessor processes transcript export jobs: assemble chat + Q&A
// history and upload to S3.
type TranscriptProcessor struct {
	exporter *transcript.Exporter
	queue    *queue.Queue
	logger   *zap.Logger
}

// NewTranscriptProcessor creates a transcript export processor.
func NewTranscriptProcessor(exporter *transcript.Exporter, q *queue.Queue, logger *zap.Logger) *TranscriptProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TranscriptProcessor{exporter: exporter, queue: q, logger: logger}
}

// Process executes one transcript export job.
func (p *TranscriptProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeTranscriptExport {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.TranscriptExportPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	if err := p.exporter.Export(ctx, payload.MeetingID); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	p.logger.Info("transcript export completed", zap.String("meeting_id", payload.MeetingID.String()))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *TranscriptProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("transcript worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
			continue
		}
	}
}
