package ports

import (
	"context"

	"whatsapp-bulk-worker/internal/domain"
)

// JobPublisher publishes accepted bulk jobs to the job queue.
type JobPublisher interface {
	// Publish sends a single domain.BulkJob to the queue.
	Publish(ctx context.Context, job domain.BulkJob) error
}

// JobConsumer consumes bulk jobs from the job queue.
type JobConsumer interface {
	// Consume starts delivery of jobs; each is passed to the handler.
	// Blocks until ctx is cancelled or a fatal error occurs.
	Consume(ctx context.Context, handler func(ctx context.Context, job domain.BulkJob) error) error
}
