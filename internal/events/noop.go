package events

import (
	"context"
	"log/slog"
)

// NoopPublisher logs events instead of sending them. Used when NATS_URL is empty.
type NoopPublisher struct {
	logger *slog.Logger
}

func NewNoopPublisher() *NoopPublisher {
	return &NoopPublisher{
		logger: slog.Default().With("component", "noop_publisher"),
	}
}

func (p *NoopPublisher) Publish(ctx context.Context, event TaskEvent) error {
	p.logger.DebugContext(ctx, "Task event (noop)",
		"subject", event.Subject(),
		"task_id", event.TaskID,
	)
	return nil
}

// Verify interface implementation
var _ Publisher = (*NoopPublisher)(nil)
