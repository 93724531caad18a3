package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// Connect dials NATS with unlimited reconnects.
func Connect(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("taskmanager"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return nc, nil
}

// NATSPublisher publishes task events as JSON on core NATS subjects.
type NATSPublisher struct {
	nc     *nats.Conn
	logger *slog.Logger
}

// NewNATSPublisher creates a publisher over an established connection.
func NewNATSPublisher(nc *nats.Conn) *NATSPublisher {
	return &NATSPublisher{
		nc:     nc,
		logger: slog.Default().With("component", "nats_publisher"),
	}
}

// Publish sends the event to tasks.<type>.
func (p *NATSPublisher) Publish(ctx context.Context, event TaskEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal task event: %w", err)
	}

	if err := p.nc.Publish(event.Subject(), data); err != nil {
		return fmt.Errorf("failed to publish task event: %w", err)
	}

	p.logger.DebugContext(ctx, "Task event sent",
		"subject", event.Subject(),
		"task_id", event.TaskID,
		"version", event.Version,
	)
	return nil
}

// Verify interface implementation
var _ Publisher = (*NATSPublisher)(nil)
