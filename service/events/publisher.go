package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Publisher defines the interface for publishing workflow lifecycle events.
type Publisher interface {
	// PublishWorkflowEvent publishes a single lifecycle event to JetStream.
	// The event is published to the subject "workflows.{kind}".
	PublishWorkflowEvent(ctx context.Context, event *WorkflowEvent) error

	// Close closes the connection to NATS.
	Close() error
}

// JetStreamPublisher publishes workflow events to NATS JetStream.
type JetStreamPublisher struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	logger *slog.Logger
}

const (
	// StreamName is the name of the JetStream stream for workflow events.
	StreamName = "WORKFLOWS"

	// StreamSubjects is the subject pattern for the stream.
	StreamSubjects = "workflows.*"

	// StreamRetention is how long events are retained.
	StreamRetention = 7 * 24 * time.Hour
)

// NewPublisher creates a new JetStream publisher.
// It connects to NATS and ensures the stream exists.
func NewPublisher(natsURL string, logger *slog.Logger) (*JetStreamPublisher, error) {
	nc, err := nats.Connect(natsURL,
		nats.Name("mintdesk-publisher"),
		nats.Timeout(10*time.Second),
		nats.ReconnectWait(1*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	publisher := &JetStreamPublisher{
		nc:     nc,
		js:     js,
		logger: logger,
	}

	if err := publisher.ensureStream(); err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to ensure stream exists: %w", err)
	}

	logger.Info("NATS publisher initialized",
		"url", natsURL,
		"stream", StreamName,
	)

	return publisher, nil
}

// ensureStream creates the JetStream stream if it doesn't exist.
func (p *JetStreamPublisher) ensureStream() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := p.js.Stream(ctx, StreamName); err == nil {
		p.logger.Debug("JetStream stream already exists", "stream", StreamName)
		return nil
	}

	p.logger.Info("creating JetStream stream", "stream", StreamName)

	streamConfig := jetstream.StreamConfig{
		Name:        StreamName,
		Description: "Transaction workflow lifecycle events",
		Subjects:    []string{StreamSubjects},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      StreamRetention,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
	}

	if _, err := p.js.CreateStream(ctx, streamConfig); err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	return nil
}

// PublishWorkflowEvent publishes a single workflow lifecycle event.
func (p *JetStreamPublisher) PublishWorkflowEvent(ctx context.Context, event *WorkflowEvent) error {
	subject := fmt.Sprintf("workflows.%s", event.Kind)

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow event: %w", err)
	}

	if _, err := p.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("failed to publish workflow event: %w", err)
	}

	p.logger.Debug("published workflow event",
		"subject", subject,
		"state", event.State,
		"signature", event.Signature,
	)

	return nil
}

// Close closes the connection to NATS.
func (p *JetStreamPublisher) Close() error {
	if p.nc != nil {
		p.nc.Close()
		p.logger.Info("NATS publisher closed")
	}
	return nil
}
