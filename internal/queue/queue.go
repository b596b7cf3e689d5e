// Package queue carries serialized archive contexts from the producer to
// consumers. Every backend gives at-least-once delivery: a received message
// stays invisible to other consumers until it is deleted or its lease expires.
package queue

import (
	"context"
	"errors"
	"fmt"

	"S3ArchiveBuilder/internal/config"
)

var ErrUnknownBackend = errors.New("unknown queue backend")

// Message is one received queue entry. DeleteToken acknowledges it.
type Message struct {
	ID          string
	Body        string
	DeleteToken string
}

type Queue interface {
	Send(ctx context.Context, body string) error
	Receive(ctx context.Context, max int) ([]Message, error)
	Delete(ctx context.Context, token string) error
	// ApproximateDepth is a hint only; it may read zero while another
	// consumer still holds a message.
	ApproximateDepth(ctx context.Context) (int64, error)
	Close() error
}

// New builds the backend selected by cfg.Backend.
func New(ctx context.Context, cfg *config.QueueConfig) (Queue, error) {
	if cfg == nil {
		return nil, fmt.Errorf("queue: %w", config.ErrMissingField)
	}
	switch cfg.Backend {
	case config.BackendSQS, "":
		return NewSQS(ctx, cfg)
	case config.BackendRedis:
		return NewRedis(ctx, cfg)
	case config.BackendNATS:
		return NewNATS(cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}
