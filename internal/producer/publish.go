package producer

import (
	"context"
	"fmt"

	"S3ArchiveBuilder/internal/archive"
	"S3ArchiveBuilder/internal/queue"
)

// Publisher receives every finished context.
type Publisher interface {
	Publish(ctx context.Context, c archive.Context) error
}

// QueuePublisher sends contexts to the work queue.
type QueuePublisher struct {
	Queue queue.Queue
}

func (p QueuePublisher) Publish(ctx context.Context, c archive.Context) error {
	body, err := c.Marshal()
	if err != nil {
		return err
	}
	if err := p.Queue.Send(ctx, body); err != nil {
		return fmt.Errorf("publish %s/%s: %w", c.Prefix, c.Year, err)
	}
	return nil
}

// LineWriter is satisfied by *logger.Diagnostics.
type LineWriter interface {
	Line(s string)
}

// LogPublisher writes each context as one line instead of sending it. Used in
// dry-run mode.
type LogPublisher struct {
	Out LineWriter
}

func (p LogPublisher) Publish(_ context.Context, c archive.Context) error {
	body, err := c.Marshal()
	if err != nil {
		return err
	}
	p.Out.Line(body)
	return nil
}
