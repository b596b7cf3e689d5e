package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"S3ArchiveBuilder/internal/config"
)

// ackTimeout bounds Delete when the caller's context has no deadline.
const ackTimeout = 10 * time.Second

// NATS is a JetStream work-queue stream read through a durable pull consumer.
// A message acked by Delete is removed from the stream; one left unacked is
// redelivered after AckWait. The delete token is the delivery's reply subject,
// so nothing is held per message between Receive and Delete.
type NATS struct {
	nc      *nats.Conn
	js      nats.JetStreamContext
	sub     *nats.Subscription
	subject string
	wait    time.Duration
}

func NewNATS(cfg *config.QueueConfig) (*NATS, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("nats: url: %w", config.ErrMissingField)
	}
	nc, err := nats.Connect(cfg.URL, nats.Name("s3archivebuilder"))
	if err != nil {
		return nil, fmt.Errorf("nats: connect: %w", err)
	}
	q, err := newNATS(nc, cfg)
	if err != nil {
		nc.Close()
		return nil, err
	}
	return q, nil
}

func newNATS(nc *nats.Conn, cfg *config.QueueConfig) (*NATS, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, fmt.Errorf("nats: jetstream: %w", err)
	}
	stream := streamName(cfg.Name)
	subject := stream + ".contexts"
	if _, err := js.StreamInfo(stream); err != nil {
		if !errors.Is(err, nats.ErrStreamNotFound) {
			return nil, fmt.Errorf("nats: stream info: %w", err)
		}
		_, err = js.AddStream(&nats.StreamConfig{
			Name:      stream,
			Subjects:  []string{subject},
			Retention: nats.WorkQueuePolicy,
			Storage:   nats.FileStorage,
		})
		if err != nil {
			return nil, fmt.Errorf("nats: add stream: %w", err)
		}
	}
	ackWait := cfg.VisibilityTimeout
	if ackWait <= 0 {
		ackWait = 30 * time.Minute
	}
	sub, err := js.PullSubscribe(subject, stream+"-consumer", nats.AckWait(ackWait), nats.ManualAck())
	if err != nil {
		return nil, fmt.Errorf("nats: subscribe: %w", err)
	}
	wait := cfg.ReceiveWait
	if wait <= 0 {
		wait = 2 * time.Second
	}
	return &NATS{
		nc:      nc,
		js:      js,
		sub:     sub,
		subject: subject,
		wait:    wait,
	}, nil
}

func streamName(name string) string {
	if name == "" {
		name = "s3archivebuilder"
	}
	r := strings.NewReplacer(".", "_", " ", "_", "*", "_", ">", "_")
	return strings.ToUpper(r.Replace(name))
}

func (q *NATS) Send(ctx context.Context, body string) error {
	if _, err := q.js.Publish(q.subject, []byte(body), nats.Context(ctx)); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	return nil
}

func (q *NATS) Receive(ctx context.Context, max int) ([]Message, error) {
	if max < 1 {
		max = 1
	}
	wait := q.wait
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < wait {
			wait = left
		}
	}
	if wait <= 0 {
		return nil, ctx.Err()
	}
	fetched, err := q.sub.Fetch(max, nats.MaxWait(wait))
	if err != nil {
		if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
			return nil, nil
		}
		return nil, fmt.Errorf("nats fetch: %w", err)
	}
	msgs := make([]Message, 0, len(fetched))
	for _, m := range fetched {
		id := m.Reply
		if meta, err := m.Metadata(); err == nil {
			id = strconv.FormatUint(meta.Sequence.Stream, 10)
		}
		msgs = append(msgs, Message{ID: id, Body: string(m.Data), DeleteToken: m.Reply})
	}
	return msgs, nil
}

// Delete acks the delivery and waits for the server to confirm it.
func (q *NATS) Delete(ctx context.Context, token string) error {
	if token == "" {
		return fmt.Errorf("nats ack: empty token")
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ackTimeout)
		defer cancel()
	}
	if _, err := q.nc.RequestWithContext(ctx, token, []byte("+ACK")); err != nil {
		return fmt.Errorf("nats ack: %w", err)
	}
	return nil
}

func (q *NATS) ApproximateDepth(ctx context.Context) (int64, error) {
	info, err := q.sub.ConsumerInfo()
	if err != nil {
		return 0, fmt.Errorf("nats consumer info: %w", err)
	}
	return int64(info.NumPending), nil
}

func (q *NATS) Close() error {
	q.nc.Close()
	return nil
}
