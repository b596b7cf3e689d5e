package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"S3ArchiveBuilder/internal/config"
)

// Redis is a reliable-list queue. Ids move from pending to processing on
// receive and carry a lease in a sorted set; expired leases are pushed back to
// pending before every receive.
type Redis struct {
	client     *redis.Client
	pending    string
	processing string
	bodies     string
	leases     string
	wait       time.Duration
	visibility time.Duration
	now        func() time.Time
}

func NewRedis(ctx context.Context, cfg *config.QueueConfig) (*Redis, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("redis: queue url: %w", config.ErrMissingField)
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return newRedis(client, cfg), nil
}

func newRedis(client *redis.Client, cfg *config.QueueConfig) *Redis {
	name := cfg.Name
	if name == "" {
		name = "s3archivebuilder"
	}
	visibility := cfg.VisibilityTimeout
	if visibility <= 0 {
		visibility = 30 * time.Minute
	}
	return &Redis{
		client:     client,
		pending:    name + ":pending",
		processing: name + ":processing",
		bodies:     name + ":bodies",
		leases:     name + ":leases",
		wait:       cfg.ReceiveWait,
		visibility: visibility,
		now:        time.Now,
	}
}

func (q *Redis) Send(ctx context.Context, body string) error {
	id := uuid.NewString()
	_, err := q.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, q.bodies, id, body)
		p.LPush(ctx, q.pending, id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis send: %w", err)
	}
	return nil
}

func (q *Redis) Receive(ctx context.Context, max int) ([]Message, error) {
	if max < 1 {
		max = 1
	}
	if err := q.reclaim(ctx); err != nil {
		return nil, err
	}
	var msgs []Message
	for len(msgs) < max {
		id, err := q.move(ctx, len(msgs) == 0)
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			return msgs, fmt.Errorf("redis receive: %w", err)
		}
		deadline := q.now().Add(q.visibility).UnixMilli()
		if err := q.client.ZAdd(ctx, q.leases, redis.Z{Score: float64(deadline), Member: id}).Err(); err != nil {
			return msgs, fmt.Errorf("redis lease: %w", err)
		}
		body, err := q.client.HGet(ctx, q.bodies, id).Result()
		if errors.Is(err, redis.Nil) {
			// acknowledged by a previous holder after its lease lapsed
			if err := q.Delete(ctx, id); err != nil {
				return msgs, fmt.Errorf("redis drop %s: %w", id, err)
			}
			continue
		}
		if err != nil {
			return msgs, fmt.Errorf("redis body: %w", err)
		}
		msgs = append(msgs, Message{ID: id, Body: body, DeleteToken: id})
	}
	return msgs, nil
}

func (q *Redis) move(ctx context.Context, block bool) (string, error) {
	if block && q.wait > 0 {
		return q.client.BLMove(ctx, q.pending, q.processing, "RIGHT", "LEFT", q.wait).Result()
	}
	return q.client.LMove(ctx, q.pending, q.processing, "RIGHT", "LEFT").Result()
}

func (q *Redis) reclaim(ctx context.Context) error {
	expired, err := q.client.ZRangeByScore(ctx, q.leases, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(q.now().UnixMilli(), 10),
	}).Result()
	if err != nil {
		return fmt.Errorf("redis reclaim: %w", err)
	}
	for _, id := range expired {
		removed, err := q.client.LRem(ctx, q.processing, 1, id).Result()
		if err != nil {
			return fmt.Errorf("redis reclaim: %w", err)
		}
		if removed > 0 {
			if err := q.client.RPush(ctx, q.pending, id).Err(); err != nil {
				return fmt.Errorf("redis reclaim: %w", err)
			}
		}
		q.client.ZRem(ctx, q.leases, id)
	}
	return nil
}

func (q *Redis) Delete(ctx context.Context, token string) error {
	_, err := q.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.LRem(ctx, q.processing, 1, token)
		p.ZRem(ctx, q.leases, token)
		p.HDel(ctx, q.bodies, token)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	return nil
}

func (q *Redis) ApproximateDepth(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.pending).Result()
	if err != nil {
		return 0, fmt.Errorf("redis depth: %w", err)
	}
	return n, nil
}

func (q *Redis) Close() error {
	return q.client.Close()
}
