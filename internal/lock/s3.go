package lock

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"S3ArchiveBuilder/internal/s3"
)

// ObjectStore is the subset of *s3.Client the S3 lock needs.
type ObjectStore interface {
	HeadObject(ctx context.Context, key string) (*time.Time, error)
	PutObject(ctx context.Context, key string, body io.Reader, contentLength int64) error
	DeleteObject(ctx context.Context, key string) error
}

// S3Locker stores the lock as an object so producers on different hosts see
// each other. Head-then-put is not atomic; two producers starting within the
// same instant can both win.
type S3Locker struct {
	store ObjectStore
	ttl   time.Duration
	key   string
	mu    sync.Mutex
	held  bool
}

type S3Options struct {
	Store ObjectStore
	Name  string
	TTL   time.Duration
}

func NewS3(opts S3Options) (*S3Locker, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("s3 lock: store is required")
	}
	name := opts.Name
	if name == "" || strings.ContainsAny(name, `/\`) {
		name = "producer"
	}
	return &S3Locker{store: opts.Store, ttl: opts.TTL, key: s3.LockKey(name)}, nil
}

func (l *S3Locker) Key() string { return l.key }

func (l *S3Locker) Acquire(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held {
		return fmt.Errorf("s3 lock already held by this process")
	}

	lastMod, err := l.store.HeadObject(ctx, l.key)
	if err != nil {
		return fmt.Errorf("s3 lock head: %w", err)
	}
	if lastMod != nil {
		if l.ttl <= 0 || time.Since(*lastMod) < l.ttl {
			return fmt.Errorf("%w: %s", ErrHeld, l.key)
		}
		if err := l.store.DeleteObject(ctx, l.key); err != nil {
			return fmt.Errorf("s3 lock stale but delete failed: %w", err)
		}
	}

	body, err := currentOwner().encode()
	if err != nil {
		return err
	}
	if err := l.store.PutObject(ctx, l.key, bytes.NewReader(body), int64(len(body))); err != nil {
		return fmt.Errorf("s3 lock put: %w", err)
	}
	l.held = true
	return nil
}

func (l *S3Locker) Release(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.held {
		return nil
	}
	if err := l.store.DeleteObject(ctx, l.key); err != nil {
		return fmt.Errorf("s3 lock release: %w", err)
	}
	l.held = false
	return nil
}
