// Package pool provides fixed-size goroutine pools with a blocking join.
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

var ErrClosed = errors.New("pool closed")

type Option func(*Pool)

// WithRateLimit makes every task wait on l after it has a slot.
func WithRateLimit(l *rate.Limiter) Option {
	return func(p *Pool) { p.limiter = l }
}

// Pool runs at most size tasks at once. The size is fixed for the pool's life.
type Pool struct {
	name    string
	size    int
	sem     *semaphore.Weighted
	limiter *rate.Limiter
	wg      sync.WaitGroup
	active  atomic.Int64

	mu     sync.Mutex
	closed bool
}

func New(name string, size int, opts ...Option) *Pool {
	if size < 1 {
		size = 1
	}
	p := &Pool{name: name, size: size, sem: semaphore.NewWeighted(int64(size))}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Go blocks until a slot is free, then runs fn on its own goroutine. The slot
// is released when fn returns. An error means fn was not started.
func (p *Pool) Go(ctx context.Context, fn func(ctx context.Context)) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return fmt.Errorf("%s: %w", p.name, ErrClosed)
	}
	p.wg.Add(1)
	p.mu.Unlock()

	if err := p.sem.Acquire(ctx, 1); err != nil {
		p.wg.Done()
		return fmt.Errorf("%s: acquire: %w", p.name, err)
	}
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			p.sem.Release(1)
			p.wg.Done()
			return fmt.Errorf("%s: rate limit: %w", p.name, err)
		}
	}
	p.active.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.sem.Release(1)
		defer p.active.Add(-1)
		fn(ctx)
	}()
	return nil
}

// Shutdown stops accepting tasks and waits for running ones. It returns
// ctx.Err() if ctx ends first; tasks keep running in that case.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) Name() string { return p.name }

func (p *Pool) Size() int { return p.size }

// Active is the number of tasks currently holding a slot.
func (p *Pool) Active() int64 { return p.active.Load() }
