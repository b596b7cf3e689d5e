// Package lock keeps a single producer listing a source bucket at a time.
package lock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

var ErrHeld = errors.New("lock held by another process")

type Locker interface {
	Acquire(ctx context.Context) error
	Release(ctx context.Context) error
}

// Owner is written into the lock so operators can see who holds it.
type Owner struct {
	Host     string    `json:"host"`
	PID      int       `json:"pid"`
	Acquired time.Time `json:"acquired"`
}

func currentOwner() Owner {
	host, _ := os.Hostname()
	return Owner{Host: host, PID: os.Getpid(), Acquired: time.Now().UTC()}
}

func (o Owner) encode() ([]byte, error) {
	b, err := json.Marshal(o)
	if err != nil {
		return nil, fmt.Errorf("lock owner: %w", err)
	}
	return append(b, '\n'), nil
}

// Noop never blocks. Used when producer.lock is "none".
type Noop struct{}

func (Noop) Acquire(context.Context) error { return nil }
func (Noop) Release(context.Context) error { return nil }
