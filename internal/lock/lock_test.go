package lock

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestLocalLocker(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	a, err := NewLocal(LocalOptions{Dir: dir, Name: "producer", TTL: time.Hour})
	if err != nil {
		t.Fatal(err)
	}
	b, _ := NewLocal(LocalOptions{Dir: dir, Name: "producer", TTL: time.Hour})

	if err := a.Acquire(ctx); err != nil {
		t.Fatalf("first Acquire: %v", err)
	}
	if err := b.Acquire(ctx); !errors.Is(err, ErrHeld) {
		t.Fatalf("second Acquire = %v, want ErrHeld", err)
	}
	if err := a.Release(ctx); err != nil {
		t.Fatal(err)
	}
	if err := b.Acquire(ctx); err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	_ = b.Release(ctx)
}

func TestLocalLocker_StaleTakeover(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	l, _ := NewLocal(LocalOptions{Dir: dir, Name: "producer", TTL: time.Minute})
	if err := os.WriteFile(l.Path(), []byte("old\n"), 0o640); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-time.Hour)
	if err := os.Chtimes(l.Path(), old, old); err != nil {
		t.Fatal(err)
	}
	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("Acquire over stale lock: %v", err)
	}
	if filepath.Base(l.Path()) != "producer.lock" {
		t.Errorf("path = %s", l.Path())
	}
	_ = l.Release(ctx)
	if _, err := os.Stat(l.Path()); !os.IsNotExist(err) {
		t.Error("lock file should be removed on release")
	}
}

type memObjects struct {
	mu      sync.Mutex
	objects map[string]time.Time
}

func (m *memObjects) HeadObject(_ context.Context, key string) (*time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.objects[key]; ok {
		return &t, nil
	}
	return nil, nil
}

func (m *memObjects) PutObject(_ context.Context, key string, body io.Reader, _ int64) error {
	if _, err := io.ReadAll(body); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = time.Now()
	return nil
}

func (m *memObjects) DeleteObject(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func TestS3Locker(t *testing.T) {
	ctx := context.Background()
	store := &memObjects{objects: map[string]time.Time{}}
	a, err := NewS3(S3Options{Store: store, Name: "producer", TTL: time.Hour})
	if err != nil {
		t.Fatal(err)
	}
	b, _ := NewS3(S3Options{Store: store, Name: "producer", TTL: time.Hour})
	if a.Key() != "locks/producer.lock" {
		t.Errorf("Key = %s", a.Key())
	}
	if err := a.Acquire(ctx); err != nil {
		t.Fatal(err)
	}
	if err := b.Acquire(ctx); !errors.Is(err, ErrHeld) {
		t.Fatalf("second Acquire = %v, want ErrHeld", err)
	}

	store.objects[a.Key()] = time.Now().Add(-2 * time.Hour)
	if err := b.Acquire(ctx); err != nil {
		t.Fatalf("Acquire over stale object: %v", err)
	}
	if err := b.Release(ctx); err != nil {
		t.Fatal(err)
	}
	if _, ok := store.objects[a.Key()]; ok {
		t.Error("lock object should be deleted on release")
	}
}

func TestNewS3_RequiresStore(t *testing.T) {
	if _, err := NewS3(S3Options{}); err == nil {
		t.Error("expected error without store")
	}
}
