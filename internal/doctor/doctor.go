// Package doctor runs connectivity and environment checks for the configured
// role.
package doctor

import (
	"context"
	"fmt"
	"os"
	"time"

	"S3ArchiveBuilder/internal/config"
	"S3ArchiveBuilder/internal/lock"
	"S3ArchiveBuilder/internal/queue"
	"S3ArchiveBuilder/internal/s3"
)

type CheckResult struct {
	Name   string
	OK     bool
	Detail string
}

// Prober lists at most one key to prove a bucket is reachable.
type Prober interface {
	ListObjects(ctx context.Context, prefix string, maxKeys int32) ([]string, error)
}

// Deps builds the clients under test. Zero fields use the real clients.
type Deps struct {
	NewStore func(ctx context.Context, c *config.S3Config) (Prober, error)
	NewQueue func(ctx context.Context, c *config.QueueConfig) (queue.Queue, error)
}

func (d Deps) withDefaults() Deps {
	if d.NewStore == nil {
		d.NewStore = func(ctx context.Context, c *config.S3Config) (Prober, error) {
			return s3.New(ctx, s3.OptionsFrom(c))
		}
	}
	if d.NewQueue == nil {
		d.NewQueue = queue.New
	}
	return d
}

func Run(ctx context.Context, cfg *config.Config, role string, deps Deps) []CheckResult {
	deps = deps.withDefaults()
	var results []CheckResult

	if cfg == nil {
		return append(results, CheckResult{Name: "config", OK: false, Detail: "configuration not loaded"})
	}
	if err := config.ValidateRole(cfg, role); err != nil {
		results = append(results, CheckResult{Name: "config", OK: false, Detail: err.Error()})
	} else {
		results = append(results, CheckResult{Name: "config", OK: true, Detail: fmt.Sprintf("configuration valid for role %s", role)})
	}

	if cfg.Source != nil {
		ok, detail := checkBucket(ctx, deps, cfg.Source)
		results = append(results, CheckResult{Name: "source", OK: ok, Detail: detail})
	} else {
		results = append(results, CheckResult{Name: "source", OK: false, Detail: "source not configured"})
	}
	if role == config.RoleConsumer || cfg.Target != nil {
		if cfg.Target != nil {
			ok, detail := checkBucket(ctx, deps, &cfg.Target.S3Config)
			results = append(results, CheckResult{Name: "target", OK: ok, Detail: detail})
		} else {
			results = append(results, CheckResult{Name: "target", OK: false, Detail: "target not configured"})
		}
	}

	ok, detail := checkQueue(ctx, deps, cfg.Queue)
	results = append(results, CheckResult{Name: "queue", OK: ok, Detail: detail})

	dir := config.ProducerDir(cfg.BaseDirectory)
	if role == config.RoleConsumer {
		dir = config.ArchivesDir(cfg.BaseDirectory)
	}
	ok, detail = checkDisk(dir)
	results = append(results, CheckResult{Name: "disk", OK: ok, Detail: detail})

	if role == config.RoleProducer && cfg.Producer.Lock == config.LockLocal {
		ok, detail = checkLocalLock(config.ControllerDir(cfg.BaseDirectory))
		results = append(results, CheckResult{Name: "local lock", OK: ok, Detail: detail})
	}
	return results
}

func checkBucket(ctx context.Context, deps Deps, c *config.S3Config) (bool, string) {
	client, err := deps.NewStore(ctx, c)
	if err != nil {
		return false, fmt.Sprintf("s3 client init failed: %v", err)
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := client.ListObjects(ctx, "", 1); err != nil {
		return false, fmt.Sprintf("s3 list failed: %v", err)
	}
	return true, fmt.Sprintf("s3 OK (bucket=%s)", c.Bucket)
}

func checkQueue(ctx context.Context, deps Deps, c *config.QueueConfig) (bool, string) {
	if c == nil {
		return false, "queue not configured"
	}
	q, err := deps.NewQueue(ctx, c)
	if err != nil {
		return false, fmt.Sprintf("queue init failed: %v", err)
	}
	defer q.Close()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	depth, err := q.ApproximateDepth(ctx)
	if err != nil {
		return false, fmt.Sprintf("queue depth failed: %v", err)
	}
	return true, fmt.Sprintf("%s queue OK (approximate depth %d)", c.Backend, depth)
}

func checkLocalLock(dir string) (bool, string) {
	l, err := lock.NewLocal(lock.LocalOptions{Dir: dir, Name: "doctor"})
	if err != nil {
		return false, fmt.Sprintf("local lock init failed: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := l.Acquire(ctx); err != nil {
		return false, fmt.Sprintf("local lock acquire failed: %v", err)
	}
	if err := l.Release(context.Background()); err != nil {
		return false, fmt.Sprintf("local lock release failed: %v", err)
	}
	return true, fmt.Sprintf("local lock dir accessible (%s)", dir)
}

func checkDisk(dir string) (bool, string) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return false, fmt.Sprintf("create %s failed: %v", dir, err)
	}
	f, err := os.CreateTemp(dir, "doctor-*")
	if err != nil {
		return false, fmt.Sprintf("create temp file failed in %s: %v", dir, err)
	}
	defer os.Remove(f.Name())
	if _, err := f.WriteString("test"); err != nil {
		_ = f.Close()
		return false, fmt.Sprintf("write temp file failed: %v", err)
	}
	if err := f.Close(); err != nil {
		return false, fmt.Sprintf("close temp file failed: %v", err)
	}
	return true, fmt.Sprintf("%s writable", dir)
}
