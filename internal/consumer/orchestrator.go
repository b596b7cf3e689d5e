// Package consumer pulls archive contexts off the queue, fetches their objects
// concurrently, packs them into a tar.gz and uploads the result.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"S3ArchiveBuilder/internal/archive"
	"S3ArchiveBuilder/internal/metrics"
	"S3ArchiveBuilder/internal/pool"
	"S3ArchiveBuilder/internal/queue"
	"S3ArchiveBuilder/internal/s3"
)

// Source opens object streams. *s3.Client implements it.
type Source interface {
	GetObject(ctx context.Context, key string) (io.ReadCloser, error)
}

// Target stores finished archives and manifests. *s3.Client implements it.
type Target interface {
	UploadFile(ctx context.Context, key, localPath, storageClass string, partSizeBytes int64) error
	GetObject(ctx context.Context, key string) (io.ReadCloser, error)
	PutObject(ctx context.Context, key string, body io.Reader, contentLength int64) error
}

type Config struct {
	Queue     queue.Queue
	Source    Source
	Target    Target
	Workspace *Workspace
	// FetchPool bounds concurrent GETs across all workers.
	FetchPool *pool.Pool
	Workers   int

	ArchivePrefix string
	Folder        string
	StorageClass  string
	PartSizeBytes int64
	WriteManifest bool

	FetchRetries     int
	FetchBackoff     time.Duration
	OperationTimeout time.Duration
	// ErrorPause is the wait after a failed depth check or receive.
	ErrorPause time.Duration

	Metrics metrics.Metrics
	Logger  *zap.Logger
}

type Orchestrator struct {
	cfg Config
	log *zap.Logger
}

func New(cfg Config) (*Orchestrator, error) {
	if cfg.Queue == nil || cfg.Source == nil || cfg.Target == nil || cfg.Workspace == nil || cfg.FetchPool == nil {
		return nil, errors.New("consumer: queue, source, target, workspace and fetch pool are required")
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.ErrorPause <= 0 {
		cfg.ErrorPause = 5 * time.Second
	}
	if cfg.FetchBackoff <= 0 {
		cfg.FetchBackoff = 500 * time.Millisecond
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Noop{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Orchestrator{cfg: cfg, log: cfg.Logger.Named("consumer")}, nil
}

// Run starts the workers and blocks until every one has stopped. Workers stop
// when the queue reads empty or ctx is canceled; a context already being
// processed is finished first.
func (o *Orchestrator) Run(ctx context.Context) error {
	workers := pool.New("contexts", o.cfg.Workers)
	o.log.Info("consumer_started",
		zap.Int("workers", o.cfg.Workers),
		zap.Int("max_connections", o.cfg.FetchPool.Size()))
	var startErr error
	for i := 0; i < o.cfg.Workers; i++ {
		id := i
		if err := workers.Go(ctx, func(ctx context.Context) { o.worker(ctx, id) }); err != nil {
			startErr = err
			break
		}
	}
	if err := workers.Shutdown(context.Background()); err != nil {
		return err
	}
	if startErr != nil && ctx.Err() == nil {
		return startErr
	}
	o.log.Info("consumer_stopped")
	return nil
}

func (o *Orchestrator) worker(ctx context.Context, id int) {
	log := o.log.With(zap.Int("worker", id))
	for {
		if ctx.Err() != nil {
			log.Info("worker_stopping", zap.Error(ctx.Err()))
			return
		}
		depth, err := o.cfg.Queue.ApproximateDepth(ctx)
		if err != nil {
			log.Warn("queue_depth_failed", zap.Error(err))
			o.pause(ctx)
			continue
		}
		if depth == 0 {
			log.Info("queue_empty")
			return
		}
		msgs, err := o.cfg.Queue.Receive(ctx, 1)
		if err != nil {
			log.Warn("queue_receive_failed", zap.Error(err))
			o.pause(ctx)
			continue
		}
		for _, m := range msgs {
			o.handle(ctx, log, m)
		}
	}
}

func (o *Orchestrator) pause(ctx context.Context) {
	t := time.NewTimer(o.cfg.ErrorPause)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// handle owns one message from receipt to deletion. The message is deleted
// only after the archive is uploaded, or when its body can never be decoded.
func (o *Orchestrator) handle(ctx context.Context, log *zap.Logger, m queue.Message) {
	ctx = context.WithoutCancel(ctx)
	if o.cfg.OperationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.OperationTimeout)
		defer cancel()
	}
	log = log.With(zap.String("message_id", m.ID))

	c, err := archive.Decode(m.Body)
	if err != nil {
		log.Error("message_malformed", zap.Error(err))
		o.cfg.Metrics.IncContextsProcessed("malformed")
		if err := o.cfg.Queue.Delete(ctx, m.DeleteToken); err != nil {
			log.Error("message_delete_failed", zap.Error(err))
		}
		return
	}

	start := time.Now()
	dir, err := o.cfg.Workspace.Create()
	if err != nil {
		log.Error("workspace_create_failed", zap.Error(err))
		o.cfg.Metrics.IncContextsProcessed("failed")
		return
	}
	c = c.Claim(dir, archive.Name(o.cfg.ArchivePrefix, c.Prefix, c.Year), m.DeleteToken)
	log = log.With(zap.String("prefix", c.Prefix), zap.String("year", c.Year), zap.String("archive", c.LocalArchiveName))
	log.Info("context_started",
		zap.Int("objects", len(c.Objects)),
		zap.String("size", humanize.IBytes(uint64(c.TotalSize()))))

	key, size, err := o.process(ctx, log, c)
	if rmErr := o.cfg.Workspace.Remove(dir); rmErr != nil {
		log.Warn("workspace_remove_failed", zap.String("dir", dir), zap.Error(rmErr))
	}
	if err != nil {
		log.Error("context_failed", zap.Error(err))
		o.cfg.Metrics.IncContextsProcessed("failed")
		return
	}

	if err := o.cfg.Queue.Delete(ctx, c.DeleteToken); err != nil {
		log.Error("message_delete_failed", zap.Error(err))
		o.cfg.Metrics.IncContextsProcessed("failed")
		return
	}
	elapsed := time.Since(start)
	o.cfg.Metrics.IncContextsProcessed("ok")
	o.cfg.Metrics.ObserveContextDuration(elapsed.Seconds())
	o.cfg.Metrics.AddBytesArchived(size)
	log.Info("context_done",
		zap.String("key", key),
		zap.String("archive_size", humanize.IBytes(uint64(size))),
		zap.Duration("elapsed", elapsed))
}

type fetched struct {
	obj  archive.ObjectDescriptor
	body io.ReadCloser
	err  error
}

// process fetches every object, appends each stream as soon as it is ready,
// then finalizes and uploads the archive. It returns the uploaded key and the
// archive size.
func (o *Orchestrator) process(ctx context.Context, log *zap.Logger, c archive.Context) (string, int64, error) {
	b, err := archive.Open(c.LocalDirectory, c.LocalArchiveName)
	if err != nil {
		return "", 0, err
	}

	fetchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	results := make(chan fetched, len(c.Objects))
	go o.submit(fetchCtx, c.Objects, results)

	entries := make([]archive.ManifestEntry, 0, len(c.Objects))
	var firstErr error
	for range c.Objects {
		r := <-results
		if firstErr != nil {
			if r.body != nil {
				_ = r.body.Close()
			}
			continue
		}
		if r.err != nil {
			firstErr = r.err
			cancel()
			continue
		}
		if err := b.AppendEntry(r.body, r.obj.LocalFileName, r.obj.Size); err != nil {
			firstErr = fmt.Errorf("append %s: %w", r.obj.Key, err)
			cancel()
			continue
		}
		entries = append(entries, archive.ManifestEntry{Name: r.obj.LocalFileName, Key: r.obj.Key, Size: r.obj.Size})
	}
	if firstErr != nil {
		_ = b.Abort()
		return "", 0, firstErr
	}
	if err := b.Finalize(); err != nil {
		_ = b.Abort()
		return "", 0, err
	}
	log.Debug("archive_finalized", zap.Int("entries", b.Entries()), zap.Int64("bytes", b.Size()))

	key := s3.ArchiveKey(o.cfg.Folder, c.LocalArchiveName)
	if err := o.cfg.Target.UploadFile(ctx, key, b.Path(), o.cfg.StorageClass, o.cfg.PartSizeBytes); err != nil {
		return "", 0, fmt.Errorf("upload %s: %w", key, err)
	}
	if o.cfg.WriteManifest {
		m := archive.Manifest{
			Key:       key,
			Prefix:    c.Prefix,
			Year:      c.Year,
			Size:      b.Size(),
			Digest:    "blake3:" + b.Digest(),
			CreatedAt: time.Now().UTC(),
			Entries:   entries,
		}
		if err := archive.WriteManifest(ctx, o.cfg.Target, s3.ManifestKey(key), m); err != nil {
			return "", 0, fmt.Errorf("manifest %s: %w", key, err)
		}
	}
	return key, b.Size(), nil
}

// submit queues one fetch task per object. Each object yields exactly one
// value on results, whether or not its task could be started.
func (o *Orchestrator) submit(ctx context.Context, objects []archive.ObjectDescriptor, results chan<- fetched) {
	for _, obj := range objects {
		obj := obj
		err := o.cfg.FetchPool.Go(ctx, func(ctx context.Context) {
			body, err := o.fetch(ctx, obj)
			if err != nil {
				results <- fetched{obj: obj, err: err}
				return
			}
			// Hold the pool slot, and so the connection, until the stream
			// has been copied into the archive.
			done := make(chan struct{})
			results <- fetched{obj: obj, body: &releasingBody{ReadCloser: body, done: done}}
			select {
			case <-done:
			case <-ctx.Done():
			}
		})
		if err != nil {
			results <- fetched{obj: obj, err: fmt.Errorf("fetch %s: %w", obj.Key, err)}
		}
	}
}

func (o *Orchestrator) fetch(ctx context.Context, obj archive.ObjectDescriptor) (io.ReadCloser, error) {
	backoff := o.cfg.FetchBackoff
	for attempt := 0; ; attempt++ {
		body, err := o.cfg.Source.GetObject(ctx, obj.Key)
		if err == nil {
			return body, nil
		}
		if attempt >= o.cfg.FetchRetries || !IsRetryable(err) || ctx.Err() != nil {
			return nil, fmt.Errorf("fetch %s: %w", obj.Key, err)
		}
		o.cfg.Metrics.IncFetchRetries()
		o.log.Warn("fetch_retry",
			zap.String("key", obj.Key),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff),
			zap.Error(err))
		t := time.NewTimer(backoff)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return nil, fmt.Errorf("fetch %s: %w", obj.Key, ctx.Err())
		}
		backoff *= 2
	}
}

type releasingBody struct {
	io.ReadCloser
	done chan struct{}
	once sync.Once
}

func (b *releasingBody) Close() error {
	err := b.ReadCloser.Close()
	b.once.Do(func() { close(b.done) })
	return err
}
