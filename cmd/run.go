package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"S3ArchiveBuilder/internal/checkpoint"
	"S3ArchiveBuilder/internal/config"
	"S3ArchiveBuilder/internal/consumer"
	"S3ArchiveBuilder/internal/lock"
	"S3ArchiveBuilder/internal/logger"
	"S3ArchiveBuilder/internal/metrics"
	"S3ArchiveBuilder/internal/pool"
	"S3ArchiveBuilder/internal/producer"
	"S3ArchiveBuilder/internal/queue"
)

var (
	runRole           string
	runPrefix         string
	runStartAfter     string
	runFilter         string
	runMode           string
	runResume         bool
	runWorkers        int
	runMaxConnections int
)

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&runRole, "role", "", "producer or consumer (overrides role in config)")
	runCmd.Flags().StringVar(&runPrefix, "prefix", "", "Producer: listing prefix (overrides producer.listing_prefix)")
	runCmd.Flags().StringVar(&runStartAfter, "start-after", "", "Producer: list keys after this marker (overrides producer.start_after)")
	runCmd.Flags().StringVar(&runFilter, "filter", "", "Producer: only keys containing this substring (overrides producer.key_filter)")
	runCmd.Flags().StringVar(&runMode, "mode", "", "Producer: run or dry-run (overrides producer.mode)")
	runCmd.Flags().BoolVar(&runResume, "resume", false, "Producer: start after the last checkpointed key for the prefix")
	runCmd.Flags().IntVar(&runWorkers, "workers", 0, "Consumer: context workers (overrides consumer.workers)")
	runCmd.Flags().IntVar(&runMaxConnections, "max-connections", 0, "Consumer: concurrent object fetches (overrides consumer.max_connections)")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the producer or a consumer",
	Long: "Run as producer to list the source bucket and queue archive contexts, or as consumer to " +
		"build and upload archives until the queue is empty. SIGINT/SIGTERM stops pulling new work; " +
		"contexts already in progress are finished.",
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(false)
	if err != nil {
		return err
	}
	role := resolveRole(runRole, cfg)
	if err := config.ValidateRole(cfg, role); err != nil {
		return err
	}
	applyRunFlags(cfg)
	if err := config.Validate(cfg); err != nil {
		return err
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	log = log.With(zap.String("role", role))

	if err := config.EnsureDirs(cfg.BaseDirectory, role); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var m metrics.Metrics = metrics.Noop{}
	g, gctx := errgroup.WithContext(ctx)
	serveCtx, stopServe := context.WithCancel(gctx)
	defer stopServe()
	if cfg.Metrics.Listen != "" {
		reg := metrics.NewRegistry()
		m = metrics.NewProm("s3archivebuilder", reg)
		g.Go(func() error {
			log.Info("metrics_listening", zap.String("addr", cfg.Metrics.Listen))
			return metrics.Serve(serveCtx, cfg.Metrics.Listen, reg)
		})
	}

	g.Go(func() error {
		defer stopServe()
		if role == config.RoleProducer {
			return runProducer(gctx, cmd, cfg, log, m)
		}
		return runConsumer(gctx, cfg, log, m)
	})
	return g.Wait()
}

func applyRunFlags(cfg *config.Config) {
	if runPrefix != "" {
		cfg.Producer.ListingPrefix = runPrefix
	}
	if runStartAfter != "" {
		cfg.Producer.StartAfter = runStartAfter
	}
	if runFilter != "" {
		cfg.Producer.KeyFilter = runFilter
	}
	if runMode != "" {
		cfg.Producer.Mode = runMode
	}
	if runWorkers > 0 {
		cfg.Consumer.Workers = runWorkers
	}
	if runMaxConnections > 0 {
		cfg.Consumer.MaxConnections = runMaxConnections
	}
}

func runProducer(ctx context.Context, cmd *cobra.Command, cfg *config.Config, log *zap.Logger, m metrics.Metrics) error {
	pc := cfg.Producer
	source, err := newSourceClient(ctx, cfg)
	if err != nil {
		return err
	}

	locker, err := producerLock(ctx, cfg)
	if err != nil {
		return err
	}
	if err := locker.Acquire(ctx); err != nil {
		return fmt.Errorf("producer lock: %w", err)
	}
	defer func() {
		if err := locker.Release(context.WithoutCancel(ctx)); err != nil {
			log.Warn("lock_release_failed", zap.Error(err))
		}
	}()

	listing, err := logger.NewDiagnostics(config.ProducerDir(cfg.BaseDirectory), "listing-results")
	if err != nil {
		return err
	}
	defer listing.Close()

	ecfg := producer.Config{
		Lister:  source,
		Listing: listing,
		Metrics: m,
		Logger:  log,
		Mode:    pc.Mode,
	}

	if pc.Mode == config.ModeRun {
		q, err := queue.New(ctx, cfg.Queue)
		if err != nil {
			return err
		}
		defer q.Close()
		ecfg.Publisher = producer.QueuePublisher{Queue: q}
	} else {
		contexts, err := logger.NewDiagnostics(config.ProducerDir(cfg.BaseDirectory), "contexts-results")
		if err != nil {
			return err
		}
		defer contexts.Close()
		ecfg.Publisher = producer.LogPublisher{Out: contexts}
		log.Info("dry_run", zap.String("contexts_log", contexts.Path()))
	}

	startAfter := pc.StartAfter
	if pc.Mode == config.ModeRun && (pc.Checkpoint || runResume) {
		store, err := checkpoint.Open(config.CheckpointDir(cfg.BaseDirectory))
		if err != nil {
			return err
		}
		defer store.Close()
		ecfg.Checkpoint = store
		if runResume {
			marker, ok, err := store.Get(pc.ListingPrefix)
			if err != nil {
				return err
			}
			if ok {
				startAfter = marker.LastKey
				log.Info("resuming", zap.String("start_after", startAfter), zap.Time("checkpointed_at", marker.UpdatedAt))
			}
		}
	}

	start := time.Now()
	summary, err := producer.New(ecfg).Produce(ctx, pc.ListingPrefix, startAfter, pc.KeyFilter)
	if err != nil {
		return err
	}
	cmd.Printf("Listed %s keys (%s matched) in %d pages; published %d contexts in %s\n",
		humanize.Comma(int64(summary.Listed)), humanize.Comma(int64(summary.Matched)),
		summary.Pages, summary.Contexts, time.Since(start).Round(time.Second))
	cmd.Printf("Listing log: %s\n", listing.Path())
	return nil
}

func producerLock(ctx context.Context, cfg *config.Config) (lock.Locker, error) {
	name := "producer-" + cfg.Source.Bucket
	switch cfg.Producer.Lock {
	case config.LockNone:
		return lock.Noop{}, nil
	case config.LockS3:
		target, err := newTargetClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return lock.NewS3(lock.S3Options{Store: target, Name: name, TTL: cfg.Producer.LockTTL})
	default:
		return lock.NewLocal(lock.LocalOptions{Dir: config.ControllerDir(cfg.BaseDirectory), Name: name, TTL: cfg.Producer.LockTTL})
	}
}

func runConsumer(ctx context.Context, cfg *config.Config, log *zap.Logger, m metrics.Metrics) error {
	cc := cfg.Consumer
	source, err := newSourceClient(ctx, cfg)
	if err != nil {
		return err
	}
	target, err := newTargetClient(ctx, cfg)
	if err != nil {
		return err
	}
	q, err := queue.New(ctx, cfg.Queue)
	if err != nil {
		return err
	}
	defer q.Close()
	ws, err := consumer.NewWorkspace(config.ArchivesDir(cfg.BaseDirectory))
	if err != nil {
		return err
	}

	var opts []pool.Option
	if cc.FetchRateLimit > 0 {
		burst := int(cc.FetchRateLimit)
		if burst < 1 {
			burst = 1
		}
		opts = append(opts, pool.WithRateLimit(rate.NewLimiter(rate.Limit(cc.FetchRateLimit), burst)))
	}
	fetchPool := pool.New("fetch", cc.MaxConnections, opts...)

	orch, err := consumer.New(consumer.Config{
		Queue:            q,
		Source:           source,
		Target:           target,
		Workspace:        ws,
		FetchPool:        fetchPool,
		Workers:          cc.Workers,
		ArchivePrefix:    cc.ArchiveFilePrefix,
		Folder:           cfg.Target.Folder,
		StorageClass:     cfg.Target.StorageClass,
		PartSizeBytes:    int64(cfg.Target.PartSizeMB) * 1024 * 1024,
		WriteManifest:    cc.WriteManifest,
		FetchRetries:     cc.FetchRetries,
		FetchBackoff:     cc.FetchBackoff,
		OperationTimeout: cc.OperationTimeout,
		Metrics:          m,
		Logger:           log,
	})
	if err != nil {
		return err
	}
	if err := orch.Run(ctx); err != nil {
		return err
	}
	return fetchPool.Shutdown(context.Background())
}
