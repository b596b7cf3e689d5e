// Package producer lists the source bucket and groups objects into archive
// contexts by parent path and year.
package producer

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"S3ArchiveBuilder/internal/archive"
	"S3ArchiveBuilder/internal/checkpoint"
	"S3ArchiveBuilder/internal/metrics"
	"S3ArchiveBuilder/internal/s3"
)

// Lister pages through a bucket listing. *s3.Client implements it.
type Lister interface {
	ListPage(ctx context.Context, prefix, startAfter, token string) (s3.Page, error)
}

// Checkpointer records how far the listing has been published.
type Checkpointer interface {
	Set(m checkpoint.Marker) error
}

type Config struct {
	Lister    Lister
	Publisher Publisher
	// Listing gets one line per key that passed the key filter.
	Listing    LineWriter
	Checkpoint Checkpointer
	Metrics    metrics.Metrics
	Logger     *zap.Logger
	Mode       string
}

// Summary counts what one Produce call did.
type Summary struct {
	Pages     int
	Listed    int
	Matched   int
	Contexts  int
	Published int
	LastKey   string
}

// Engine holds the working set between flushes. It is not safe for concurrent
// use; run one Produce at a time.
type Engine struct {
	cfg Config
	log *zap.Logger

	listingPrefix string
	set           []archive.ObjectDescriptor
	parent        string
	lastKey       string
	summary       Summary
}

func New(cfg Config) *Engine {
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Noop{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Engine{cfg: cfg, log: cfg.Logger.Named("producer")}
}

// Produce lists every key under prefixFilter after startAfter, keeps those
// containing keyFilter, and publishes their contexts. A key whose file name
// has no parseable date ends the pass with ErrMalformedTimestamp; contexts
// flushed before it stay published.
func (e *Engine) Produce(ctx context.Context, prefixFilter, startAfter, keyFilter string) (Summary, error) {
	e.listingPrefix = prefixFilter
	e.set = nil
	e.parent = ""
	e.lastKey = ""
	e.summary = Summary{}

	e.log.Info("listing_started",
		zap.String("prefix", prefixFilter),
		zap.String("start_after", startAfter),
		zap.String("key_filter", keyFilter),
		zap.String("mode", e.cfg.Mode))

	token := ""
	for {
		if err := ctx.Err(); err != nil {
			return e.summary, err
		}
		page, err := e.cfg.Lister.ListPage(ctx, prefixFilter, startAfter, token)
		if err != nil {
			return e.summary, err
		}
		e.summary.Pages++
		e.summary.Listed += len(page.Objects)
		e.log.Debug("listing_page", zap.Int("page", e.summary.Pages), zap.Int("keys", len(page.Objects)))

		for _, obj := range page.Objects {
			if !strings.Contains(obj.Key, keyFilter) {
				continue
			}
			if err := e.add(ctx, obj); err != nil {
				return e.summary, err
			}
		}
		if !page.Truncated || page.NextToken == "" {
			break
		}
		token = page.NextToken
	}

	if len(e.set) > 0 {
		if err := e.flush(ctx); err != nil {
			return e.summary, err
		}
	}
	e.summary.LastKey = e.lastKey
	if err := e.record(true); err != nil {
		return e.summary, err
	}
	e.log.Info("listing_finished",
		zap.Int("pages", e.summary.Pages),
		zap.Int("listed", e.summary.Listed),
		zap.Int("matched", e.summary.Matched),
		zap.Int("contexts", e.summary.Contexts))
	return e.summary, nil
}

func (e *Engine) add(ctx context.Context, obj s3.ObjectInfo) error {
	parent, name := SplitKey(obj.Key)
	date, err := ParseTimestamp(name)
	if err != nil {
		e.log.Error("timestamp_parse_failed", zap.String("key", obj.Key), zap.Error(err))
		return fmt.Errorf("key %s: %w", obj.Key, err)
	}
	if len(e.set) > 0 && parent != e.parent {
		if err := e.flush(ctx); err != nil {
			return err
		}
		if err := e.record(false); err != nil {
			return err
		}
	}
	e.set = append(e.set, archive.ObjectDescriptor{
		Key:           obj.Key,
		Size:          obj.Size,
		LocalFileName: name,
		Date:          date,
	})
	e.parent = parent
	e.lastKey = obj.Key
	e.summary.Matched++
	e.cfg.Metrics.IncObjectsListed()
	if e.cfg.Listing != nil {
		e.cfg.Listing.Line(obj.Key)
	}
	return nil
}

// flush publishes the working set as one context per year, oldest first, and
// clears it.
func (e *Engine) flush(ctx context.Context) error {
	set := e.set
	e.set = nil
	sort.Slice(set, func(i, j int) bool { return archive.Less(set[i], set[j]) })

	cur := archive.Context{Prefix: e.parent, Year: yearOf(set[0])}
	for _, obj := range set {
		if y := yearOf(obj); y != cur.Year {
			if err := e.publish(ctx, cur); err != nil {
				return err
			}
			cur = archive.Context{Prefix: e.parent, Year: y}
		}
		cur.Objects = append(cur.Objects, obj)
	}
	return e.publish(ctx, cur)
}

func (e *Engine) publish(ctx context.Context, c archive.Context) error {
	if len(c.Objects) == 0 {
		return nil
	}
	if err := e.cfg.Publisher.Publish(ctx, c); err != nil {
		return err
	}
	e.summary.Contexts++
	e.summary.Published += len(c.Objects)
	e.cfg.Metrics.IncContextsPublished(e.cfg.Mode)
	e.log.Info("context_published",
		zap.String("prefix", c.Prefix),
		zap.String("year", c.Year),
		zap.Int("objects", len(c.Objects)),
		zap.String("size", humanize.IBytes(uint64(c.TotalSize()))))
	return nil
}

// record stores the key of the last object published so a later run can start
// after it.
func (e *Engine) record(complete bool) error {
	if e.cfg.Checkpoint == nil || e.lastKey == "" {
		return nil
	}
	m := checkpoint.Marker{
		Prefix:   e.listingPrefix,
		LastKey:  e.lastKey,
		Contexts: e.summary.Contexts,
		Complete: complete,
	}
	if err := e.cfg.Checkpoint.Set(m); err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	return nil
}

func yearOf(o archive.ObjectDescriptor) string {
	return fmt.Sprintf("%04d", o.Date.Year())
}
