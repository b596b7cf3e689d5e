package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics records producer and consumer activity.
type Metrics interface {
	IncObjectsListed()
	IncContextsPublished(mode string)
	IncContextsProcessed(status string)
	ObserveContextDuration(seconds float64)
	AddBytesArchived(n int64)
	IncFetchRetries()
}

// Noop implements Metrics without emitting anything.
type Noop struct{}

func (Noop) IncObjectsListed()              {}
func (Noop) IncContextsPublished(string)    {}
func (Noop) IncContextsProcessed(string)    {}
func (Noop) ObserveContextDuration(float64) {}
func (Noop) AddBytesArchived(int64)         {}
func (Noop) IncFetchRetries()               {}

// Prom implements Metrics backed by Prometheus collectors.
type Prom struct {
	objectsListed     prometheus.Counter
	contextsPublished *prometheus.CounterVec
	contextsProcessed *prometheus.CounterVec
	contextDuration   prometheus.Histogram
	bytesArchived     prometheus.Counter
	fetchRetries      prometheus.Counter
}

// NewProm registers its collectors with reg.
func NewProm(namespace string, reg prometheus.Registerer) *Prom {
	p := &Prom{
		objectsListed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "objects_listed_total",
			Help:      "Listed keys that matched the key filter",
		}),
		contextsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "contexts_published_total",
			Help:      "Archive contexts published by mode",
		}, []string{"mode"}),
		contextsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "contexts_processed_total",
			Help:      "Archive contexts handled by consumers by status",
		}, []string{"status"}),
		contextDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "context_duration_seconds",
			Help:      "Time to fetch, archive and upload one context",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 14),
		}),
		bytesArchived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archived_bytes_total",
			Help:      "Compressed archive bytes uploaded",
		}),
		fetchRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_retries_total",
			Help:      "Object fetches retried after a transient error",
		}),
	}
	reg.MustRegister(p.objectsListed, p.contextsPublished, p.contextsProcessed, p.contextDuration, p.bytesArchived, p.fetchRetries)
	return p
}

func (p *Prom) IncObjectsListed() { p.objectsListed.Inc() }

func (p *Prom) IncContextsPublished(mode string) { p.contextsPublished.WithLabelValues(mode).Inc() }

func (p *Prom) IncContextsProcessed(status string) { p.contextsProcessed.WithLabelValues(status).Inc() }

func (p *Prom) ObserveContextDuration(seconds float64) { p.contextDuration.Observe(seconds) }

func (p *Prom) AddBytesArchived(n int64) { p.bytesArchived.Add(float64(n)) }

func (p *Prom) IncFetchRetries() { p.fetchRetries.Inc() }

// NewRegistry returns a registry carrying the Go and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string, g prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(g))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
