package observability

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/polite"
)

// PrometheusCounters is a polite.Counters implementation that exposes the
// scheduler's named gauges over a Prometheus text-exposition HTTP endpoint,
// following the donor Metrics type's ServeHTTP/StartServer shape.
type PrometheusCounters struct {
	domainsFetching atomic.Int64
	urlsRejected    atomic.Int64
	urlsAborted     atomic.Int64
	unknown         atomic.Int64

	logger *slog.Logger
}

// NewPrometheusCounters creates a ready-to-use PrometheusCounters.
func NewPrometheusCounters(logger *slog.Logger) *PrometheusCounters {
	return &PrometheusCounters{logger: logger.With("component", "metrics")}
}

func (c *PrometheusCounters) Increment(name string, delta int64) {
	c.gauge(name).Add(delta)
}

func (c *PrometheusCounters) Decrement(name string, delta int64) {
	c.gauge(name).Add(-delta)
}

func (c *PrometheusCounters) gauge(name string) *atomic.Int64 {
	switch name {
	case polite.CounterDomainsFetching:
		return &c.domainsFetching
	case polite.CounterURLsRejected:
		return &c.urlsRejected
	case polite.CounterURLsAborted:
		return &c.urlsAborted
	default:
		return &c.unknown
	}
}

// ServeHTTP serves the scheduler's gauges in Prometheus text exposition
// format.
func (c *PrometheusCounters) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	metrics := []struct {
		name  string
		help  string
		value int64
	}{
		{"politecrawl_domains_fetching", "Domains currently dispatching a batch", c.domainsFetching.Load()},
		{"politecrawl_urls_rejected_total", "Total URLs rejected by a domain queue", c.urlsRejected.Load()},
		{"politecrawl_urls_aborted_total", "Total URLs emitted as ABORTED on deadline drain", c.urlsAborted.Load()},
	}

	for _, metric := range metrics {
		fmt.Fprintf(w, "# HELP %s %s\n", metric.name, metric.help)
		fmt.Fprintf(w, "# TYPE %s gauge\n", metric.name)
		fmt.Fprintf(w, "%s %d\n", metric.name, metric.value)
	}
}

// StartServer starts the metrics HTTP server on the given port/path.
func (c *PrometheusCounters) StartServer(port int, path string) error {
	mux := http.NewServeMux()
	mux.Handle(path, c)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	addr := fmt.Sprintf(":%d", port)
	c.logger.Info("metrics server starting", "addr", addr, "path", path)

	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			c.logger.Error("metrics server error", "error", err)
		}
	}()

	return nil
}

// Snapshot returns the current named gauge values.
func (c *PrometheusCounters) Snapshot() map[string]int64 {
	return map[string]int64{
		polite.CounterDomainsFetching: c.domainsFetching.Load(),
		polite.CounterURLsRejected:    c.urlsRejected.Load(),
		polite.CounterURLsAborted:     c.urlsAborted.Load(),
	}
}
