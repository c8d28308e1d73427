// Package observability exposes Prometheus metric families for the
// fetch/worker/broker pipeline, served on a private registry.
package observability

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the crawl's Prometheus metric families.
type Metrics struct {
	RequestsTotal      *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec
	RequestsInProgress *prometheus.GaugeVec
	TasksTotal         *prometheus.CounterVec
	TaskDuration       *prometheus.HistogramVec
	QueueSize          prometheus.Gauge
	WorkersTotal       prometheus.Gauge
	MemoryUsageBytes   prometheus.Gauge

	registry *prometheus.Registry
	logger   *slog.Logger
}

// New builds a Metrics instance on a fresh, private registry.
func New(logger *slog.Logger) *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		logger:   logger.With("component", "metrics"),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "requests_total",
			Help: "Total HTTP requests attempted by the fetch pipeline.",
		}, []string{"method", "status", "domain"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "requests_duration_seconds",
			Help:    "Fetch request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"domain"}),
		RequestsInProgress: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "requests_in_progress",
			Help: "Fetch requests currently in flight.",
		}, []string{"domain"}),
		TasksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tasks_total",
			Help: "Total worker tasks processed, by outcome.",
		}, []string{"status", "worker"}),
		TaskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tasks_duration_seconds",
			Help:    "Worker task processing latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"worker"}),
		QueueSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "queue_size",
			Help: "Current task queue depth.",
		}),
		WorkersTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "workers_total",
			Help: "Number of active worker loops.",
		}),
		MemoryUsageBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "memory_usage_bytes",
			Help: "Resident memory usage of the process.",
		}),
	}

	reg.MustRegister(
		m.RequestsTotal, m.RequestDuration, m.RequestsInProgress,
		m.TasksTotal, m.TaskDuration, m.QueueSize, m.WorkersTotal, m.MemoryUsageBytes,
	)
	return m
}

// Handler returns the HTTP handler serving this registry's exposition.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve starts an HTTP server exposing /metrics and /health on addr. It
// runs until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr, path string) error {
	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	m.logger.Info("metrics server starting", "addr", addr, "path", path)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
