// Package worker implements the Worker Loop of §4.5: pull a task, fetch,
// extract, persist, enqueue discovered links, and report a result.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/crawlmesh/crawlmesh/internal/broker"
	"github.com/crawlmesh/crawlmesh/internal/enrich"
	"github.com/crawlmesh/crawlmesh/internal/extractor"
	"github.com/crawlmesh/crawlmesh/internal/fetcher"
	"github.com/crawlmesh/crawlmesh/internal/observability"
	"github.com/crawlmesh/crawlmesh/internal/storage"
	"github.com/crawlmesh/crawlmesh/internal/types"
	"github.com/crawlmesh/crawlmesh/internal/urlcatalog"
)

// Counters are the Worker Loop's local rolling stats.
type Counters struct {
	Processed atomic.Int64
	Success   atomic.Int64
	Failed    atomic.Int64
}

// Worker runs the unbounded loop of §4.5 against a shared Broker.
type Worker struct {
	ID       string
	broker   broker.Broker
	catalog  *urlcatalog.Catalog
	pipeline fetcher.Pipeline
	extractor *extractor.Extractor
	store    storage.Storage
	enricher *enrich.Chain
	logger   *slog.Logger
	counters Counters
	startedAt time.Time
	userAgent string
	metrics  *observability.Metrics
}

// SetMetrics attaches a Metrics instance so every step records task
// outcome and latency. Nil-safe.
func (w *Worker) SetMetrics(m *observability.Metrics) {
	w.metrics = m
}

// New builds a Worker with id workerID.
func New(workerID string, b broker.Broker, catalog *urlcatalog.Catalog, pipeline fetcher.Pipeline,
	ext *extractor.Extractor, store storage.Storage, enricher *enrich.Chain, logger *slog.Logger) *Worker {
	return &Worker{
		ID:        workerID,
		broker:    b,
		catalog:   catalog,
		pipeline:  pipeline,
		extractor: ext,
		store:     store,
		enricher:  enricher,
		logger:    logger.With("component", "worker", "worker_id", workerID),
		startedAt: time.Now(),
		userAgent: "crawlmeshbot",
	}
}

// Run executes the unbounded loop until ctx is cancelled. On
// cancellation it finishes any in-flight task before returning
// (graceful shutdown per §5).
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker stopping", "processed", w.counters.Processed.Load())
			return
		default:
		}

		w.step(ctx)
	}
}

// step implements one iteration of the 9-step loop.
func (w *Worker) step(ctx context.Context) {
	// 1. Pull a task, sleeping on an empty queue.
	task, err := w.broker.PopTask(ctx)
	if err != nil {
		w.logger.Warn("pop task failed", "error", err)
		time.Sleep(time.Second)
		return
	}
	if task == nil {
		time.Sleep(time.Second)
		return
	}

	// 2. Drop duplicate deliveries.
	visited, err := w.catalog.IsVisited(task.URL)
	if err == nil && visited {
		return
	}

	w.counters.Processed.Add(1)
	taskStart := time.Now()
	status := "failure"
	defer func() {
		if w.metrics == nil {
			return
		}
		w.metrics.TasksTotal.WithLabelValues(status, w.ID).Inc()
		w.metrics.TaskDuration.WithLabelValues(w.ID).Observe(time.Since(taskStart).Seconds())
	}()

	// 3. Fetch.
	resp, err := w.pipeline.Fetch(ctx, task.URL, task.Headers)
	if err != nil {
		w.reportFailure(ctx, task, err)
		return
	}

	// 4. Non-200 is a typed failure, not a success.
	if resp.StatusCode != 200 {
		w.reportFailure(ctx, task, &types.HTTPError{URL: task.URL, StatusCode: resp.StatusCode})
		return
	}

	// 5. Extract.
	parsed, err := w.extractor.Extract(resp.Body, resp.Encoding, resp.FinalURL)
	if err != nil {
		w.reportFailure(ctx, task, err)
		return
	}

	// 6. Compose and persist the Page.
	domain := urlcatalog.Host(task.URL)
	page := types.NewPage(task.URL, domain, resp.StatusCode, resp.Body, resp.Headers["Content-Type"],
		resp.Encoding, resp.Headers, time.Now(), parsed, w.ID, resp.Duration)
	w.enricher.Apply(page)

	if err := w.store.Save(ctx, page, ""); err != nil {
		w.reportFailure(ctx, task, &types.StorageError{Backend: w.store.Name(), Err: err})
		return
	}
	w.catalog.UpdateDomainStats(domain, true, resp.Duration, len(resp.Body))

	// 7. Mark visited.
	if err := w.catalog.MarkVisited(task.URL); err != nil {
		w.logger.Warn("mark visited failed", "url", task.URL, "error", err)
	}

	// 8. Enqueue discovered links not already seen, honoring robots.txt.
	for _, link := range append(append([]string{}, parsed.LinksInternal...), parsed.LinksExternal...) {
		seen, err := w.catalog.IsVisited(link)
		if err == nil && seen {
			continue
		}
		if !w.catalog.IsAllowed(ctx, link, w.userAgent) {
			continue
		}
		newTask := types.NewTask(link, types.PriorityNormal, task.URL)
		if err := w.broker.PushTask(ctx, newTask); err != nil {
			w.logger.Warn("enqueue discovered link failed", "url", link, "error", err)
		}
	}

	// 9. Push success result.
	status = "success"
	w.counters.Success.Add(1)
	if err := w.broker.PushResult(ctx, types.NewSuccessResult(task.ID, task.URL, w.ID)); err != nil {
		w.logger.Warn("push result failed", "error", err)
	}

	if n := w.counters.Processed.Load(); n%10 == 0 {
		w.logger.Info("rolling stats",
			"processed", n,
			"success", w.counters.Success.Load(),
			"failed", w.counters.Failed.Load(),
			"uptime", time.Since(w.startedAt),
		)
	}
}

func (w *Worker) reportFailure(ctx context.Context, task *types.Task, err error) {
	w.counters.Failed.Add(1)

	domain := urlcatalog.Host(task.URL)
	w.catalog.UpdateDomainStats(domain, false, 0, 0)

	var tagged types.Tagged
	tag := string(types.TagHTTPError)
	if errors.As(err, &tagged) {
		tag = string(tagged.Tag())
	}

	if pushErr := w.broker.PushResult(ctx, types.NewFailureResult(task.ID, task.URL, w.ID, tag)); pushErr != nil {
		w.logger.Warn("push failure result failed", "error", pushErr)
	}
}

// Snapshot exposes a read-only snapshot of the worker's local counters.
func (w *Worker) Snapshot() (processed, success, failed int64) {
	return w.counters.Processed.Load(), w.counters.Success.Load(), w.counters.Failed.Load()
}
