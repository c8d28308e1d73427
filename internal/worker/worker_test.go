package worker

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/crawlmesh/crawlmesh/internal/bloom"
	"github.com/crawlmesh/crawlmesh/internal/broker"
	"github.com/crawlmesh/crawlmesh/internal/enrich"
	"github.com/crawlmesh/crawlmesh/internal/extractor"
	"github.com/crawlmesh/crawlmesh/internal/fetcher"
	"github.com/crawlmesh/crawlmesh/internal/observability"
	"github.com/crawlmesh/crawlmesh/internal/storage"
	"github.com/crawlmesh/crawlmesh/internal/types"
	"github.com/crawlmesh/crawlmesh/internal/urlcatalog"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestWorker(t *testing.T, b broker.Broker, handler http.HandlerFunc) (*Worker, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	catalog := urlcatalog.New(bloom.NewExactSet(), nil)

	cfg := fetcher.DefaultConfig()
	cfg.RetryTimes = 1
	pipeline, err := fetcher.NewHTTPPipeline(cfg, testLogger())
	if err != nil {
		t.Fatalf("NewHTTPPipeline: %v", err)
	}
	t.Cleanup(func() { _ = pipeline.Close() })

	ext := extractor.New(testLogger(), nil)

	store := storage.NewFileStorage(t.TempDir(), testLogger())
	if err := store.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { _ = store.Disconnect(context.Background()) })

	enricher := enrich.New(testLogger())

	w := New("worker-1", b, catalog, pipeline, ext, store, enricher, testLogger())
	return w, srv
}

func TestWorkerStepSuccessSavesPageAndPushesResult(t *testing.T) {
	b := broker.NewMemoryBroker()
	t.Cleanup(func() { _ = b.Close() })

	w, srv := newTestWorker(t, b, func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte(`<html><body><a href="/next">next</a></body></html>`))
	})

	ctx := context.Background()
	task := types.NewTask(srv.URL+"/", types.PriorityNormal, "")
	if err := b.PushTask(ctx, task); err != nil {
		t.Fatalf("PushTask: %v", err)
	}

	w.step(ctx)

	processed, success, failed := w.Snapshot()
	if processed != 1 || success != 1 || failed != 0 {
		t.Fatalf("Snapshot() = (%d,%d,%d), want (1,1,0)", processed, success, failed)
	}

	result, err := b.PopResult(ctx)
	if err != nil {
		t.Fatalf("PopResult: %v", err)
	}
	if result == nil || !result.Success {
		t.Fatalf("expected a success result, got %+v", result)
	}

	visited, err := w.catalog.IsVisited(task.URL)
	if err != nil || !visited {
		t.Errorf("expected url to be marked visited, visited=%v err=%v", visited, err)
	}

	discovered, err := b.PopTask(ctx)
	if err != nil {
		t.Fatalf("PopTask: %v", err)
	}
	if discovered == nil {
		t.Error("expected the discovered /next link to be enqueued")
	}
}

func TestWorkerStepHTTPErrorReportsFailure(t *testing.T) {
	b := broker.NewMemoryBroker()
	t.Cleanup(func() { _ = b.Close() })

	w, srv := newTestWorker(t, b, func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusNotFound)
	})

	ctx := context.Background()
	task := types.NewTask(srv.URL+"/", types.PriorityNormal, "")
	if err := b.PushTask(ctx, task); err != nil {
		t.Fatalf("PushTask: %v", err)
	}

	w.step(ctx)

	_, _, failed := w.Snapshot()
	if failed != 1 {
		t.Fatalf("expected 1 failure, got %d", failed)
	}

	result, err := b.PopResult(ctx)
	if err != nil {
		t.Fatalf("PopResult: %v", err)
	}
	if result == nil || result.Success {
		t.Fatalf("expected a failure result, got %+v", result)
	}
	if result.Error != string(types.TagHTTPError) {
		t.Errorf("Error tag = %q, want %q", result.Error, types.TagHTTPError)
	}
}

func TestWorkerStepSkipsAlreadyVisitedTask(t *testing.T) {
	b := broker.NewMemoryBroker()
	t.Cleanup(func() { _ = b.Close() })

	called := false
	w, srv := newTestWorker(t, b, func(rw http.ResponseWriter, r *http.Request) {
		called = true
		rw.WriteHeader(http.StatusOK)
	})

	ctx := context.Background()
	task := types.NewTask(srv.URL+"/", types.PriorityNormal, "")
	if err := w.catalog.MarkVisited(task.URL); err != nil {
		t.Fatalf("MarkVisited: %v", err)
	}
	if err := b.PushTask(ctx, task); err != nil {
		t.Fatalf("PushTask: %v", err)
	}

	w.step(ctx)

	if called {
		t.Error("expected the fetch pipeline never to be invoked for an already-visited url")
	}
	processed, _, _ := w.Snapshot()
	if processed != 0 {
		t.Errorf("expected processed counter to stay at 0 for a duplicate, got %d", processed)
	}
}

func TestWorkerStepRecordsTaskMetricsWhenAttached(t *testing.T) {
	b := broker.NewMemoryBroker()
	t.Cleanup(func() { _ = b.Close() })

	w, srv := newTestWorker(t, b, func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
	})

	metrics := observability.New(testLogger())
	w.SetMetrics(metrics)

	ctx := context.Background()
	task := types.NewTask(srv.URL+"/", types.PriorityNormal, "")
	if err := b.PushTask(ctx, task); err != nil {
		t.Fatalf("PushTask: %v", err)
	}

	w.step(ctx)

	if count := testutil.ToFloat64(metrics.TasksTotal.WithLabelValues("success", w.ID)); count != 1 {
		t.Errorf("TasksTotal{success} = %v, want 1", count)
	}
}

func TestWorkerStepEmptyQueueDoesNotBlockForever(t *testing.T) {
	b := broker.NewMemoryBroker()
	t.Cleanup(func() { _ = b.Close() })
	w, _ := newTestWorker(t, b, func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
	})

	done := make(chan struct{})
	go func() {
		w.step(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("step() on an empty queue should return after its poll sleep, not hang")
	}
}
