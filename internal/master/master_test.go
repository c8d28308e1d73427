package master

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/crawlmesh/crawlmesh/internal/broker"
	"github.com/crawlmesh/crawlmesh/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSeedPushesHighestPriorityTasks(t *testing.T) {
	b := broker.NewMemoryBroker()
	defer b.Close()

	m := New(b, testLogger())
	ctx := context.Background()
	urls := []string{"https://example.com/a", "https://example.com/b"}
	if err := m.Seed(ctx, urls); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	for range urls {
		task, err := b.PopTask(ctx)
		if err != nil {
			t.Fatalf("PopTask: %v", err)
		}
		if task == nil {
			t.Fatal("expected a seeded task")
		}
		if task.Priority != types.PriorityHighest {
			t.Errorf("Priority = %d, want %d", task.Priority, types.PriorityHighest)
		}
	}
}

func TestDrainResultsAccumulatesStats(t *testing.T) {
	b := broker.NewMemoryBroker()
	defer b.Close()

	m := New(b, testLogger())
	ctx, cancel := context.WithCancel(context.Background())

	if err := b.PushResult(ctx, types.NewSuccessResult("t1", "https://example.com/a", "w1")); err != nil {
		t.Fatalf("PushResult: %v", err)
	}
	if err := b.PushResult(ctx, types.NewFailureResult("t2", "https://example.com/b", "w1", "HTTPError")); err != nil {
		t.Fatalf("PushResult: %v", err)
	}

	m.Start(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if m.Stats().TasksProcessed.Load() >= 2 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	m.Wait()

	snap := m.Stats().Snapshot()
	if snap["tasks_processed"].(int64) != 2 {
		t.Fatalf("tasks_processed = %v, want 2", snap["tasks_processed"])
	}
	if snap["tasks_succeeded"].(int64) != 1 {
		t.Errorf("tasks_succeeded = %v, want 1", snap["tasks_succeeded"])
	}
	if snap["tasks_failed"].(int64) != 1 {
		t.Errorf("tasks_failed = %v, want 1", snap["tasks_failed"])
	}
	byTag := snap["failures_by_tag"].(map[string]int64)
	if byTag["HTTPError"] != 1 {
		t.Errorf("failures_by_tag[HTTPError] = %d, want 1", byTag["HTTPError"])
	}
}

func TestStopEndsDrainLoop(t *testing.T) {
	b := broker.NewMemoryBroker()
	defer b.Close()

	m := New(b, testLogger())
	ctx := context.Background()
	m.Start(ctx)
	m.Stop()

	done := make(chan struct{})
	go func() {
		m.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("expected Wait() to return promptly after Stop()")
	}
}
