// Package master implements the Master Loop (component C6): seed injection,
// result-queue draining, and aggregate crawl statistics.
package master

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/crawlmesh/crawlmesh/internal/broker"
	"github.com/crawlmesh/crawlmesh/internal/types"
)

// Stats holds the aggregate counters the Master folds every drained
// Result into.
type Stats struct {
	TasksProcessed atomic.Int64
	TasksSucceeded atomic.Int64
	TasksFailed    atomic.Int64
	StartTime      time.Time

	mu        sync.RWMutex
	failByTag map[string]int64
}

func newStats() *Stats {
	return &Stats{StartTime: time.Now(), failByTag: make(map[string]int64)}
}

func (s *Stats) record(result *types.Result) {
	s.TasksProcessed.Add(1)
	if result.Success {
		s.TasksSucceeded.Add(1)
		return
	}
	s.TasksFailed.Add(1)
	s.mu.Lock()
	s.failByTag[result.Error]++
	s.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the aggregate stats.
func (s *Stats) Snapshot() map[string]any {
	s.mu.RLock()
	byTag := make(map[string]int64, len(s.failByTag))
	for k, v := range s.failByTag {
		byTag[k] = v
	}
	s.mu.RUnlock()

	return map[string]any{
		"tasks_processed":  s.TasksProcessed.Load(),
		"tasks_succeeded":  s.TasksSucceeded.Load(),
		"tasks_failed":     s.TasksFailed.Load(),
		"failures_by_tag":  byTag,
		"elapsed":          time.Since(s.StartTime).String(),
	}
}

// Master drains the result queue and exposes aggregate stats; it never
// touches a Page body, only the lightweight Result descriptor.
type Master struct {
	broker broker.Broker
	logger *slog.Logger
	stats  *Stats

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a Master bound to b.
func New(b broker.Broker, logger *slog.Logger) *Master {
	return &Master{
		broker: b,
		logger: logger.With("component", "master"),
		stats:  newStats(),
	}
}

// Seed pushes one Task per seed URL at the highest priority.
func (m *Master) Seed(ctx context.Context, urls []string) error {
	for _, u := range urls {
		task := types.NewTask(u, types.PriorityHighest, "")
		if err := m.broker.PushTask(ctx, task); err != nil {
			return err
		}
	}
	m.logger.Info("seeds injected", "count", len(urls))
	return nil
}

// Start launches the background result-drain loop. Call Stop to end it
// and Wait to block until it has exited.
func (m *Master) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	m.wg.Add(1)
	go m.drainResults(runCtx)
}

// Stop signals the drain loop to exit.
func (m *Master) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
}

// Wait blocks until the drain loop has exited.
func (m *Master) Wait() {
	m.wg.Wait()
}

// Stats returns the live Stats instance.
func (m *Master) Stats() *Stats { return m.stats }

func (m *Master) drainResults(ctx context.Context) {
	defer m.wg.Done()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("master stopping", "stats", m.stats.Snapshot())
			return
		default:
		}

		result, err := m.broker.PopResult(ctx)
		if err != nil {
			m.logger.Warn("pop result failed", "error", err)
			time.Sleep(time.Second)
			continue
		}
		if result == nil {
			time.Sleep(time.Second)
			continue
		}

		m.stats.record(result)
		if n := m.stats.TasksProcessed.Load(); n%100 == 0 {
			m.logger.Info("aggregate progress", "processed", n,
				"succeeded", m.stats.TasksSucceeded.Load(), "failed", m.stats.TasksFailed.Load())
		}
	}
}
