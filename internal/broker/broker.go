// Package broker implements the external collaborator contract of §4.2:
// a durable FIFO task queue, result queue, seen-set bit operations, and
// per-host stats hash, fronted by a single Broker interface so the rest
// of the core never knows whether it is talking to Redis or an
// in-process fallback.
package broker

import (
	"context"

	"github.com/crawlmesh/crawlmesh/internal/types"
)

// Broker is the set of atomic operations required by §4.2. All methods
// are safe for concurrent use by many worker processes.
type Broker interface {
	// PushTask appends task to the head of the FIFO task list.
	PushTask(ctx context.Context, task *types.Task) error
	// PopTask pops the oldest task, or (nil, nil) if the queue is empty.
	// Callers must poll; PopTask never blocks.
	PopTask(ctx context.Context) (*types.Task, error)
	// PushResult appends a result descriptor to the result queue.
	PushResult(ctx context.Context, result *types.Result) error
	// PopResult pops the oldest result descriptor, or (nil, nil) if empty.
	PopResult(ctx context.Context) (*types.Result, error)
	// QueueSize returns the current task list length.
	QueueSize(ctx context.Context) (int64, error)

	// SetBit/GetBit back the Bloom filter's bit array.
	SetBit(ctx context.Context, key string, offset uint, value byte) error
	GetBit(ctx context.Context, key string, offset uint) (byte, error)

	// HashSet/HashGetAll back per-host stats storage.
	HashSet(ctx context.Context, key, field, value string) error
	HashGetAll(ctx context.Context, key string) (map[string]string, error)

	// Close releases any underlying connection.
	Close() error
}
