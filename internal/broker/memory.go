package broker

import (
	"container/list"
	"context"
	"sync"

	"github.com/crawlmesh/crawlmesh/internal/types"
)

// MemoryBroker is an in-process FIFO Broker used by standalone runs and
// tests. It has no external dependency and offers no durability across
// process restarts. The list+mutex shape mirrors the teacher's Frontier
// but drops the heap (Broker ordering is plain FIFO, not priority).
type MemoryBroker struct {
	mu      sync.Mutex
	tasks   *list.List
	results *list.List
	bits    map[string][]byte
	hashes  map[string]map[string]string
}

// NewMemoryBroker builds an empty MemoryBroker.
func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{
		tasks:   list.New(),
		results: list.New(),
		bits:    make(map[string][]byte),
		hashes:  make(map[string]map[string]string),
	}
}

func (b *MemoryBroker) PushTask(_ context.Context, task *types.Task) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tasks.PushBack(task)
	return nil
}

func (b *MemoryBroker) PopTask(_ context.Context) (*types.Task, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	el := b.tasks.Front()
	if el == nil {
		return nil, nil
	}
	b.tasks.Remove(el)
	return el.Value.(*types.Task), nil
}

func (b *MemoryBroker) PushResult(_ context.Context, result *types.Result) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.results.PushBack(result)
	return nil
}

func (b *MemoryBroker) PopResult(_ context.Context) (*types.Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	el := b.results.Front()
	if el == nil {
		return nil, nil
	}
	b.results.Remove(el)
	return el.Value.(*types.Result), nil
}

func (b *MemoryBroker) QueueSize(_ context.Context) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return int64(b.tasks.Len()), nil
}

func (b *MemoryBroker) SetBit(_ context.Context, key string, offset uint, value byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	buf := b.bitBuffer(key, offset)
	byteIdx := offset / 8
	bitIdx := offset % 8
	if value == 0 {
		buf[byteIdx] &^= 1 << (7 - bitIdx)
	} else {
		buf[byteIdx] |= 1 << (7 - bitIdx)
	}
	return nil
}

func (b *MemoryBroker) GetBit(_ context.Context, key string, offset uint) (byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	buf, ok := b.bits[key]
	byteIdx := offset / 8
	if !ok || byteIdx >= uint(len(buf)) {
		return 0, nil
	}
	bitIdx := offset % 8
	if buf[byteIdx]&(1<<(7-bitIdx)) != 0 {
		return 1, nil
	}
	return 0, nil
}

func (b *MemoryBroker) bitBuffer(key string, offset uint) []byte {
	need := int(offset/8) + 1
	buf, ok := b.bits[key]
	if !ok {
		buf = make([]byte, need)
		b.bits[key] = buf
		return buf
	}
	if len(buf) < need {
		grown := make([]byte, need)
		copy(grown, buf)
		buf = grown
		b.bits[key] = buf
	}
	return buf
}

func (b *MemoryBroker) HashSet(_ context.Context, key, field, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	h, ok := b.hashes[key]
	if !ok {
		h = make(map[string]string)
		b.hashes[key] = h
	}
	h[field] = value
	return nil
}

func (b *MemoryBroker) HashGetAll(_ context.Context, key string) (map[string]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	h, ok := b.hashes[key]
	if !ok {
		return map[string]string{}, nil
	}
	cp := make(map[string]string, len(h))
	for k, v := range h {
		cp[k] = v
	}
	return cp, nil
}

func (b *MemoryBroker) Close() error { return nil }
