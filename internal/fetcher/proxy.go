package fetcher

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/crawlmesh/crawlmesh/internal/types"
)

// proxyURLCtxKey carries the proxy URL chosen once per fetch attempt
// through to the shared http.Transport's Proxy func, so a single
// ProxyPool.Next() selection governs both the dial and the health
// bookkeeping for that attempt.
type proxyURLCtxKey struct{}

// withProxyURL attaches the already-selected proxy URL to ctx.
func withProxyURL(ctx context.Context, u *url.URL) context.Context {
	return context.WithValue(ctx, proxyURLCtxKey{}, u)
}

// Rotation selects how ProxyPool picks the next healthy proxy.
type Rotation string

const (
	RoundRobin Rotation = "round_robin"
	Random     Rotation = "random"
)

// ProxyPool rotates across a list of ProxyEntry per §3/§4.3 step 5: skip
// unhealthy proxies, and if the whole pool is bad, clear the bad set and
// retry once.
type ProxyPool struct {
	mu       sync.RWMutex
	entries  []*types.ProxyEntry
	urls     map[string]*url.URL
	rotation Rotation
	index    atomic.Int64
}

// NewProxyPool builds a pool from a list of proxy URLs.
func NewProxyPool(rawURLs []string, rotation Rotation) *ProxyPool {
	pool := &ProxyPool{
		urls:     make(map[string]*url.URL),
		rotation: rotation,
	}
	for _, raw := range rawURLs {
		u, err := url.Parse(raw)
		if err != nil {
			continue
		}
		pool.entries = append(pool.entries, &types.ProxyEntry{URL: raw, Healthy: true})
		pool.urls[raw] = u
	}
	return pool
}

// ProxyFunc adapts an http.Transport Proxy func to read the proxy URL
// already selected for this attempt (via withProxyURL) instead of
// picking a new one, so rotation advances exactly once per fetch.
func (p *ProxyPool) ProxyFunc() func(*http.Request) (*url.URL, error) {
	return func(req *http.Request) (*url.URL, error) {
		if u, ok := req.Context().Value(proxyURLCtxKey{}).(*url.URL); ok {
			return u, nil
		}
		return nil, nil
	}
}

// Next returns the next healthy proxy per the rotation strategy. If the
// entire pool is unhealthy, it clears the bad flags and retries once.
func (p *ProxyPool) Next() *types.ProxyEntry {
	p.mu.Lock()
	defer p.mu.Unlock()

	healthy := p.healthyLocked()
	if len(healthy) == 0 && len(p.entries) > 0 {
		for _, e := range p.entries {
			e.Healthy = true
		}
		healthy = p.entries
	}
	if len(healthy) == 0 {
		return nil
	}

	var entry *types.ProxyEntry
	switch p.rotation {
	case Random:
		entry = healthy[rand.Intn(len(healthy))]
	default:
		idx := p.index.Add(1) % int64(len(healthy))
		entry = healthy[idx]
	}
	entry.Requests++
	return entry
}

func (p *ProxyPool) healthyLocked() []*types.ProxyEntry {
	now := time.Now()
	healthy := make([]*types.ProxyEntry, 0, len(p.entries))
	for _, e := range p.entries {
		if e.Healthy && now.After(e.CooldownUntil) {
			healthy = append(healthy, e)
		}
	}
	return healthy
}

// MarkFailed flags a proxy unhealthy with a short cooldown.
func (p *ProxyPool) MarkFailed(rawURL string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.entries {
		if e.URL == rawURL {
			e.Healthy = false
			e.Failures++
			e.CooldownUntil = time.Now().Add(30 * time.Second)
			return
		}
	}
}

// MarkHealthy clears a proxy's unhealthy flag after a successful fetch.
func (p *ProxyPool) MarkHealthy(rawURL string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.entries {
		if e.URL == rawURL {
			e.Healthy = true
			e.Successes++
			e.CooldownUntil = time.Time{}
			return
		}
	}
}

// Count returns the number of configured proxies.
func (p *ProxyPool) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.entries)
}

// AddProxy adds a proxy at runtime.
func (p *ProxyPool) AddProxy(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid proxy url: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = append(p.entries, &types.ProxyEntry{URL: rawURL, Healthy: true})
	p.urls[rawURL] = u
	return nil
}
