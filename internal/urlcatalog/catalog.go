package urlcatalog

import (
	"context"
	"sync"
	"time"

	"github.com/crawlmesh/crawlmesh/internal/bloom"
	"github.com/crawlmesh/crawlmesh/internal/types"
)

// Catalog is the process-local URL Catalog: canonical form, seen-set
// membership (delegated to a SeenSet, exact or probabilistic), and
// per-domain stats. The seen-set itself may be Broker-backed for
// cross-worker coherence; Catalog only holds the domain-stats cache.
type Catalog struct {
	seen   bloom.SeenSet
	robots *RobotsGuard // nil disables robots.txt admission entirely
	mu     sync.RWMutex
	stats  map[string]*types.DomainStats
}

// New builds a Catalog backed by the given seen-set implementation. Pass
// a nil RobotsGuard to disable robots.txt admission (fetcher.respect_robots_txt=false).
func New(seen bloom.SeenSet, robots *RobotsGuard) *Catalog {
	return &Catalog{
		seen:   seen,
		robots: robots,
		stats:  make(map[string]*types.DomainStats),
	}
}

// IsAllowed reports whether userAgent may fetch url per the host's
// robots.txt. Always true when robots.txt admission is disabled.
func (c *Catalog) IsAllowed(ctx context.Context, url, userAgent string) bool {
	if c.robots == nil {
		return true
	}
	return c.robots.IsAllowed(ctx, url, userAgent)
}

// MarkVisited records url's fingerprint as seen.
func (c *Catalog) MarkVisited(url string) error {
	canon, err := Canonicalize(url)
	if err != nil {
		return err
	}
	return c.seen.Add(Fingerprint(canon))
}

// IsVisited reports whether url's fingerprint has been marked seen. In
// the Bloom-filter variant this may return a false positive (never a
// false negative) — acceptable per §4.6.
func (c *Catalog) IsVisited(url string) (bool, error) {
	canon, err := Canonicalize(url)
	if err != nil {
		return false, err
	}
	return c.seen.Contains(Fingerprint(canon))
}

// UpdateDomainStats folds one request outcome into the domain's rolling
// counters.
func (c *Catalog) UpdateDomainStats(domain string, success bool, rtt time.Duration, bytes int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ds, ok := c.stats[domain]
	if !ok {
		ds = &types.DomainStats{Domain: domain}
		c.stats[domain] = ds
	}
	ds.Update(success, rtt, bytes)
}

// DomainStats returns a copy of the current stats for domain, or nil if
// no requests have been recorded.
func (c *Catalog) DomainStats(domain string) *types.DomainStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ds, ok := c.stats[domain]
	if !ok {
		return nil
	}
	cp := *ds
	return &cp
}
