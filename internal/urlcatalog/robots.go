package urlcatalog

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

// RobotsGuard fetches and caches robots.txt per host, consulted ahead of
// enqueue so link discovery doesn't push disallowed paths back to the
// Broker. Disabled entirely by config (fetcher.respect_robots_txt).
type RobotsGuard struct {
	client *http.Client
	mu     sync.RWMutex
	cache  map[string]*robotstxt.RobotsData
}

// NewRobotsGuard builds a guard with a short fetch timeout; robots.txt
// unreachability is treated as "allow everything" rather than blocking
// the crawl.
func NewRobotsGuard() *RobotsGuard {
	return &RobotsGuard{
		client: &http.Client{Timeout: 10 * time.Second},
		cache:  make(map[string]*robotstxt.RobotsData),
	}
}

// IsAllowed reports whether userAgent may fetch rawURL per the host's
// robots.txt. A fetch or parse failure allows the URL.
func (g *RobotsGuard) IsAllowed(ctx context.Context, rawURL, userAgent string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}

	data := g.get(ctx, u)
	if data == nil {
		return true
	}
	group := data.FindGroup(userAgent)
	return group.Test(u.Path)
}

func (g *RobotsGuard) get(ctx context.Context, u *url.URL) *robotstxt.RobotsData {
	host := u.Scheme + "://" + u.Host

	g.mu.RLock()
	data, ok := g.cache[host]
	g.mu.RUnlock()
	if ok {
		return data
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, host+"/robots.txt", nil)
	if err != nil {
		return nil
	}
	resp, err := g.client.Do(req)
	if err != nil {
		g.store(host, nil)
		return nil
	}
	defer resp.Body.Close()

	data, err = robotstxt.FromResponse(resp)
	if err != nil {
		g.store(host, nil)
		return nil
	}
	g.store(host, data)
	return data
}

func (g *RobotsGuard) store(host string, data *robotstxt.RobotsData) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cache[host] = data
}
