// Package antiblock implements the per-host anti-blocking state machine
// of §4.3: pre-check (delay + jitter, blocked_until gate), post-check
// (block/rate-limit detection), and the Normal/Penalised/Throttled
// transitions. It is the single block-table authority consulted by the
// fetch pipeline — there is no second, independent block-table.
package antiblock

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/crawlmesh/crawlmesh/internal/types"
)

// State is a host's position in the anti-block state machine.
type State int

const (
	Normal State = iota
	Penalised
	Throttled
)

func (s State) String() string {
	switch s {
	case Penalised:
		return "penalised"
	case Throttled:
		return "throttled"
	default:
		return "normal"
	}
}

type hostEntry struct {
	state        State
	delay        time.Duration
	blockedUntil time.Time
}

// blockedBodySubstrings are checked against the UTF-8-lossy lowercased
// response body.
var blockedBodySubstrings = []string{
	"access denied", "blocked", "robot", "captcha",
	"cloudflare", "distil", "imperva", "incapsula",
}

var blockedServerSubstrings = []string{"cloudflare", "distil", "imperva"}
var blockedStatuses = map[int]bool{403: true, 503: true, 999: true}

// Engine is the block-table: one hostEntry per host, mutex-guarded.
type Engine struct {
	mu    sync.Mutex
	hosts map[string]*hostEntry
}

// New builds an empty Engine.
func New() *Engine {
	return &Engine{hosts: make(map[string]*hostEntry)}
}

// PreCheck implements §4.3 step 3. If host is currently blocked, returns
// a DomainBlocked error immediately. Otherwise it sleeps the host's
// current delay plus a uniform jitter in [0.1s, 0.5s] before returning.
func (e *Engine) PreCheck(host string) error {
	e.mu.Lock()
	entry, ok := e.hosts[host]
	if !ok {
		entry = &hostEntry{state: Normal}
		e.hosts[host] = entry
	}
	now := time.Now()
	if !entry.blockedUntil.IsZero() && now.Before(entry.blockedUntil) {
		until := entry.blockedUntil
		e.mu.Unlock()
		return &types.DomainBlocked{Host: host, BlockedUntil: until}
	}
	if !entry.blockedUntil.IsZero() && now.After(entry.blockedUntil) {
		entry.state = Normal
		entry.blockedUntil = time.Time{}
	}
	delay := entry.delay
	e.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	jitter := time.Duration(100+rand.Intn(400)) * time.Millisecond
	time.Sleep(jitter)
	return nil
}

// PostCheck implements §4.3's post-check against an HTTP response. It
// returns a Blocked or RateLimited error and updates the block-table, or
// nil if the response looks legitimate.
func (e *Engine) PostCheck(host string, status int, serverHeader string, body []byte) error {
	if status == 429 {
		return e.handleRateLimit(host)
	}
	if isBlockedResponse(status, serverHeader, body) {
		return e.handleBlock(host)
	}
	return nil
}

func isBlockedResponse(status int, serverHeader string, body []byte) bool {
	if blockedStatuses[status] {
		return true
	}
	lowerServer := strings.ToLower(serverHeader)
	for _, s := range blockedServerSubstrings {
		if strings.Contains(lowerServer, s) {
			return true
		}
	}
	lowerBody := strings.ToLower(string(body))
	for _, s := range blockedBodySubstrings {
		if strings.Contains(lowerBody, s) {
			return true
		}
	}
	return false
}

func (e *Engine) handleBlock(host string) error {
	e.mu.Lock()
	entry := e.entryLocked(host)
	blockSeconds := 300 + rand.Intn(1801-300)
	entry.state = Penalised
	entry.blockedUntil = time.Now().Add(time.Duration(blockSeconds) * time.Second)
	entry.delay = time.Duration(2000+rand.Intn(3000)) * time.Millisecond
	until := entry.blockedUntil
	e.mu.Unlock()
	return &types.Blocked{Host: host, Reason: "anti-block signal detected at " + until.Format(time.RFC3339)}
}

func (e *Engine) handleRateLimit(host string) error {
	e.mu.Lock()
	entry := e.entryLocked(host)
	newDelay := entry.delay * 2
	if newDelay <= 0 {
		newDelay = 2 * time.Second
	}
	if newDelay > 10*time.Second {
		newDelay = 10 * time.Second
	}
	entry.delay = newDelay
	entry.state = Throttled
	pauseSeconds := 60 + rand.Intn(241)
	entry.blockedUntil = time.Now().Add(time.Duration(pauseSeconds) * time.Second)
	e.mu.Unlock()
	return &types.RateLimited{Host: host}
}

func (e *Engine) entryLocked(host string) *hostEntry {
	entry, ok := e.hosts[host]
	if !ok {
		entry = &hostEntry{state: Normal}
		e.hosts[host] = entry
	}
	return entry
}

// State returns the current state and blocked-until time for host, for
// tests and observability.
func (e *Engine) State(host string) (State, time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	entry, ok := e.hosts[host]
	if !ok {
		return Normal, time.Time{}
	}
	return entry.state, entry.blockedUntil
}

// Reset clears a host's block-table entry (used by tests and operator tooling).
func (e *Engine) Reset(host string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.hosts, host)
}
