package antiblock

import (
	"errors"
	"testing"
	"time"

	"github.com/crawlmesh/crawlmesh/internal/types"
)

func TestPreCheckNormalHostSleepsJitterOnly(t *testing.T) {
	e := New()
	start := time.Now()
	if err := e.PreCheck("example.com"); err != nil {
		t.Fatalf("unexpected error on first precheck: %v", err)
	}
	elapsed := time.Since(start)
	if elapsed < 100*time.Millisecond {
		t.Errorf("expected at least jitter floor of 100ms, got %v", elapsed)
	}
	state, _ := e.State("example.com")
	if state != Normal {
		t.Errorf("expected Normal state, got %v", state)
	}
}

func TestPostCheckBlockedStatusTransitionsToPenalised(t *testing.T) {
	e := New()
	err := e.PostCheck("example.com", 403, "", nil)
	var blocked *types.Blocked
	if !errors.As(err, &blocked) {
		t.Fatalf("expected *types.Blocked, got %v (%T)", err, err)
	}
	state, until := e.State("example.com")
	if state != Penalised {
		t.Errorf("expected Penalised state, got %v", state)
	}
	if !until.After(time.Now()) {
		t.Error("expected blockedUntil to be in the future")
	}
}

func TestPostCheckRateLimitTransitionsToThrottled(t *testing.T) {
	e := New()
	err := e.PostCheck("example.com", 429, "", nil)
	var rl *types.RateLimited
	if !errors.As(err, &rl) {
		t.Fatalf("expected *types.RateLimited, got %v (%T)", err, err)
	}
	state, _ := e.State("example.com")
	if state != Throttled {
		t.Errorf("expected Throttled state, got %v", state)
	}
}

func TestPostCheckCloudflareServerHeaderIsBlocked(t *testing.T) {
	e := New()
	err := e.PostCheck("example.com", 200, "cloudflare", nil)
	if err == nil {
		t.Fatal("expected block detection from Cloudflare server header")
	}
}

func TestPostCheckCaptchaBodyIsBlocked(t *testing.T) {
	e := New()
	err := e.PostCheck("example.com", 200, "", []byte("Please solve this CAPTCHA to continue"))
	if err == nil {
		t.Fatal("expected block detection from captcha body substring")
	}
}

func TestPostCheckLegitimateResponseIsNil(t *testing.T) {
	e := New()
	err := e.PostCheck("example.com", 200, "nginx", []byte("<html>hello world</html>"))
	if err != nil {
		t.Errorf("expected nil for legitimate response, got %v", err)
	}
}

func TestPreCheckBlockedHostReturnsDomainBlocked(t *testing.T) {
	e := New()
	_ = e.PostCheck("example.com", 403, "", nil)

	err := e.PreCheck("example.com")
	var db *types.DomainBlocked
	if !errors.As(err, &db) {
		t.Fatalf("expected *types.DomainBlocked while blockedUntil is in the future, got %v (%T)", err, err)
	}
}

func TestPreCheckClearsExpiredBlock(t *testing.T) {
	e := New()
	e.mu.Lock()
	e.hosts["example.com"] = &hostEntry{state: Penalised, blockedUntil: time.Now().Add(-time.Second)}
	e.mu.Unlock()

	if err := e.PreCheck("example.com"); err != nil {
		t.Fatalf("expected expired block to clear, got error: %v", err)
	}
	state, until := e.State("example.com")
	if state != Normal || !until.IsZero() {
		t.Errorf("expected state reset to Normal with zero blockedUntil, got %v / %v", state, until)
	}
}

func TestResetClearsEntry(t *testing.T) {
	e := New()
	_ = e.PostCheck("example.com", 403, "", nil)
	e.Reset("example.com")
	state, until := e.State("example.com")
	if state != Normal || !until.IsZero() {
		t.Error("expected Reset to clear host entry back to zero value")
	}
}
