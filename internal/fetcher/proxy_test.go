package fetcher

import "testing"

func TestProxyPoolRoundRobinCyclesThroughAll(t *testing.T) {
	p := NewProxyPool([]string{
		"http://proxy1:8080",
		"http://proxy2:8080",
		"http://proxy3:8080",
	}, RoundRobin)

	seen := make(map[string]int)
	for i := 0; i < 9; i++ {
		entry := p.Next()
		if entry == nil {
			t.Fatal("expected a proxy entry")
		}
		seen[entry.URL]++
	}
	for _, url := range []string{"http://proxy1:8080", "http://proxy2:8080", "http://proxy3:8080"} {
		if seen[url] != 3 {
			t.Errorf("expected %s to be selected 3 times in round-robin, got %d", url, seen[url])
		}
	}
}

func TestProxyPoolSkipsUnhealthy(t *testing.T) {
	p := NewProxyPool([]string{"http://proxy1:8080", "http://proxy2:8080"}, RoundRobin)
	p.MarkFailed("http://proxy1:8080")

	for i := 0; i < 5; i++ {
		entry := p.Next()
		if entry.URL == "http://proxy1:8080" {
			t.Fatal("expected unhealthy proxy1 to be skipped")
		}
	}
}

func TestProxyPoolRecoversWhenAllUnhealthy(t *testing.T) {
	p := NewProxyPool([]string{"http://proxy1:8080"}, RoundRobin)
	p.MarkFailed("http://proxy1:8080")

	entry := p.Next()
	if entry == nil {
		t.Fatal("expected pool to recover and serve a proxy when all are unhealthy")
	}
}

func TestProxyPoolMarkHealthyClearsFailure(t *testing.T) {
	p := NewProxyPool([]string{"http://proxy1:8080", "http://proxy2:8080"}, RoundRobin)
	p.MarkFailed("http://proxy1:8080")
	p.MarkHealthy("http://proxy1:8080")

	found := false
	for i := 0; i < 10; i++ {
		if p.Next().URL == "http://proxy1:8080" {
			found = true
			break
		}
	}
	if !found {
		t.Error("expected proxy1 to be selectable again after MarkHealthy")
	}
}

func TestProxyPoolCountAndAddProxy(t *testing.T) {
	p := NewProxyPool([]string{"http://proxy1:8080"}, RoundRobin)
	if p.Count() != 1 {
		t.Errorf("Count() = %d, want 1", p.Count())
	}
	if err := p.AddProxy("http://proxy2:8080"); err != nil {
		t.Fatalf("AddProxy: %v", err)
	}
	if p.Count() != 2 {
		t.Errorf("Count() = %d, want 2 after AddProxy", p.Count())
	}
}

func TestProxyPoolEmptyReturnsNil(t *testing.T) {
	p := NewProxyPool(nil, RoundRobin)
	if p.Next() != nil {
		t.Error("expected nil from an empty proxy pool")
	}
}
