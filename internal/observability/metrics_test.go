package observability

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHandlerExposesRegisteredMetrics(t *testing.T) {
	m := New(testLogger())
	m.RequestsTotal.WithLabelValues("GET", "200", "example.com").Inc()
	m.QueueSize.Set(42)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	text := string(body)

	if !strings.Contains(text, "requests_total") {
		t.Error("expected requests_total in exposition")
	}
	if !strings.Contains(text, "queue_size 42") {
		t.Errorf("expected queue_size 42 in exposition, got:\n%s", text)
	}
}

func TestServeExposesHealthEndpointAndShutsDownOnCancel(t *testing.T) {
	m := New(testLogger())
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- m.Serve(ctx, "127.0.0.1:19876", "/metrics") }()

	var resp *http.Response
	var err error
	for i := 0; i < 20; i++ {
		resp, err = http.Get("http://127.0.0.1:19876/health")
		if err == nil {
			break
		}
		time.Sleep(25 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Serve returned error after cancel: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("expected Serve to return after context cancellation")
	}
}
