package storage

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/crawlmesh/crawlmesh/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestPage(url, domain string, status int, body []byte) *types.Page {
	return types.NewPage(url, domain, status, body, "text/html", "", nil, time.Now(), nil, "worker-1", 0)
}

func TestFileStorageSaveAndGet(t *testing.T) {
	s := NewFileStorage(t.TempDir(), testLogger())
	ctx := context.Background()
	if err := s.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer s.Disconnect(ctx)

	page := newTestPage("https://example.com/a", "example.com", 200, []byte("hello"))
	if err := s.Save(ctx, page, ""); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Get(ctx, page.ContentHash)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.URL != page.URL {
		t.Errorf("URL = %q, want %q", got.URL, page.URL)
	}
}

func TestFileStorageGetMissingReturnsError(t *testing.T) {
	s := NewFileStorage(t.TempDir(), testLogger())
	ctx := context.Background()
	if err := s.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer s.Disconnect(ctx)

	if _, err := s.Get(ctx, "missing"); err == nil {
		t.Error("expected error for missing page")
	}
}

func TestFileStorageFindByDomain(t *testing.T) {
	s := NewFileStorage(t.TempDir(), testLogger())
	ctx := context.Background()
	if err := s.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer s.Disconnect(ctx)

	pageA := newTestPage("https://a.com/1", "a.com", 200, []byte("a"))
	pageB := newTestPage("https://b.com/1", "b.com", 200, []byte("b"))
	if err := s.SaveBatch(ctx, []*types.Page{pageA, pageB}, ""); err != nil {
		t.Fatalf("SaveBatch: %v", err)
	}

	found, err := s.Find(ctx, Query{Domain: "a.com"}, 0, 0)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(found) != 1 || found[0].Domain != "a.com" {
		t.Errorf("Find(Domain=a.com) = %v", found)
	}

	count, err := s.Count(ctx, Query{})
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 2 {
		t.Errorf("Count() = %d, want 2", count)
	}
}

func TestFileStorageUpdateAndDelete(t *testing.T) {
	s := NewFileStorage(t.TempDir(), testLogger())
	ctx := context.Background()
	if err := s.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer s.Disconnect(ctx)

	page := newTestPage("https://example.com/a", "example.com", 200, []byte("hello"))
	if err := s.Save(ctx, page, ""); err != nil {
		t.Fatalf("Save: %v", err)
	}

	page.StatusCode = 404
	if err := s.Update(ctx, page.ContentHash, page); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, err := s.Get(ctx, page.ContentHash)
	if err != nil {
		t.Fatalf("Get after update: %v", err)
	}
	if got.StatusCode != 404 {
		t.Errorf("StatusCode after update = %d, want 404", got.StatusCode)
	}

	if err := s.Delete(ctx, page.ContentHash); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, page.ContentHash); err == nil {
		t.Error("expected error getting a deleted page")
	}
}
