// Package storage implements the uniform Storage Sink contract of §4.7:
// connect/disconnect/save/save_batch/get/find/update/delete/count over a
// Page artifact, with interchangeable file and MongoDB backends.
package storage

import (
	"context"

	"github.com/crawlmesh/crawlmesh/internal/types"
)

// Query is a minimal filter for Find: match every non-empty field
// against the corresponding Page property. An empty Query matches all.
type Query struct {
	Domain     string
	URL        string
	StatusCode int
}

// Storage is the uniform contract every backend implements, consumed by
// the Worker Loop (Save) and by offline inspection tools (Find/Count).
type Storage interface {
	// Connect establishes the backend connection. Save/Get/... may be
	// called only after Connect returns nil.
	Connect(ctx context.Context) error
	// Disconnect releases the backend connection.
	Disconnect(ctx context.Context) error

	// Save persists one Page into collection ("" selects the backend's
	// default collection/bucket).
	Save(ctx context.Context, page *types.Page, collection string) error
	// SaveBatch persists many Pages in one round trip where the backend
	// supports it.
	SaveBatch(ctx context.Context, pages []*types.Page, collection string) error

	// Get retrieves a single Page by its content hash (its storage id).
	Get(ctx context.Context, id string) (*types.Page, error)
	// Find returns up to limit Pages matching query, skipping the first
	// skip matches.
	Find(ctx context.Context, query Query, limit, skip int) ([]*types.Page, error)
	// Update replaces the stored Page with the given id.
	Update(ctx context.Context, id string, page *types.Page) error
	// Delete removes the Page with the given id.
	Delete(ctx context.Context, id string) error
	// Count returns the number of stored Pages matching query.
	Count(ctx context.Context, query Query) (int64, error)

	// Name returns the storage backend identifier.
	Name() string
}

// WithStorage connects s, runs fn against it, and always disconnects
// afterward, regardless of fn's outcome.
func WithStorage(ctx context.Context, s Storage, fn func(Storage) error) error {
	if err := s.Connect(ctx); err != nil {
		return err
	}
	defer s.Disconnect(ctx)
	return fn(s)
}

func matches(p *types.Page, q Query) bool {
	if q.Domain != "" && p.Domain != q.Domain {
		return false
	}
	if q.URL != "" && p.URL != q.URL {
		return false
	}
	if q.StatusCode != 0 && p.StatusCode != q.StatusCode {
		return false
	}
	return true
}
