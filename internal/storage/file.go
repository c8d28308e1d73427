package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/crawlmesh/crawlmesh/internal/types"
)

// FileStorage persists each Page as its own JSON file under a root
// directory, named by the page's content hash.
type FileStorage struct {
	root   string
	mu     sync.RWMutex
	logger *slog.Logger
}

// NewFileStorage builds a FileStorage rooted at dir.
func NewFileStorage(dir string, logger *slog.Logger) *FileStorage {
	return &FileStorage{root: dir, logger: logger.With("component", "file_storage")}
}

func (s *FileStorage) Name() string { return "file" }

func (s *FileStorage) Connect(ctx context.Context) error {
	return os.MkdirAll(s.root, 0o755)
}

func (s *FileStorage) Disconnect(ctx context.Context) error { return nil }

func (s *FileStorage) path(collection, id string) string {
	dir := s.root
	if collection != "" {
		dir = filepath.Join(s.root, collection)
	}
	return filepath.Join(dir, id+".json")
}

func (s *FileStorage) Save(ctx context.Context, page *types.Page, collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := s.root
	if collection != "" {
		dir = filepath.Join(s.root, collection)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create collection dir: %w", err)
	}

	data, err := json.MarshalIndent(page, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal page: %w", err)
	}

	if err := os.WriteFile(s.path(collection, page.ContentHash), data, 0o644); err != nil {
		return fmt.Errorf("write page: %w", err)
	}
	s.logger.Debug("page saved", "url", page.URL, "id", page.ContentHash)
	return nil
}

func (s *FileStorage) SaveBatch(ctx context.Context, pages []*types.Page, collection string) error {
	for _, p := range pages {
		if err := s.Save(ctx, p, collection); err != nil {
			return err
		}
	}
	return nil
}

func (s *FileStorage) Get(ctx context.Context, id string) (*types.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	found, err := s.findByID(id)
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, fmt.Errorf("page %s not found", id)
	}
	return found, nil
}

func (s *FileStorage) findByID(id string) (*types.Page, error) {
	var result *types.Page
	err := filepath.WalkDir(s.root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if filepath.Base(path) != id+".json" {
			return nil
		}
		data, rerr := os.ReadFile(path)
		if rerr != nil {
			return rerr
		}
		var page types.Page
		if jerr := json.Unmarshal(data, &page); jerr != nil {
			return jerr
		}
		result = &page
		return filepath.SkipAll
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *FileStorage) Find(ctx context.Context, query Query, limit, skip int) ([]*types.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []*types.Page
	skipped := 0
	err := filepath.WalkDir(s.root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}
		if limit > 0 && len(results) >= limit {
			return filepath.SkipAll
		}
		data, rerr := os.ReadFile(path)
		if rerr != nil {
			return nil
		}
		var page types.Page
		if jerr := json.Unmarshal(data, &page); jerr != nil {
			return nil
		}
		if !matches(&page, query) {
			return nil
		}
		if skipped < skip {
			skipped++
			return nil
		}
		results = append(results, &page)
		return nil
	})
	return results, err
}

func (s *FileStorage) Update(ctx context.Context, id string, page *types.Page) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.findByID(id)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("page %s not found", id)
	}

	data, err := json.MarshalIndent(page, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal page: %w", err)
	}
	return os.WriteFile(s.path("", id), data, 0o644)
}

func (s *FileStorage) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var target string
	err := filepath.WalkDir(s.root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if filepath.Base(path) == id+".json" {
			target = path
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil {
		return err
	}
	if target == "" {
		return fmt.Errorf("page %s not found", id)
	}
	return os.Remove(target)
}

func (s *FileStorage) Count(ctx context.Context, query Query) (int64, error) {
	pages, err := s.Find(ctx, query, 0, 0)
	if err != nil {
		return 0, err
	}
	return int64(len(pages)), nil
}
