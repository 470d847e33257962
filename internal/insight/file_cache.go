package insight

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/zombor/receipt-insight/internal/fsutil"
)

const fileCacheExt = ".json"

// FileCache stores one JSON document per receipt in a directory
type FileCache struct {
	dir string
}

// NewFileCache creates a FileCache, creating the directory if needed
func NewFileCache(dir string) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating insight directory: %w", err)
	}
	return &FileCache{dir: dir}, nil
}

func (c *FileCache) path(id string) string {
	return filepath.Join(c.dir, id+fileCacheExt)
}

// Get reads the cached result for a receipt
func (c *FileCache) Get(_ context.Context, id string) (*Result, bool, error) {
	if !fsutil.ValidName(id) {
		return nil, false, nil
	}
	data, err := os.ReadFile(c.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading insight: %w", err)
	}
	r, err := decodeResult(data)
	if err != nil {
		return nil, false, fmt.Errorf("decoding insight %s: %w", id, err)
	}
	return r, true, nil
}

// Put writes the result atomically
func (c *FileCache) Put(_ context.Context, id string, result *Result) error {
	if !fsutil.ValidName(id) {
		return fmt.Errorf("invalid insight id %q", id)
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling insight: %w", err)
	}
	if err := fsutil.WriteFileAtomic(c.path(id), data, 0644); err != nil {
		return fmt.Errorf("writing insight: %w", err)
	}
	return nil
}

// Delete removes the cached result; a missing file is not an error
func (c *FileCache) Delete(_ context.Context, id string) error {
	if !fsutil.ValidName(id) {
		return nil
	}
	if err := os.Remove(c.path(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("deleting insight: %w", err)
	}
	return nil
}

// All loads every insight, skipping files that do not decode
func (c *FileCache) All(ctx context.Context) ([]*Result, error) {
	keys, err := c.Keys(ctx)
	if err != nil {
		return nil, err
	}
	results := make([]*Result, 0, len(keys))
	for _, id := range keys {
		r, ok, err := c.Get(ctx, id)
		if err != nil {
			slog.Warn("Skipping unreadable insight", "id", id, "error", err)
			continue
		}
		if ok {
			results = append(results, r)
		}
	}
	return results, nil
}

// Keys lists the receipt IDs that have a cached insight
func (c *FileCache) Keys(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, fmt.Errorf("listing insights: %w", err)
	}
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, fileCacheExt) || strings.HasPrefix(name, fsutil.TempPrefix) {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, fileCacheExt))
	}
	return keys, nil
}
