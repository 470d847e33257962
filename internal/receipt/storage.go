package receipt

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/zombor/receipt-insight/internal/apperr"
	"github.com/zombor/receipt-insight/internal/fsutil"
	"github.com/zombor/receipt-insight/internal/media"
)

// Store keeps the uploaded receipt files
type Store interface {
	// Save stores the bytes under a new timestamp-prefixed ID
	Save(originalName string, data []byte) (string, error)

	// List returns all IDs, most recent first
	List() ([]string, error)

	// Read returns the stored bytes and media kind of a receipt
	Read(id string) ([]byte, media.Kind, error)

	// Delete removes a receipt file; removing a missing one succeeds
	Delete(id string) error
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type defaultTimeSource struct{}

func (defaultTimeSource) Now() time.Time {
	return time.Now()
}

// LocalStorage implements Store on the local filesystem
type LocalStorage struct {
	basePath string
	clock    TimeSource
}

// NewLocalStorage creates a new LocalStorage instance
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	return NewLocalStorageWithClock(basePath, defaultTimeSource{})
}

// NewLocalStorageWithClock creates a LocalStorage with a custom time source for testing
func NewLocalStorageWithClock(basePath string, clock TimeSource) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}

	return &LocalStorage{
		basePath: basePath,
		clock:    clock,
	}, nil
}

var (
	unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	spaceRuns   = regexp.MustCompile(`\s+`)
)

// sanitizeFilename cleans up a filename by removing special characters and truncating length
func sanitizeFilename(filename string) string {
	filename = filepath.Base(strings.ReplaceAll(filename, `\`, "/"))
	ext := strings.ToLower(filepath.Ext(filename))
	base := strings.TrimSuffix(filename, filepath.Ext(filename))

	base = unsafeChars.ReplaceAllString(base, "")
	base = spaceRuns.ReplaceAllString(base, " ")
	base = strings.TrimSpace(base)

	// Truncate to reasonable length (50 chars for base, plus extension)
	if len(base) > 50 {
		base = strings.TrimSpace(base[:50])
	}
	if base == "" {
		base = "receipt"
	}

	return base + ext
}

// Save writes the bytes atomically under a new ID. Unsupported file types are
// rejected before anything is written.
func (l *LocalStorage) Save(originalName string, data []byte) (string, error) {
	if _, err := media.FromFilename(originalName); err != nil {
		return "", err
	}

	name := sanitizeFilename(originalName)
	stamp := l.clock.Now().UTC().Format(idTimeLayout)

	// uploads sharing a timestamp are numbered so they still sort by arrival
	prefix := stamp
	for n := 1; l.prefixTaken(prefix); n++ {
		prefix = fmt.Sprintf("%s~%03d", stamp, n)
	}
	id := prefix + "_" + name

	if err := fsutil.WriteFileAtomic(filepath.Join(l.basePath, id), data, 0644); err != nil {
		return "", fmt.Errorf("writing file: %w", err)
	}

	slog.Debug("Receipt file written", "id", id, "size", len(data))
	return id, nil
}

// prefixTaken reports whether any stored ID starts with prefix followed by "_"
func (l *LocalStorage) prefixTaken(prefix string) bool {
	entries, err := os.ReadDir(l.basePath)
	if err != nil {
		return false
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), prefix+"_") {
			return true
		}
	}
	return false
}

// List returns the stored IDs in descending order, which is newest first
func (l *LocalStorage) List() ([]string, error) {
	entries, err := os.ReadDir(l.basePath)
	if err != nil {
		return nil, fmt.Errorf("reading storage directory: %w", err)
	}

	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !fsutil.ValidName(entry.Name()) {
			continue
		}
		ids = append(ids, entry.Name())
	}

	sort.Sort(sort.Reverse(sort.StringSlice(ids)))
	return ids, nil
}

// Read retrieves a file from local storage
func (l *LocalStorage) Read(id string) ([]byte, media.Kind, error) {
	if !fsutil.ValidName(id) {
		return nil, "", apperr.NotFound("receipt", id)
	}

	data, err := os.ReadFile(filepath.Join(l.basePath, id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, "", apperr.NotFound("receipt", id)
	}
	if err != nil {
		return nil, "", fmt.Errorf("reading file: %w", err)
	}

	kind, err := media.FromFilename(id)
	if err != nil {
		return nil, "", err
	}
	return data, kind, nil
}

// Delete removes a file from local storage
func (l *LocalStorage) Delete(id string) error {
	if !fsutil.ValidName(id) {
		return nil
	}
	err := os.Remove(filepath.Join(l.basePath, id))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("deleting file: %w", err)
	}
	return nil
}
