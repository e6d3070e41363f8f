package archive

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/dgnsrekt/audiosniff/internal/download"
	"github.com/dgnsrekt/audiosniff/internal/types"
	"github.com/google/uuid"
)

var idRe = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// Meta describes one stored bundle archive.
type Meta struct {
	ID        string                  `json:"id"`
	Name      string                  `json:"name"`
	SizeBytes int64                   `json:"size_bytes"`
	CreatedAt time.Time               `json:"created_at"`
	Added     []string                `json:"added"`
	Skipped   []download.SkippedEntry `json:"skipped"`
}

// BuildFunc writes a zip archive to w and reports what went into it.
type BuildFunc func(w io.Writer) (download.BundleResult, error)

// Store keeps bundle archives on disk as <id>.zip plus an <id>.json sidecar.
type Store struct {
	dir string
	mu  sync.RWMutex
	now func() time.Time
}

// NewStore creates a Store and ensures the directory exists.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("archive store: mkdir %s: %w", dir, err)
	}
	return &Store{dir: dir, now: time.Now}, nil
}

func validateID(id string) error {
	if !idRe.MatchString(id) {
		return types.NewError(types.CodeValidation, fmt.Sprintf("invalid archive id: %q", id), nil)
	}
	return nil
}

func (s *Store) zipPath(id string) string  { return filepath.Join(s.dir, id+".zip") }
func (s *Store) metaPath(id string) string { return filepath.Join(s.dir, id+".json") }

// Create runs build against a fresh archive file and records its sidecar.
// A failed build leaves nothing behind.
func (s *Store) Create(build BuildFunc) (Meta, error) {
	id := uuid.NewString()
	meta := Meta{
		ID:        id,
		Name:      "audio_bundle_" + s.now().UTC().Format("20060102_150405") + ".zip",
		CreatedAt: s.now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, id+"-*.partial")
	if err != nil {
		return Meta{}, fmt.Errorf("archive store: create temp: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		if err := os.Remove(tmpPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			slog.Debug("archive temp cleanup failed", "path", tmpPath, "error", err)
		}
	}

	res, err := build(tmp)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		cleanup()
		return Meta{}, err
	}

	info, err := os.Stat(tmpPath)
	if err != nil {
		cleanup()
		return Meta{}, fmt.Errorf("archive store: stat: %w", err)
	}
	meta.SizeBytes = info.Size()
	meta.Added = res.Added
	meta.Skipped = res.Skipped

	if err := os.Rename(tmpPath, s.zipPath(id)); err != nil {
		cleanup()
		return Meta{}, fmt.Errorf("archive store: finalize: %w", err)
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		_ = os.Remove(s.zipPath(id))
		return Meta{}, fmt.Errorf("archive store: marshal meta: %w", err)
	}
	if err := os.WriteFile(s.metaPath(id), data, 0o644); err != nil {
		_ = os.Remove(s.zipPath(id))
		return Meta{}, fmt.Errorf("archive store: write meta: %w", err)
	}

	slog.Info("bundle archived", "id", id, "size", meta.SizeBytes, "added", len(meta.Added), "skipped", len(meta.Skipped))
	return meta, nil
}

// Get reads archive metadata by ID.
func (s *Store) Get(id string) (Meta, error) {
	if err := validateID(id); err != nil {
		return Meta{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readMeta(id)
}

func (s *Store) readMeta(id string) (Meta, error) {
	data, err := os.ReadFile(s.metaPath(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Meta{}, types.NewError(types.CodeNotFound, "archive not found: "+id, nil)
		}
		return Meta{}, fmt.Errorf("archive store: read meta: %w", err)
	}
	var meta Meta
	if err := json.Unmarshal(data, &meta); err != nil {
		return Meta{}, fmt.Errorf("archive store: unmarshal meta: %w", err)
	}
	return meta, nil
}

// List returns all archives, newest first. Unreadable sidecars are skipped.
func (s *Store) List() ([]Meta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("archive store: glob: %w", err)
	}

	metas := make([]Meta, 0, len(matches))
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var meta Meta
		if err := json.Unmarshal(data, &meta); err != nil {
			slog.Debug("archive sidecar unreadable", "path", path, "error", err)
			continue
		}
		metas = append(metas, meta)
	}

	sort.Slice(metas, func(i, j int) bool {
		return metas[i].CreatedAt.After(metas[j].CreatedAt)
	})
	return metas, nil
}

// Open returns a reader over the zip bytes of id along with its metadata.
func (s *Store) Open(id string) (io.ReadCloser, Meta, error) {
	meta, err := s.Get(id)
	if err != nil {
		return nil, Meta{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	f, err := os.Open(s.zipPath(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, Meta{}, types.NewError(types.CodeNotFound, "archive data missing: "+id, nil)
		}
		return nil, Meta{}, fmt.Errorf("archive store: open: %w", err)
	}
	return f, meta, nil
}

// Read returns the full zip bytes of id.
func (s *Store) Read(id string) ([]byte, Meta, error) {
	rc, meta, err := s.Open(id)
	if err != nil {
		return nil, Meta{}, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, Meta{}, fmt.Errorf("archive store: read: %w", err)
	}
	return data, meta, nil
}

// Delete removes both the archive and its sidecar.
func (s *Store) Delete(id string) error {
	if _, err := s.Get(id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.remove(id)
	return nil
}

func (s *Store) remove(id string) {
	if err := os.Remove(s.zipPath(id)); err != nil {
		slog.Debug("archive data cleanup failed", "id", id, "error", err)
	}
	if err := os.Remove(s.metaPath(id)); err != nil {
		slog.Debug("archive meta cleanup failed", "id", id, "error", err)
	}
}

// Prune deletes archives created more than maxAge ago and returns how many
// were removed.
func (s *Store) Prune(maxAge time.Duration) (int, error) {
	metas, err := s.List()
	if err != nil {
		return 0, err
	}
	cutoff := s.now().Add(-maxAge)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for _, m := range metas {
		if m.CreatedAt.Before(cutoff) {
			s.remove(m.ID)
			removed++
		}
	}
	return removed, nil
}
