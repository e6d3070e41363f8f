package archive

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dgnsrekt/audiosniff/internal/download"
	"github.com/dgnsrekt/audiosniff/internal/types"
)

func newTestStore(t *testing.T, at time.Time) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() error: %v", err)
	}
	s.now = func() time.Time { return at }
	return s
}

func writeBytes(payload string, res download.BundleResult) BuildFunc {
	return func(w io.Writer) (download.BundleResult, error) {
		_, err := io.WriteString(w, payload)
		return res, err
	}
}

func TestCreateGetRead(t *testing.T) {
	at := time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC)
	s := newTestStore(t, at)

	meta, err := s.Create(writeBytes("PKzip", download.BundleResult{
		Added:   []string{"a", "b"},
		Skipped: []download.SkippedEntry{{ID: "c", URL: "https://x.test/c.mp3", Error: "404"}},
	}))
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if meta.SizeBytes != 5 || meta.Name != "audio_bundle_20250301_103000.zip" {
		t.Fatalf("meta = %+v", meta)
	}

	got, err := s.Get(meta.ID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if len(got.Added) != 2 || len(got.Skipped) != 1 || !got.CreatedAt.Equal(at) {
		t.Fatalf("Get() = %+v", got)
	}

	data, _, err := s.Read(meta.ID)
	if err != nil || string(data) != "PKzip" {
		t.Fatalf("Read() = %q, %v", data, err)
	}
}

func TestCreateFailureLeavesNothing(t *testing.T) {
	s := newTestStore(t, time.Now())
	_, err := s.Create(func(w io.Writer) (download.BundleResult, error) {
		_, _ = io.WriteString(w, "partial")
		return download.BundleResult{}, errors.New("zip finalize: disk full")
	})
	if err == nil {
		t.Fatal("Create() error = nil, want build error")
	}
	entries, _ := os.ReadDir(s.dir)
	if len(entries) != 0 {
		t.Fatalf("leftover files: %v", entries)
	}
}

func TestListNewestFirst(t *testing.T) {
	s := newTestStore(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	first, _ := s.Create(writeBytes("1", download.BundleResult{}))
	s.now = func() time.Time { return time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC) }
	second, _ := s.Create(writeBytes("2", download.BundleResult{}))

	list, err := s.List()
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(list) != 2 || list[0].ID != second.ID || list[1].ID != first.ID {
		t.Fatalf("List() order = %+v", list)
	}
}

func TestGetErrors(t *testing.T) {
	s := newTestStore(t, time.Now())

	var coded *types.CodedError
	if _, err := s.Get("../etc/passwd"); !errors.As(err, &coded) || coded.Code != types.CodeValidation {
		t.Fatalf("Get(bad id) error = %v, want VALIDATION", err)
	}
	if _, err := s.Get("123e4567-e89b-12d3-a456-426614174000"); !errors.As(err, &coded) || coded.Code != types.CodeNotFound {
		t.Fatalf("Get(missing) error = %v, want NOT_FOUND", err)
	}
}

func TestDeleteLogsCleanupFailureWhenZipMissing(t *testing.T) {
	s := newTestStore(t, time.Now())
	meta, err := s.Create(writeBytes("x", download.BundleResult{}))
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if err := os.Remove(filepath.Join(s.dir, meta.ID+".zip")); err != nil {
		t.Fatalf("os.Remove() error: %v", err)
	}

	var buf bytes.Buffer
	oldLogger := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() {
		slog.SetDefault(oldLogger)
	})

	if err := s.Delete(meta.ID); err != nil {
		t.Fatalf("Delete() = %v; want nil", err)
	}
	if !strings.Contains(buf.String(), "archive data cleanup failed") {
		t.Fatalf("expected cleanup debug log, got %q", buf.String())
	}
	if _, err := s.Get(meta.ID); err == nil {
		t.Fatal("Get() after Delete() should fail")
	}
}

func TestPrune(t *testing.T) {
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	s := newTestStore(t, base.Add(-48*time.Hour))
	old, _ := s.Create(writeBytes("old", download.BundleResult{}))
	s.now = func() time.Time { return base.Add(-time.Hour) }
	fresh, _ := s.Create(writeBytes("fresh", download.BundleResult{}))
	s.now = func() time.Time { return base }

	removed, err := s.Prune(24 * time.Hour)
	if err != nil || removed != 1 {
		t.Fatalf("Prune() = %d, %v; want 1", removed, err)
	}
	if _, err := s.Get(old.ID); err == nil {
		t.Fatal("old archive still present")
	}
	if _, err := s.Get(fresh.ID); err != nil {
		t.Fatalf("fresh archive removed: %v", err)
	}
}

func TestRetentionLifecycle(t *testing.T) {
	s := newTestStore(t, time.Now())

	disabled := NewRetention(s, "", time.Hour)
	if err := disabled.Start(t.Context()); err != nil || disabled.Running() {
		t.Fatalf("disabled retention: err=%v running=%v", err, disabled.Running())
	}

	bad := NewRetention(s, "not a cron", time.Hour)
	if err := bad.Start(t.Context()); err == nil {
		t.Fatal("Start() with invalid schedule should fail")
	}

	r := NewRetention(s, "0 3 * * *", time.Hour)
	if err := r.Start(t.Context()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if !r.Running() || r.NextRun() == nil {
		t.Fatalf("running=%v next=%v", r.Running(), r.NextRun())
	}
	r.RunOnce()
	r.Stop()
	if r.Running() || r.NextRun() != nil {
		t.Fatal("retention still running after Stop()")
	}
}
