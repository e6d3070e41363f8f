package download

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/dgnsrekt/audiosniff/internal/media"
	"github.com/dgnsrekt/audiosniff/internal/metrics"
	"github.com/dgnsrekt/audiosniff/internal/types"
)

const defaultBundleConcurrency = 4

// SkippedEntry records a bundle input that could not be fetched.
type SkippedEntry struct {
	ID    string `json:"id"`
	URL   string `json:"url"`
	Error string `json:"error"`
}

// BundleResult reports which records made it into an archive.
type BundleResult struct {
	Added   []string       `json:"added"`
	Skipped []SkippedEntry `json:"skipped"`
}

// Bundler fetches a batch of records and packs them into one zip archive.
type Bundler struct {
	client      *http.Client
	concurrency int
}

// NewBundler creates a bundler. concurrency <= 0 uses a default of 4.
func NewBundler(client *http.Client, concurrency int) *Bundler {
	if client == nil {
		client = http.DefaultClient
	}
	if concurrency <= 0 {
		concurrency = defaultBundleConcurrency
	}
	return &Bundler{client: client, concurrency: concurrency}
}

type fetched struct {
	data []byte
	err  error
}

// Bundle fetches every record concurrently and writes the successes to w as
// a zip archive in input order. Failed fetches are logged and skipped. It
// fails only for an empty batch or when writing the archive fails.
func (b *Bundler) Bundle(ctx context.Context, records []media.Record, w io.Writer) (BundleResult, error) {
	if len(records) == 0 {
		return BundleResult{}, types.NewError(types.CodeValidation, "no media to bundle", nil)
	}

	results := make([]fetched, len(records))
	sem := make(chan struct{}, b.concurrency)
	var wg sync.WaitGroup
	for i, rec := range records {
		wg.Add(1)
		go func(i int, rec media.Record) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				results[i].err = ctx.Err()
				return
			}
			defer func() { <-sem }()
			results[i].data, results[i].err = b.fetch(ctx, rec.URL)
		}(i, rec)
	}
	wg.Wait()

	res := BundleResult{Added: []string{}, Skipped: []SkippedEntry{}}
	zw := zip.NewWriter(w)
	used := make(map[string]int)
	for i, rec := range records {
		if err := results[i].err; err != nil {
			slog.Warn("bundle entry skipped", "id", rec.ID, "url", rec.URL, "error", err)
			metrics.DownloadsTotal.WithLabelValues("bundle", "error").Inc()
			res.Skipped = append(res.Skipped, SkippedEntry{ID: rec.ID, URL: rec.URL, Error: err.Error()})
			continue
		}

		name := uniqueName(used, SanitizeFilename(rec.Filename))
		mod := rec.Timestamp
		if mod.IsZero() {
			mod = time.Now()
		}
		entry, err := zw.CreateHeader(&zip.FileHeader{
			Name:     name,
			Method:   zip.Store,
			Modified: mod,
		})
		if err != nil {
			return res, fmt.Errorf("zip entry %s: %w", name, err)
		}
		if _, err := entry.Write(results[i].data); err != nil {
			return res, fmt.Errorf("zip write %s: %w", name, err)
		}
		metrics.DownloadsTotal.WithLabelValues("bundle", "ok").Inc()
		res.Added = append(res.Added, rec.ID)
	}
	if err := zw.Close(); err != nil {
		return res, fmt.Errorf("zip finalize: %w", err)
	}

	slog.Info("bundle built", "added", len(res.Added), "skipped", len(res.Skipped))
	return res, nil
}

func (b *Bundler) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	body, _, err := Fetch(ctx, b.client, rawURL)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return io.ReadAll(body)
}

// uniqueName returns name the first time it is seen and name_<n> for the
// n-th repeat within one batch.
func uniqueName(used map[string]int, name string) string {
	used[name]++
	n := used[name]
	if n == 1 {
		return name
	}
	for {
		candidate := Suffixed(name, n)
		if used[candidate] == 0 {
			used[candidate] = 1
			return candidate
		}
		n++
	}
}
