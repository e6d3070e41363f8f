package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/dgnsrekt/audiosniff/internal/metrics"
	"github.com/dgnsrekt/audiosniff/internal/types"
)

const maxNameAttempts = 1000

// Manager saves single media files under a dated downloads directory.
type Manager struct {
	dir    string
	client *http.Client
	now    func() time.Time
}

// NewManager creates a manager writing below dir. A nil client uses
// http.DefaultClient.
func NewManager(dir string, client *http.Client) *Manager {
	if client == nil {
		client = http.DefaultClient
	}
	return &Manager{dir: dir, client: client, now: time.Now}
}

// Dir returns the downloads root.
func (m *Manager) Dir() string {
	return m.dir
}

// Download fetches rawURL and stores it as <dir>/<date>/<filename>. An
// existing file is never overwritten; the name gains a _N suffix instead.
// It returns the written path.
func (m *Manager) Download(ctx context.Context, rawURL, filename string) (string, error) {
	path, err := m.download(ctx, rawURL, filename)
	if err != nil {
		metrics.DownloadsTotal.WithLabelValues("single", "error").Inc()
		return "", types.NewError(types.CodeDownloadFailed, "download failed", err)
	}
	metrics.DownloadsTotal.WithLabelValues("single", "ok").Inc()
	return path, nil
}

func (m *Manager) download(ctx context.Context, rawURL, filename string) (string, error) {
	body, _, err := Fetch(ctx, m.client, rawURL)
	if err != nil {
		return "", err
	}
	defer body.Close()

	dir := filepath.Join(m.dir, m.now().UTC().Format("2006-01-02"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create download dir: %w", err)
	}

	f, path, err := createUnique(dir, SanitizeFilename(filename))
	if err != nil {
		return "", err
	}

	n, err := io.Copy(f, body)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("write %s: %w", path, err)
	}

	slog.Info("media downloaded", "path", path, "size", n)
	return path, nil
}

// createUnique opens a new file for name in dir, adding _2, _3, ... while the
// name is taken.
func createUnique(dir, name string) (*os.File, string, error) {
	for i := 1; i <= maxNameAttempts; i++ {
		candidate := name
		if i > 1 {
			candidate = Suffixed(name, i)
		}
		path := filepath.Join(dir, candidate)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, path, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, "", fmt.Errorf("create %s: %w", path, err)
		}
	}
	return nil, "", fmt.Errorf("no free filename for %s in %s", name, dir)
}
