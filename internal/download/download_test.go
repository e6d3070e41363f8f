package download

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/dgnsrekt/audiosniff/internal/media"
	"github.com/dgnsrekt/audiosniff/internal/types"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// fakeOrigin serves each path's body; paths mapped to "" return 404 and
// paths starting with /fail produce a transport error.
func fakeOrigin(bodies map[string]string) *http.Client {
	return &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			if strings.HasPrefix(r.URL.Path, "/fail") {
				return nil, errors.New("connection reset")
			}
			body, ok := bodies[r.URL.Path]
			if !ok || body == "" {
				return &http.Response{
					StatusCode: http.StatusNotFound,
					Body:       io.NopCloser(strings.NewReader("not found")),
					Header:     make(http.Header),
				}, nil
			}
			return &http.Response{
				StatusCode:    http.StatusOK,
				Body:          io.NopCloser(strings.NewReader(body)),
				Header:        make(http.Header),
				ContentLength: int64(len(body)),
			}, nil
		}),
	}
}

func TestManagerDownload(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir, fakeOrigin(map[string]string{"/a/song.mp3": "ID3data"}))
	m.now = func() time.Time { return time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC) }

	path, err := m.Download(context.Background(), "https://x.test/a/song.mp3", "song.mp3")
	if err != nil {
		t.Fatalf("Download() error: %v", err)
	}
	want := filepath.Join(dir, "2025-03-01", "song.mp3")
	if path != want {
		t.Fatalf("path = %q, want %q", path, want)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "ID3data" {
		t.Fatalf("file content = %q, err=%v", data, err)
	}

	second, err := m.Download(context.Background(), "https://x.test/a/song.mp3", "song.mp3")
	if err != nil {
		t.Fatalf("second Download() error: %v", err)
	}
	if filepath.Base(second) != "song_2.mp3" {
		t.Fatalf("second path = %q, want song_2.mp3", second)
	}
}

func TestManagerDownloadSanitizesName(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir, fakeOrigin(map[string]string{"/x.mp3": "x"}))

	path, err := m.Download(context.Background(), "https://x.test/x.mp3", "../../etc/x.mp3")
	if err != nil {
		t.Fatalf("Download() error: %v", err)
	}
	if !strings.HasPrefix(path, dir) || filepath.Base(path) != "x.mp3" {
		t.Fatalf("path = %q escaped the downloads dir", path)
	}
}

func TestManagerDownloadFailure(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir, fakeOrigin(map[string]string{}))

	_, err := m.Download(context.Background(), "https://x.test/missing.mp3", "missing.mp3")
	if err == nil {
		t.Fatal("Download() error = nil, want status error")
	}
	var coded *types.CodedError
	if !errors.As(err, &coded) || coded.Code != types.CodeDownloadFailed {
		t.Fatalf("error = %v, want DOWNLOAD_FAILED", err)
	}
	if !strings.Contains(err.Error(), "404") {
		t.Fatalf("error = %q, want status in message", err)
	}

	entries, _ := filepath.Glob(filepath.Join(dir, "*", "*"))
	if len(entries) != 0 {
		t.Fatalf("files left behind: %v", entries)
	}
}

func zipNames(t *testing.T, data []byte) []string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	return names
}

func rec(id, url, filename string) media.Record {
	return media.Record{ID: id, URL: url, Filename: filename}
}

func TestBundleSkipsFailedFetch(t *testing.T) {
	client := fakeOrigin(map[string]string{
		"/1.mp3": "one",
		"/2.mp3": "two",
		"/4.mp3": "four",
	})
	b := NewBundler(client, 2)

	records := []media.Record{
		rec("r1", "https://x.test/1.mp3", "1.mp3"),
		rec("r2", "https://x.test/2.mp3", "2.mp3"),
		rec("r3", "https://x.test/fail/3.mp3", "3.mp3"),
		rec("r4", "https://x.test/4.mp3", "4.mp3"),
	}

	var buf bytes.Buffer
	res, err := b.Bundle(context.Background(), records, &buf)
	if err != nil {
		t.Fatalf("Bundle() error: %v", err)
	}
	if len(res.Added) != 3 || len(res.Skipped) != 1 || res.Skipped[0].ID != "r3" {
		t.Fatalf("result = %+v, want 3 added and r3 skipped", res)
	}

	names := zipNames(t, buf.Bytes())
	if got := strings.Join(names, ","); got != "1.mp3,2.mp3,4.mp3" {
		t.Fatalf("archive entries = %s", got)
	}
}

func TestBundleNMinusOneProperty(t *testing.T) {
	for n := 1; n <= 6; n++ {
		bodies := map[string]string{}
		var records []media.Record
		for i := 0; i < n; i++ {
			path := "/" + string(rune('a'+i)) + ".mp3"
			bodies[path] = "data"
			records = append(records, rec(path, "https://x.test"+path, path[1:]))
		}
		bodies[records[n-1].URL[len("https://x.test"):]] = ""

		var buf bytes.Buffer
		_, err := NewBundler(fakeOrigin(bodies), 3).Bundle(context.Background(), records, &buf)
		if err != nil {
			t.Fatalf("n=%d: Bundle() error: %v", n, err)
		}
		if got := len(zipNames(t, buf.Bytes())); got != n-1 {
			t.Fatalf("n=%d: archive has %d entries, want %d", n, got, n-1)
		}
	}
}

func TestBundleDuplicateNames(t *testing.T) {
	client := fakeOrigin(map[string]string{
		"/a/song.mp3": "a",
		"/b/song.mp3": "b",
		"/c/song.mp3": "c",
	})
	records := []media.Record{
		rec("1", "https://x.test/a/song.mp3", "song.mp3"),
		rec("2", "https://x.test/b/song.mp3", "song.mp3"),
		rec("3", "https://x.test/c/song.mp3", "song.mp3"),
	}

	var buf bytes.Buffer
	if _, err := NewBundler(client, 0).Bundle(context.Background(), records, &buf); err != nil {
		t.Fatalf("Bundle() error: %v", err)
	}
	names := zipNames(t, buf.Bytes())
	sort.Strings(names)
	if got := strings.Join(names, ","); got != "song.mp3,song_2.mp3,song_3.mp3" {
		t.Fatalf("entries = %s", got)
	}
}

func TestBundleEmptyInput(t *testing.T) {
	_, err := NewBundler(nil, 0).Bundle(context.Background(), nil, io.Discard)
	var coded *types.CodedError
	if !errors.As(err, &coded) || coded.Code != types.CodeValidation {
		t.Fatalf("error = %v, want VALIDATION", err)
	}
}

func TestBundleAllFailStillWritesArchive(t *testing.T) {
	var buf bytes.Buffer
	res, err := NewBundler(fakeOrigin(nil), 0).Bundle(context.Background(),
		[]media.Record{rec("x", "https://x.test/fail/x.mp3", "x.mp3")}, &buf)
	if err != nil {
		t.Fatalf("Bundle() error: %v", err)
	}
	if len(res.Added) != 0 || len(res.Skipped) != 1 {
		t.Fatalf("result = %+v", res)
	}
	if names := zipNames(t, buf.Bytes()); len(names) != 0 {
		t.Fatalf("entries = %v, want none", names)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"song.mp3":          "song.mp3",
		"../../etc/passwd":  "passwd",
		`C:\music\song.mp3`: "song.mp3",
		"":                  "audio.mp3",
		"..":                "audio.mp3",
		"a?b*.mp3":          "a_b_.mp3",
		"tab\tname.ogg":     "tabname.ogg",
	}
	for in, want := range tests {
		if got := SanitizeFilename(in); got != want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestUniqueName(t *testing.T) {
	used := map[string]int{}
	got := []string{
		uniqueName(used, "song.mp3"),
		uniqueName(used, "song_2.mp3"),
		uniqueName(used, "song.mp3"),
		uniqueName(used, "noext"),
		uniqueName(used, "noext"),
	}
	want := []string{"song.mp3", "song_2.mp3", "song_3.mp3", "noext", "noext_2"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("uniqueName sequence = %v, want %v", got, want)
		}
	}
}

func TestFormatSize(t *testing.T) {
	size := int64(1536)
	if got := FormatSize(&size); got != "1.5 KiB" {
		t.Fatalf("FormatSize(1536) = %q", got)
	}
	if got := FormatSize(nil); got != "-" {
		t.Fatalf("FormatSize(nil) = %q", got)
	}
}
