package relay

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgnsrekt/audiosniff/internal/media"
)

// readBlock returns the lines of the next SSE block.
func readBlock(t *testing.T, sc *bufio.Scanner) []string {
	t.Helper()
	var lines []string
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			return lines
		}
		lines = append(lines, line)
	}
	t.Fatalf("stream ended: %v", sc.Err())
	return nil
}

func TestSSEHandlerStreamsFilteredFeeds(t *testing.T) {
	b := NewBroker()
	srv := httptest.NewServer(SSEHandler(b))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"?feeds="+FeedCaptured, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	sc := bufio.NewScanner(resp.Body)
	if got := readBlock(t, sc); len(got) != 1 || got[0] != "retry: 3000" {
		t.Fatalf("preamble = %q", got)
	}
	if b.ClientCount() != 1 {
		t.Fatalf("client count = %d", b.ClientCount())
	}

	b.NotifyCleared()
	b.NotifyCaptured(media.Record{ID: "r9", URL: "https://x.test/a.mp3"})
	b.NotifyCaptured(media.Record{ID: "r10", URL: "https://x.test/b.mp3"})

	first := readBlock(t, sc)
	if len(first) != 3 {
		t.Fatalf("event lines = %q, want 3", first)
	}
	if first[0] != "id: 1" || first[1] != "event: "+FeedCaptured {
		t.Fatalf("header lines = %q, cleared event should be filtered out", first[:2])
	}
	if !strings.Contains(first[2], `"id":"r9"`) {
		t.Fatalf("data line = %q", first[2])
	}
	if second := readBlock(t, sc); second[0] != "id: 2" {
		t.Fatalf("second event = %q", second)
	}
}

func TestSSEHandlerRejectsUnknownFeed(t *testing.T) {
	rec := httptest.NewRecorder()
	SSEHandler(NewBroker()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?feeds=media_captured,bogus", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"bogus"`) {
		t.Fatalf("body = %q", rec.Body.String())
	}
}

func TestParseFeeds(t *testing.T) {
	feeds, err := parseFeeds("")
	if err != nil || feeds != nil {
		t.Fatalf("empty = %v, %v", feeds, err)
	}
	feeds, err = parseFeeds(" media_removed , ,media_cleared")
	if err != nil {
		t.Fatalf("parseFeeds: %v", err)
	}
	if len(feeds) != 2 || !feeds[FeedRemoved] || !feeds[FeedCleared] {
		t.Fatalf("feeds = %v", feeds)
	}
}
