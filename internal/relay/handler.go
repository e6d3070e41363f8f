package relay

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	sseHeartbeat = 15 * time.Second
	sseRetryMS   = 3000
)

var knownFeeds = map[string]bool{
	FeedCaptured: true,
	FeedRemoved:  true,
	FeedCleared:  true,
}

// parseFeeds reads ?feeds=a,b. A nil map means every feed.
func parseFeeds(q string) (map[string]bool, error) {
	if strings.TrimSpace(q) == "" {
		return nil, nil
	}
	out := make(map[string]bool)
	for _, f := range strings.Split(q, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		if !knownFeeds[f] {
			return nil, fmt.Errorf("unknown feed %q", f)
		}
		out[f] = true
	}
	return out, nil
}

// SSEHandler streams broker events as server-sent events. Each event carries
// a per-connection sequence id; a slow reader loses events rather than
// stalling capture.
func SSEHandler(broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming not supported", http.StatusInternalServerError)
			return
		}
		feeds, err := parseFeeds(r.URL.Query().Get("feeds"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		h := w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no")

		id, ch := broker.Subscribe()
		defer broker.Unsubscribe(id)

		fmt.Fprintf(w, "retry: %d\n\n", sseRetryMS)
		flusher.Flush()

		heartbeat := time.NewTicker(sseHeartbeat)
		defer heartbeat.Stop()

		var seq int64
		for {
			select {
			case <-r.Context().Done():
				return
			case <-heartbeat.C:
				fmt.Fprint(w, ": ping\n\n")
				flusher.Flush()
			case evt, ok := <-ch:
				if !ok {
					return
				}
				if feeds != nil && !feeds[evt.Feed] {
					continue
				}
				seq++
				fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", seq, evt.Feed, evt.Payload)
				flusher.Flush()
			}
		}
	}
}
