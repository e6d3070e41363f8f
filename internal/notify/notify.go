package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dgnsrekt/audiosniff/internal/download"
	"github.com/dgnsrekt/audiosniff/internal/relay"
)

const sendTimeout = 10 * time.Second

// Send sends a message to the requested endpoint using HTTP POST.
func Send(ctx context.Context, client *http.Client, endpoint, message string) error {
	c := client
	if c == nil {
		c = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(message))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("Title", "audiosniff")
	req.Header.Set("Tags", "musical_note")

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ntfy notification failed: status=%d", resp.StatusCode)
	}
	return nil
}

// Subscriber is the broker side a Forwarder listens on.
type Subscriber interface {
	Subscribe() (int64, <-chan relay.Event)
	Unsubscribe(id int64)
}

// Forwarder posts one ntfy message per new capture. Delivery failures are
// logged and dropped.
type Forwarder struct {
	endpoint string
	client   *http.Client
}

func NewForwarder(endpoint string, client *http.Client) *Forwarder {
	if client == nil {
		client = &http.Client{Timeout: sendTimeout}
	}
	return &Forwarder{endpoint: endpoint, client: client}
}

// Run forwards captured events until ctx is cancelled or the broker closes
// the subscription.
func (f *Forwarder) Run(ctx context.Context, sub Subscriber) {
	id, ch := sub.Subscribe()
	defer sub.Unsubscribe(id)

	slog.Info("ntfy forwarding enabled", "endpoint", f.endpoint)
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			if evt.Feed != relay.FeedCaptured {
				continue
			}
			msg, err := captureMessage(evt.Payload)
			if err != nil {
				slog.Debug("ntfy payload skipped", "error", err)
				continue
			}
			sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
			if err := Send(sendCtx, f.client, f.endpoint, msg); err != nil {
				slog.Debug("ntfy delivery failed", "error", err)
			}
			cancel()
		}
	}
}

func captureMessage(payload string) (string, error) {
	var msg relay.CapturedMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		return "", err
	}
	rec := msg.Media
	title := rec.TabTitle
	if title == "" {
		title = "unknown tab"
	}
	return fmt.Sprintf("Captured %s (%s) from %s [%s]",
		rec.Filename, download.FormatSize(rec.FileSize), title, rec.Source), nil
}
