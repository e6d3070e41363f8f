package capture

import (
	"context"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/dgnsrekt/audiosniff/internal/media"
	"github.com/dgnsrekt/audiosniff/internal/metrics"
)

const titleLookupTimeout = 5 * time.Second

// HeaderEvent is a completed-response-header observation for one request.
type HeaderEvent struct {
	RequestID string
	URL       string
	Headers   map[string]string
	TabID     string
}

// RulesProvider returns the active sniff rules.
type RulesProvider interface {
	Rules() *media.Rules
}

// Notifier broadcasts new captures. Implementations must not block and never
// report delivery failure.
type Notifier interface {
	NotifyCaptured(rec media.Record)
}

// TitleLookup resolves the current title of a tab.
type TitleLookup interface {
	LookupTitle(ctx context.Context, tabID string) (string, error)
}

// Journal appends capture records somewhere durable for auditing.
type Journal interface {
	Write(record any) error
}

// Sniffer inspects response headers for audio content and records matches.
type Sniffer struct {
	registry *media.Registry
	rules    RulesProvider
	notifier Notifier
	titles   TitleLookup
	journal  Journal
	now      func() time.Time

	wg sync.WaitGroup
}

// NewSniffer wires a sniffer. titles and journal may be nil.
func NewSniffer(registry *media.Registry, rules RulesProvider, notifier Notifier, titles TitleLookup, journal Journal) *Sniffer {
	return &Sniffer{
		registry: registry,
		rules:    rules,
		notifier: notifier,
		titles:   titles,
		journal:  journal,
		now:      time.Now,
	}
}

// OnResponseReceived adapts a CDP Network.responseReceived event.
func (s *Sniffer) OnResponseReceived(tabID string, ev *network.EventResponseReceived) {
	if ev == nil || ev.Response == nil {
		return
	}
	s.HandleHeaders(HeaderEvent{
		RequestID: string(ev.RequestID),
		URL:       ev.Response.URL,
		Headers:   headerMapToStringMap(ev.Response.Headers),
		TabID:     tabID,
	})
}

// HandleHeaders applies the audio allow-list to one header event. It returns
// the stored record and whether a new capture was made.
func (s *Sniffer) HandleHeaders(ev HeaderEvent) (media.Record, bool) {
	if !isFetchableURL(ev.URL) {
		return media.Record{}, false
	}

	rules := s.rules.Rules()
	contentType, _ := media.HeaderValue(ev.Headers, "Content-Type")
	if !rules.IsAudioContentType(contentType) {
		return media.Record{}, false
	}

	now := s.now()
	rec := media.Record{
		ID:          media.NetworkID(ev.RequestID, now),
		URL:         ev.URL,
		Filename:    rules.DeriveFilename(ev.URL, now),
		ContentType: contentType,
		Timestamp:   now.UTC(),
		TabID:       ev.TabID,
		TabTitle:    media.UnknownTitle,
		FileSize:    media.ParseContentLength(ev.Headers),
		Source:      media.SourceNetwork,
	}

	stored, inserted := s.registry.Insert(rec)
	if !inserted {
		metrics.DuplicatesTotal.WithLabelValues(string(media.SourceNetwork)).Inc()
		slog.Debug("audio already captured", "url", truncateURL(ev.URL), "existing_id", stored.ID)
		return stored, false
	}
	metrics.CapturesTotal.WithLabelValues(string(media.SourceNetwork)).Inc()
	metrics.RegistrySize.Set(float64(s.registry.Len()))

	slog.Info("audio captured",
		"id", stored.ID,
		"filename", stored.Filename,
		"content_type", contentType,
		"tab_id", ev.TabID,
		"url", truncateURL(ev.URL),
	)

	if s.journal != nil {
		if err := s.journal.Write(stored); err != nil {
			slog.Debug("capture journal write failed", "id", stored.ID, "error", err)
		}
	}

	if ev.TabID != "" && s.titles != nil {
		s.backfillTitle(stored.ID, ev.TabID)
	}

	s.notifier.NotifyCaptured(stored)
	return stored, true
}

// backfillTitle fetches the tab title off the event path. Failures leave the
// placeholder in place.
func (s *Sniffer) backfillTitle(id, tabID string) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), titleLookupTimeout)
		defer cancel()

		title, err := s.titles.LookupTitle(ctx, tabID)
		if err != nil {
			slog.Debug("tab title lookup failed", "id", id, "tab_id", tabID, "error", err)
			return
		}
		if title == "" {
			return
		}
		s.registry.SetTabTitle(id, title)
	}()
}

// Close waits for in-flight title lookups.
func (s *Sniffer) Close() {
	s.wg.Wait()
}

func isFetchableURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		// Filename derivation has its own fallback for these.
		return raw != ""
	}
	switch u.Scheme {
	case "data", "blob", "chrome-extension", "devtools":
		return false
	}
	return true
}

func headerMapToStringMap(headers map[string]any) map[string]string {
	result := make(map[string]string, len(headers))
	for k, v := range headers {
		if s, ok := v.(string); ok {
			result[k] = s
		}
	}
	return result
}

func truncateURL(u string) string {
	if len(u) > 120 {
		return u[:120] + "..."
	}
	return u
}
