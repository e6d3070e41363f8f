package pagescan

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/dgnsrekt/audiosniff/internal/media"
	"github.com/dgnsrekt/audiosniff/internal/metrics"
	"github.com/dgnsrekt/audiosniff/internal/relay"
)

const (
	DefaultQuiet       = 500 * time.Millisecond
	defaultEvalTimeout = 10 * time.Second
)

// Browser is the slice of a CDP connection the scanner drives.
type Browser interface {
	AttachToTarget(ctx context.Context, targetID string) (string, error)
	DetachFromTarget(ctx context.Context, sessionID string) error
	EnableRuntime(ctx context.Context, sessionID string) error
	Evaluate(ctx context.Context, sessionID, js string) (string, error)
	AddBinding(ctx context.Context, sessionID, name string) error
	AddScriptOnNewDocument(ctx context.Context, sessionID, source string) error
	OnBindingCalled(fn func(sessionID, name, payload string)) func()
}

// Dispatcher receives scan findings as relay requests.
type Dispatcher interface {
	Handle(ctx context.Context, req relay.Request) relay.Response
}

// RulesProvider returns the active sniff rules.
type RulesProvider interface {
	Rules() *media.Rules
}

type trackedTab struct {
	sessionID string
	debouncer *Debouncer
	cancel    context.CancelFunc
}

// Scanner keeps one scan session per tracked tab and reports audio found in
// the page to the relay as DOM_AUDIO_FOUND.
type Scanner struct {
	browser     Browser
	sink        Dispatcher
	rules       RulesProvider
	quiet       time.Duration
	evalTimeout time.Duration
	now         func() time.Time

	mu        sync.Mutex
	tabs      map[string]*trackedTab
	bySession map[string]string
	unbind    func()
	wg        sync.WaitGroup
}

// NewScanner wires a scanner. quiet <= 0 uses DefaultQuiet.
func NewScanner(browser Browser, sink Dispatcher, rules RulesProvider, quiet time.Duration) *Scanner {
	if quiet <= 0 {
		quiet = DefaultQuiet
	}
	s := &Scanner{
		browser:     browser,
		sink:        sink,
		rules:       rules,
		quiet:       quiet,
		evalTimeout: defaultEvalTimeout,
		now:         time.Now,
		tabs:        make(map[string]*trackedTab),
		bySession:   make(map[string]string),
	}
	s.unbind = browser.OnBindingCalled(s.onBinding)
	return s
}

func (s *Scanner) onBinding(sessionID, name, _ string) {
	if name != BindingName {
		return
	}
	s.mu.Lock()
	tabID, ok := s.bySession[sessionID]
	s.mu.Unlock()
	if !ok {
		return
	}
	slog.Debug("page audio change observed", "tab_id", tabID)
	s.Trigger(tabID)
}

// Track opens a scan session on tabID, installs the change observer and
// schedules an initial scan. Tracking an already tracked tab is a no-op.
func (s *Scanner) Track(ctx context.Context, tabID string) error {
	s.mu.Lock()
	_, exists := s.tabs[tabID]
	s.mu.Unlock()
	if exists {
		return nil
	}

	sessionID, err := s.browser.AttachToTarget(ctx, tabID)
	if err != nil {
		return fmt.Errorf("attach scan session: %w", err)
	}
	if err := s.install(ctx, sessionID); err != nil {
		_ = s.browser.DetachFromTarget(ctx, sessionID)
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	tab := &trackedTab{sessionID: sessionID, cancel: cancel}
	tab.debouncer = NewDebouncer(s.quiet, func(ctx context.Context) {
		if _, err := s.ScanTab(ctx, tabID); err != nil {
			slog.Debug("page scan failed", "tab_id", tabID, "error", err)
		}
	})

	s.mu.Lock()
	if _, exists := s.tabs[tabID]; exists {
		s.mu.Unlock()
		cancel()
		_ = s.browser.DetachFromTarget(ctx, sessionID)
		return nil
	}
	s.tabs[tabID] = tab
	s.bySession[sessionID] = tabID
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		tab.debouncer.Run(runCtx)
	}()
	tab.debouncer.Trigger()

	slog.Info("page scanning enabled", "tab_id", tabID)
	return nil
}

func (s *Scanner) install(ctx context.Context, sessionID string) error {
	pattern := s.rules.Rules().LinkPattern()
	if err := s.browser.EnableRuntime(ctx, sessionID); err != nil {
		return fmt.Errorf("enable runtime: %w", err)
	}
	if err := s.browser.AddBinding(ctx, sessionID, BindingName); err != nil {
		return fmt.Errorf("add binding: %w", err)
	}
	observer := observerScript(pattern)
	if err := s.browser.AddScriptOnNewDocument(ctx, sessionID, observer); err != nil {
		return fmt.Errorf("install observer: %w", err)
	}
	if _, err := s.browser.Evaluate(ctx, sessionID, observer); err != nil {
		return fmt.Errorf("start observer: %w", err)
	}
	return nil
}

// Untrack stops scanning tabID and closes its session.
func (s *Scanner) Untrack(tabID string) {
	s.mu.Lock()
	tab, ok := s.tabs[tabID]
	if ok {
		delete(s.tabs, tabID)
		delete(s.bySession, tab.sessionID)
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	tab.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.browser.DetachFromTarget(ctx, tab.sessionID); err != nil {
		slog.Debug("scan session detach failed", "tab_id", tabID, "error", err)
	}
}

// Trigger schedules a debounced rescan of tabID. It reports whether the tab
// is tracked.
func (s *Scanner) Trigger(tabID string) bool {
	s.mu.Lock()
	tab, ok := s.tabs[tabID]
	s.mu.Unlock()
	if ok {
		tab.debouncer.Trigger()
	}
	return ok
}

// TriggerAll schedules a rescan of every tracked tab and returns how many.
func (s *Scanner) TriggerAll() int {
	ids := s.Tracked()
	for _, id := range ids {
		s.Trigger(id)
	}
	return len(ids)
}

// Tracked lists tracked tab IDs in order.
func (s *Scanner) Tracked() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.tabs))
	for id := range s.tabs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ScanTab evaluates the scan script in tabID right away and forwards the
// findings. It returns how many records were new to the registry.
func (s *Scanner) ScanTab(ctx context.Context, tabID string) (int, error) {
	s.mu.Lock()
	tab, ok := s.tabs[tabID]
	s.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("tab %s is not tracked", tabID)
	}

	rules := s.rules.Rules()
	evalCtx, cancel := context.WithTimeout(ctx, s.evalTimeout)
	defer cancel()

	raw, err := s.browser.Evaluate(evalCtx, tab.sessionID, scanScript(rules.LinkPattern()))
	if err != nil {
		metrics.ScansTotal.WithLabelValues("error").Inc()
		return 0, fmt.Errorf("evaluate scan: %w", err)
	}
	res, err := parseScan(raw)
	if err != nil {
		metrics.ScansTotal.WithLabelValues("error").Inc()
		return 0, err
	}
	if len(res.Items) == 0 {
		metrics.ScansTotal.WithLabelValues("empty").Inc()
		return 0, nil
	}
	metrics.ScansTotal.WithLabelValues("ok").Inc()

	files := toRecords(res, tabID, rules, s.now())
	resp := s.sink.Handle(ctx, relay.DOMAudioFound{Files: files})
	if !resp.Success {
		return 0, fmt.Errorf("relay rejected scan results: %s", resp.Error)
	}
	added := 0
	if r, ok := resp.Data.(relay.DOMResult); ok {
		added = r.Added
	}
	slog.Debug("page scanned", "tab_id", tabID, "found", len(files), "added", added)
	return added, nil
}

// Close stops every tab's scan loop and detaches.
func (s *Scanner) Close() {
	for _, id := range s.Tracked() {
		s.Untrack(id)
	}
	if s.unbind != nil {
		s.unbind()
	}
	s.wg.Wait()
}

func toRecords(res scanResult, tabID string, rules *media.Rules, now time.Time) []media.Record {
	title := res.Title
	if title == "" {
		title = media.UnknownTitle
	}
	out := make([]media.Record, 0, len(res.Items))
	for _, item := range res.Items {
		if item.Kind == "link" && !rules.IsAudioLink(item.URL) {
			continue
		}
		contentType := item.Type
		if contentType == "" {
			contentType = "audio/mpeg"
		}
		out = append(out, media.Record{
			ID:          media.DOMID(item.Kind, now),
			URL:         item.URL,
			Filename:    rules.DeriveFilename(item.URL, now),
			ContentType: contentType,
			Timestamp:   now.UTC(),
			TabID:       tabID,
			TabTitle:    title,
			Source:      media.SourceDOM,
		})
	}
	return out
}
