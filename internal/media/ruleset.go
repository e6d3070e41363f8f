package media

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// RuleSet holds the active Rules and swaps them atomically on reload.
type RuleSet struct {
	current atomic.Pointer[Rules]
	path    string
}

// NewRuleSet loads rules from path, or the defaults when path is empty.
func NewRuleSet(path string) (*RuleSet, error) {
	rs := &RuleSet{path: path}
	if path == "" {
		rs.current.Store(DefaultRules())
		return rs, nil
	}
	r, err := LoadRules(path)
	if err != nil {
		return nil, err
	}
	rs.current.Store(r)
	return rs, nil
}

// Rules returns the active rules.
func (rs *RuleSet) Rules() *Rules {
	return rs.current.Load()
}

// Reload re-reads the rules file. The previous rules stay active on error.
func (rs *RuleSet) Reload() error {
	if rs.path == "" {
		return nil
	}
	r, err := LoadRules(rs.path)
	if err != nil {
		return err
	}
	rs.current.Store(r)
	slog.Info("sniff rules reloaded", "path", rs.path, "mime_types", len(r.MIMETypes), "extensions", len(r.Extensions))
	return nil
}

// Watch reloads the rules whenever the file changes. Blocks until ctx is done.
// Editors often replace files instead of writing in place, so the parent
// directory is watched and events are filtered by name.
func (rs *RuleSet) Watch(ctx context.Context, debounce time.Duration) error {
	if rs.path == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("rules watch: %w", err)
	}
	defer watcher.Close()

	abs, err := filepath.Abs(rs.path)
	if err != nil {
		return fmt.Errorf("rules watch: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("rules watch: %w", err)
	}
	slog.Info("sniff rules watcher started", "path", abs)

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("rules watch: events channel closed")
			}
			if filepath.Clean(ev.Name) != abs || ev.Op&fsnotify.Chmod == fsnotify.Chmod {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C
		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("rules watch: errors channel closed")
			}
			slog.Warn("sniff rules watcher error", "error", err)
		case <-fire:
			fire = nil
			if err := rs.Reload(); err != nil {
				slog.Warn("sniff rules reload failed, keeping previous rules", "path", rs.path, "error", err)
			}
		}
	}
}
