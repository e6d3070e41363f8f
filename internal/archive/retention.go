package archive

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Retention prunes old archives on a cron schedule.
type Retention struct {
	store    *Store
	schedule string
	maxAge   time.Duration
	cron     *cron.Cron
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
}

// NewRetention creates a scheduler that prunes archives older than maxAge.
// schedule is a standard five-field cron expression; empty disables it.
func NewRetention(store *Store, schedule string, maxAge time.Duration) *Retention {
	return &Retention{
		store:    store,
		schedule: schedule,
		maxAge:   maxAge,
		cron:     cron.New(),
		logger:   slog.Default().With("component", "archive.retention"),
	}
}

// Start schedules pruning and stops it when ctx is cancelled.
func (r *Retention) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.schedule == "" || r.maxAge <= 0 {
		r.logger.Info("archive retention disabled")
		return nil
	}
	if _, err := cron.ParseStandard(r.schedule); err != nil {
		return fmt.Errorf("invalid retention schedule %q: %w", r.schedule, err)
	}
	if _, err := r.cron.AddFunc(r.schedule, r.RunOnce); err != nil {
		return fmt.Errorf("schedule retention: %w", err)
	}

	r.cron.Start()
	r.running = true
	r.logger.Info("archive retention started", "schedule", r.schedule, "max_age", r.maxAge)

	go func() {
		<-ctx.Done()
		r.Stop()
	}()
	return nil
}

// RunOnce performs a single pruning pass.
func (r *Retention) RunOnce() {
	removed, err := r.store.Prune(r.maxAge)
	if err != nil {
		r.logger.Error("archive pruning failed", "error", err)
		return
	}
	if removed > 0 {
		r.logger.Info("archive pruning completed", "removed", removed)
		return
	}
	r.logger.Debug("archive pruning completed, nothing to remove")
}

// Stop halts the schedule and waits for a running prune to finish.
func (r *Retention) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return
	}
	<-r.cron.Stop().Done()
	r.running = false
	r.logger.Info("archive retention stopped")
}

// Running reports whether the schedule is active.
func (r *Retention) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// NextRun returns the next scheduled prune, or nil when not scheduled.
func (r *Retention) NextRun() *time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := r.cron.Entries()
	if !r.running || len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
