package pagescan

import (
	"context"
	"time"
)

// Debouncer runs fn once a quiet period has passed since the last Trigger.
// Triggers that arrive while fn runs schedule one more run.
type Debouncer struct {
	quiet time.Duration
	fn    func(ctx context.Context)
	kick  chan struct{}
}

func NewDebouncer(quiet time.Duration, fn func(ctx context.Context)) *Debouncer {
	return &Debouncer{
		quiet: quiet,
		fn:    fn,
		kick:  make(chan struct{}, 1),
	}
}

// Trigger restarts the quiet period. It never blocks.
func (d *Debouncer) Trigger() {
	select {
	case d.kick <- struct{}{}:
	default:
	}
}

// Run processes triggers until ctx is cancelled. A pending run is dropped on
// cancellation.
func (d *Debouncer) Run(ctx context.Context) {
	timer := time.NewTimer(d.quiet)
	timer.Stop()
	defer timer.Stop()

	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.kick:
			timer.Reset(d.quiet)
			fire = timer.C
		case <-fire:
			fire = nil
			d.fn(ctx)
		}
	}
}
