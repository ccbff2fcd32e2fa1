package holds

import (
	"context"
	"fmt"
	"time"

	"tickio/internal/logger"
)

// DefaultSweepInterval bounds how stale an expired hold row can get before
// it is physically deleted. Expired rows already contribute nothing to
// availability, so the interval is a housekeeping knob, not a correctness
// one.
const DefaultSweepInterval = 60 * time.Second

// Reaper periodically deletes expired holds so the holds table stays small
// and the expiry index stays useful.
type Reaper struct {
	Store    *Store
	Interval time.Duration
	Logger   *logger.Logger
}

func NewReaper(store *Store, interval time.Duration, log *logger.Logger) *Reaper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Reaper{Store: store, Interval: interval, Logger: log}
}

// Sweep deletes every hold whose expiry has passed and returns the count.
func (r *Reaper) Sweep(ctx context.Context) (int, error) {
	return r.Store.DB.DeleteExpired(ctx, r.Store.Now())
}

// Run sweeps on a fixed interval until the context is cancelled. Meant to
// be started as a goroutine from main.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()

	r.Logger.Info("REAPER", fmt.Sprintf("Sweeping expired holds every %s", r.Interval))

	for {
		select {
		case <-ctx.Done():
			r.Logger.Info("REAPER", "Stopping hold sweeps")
			return
		case <-ticker.C:
			removed, err := r.Sweep(ctx)
			if err != nil {
				r.Logger.Error("REAPER", fmt.Sprintf("Sweep failed: %v", err))
				continue
			}
			if removed > 0 {
				r.Logger.Info("REAPER", fmt.Sprintf("Removed %d expired holds", removed))
			}
		}
	}
}
