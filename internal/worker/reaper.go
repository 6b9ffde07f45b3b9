package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// PendingExpirer cancels registrations left pending for too long.
type PendingExpirer interface {
	ExpireStalePending(ctx context.Context) (int, error)
}

// Reaper periodically releases the seats of abandoned registrations.
type Reaper struct {
	expirer  PendingExpirer
	interval time.Duration
	logger   *slog.Logger
	cancel   context.CancelFunc
	done     chan struct{}
	once     sync.Once
}

func NewReaper(expirer PendingExpirer, interval time.Duration, logger *slog.Logger) *Reaper {
	return &Reaper{
		expirer:  expirer,
		interval: interval,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start runs a sweep immediately and then every interval until ctx is done or Stop is called.
func (r *Reaper) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	go func() {
		defer close(r.done)
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		r.sweep(ctx)
		for {
			select {
			case <-ctx.Done():
				r.logger.Info("registration reaper stopped")
				return
			case <-ticker.C:
				r.sweep(ctx)
			}
		}
	}()
}

func (r *Reaper) sweep(ctx context.Context) {
	n, err := r.expirer.ExpireStalePending(ctx)
	if err != nil {
		if ctx.Err() == nil {
			r.logger.Error("failed to expire pending registrations", "err", err)
		}
		return
	}
	if n > 0 {
		r.logger.Info("expired pending registrations", "count", n)
	}
}

// Stop cancels the loop and waits for the current sweep to finish.
func (r *Reaper) Stop() {
	r.once.Do(func() {
		if r.cancel != nil {
			r.cancel()
			<-r.done
		}
	})
}
