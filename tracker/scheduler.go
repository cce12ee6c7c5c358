package tracker

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Refresher is the part of Service the scheduler drives.
type Refresher interface {
	Refresh(ctx context.Context, id int64) (*RefreshResult, error)
}

// StaleLister finds products due for a refresh.
type StaleLister interface {
	StaleIDs(ctx context.Context, cutoff time.Time, limit int) ([]int64, error)
}

// StaleIDs returns the IDs of products last checked before cutoff.
func (s *Service) StaleIDs(ctx context.Context, cutoff time.Time, limit int) ([]int64, error) {
	ps, err := s.store.Stale(ctx, cutoff, limit)
	if err != nil {
		return nil, internal("list stale products", err)
	}
	ids := make([]int64, len(ps))
	for i, p := range ps {
		ids[i] = p.ID
	}
	return ids, nil
}

// SchedulerConfig tunes background refreshing.
type SchedulerConfig struct {
	Interval   time.Duration
	StaleAfter time.Duration
	Workers    int
	RPS        float64
	BatchSize  int
}

// Scheduler periodically refreshes stale products with bounded concurrency.
type Scheduler struct {
	refresher Refresher
	lister    StaleLister
	cfg       SchedulerConfig
	limiter   *rate.Limiter
	now       func() time.Time
}

func NewScheduler(r Refresher, l StaleLister, cfg SchedulerConfig) *Scheduler {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = cfg.Workers * 10
	}
	limit := rate.Inf
	if cfg.RPS > 0 {
		limit = rate.Limit(cfg.RPS)
	}
	return &Scheduler{
		refresher: r,
		lister:    l,
		cfg:       cfg,
		limiter:   rate.NewLimiter(limit, 1),
		now:       time.Now,
	}
}

// Run sweeps every Interval until ctx is done. A zero Interval disables it.
func (s *Scheduler) Run(ctx context.Context) {
	if s.cfg.Interval <= 0 {
		slog.Info("background refresh disabled")
		return
	}
	slog.Info("background refresh started", "interval", s.cfg.Interval, "stale_after", s.cfg.StaleAfter, "workers", s.cfg.Workers)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		s.RunOnce(ctx)
		select {
		case <-ctx.Done():
			slog.Info("background refresh stopped")
			return
		case <-ticker.C:
		}
	}
}

// RunOnce refreshes one batch of stale products and returns how many
// succeeded and failed.
func (s *Scheduler) RunOnce(ctx context.Context) (refreshed, failed int) {
	ids, err := s.lister.StaleIDs(ctx, s.now().Add(-s.cfg.StaleAfter), s.cfg.BatchSize)
	if err != nil {
		slog.Error("refresh sweep: listing stale products failed", "error", err)
		return 0, 0
	}
	if len(ids) == 0 {
		return 0, 0
	}

	sem := make(chan struct{}, s.cfg.Workers)
	var wg sync.WaitGroup
	var ok, bad atomic.Int32

	for _, id := range ids {
		if err := s.limiter.Wait(ctx); err != nil {
			break
		}
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if _, err := s.refresher.Refresh(ctx, id); err != nil {
				bad.Add(1)
				slog.Warn("background refresh failed", "id", id, "error", err)
				return
			}
			ok.Add(1)
		}(id)
	}
	wg.Wait()

	slog.Info("refresh sweep finished", "refreshed", ok.Load(), "failed", bad.Load(), "due", len(ids))
	return int(ok.Load()), int(bad.Load())
}
