package sqlite

import (
	"context"
	"log/slog"
	"time"

	"tasnim.dev/role-grant/internal/grant"
)

// Sweeper stands in for DynamoDB TTL in local mode: on every tick it deletes
// expired rows and hands their snapshots to onExpired.
type Sweeper struct {
	store     *Store
	interval  time.Duration
	onExpired func(ctx context.Context, expired []grant.RoleRequest)
	logger    *slog.Logger
	now       func() time.Time
}

func NewSweeper(store *Store, interval time.Duration, onExpired func(context.Context, []grant.RoleRequest), logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		store:     store,
		interval:  interval,
		onExpired: onExpired,
		logger:    logger.With("component", "sweeper"),
		now:       time.Now,
	}
}

// Run sweeps until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.SweepOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// SweepOnce runs a single sweep and returns how many records expired.
func (s *Sweeper) SweepOnce(ctx context.Context) int {
	expired, err := s.store.Sweep(ctx, s.now())
	if err != nil {
		s.logger.ErrorContext(ctx, "sweep failed", "error", err)
		return 0
	}
	if len(expired) == 0 {
		return 0
	}
	s.logger.InfoContext(ctx, "expired requests removed", "count", len(expired))
	if s.onExpired != nil {
		s.onExpired(ctx, expired)
	}
	return len(expired)
}
