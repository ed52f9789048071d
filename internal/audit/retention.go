package audit

import (
	"context"
	"time"

	"github.com/oxidecomputer/console-sub002/internal/observability"
)

// Pruner is implemented by loggers that can drop old entries.
type Pruner interface {
	// DeleteOlderThan removes entries completed before the cutoff and
	// returns how many were removed.
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}

// RetentionPolicy controls how long entries are kept.
type RetentionPolicy struct {
	MaxAge   time.Duration `yaml:"max_age"`
	Interval time.Duration `yaml:"interval"`
}

// DefaultRetentionPolicy keeps a day of entries and prunes hourly.
func DefaultRetentionPolicy() RetentionPolicy {
	return RetentionPolicy{MaxAge: 24 * time.Hour, Interval: time.Hour}
}

// RunRetention prunes p on every tick of the policy interval until ctx is
// cancelled. A zero MaxAge or Interval disables pruning.
func RunRetention(ctx context.Context, p Pruner, policy RetentionPolicy, logger observability.Logger) {
	if p == nil || policy.MaxAge <= 0 || policy.Interval <= 0 {
		return
	}
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	ticker := time.NewTicker(policy.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := p.DeleteOlderThan(ctx, now.Add(-policy.MaxAge))
			if err != nil {
				logger.ErrorContext(ctx, "audit retention failed", "error", err)
				continue
			}
			if n > 0 {
				logger.InfoContext(ctx, "audit entries pruned", "count", n)
			}
		}
	}
}
