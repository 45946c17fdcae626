package housekeeping

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"
)

// AlertPruner deletes alert log entries older than a cutoff.
type AlertPruner interface {
	PruneAlerts(ctx context.Context, cutoff time.Time) (int64, error)
}

// Pruner enforces alert log retention.
type Pruner struct {
	store     AlertPruner
	retention time.Duration
	clock     clockwork.Clock
	logger    *slog.Logger
}

// NewPruner creates a pruner that keeps retention worth of alert history.
func NewPruner(store AlertPruner, retention time.Duration, clock clockwork.Clock, logger *slog.Logger) *Pruner {
	return &Pruner{
		store:     store,
		retention: retention,
		clock:     clock,
		logger:    logger,
	}
}

// Run prunes once and returns the number of removed entries.
func (p *Pruner) Run(ctx context.Context) (int64, error) {
	cutoff := p.clock.Now().Add(-p.retention)
	n, err := p.store.PruneAlerts(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune alert log: %w", err)
	}
	if n > 0 {
		p.logger.Info("alert log pruned", "removed", n, "cutoff", cutoff)
	}
	return n, nil
}

// Schedule registers the pruner on c using a cron spec such as "@daily".
func (p *Pruner) Schedule(c *cron.Cron, spec string) (cron.EntryID, error) {
	id, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := p.Run(ctx); err != nil {
			p.logger.Error("scheduled prune failed", "error", err)
		}
	})
	if err != nil {
		return 0, fmt.Errorf("schedule prune %q: %w", spec, err)
	}
	return id, nil
}
