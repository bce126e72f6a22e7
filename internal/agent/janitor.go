package agent

import (
	"context"
	"log/slog"
	"time"
)

// Pruner drops ledger entries older than maxAge. *store.SQLiteStore
// satisfies it.
type Pruner interface {
	Prune(ctx context.Context, maxAge time.Duration) (int64, error)
}

// JanitorConfig configures periodic housekeeping.
type JanitorConfig struct {
	Interval   time.Duration // default 1h
	Retention  time.Duration // ledger entries older than this are pruned
	Ledger     Pruner        // optional
	Background *BackgroundExecutor
	Logger     *slog.Logger
}

// Janitor prunes the event ledger and forgets finished background tasks.
type Janitor struct {
	interval   time.Duration
	retention  time.Duration
	ledger     Pruner
	background *BackgroundExecutor
	logger     *slog.Logger
}

func NewJanitor(cfg JanitorConfig) *Janitor {
	if cfg.Interval < time.Minute {
		cfg.Interval = time.Hour
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 7 * 24 * time.Hour
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Janitor{
		interval:   cfg.Interval,
		retention:  cfg.Retention,
		ledger:     cfg.Ledger,
		background: cfg.Background,
		logger:     cfg.Logger,
	}
}

// Start runs housekeeping every interval. Blocks until ctx is cancelled.
func (j *Janitor) Start(ctx context.Context) {
	j.logger.Debug("janitor started", "interval", j.interval, "retention", j.retention)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

func (j *Janitor) sweep(ctx context.Context) {
	if j.ledger != nil {
		n, err := j.ledger.Prune(ctx, j.retention)
		if err != nil {
			j.logger.Warn("ledger prune failed", "err", err)
		} else if n > 0 {
			j.logger.Info("ledger pruned", "removed", n)
		}
	}
	if j.background != nil {
		j.background.Clean(finishedRetention)
	}
}
