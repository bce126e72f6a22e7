package agent

import (
	"context"
	"fmt"
	"log/slog"

	"regenie/internal/channel"
	"regenie/internal/metrics"
	"regenie/internal/store"
)

// Ledger deduplicates Slack deliveries. *store.SQLiteStore satisfies it.
type Ledger interface {
	Claim(ctx context.Context, rec store.EventRecord) (bool, error)
	Finish(ctx context.Context, eventID string, cause error) error
}

// EventProcessor handles one event to completion. *Handler satisfies it.
type EventProcessor interface {
	Handle(ctx context.Context, ev channel.Event) error
}

// DispatcherConfig wires a Dispatcher.
type DispatcherConfig struct {
	Handler    EventProcessor
	Ledger     Ledger // optional
	Background *BackgroundExecutor
	Metrics    *metrics.Metrics // optional
	// Async returns from HandleEvent before the event is processed.
	Async  bool
	Logger *slog.Logger
}

// Dispatcher sits between the transports and the Handler: it drops retried
// deliveries, detaches work from the request and records the outcome.
type Dispatcher struct {
	handler    EventProcessor
	ledger     Ledger
	background *BackgroundExecutor
	metrics    *metrics.Metrics
	async      bool
	logger     *slog.Logger
}

var _ channel.EventHandler = (*Dispatcher)(nil)

func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Background == nil {
		cfg.Background = NewBackgroundExecutor(cfg.Logger)
	}
	return &Dispatcher{
		handler:    cfg.Handler,
		ledger:     cfg.Ledger,
		background: cfg.Background,
		metrics:    cfg.Metrics,
		async:      cfg.Async,
		logger:     cfg.Logger,
	}
}

// HandleEvent implements channel.EventHandler. In async mode it returns as
// soon as the event is queued; otherwise it returns the handler's error.
func (d *Dispatcher) HandleEvent(ctx context.Context, eventID string, ev channel.Event) error {
	kind := ev.Kind()
	logger := d.logger.With("event_id", eventID, "kind", kind)

	if _, ignored := ev.(channel.Ignored); ignored {
		return d.handler.Handle(ctx, ev)
	}
	d.metrics.EventReceived(kind)

	if d.ledger != nil && eventID != "" {
		fresh, err := d.ledger.Claim(ctx, store.EventRecord{EventID: eventID, Kind: kind, Channel: channel.ChannelOf(ev)})
		if err != nil {
			// An unavailable ledger does not block processing.
			logger.Warn("event ledger unavailable", "err", err)
		} else if !fresh {
			d.metrics.EventDuplicate()
			logger.Info("duplicate delivery skipped")
			return nil
		}
	}

	if !d.async {
		return d.process(ctx, eventID, ev, logger)
	}

	taskCtx := context.WithoutCancel(ctx)
	d.background.Submit(taskCtx, kind, func(ctx context.Context) error {
		return d.process(ctx, eventID, ev, logger)
	})
	return nil
}

func (d *Dispatcher) process(ctx context.Context, eventID string, ev channel.Event, logger *slog.Logger) error {
	err := d.handler.Handle(ctx, ev)
	if err != nil {
		d.metrics.EventFailed(ev.Kind())
		err = fmt.Errorf("%s: %w", ev.Kind(), err)
	}
	if d.ledger != nil && eventID != "" {
		if ferr := d.ledger.Finish(ctx, eventID, err); ferr != nil {
			logger.Warn("event ledger update failed", "err", ferr)
		}
	}
	return err
}

// Background exposes the executor, for health reporting and shutdown.
func (d *Dispatcher) Background() *BackgroundExecutor { return d.background }
