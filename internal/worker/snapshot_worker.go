package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"shakkin/internal/amqp"
	"shakkin/internal/loans"
	applog "shakkin/internal/log"
	"shakkin/internal/projection"
	"shakkin/internal/services"
)

// ScheduleExporter writes the yearly payoff schedule somewhere outside the
// process. *sheets.Client implements it.
type ScheduleExporter interface {
	ExportSchedule(ctx context.Context, yearly []projection.YearlyEntry, start time.Time) error
}

// EventSource delivers loan events until ctx is cancelled. *amqp.Client
// implements it.
type EventSource interface {
	ConsumeLoanEvents(ctx context.Context, handler func(context.Context, *amqp.LoanEventMessage) error) error
}

// SnapshotWorker records a portfolio snapshot after every loan change and
// on a fixed interval, and optionally exports the yearly schedule.
type SnapshotWorker struct {
	portfolio *services.PortfolioService
	snapshots loans.SnapshotWriter
	exporter  ScheduleExporter
	logger    *applog.Logger
	now       func() time.Time

	// runs are serialized so snapshots are stored in time order
	mu sync.Mutex
}

// NewSnapshotWorker wires the worker. exporter may be nil.
func NewSnapshotWorker(portfolio *services.PortfolioService, snapshots loans.SnapshotWriter, exporter ScheduleExporter, logger *applog.Logger) *SnapshotWorker {
	if logger == nil {
		logger = applog.FromContext(context.Background())
	}
	return &SnapshotWorker{
		portfolio: portfolio,
		snapshots: snapshots,
		exporter:  exporter,
		logger:    logger.WithComponent(applog.ComponentWorker),
		now:       time.Now,
	}
}

// HandleLoanEvent takes a snapshot for a consumed loan event. A returned
// error requeues the message.
func (w *SnapshotWorker) HandleLoanEvent(ctx context.Context, msg *amqp.LoanEventMessage) error {
	w.logger.InfoContext(ctx, "Processing loan event",
		"type", msg.Type,
		applog.FieldLoanID, msg.LoanID)

	if _, err := w.Snapshot(ctx, string(msg.Type)); err != nil {
		return fmt.Errorf("snapshot after %s %s: %w", msg.Type, msg.LoanID, err)
	}
	return nil
}

// Snapshot summarizes the current portfolio, stores the result and exports
// the yearly schedule when an exporter is configured. Export failures are
// logged; the stored snapshot stands.
func (w *SnapshotWorker) Snapshot(ctx context.Context, reason string) (loans.Snapshot, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	list, err := w.portfolio.Loans(ctx)
	if err != nil {
		return loans.Snapshot{}, err
	}
	now := w.now()
	sum, err := services.Summarize(ctx, list, now)
	if err != nil {
		return loans.Snapshot{}, err
	}

	snap := sum.Snapshot()
	if err := w.snapshots.SaveSnapshot(ctx, snap); err != nil {
		return loans.Snapshot{}, fmt.Errorf("save snapshot: %w", err)
	}

	w.logger.InfoContext(ctx, "Projection snapshot saved",
		applog.FieldOperation, applog.OpSnapshot,
		"reason", reason,
		applog.FieldLoanCount, snap.LoanCount,
		"total_balance", snap.TotalBalance,
		applog.FieldMonthsToPayoff, snap.PayoffMonths,
		applog.FieldNeverPayoff, snap.NeverPayoffCount)

	if w.exporter != nil {
		if err := w.exporter.ExportSchedule(ctx, projection.StackedYearlySeries(list), now); err != nil {
			w.logger.ErrorContext(ctx, "Failed to export payoff schedule",
				applog.FieldOperation, applog.OpExport,
				applog.FieldError, err)
		} else {
			w.logger.DebugContext(ctx, "Payoff schedule exported", applog.FieldOperation, applog.OpExport)
		}
	}

	return snap, nil
}

// Run takes a snapshot at startup and every interval, and consumes loan
// events from events when it is not nil. It returns when ctx is cancelled
// or the event source fails.
func (w *SnapshotWorker) Run(ctx context.Context, events EventSource, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("invalid snapshot interval %v", interval)
	}

	if _, err := w.Snapshot(ctx, "startup"); err != nil {
		w.logger.ErrorContext(ctx, "Startup snapshot failed", applog.FieldError, err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case <-ticker.C:
				if _, err := w.Snapshot(gctx, "interval"); err != nil {
					w.logger.ErrorContext(gctx, "Periodic snapshot failed", applog.FieldError, err)
				}
			}
		}
	})

	if events != nil {
		g.Go(func() error {
			return events.ConsumeLoanEvents(gctx, w.HandleLoanEvent)
		})
	} else {
		w.logger.Info("No event source configured, snapshots run on the interval only")
	}

	err := g.Wait()
	if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return nil
	}
	return err
}
