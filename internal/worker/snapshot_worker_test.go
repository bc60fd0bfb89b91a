package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shakkin/internal/amqp"
	"shakkin/internal/core"
	"shakkin/internal/loans"
	"shakkin/internal/loans/memory"
	applog "shakkin/internal/log"
	"shakkin/internal/projection"
	"shakkin/internal/services"
)

var workerNow = time.Date(2026, time.October, 19, 0, 0, 0, 0, time.UTC)

type fakeExporter struct {
	mu     sync.Mutex
	calls  int
	yearly []projection.YearlyEntry
	start  time.Time
	err    error
}

func (f *fakeExporter) ExportSchedule(_ context.Context, yearly []projection.YearlyEntry, start time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.yearly = yearly
	f.start = start
	return f.err
}

// fakeEvents delivers its messages and then blocks until cancelled.
type fakeEvents struct {
	msgs    []*amqp.LoanEventMessage
	handled chan error
	err     error
}

func (f *fakeEvents) ConsumeLoanEvents(ctx context.Context, handler func(context.Context, *amqp.LoanEventMessage) error) error {
	if f.err != nil {
		return f.err
	}
	for _, m := range f.msgs {
		f.handled <- handler(ctx, m)
	}
	<-ctx.Done()
	return ctx.Err()
}

type failingSnapshots struct{}

func (failingSnapshots) SaveSnapshot(context.Context, loans.Snapshot) error {
	return errors.New("disk full")
}

func newTestWorker(t *testing.T, exporter ScheduleExporter) (*SnapshotWorker, *memory.Store) {
	t.Helper()
	store := memory.New([]core.Loan{
		{ID: "car", Title: "Car", Kind: core.KindFixed, Principal: 130_000, CurrentBalance: 130_000, InterestRate: 1, MonthlyPayment: 10_000},
		{ID: "card", Title: "Card", Kind: core.KindRevolving, CurrentBalance: 100_000, InterestRate: 24, MonthlyPayment: 1500},
	})
	w := NewSnapshotWorker(services.NewPortfolioService(store), store, exporter, applog.Discard())
	w.now = func() time.Time { return workerNow }
	return w, store
}

func TestSnapshot(t *testing.T) {
	exp := &fakeExporter{}
	w, store := newTestWorker(t, exp)
	ctx := context.Background()

	snap, err := w.Snapshot(ctx, "test")
	require.NoError(t, err)

	assert.Equal(t, workerNow, snap.TakenAt)
	assert.Equal(t, 2, snap.LoanCount)
	assert.InDelta(t, 230_000, snap.TotalBalance, 1e-9)
	assert.Equal(t, 1, snap.NeverPayoffCount)
	months, _ := projection.MonthsToPayoff(core.Loan{CurrentBalance: 130_000, InterestRate: 1, MonthlyPayment: 10_000}).Months()
	assert.Equal(t, months, snap.PayoffMonths)

	stored, err := store.RecentSnapshots(ctx, 0)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, snap, stored[0])

	assert.Equal(t, 1, exp.calls)
	assert.Equal(t, workerNow, exp.start)
	require.NotEmpty(t, exp.yearly)
	assert.Equal(t, 0, exp.yearly[0].Year)
}

func TestSnapshot_ExportFailureKeepsSnapshot(t *testing.T) {
	w, store := newTestWorker(t, &fakeExporter{err: errors.New("quota exceeded")})

	_, err := w.Snapshot(context.Background(), "test")
	require.NoError(t, err)

	stored, _ := store.RecentSnapshots(context.Background(), 0)
	assert.Len(t, stored, 1)
}

func TestSnapshot_SaveFailure(t *testing.T) {
	w, _ := newTestWorker(t, nil)
	w.snapshots = failingSnapshots{}

	_, err := w.Snapshot(context.Background(), "test")
	assert.ErrorContains(t, err, "disk full")
}

func TestHandleLoanEvent(t *testing.T) {
	w, store := newTestWorker(t, nil)
	ctx := context.Background()

	require.NoError(t, w.HandleLoanEvent(ctx, amqp.NewLoanEventMessage(amqp.LoanCreated, "car")))
	require.NoError(t, store.DeleteLoan(ctx, "card"))
	require.NoError(t, w.HandleLoanEvent(ctx, amqp.NewLoanEventMessage(amqp.LoanDeleted, "card")))

	stored, err := store.RecentSnapshots(ctx, 0)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, 1, stored[0].LoanCount, "newest snapshot first")
	assert.Equal(t, 0, stored[0].NeverPayoffCount)
	assert.Equal(t, 2, stored[1].LoanCount)
}

func TestHandleLoanEvent_ErrorRequeues(t *testing.T) {
	w, _ := newTestWorker(t, nil)
	w.snapshots = failingSnapshots{}

	err := w.HandleLoanEvent(context.Background(), amqp.NewLoanEventMessage(amqp.LoanUpdated, "car"))
	assert.ErrorContains(t, err, "loan.updated car")
}

func TestRun_ConsumesEventsUntilCancelled(t *testing.T) {
	exp := &fakeExporter{}
	w, store := newTestWorker(t, exp)
	events := &fakeEvents{
		msgs: []*amqp.LoanEventMessage{
			amqp.NewLoanEventMessage(amqp.LoanCreated, "car"),
			amqp.NewLoanEventMessage(amqp.LoanUpdated, "car"),
		},
		handled: make(chan error, 2),
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, events, time.Hour) }()

	for i := 0; i < 2; i++ {
		select {
		case err := <-events.handled:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("event was not handled")
		}
	}
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	// startup snapshot plus one per event
	stored, _ := store.RecentSnapshots(context.Background(), 0)
	assert.Len(t, stored, 3)
	assert.Equal(t, 3, exp.calls)
}

func TestRun_EventSourceFailure(t *testing.T) {
	w, _ := newTestWorker(t, nil)
	err := w.Run(context.Background(), &fakeEvents{err: errors.New("channel closed")}, time.Hour)
	assert.ErrorContains(t, err, "channel closed")
}

func TestRun_IntervalOnly(t *testing.T) {
	w, store := newTestWorker(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()
	require.NoError(t, w.Run(ctx, nil, 20*time.Millisecond))

	stored, _ := store.RecentSnapshots(context.Background(), 0)
	assert.GreaterOrEqual(t, len(stored), 2)
}

func TestRun_InvalidInterval(t *testing.T) {
	w, _ := newTestWorker(t, nil)
	assert.Error(t, w.Run(context.Background(), nil, 0))
}
