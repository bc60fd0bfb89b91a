package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shakkin/internal/amqp"
	"shakkin/internal/core"
	"shakkin/internal/loans"
	"shakkin/internal/loans/memory"
)

type event struct {
	Type   amqp.EventType
	LoanID string
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []event
	err    error
}

func (p *recordingPublisher) PublishLoanEvent(_ context.Context, t amqp.EventType, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event{t, id})
	return p.err
}

func newLoanService(t *testing.T) (*LoanService, *recordingPublisher) {
	t.Helper()
	pub := &recordingPublisher{}
	return NewLoanService(memory.New(nil), pub), pub
}

func TestLoanService_CreateLoan(t *testing.T) {
	ctx := context.Background()
	svc, pub := newLoanService(t)

	created, err := svc.CreateLoan(ctx, core.Loan{
		Title:          "  Car loan ",
		CurrentBalance: 1_800_000,
		InterestRate:   2.5,
		MonthlyPayment: 50_000,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Car loan", created.Title)
	assert.Equal(t, core.KindFixed, created.Kind)
	assert.Equal(t, 1_800_000.0, created.Principal)
	assert.Equal(t, []event{{amqp.LoanCreated, created.ID}}, pub.events)

	stored, err := svc.GetLoan(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, stored)
}

func TestLoanService_CreateLoanRejectsInvalid(t *testing.T) {
	svc, pub := newLoanService(t)

	_, err := svc.CreateLoan(context.Background(), core.Loan{Title: "No rate", CurrentBalance: 10, MonthlyPayment: 1})
	assert.ErrorIs(t, err, core.ErrInvalidRate)
	assert.Empty(t, pub.events)
}

func TestLoanService_PublishFailureDoesNotFailWrite(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{err: errors.New("connection refused")}
	svc := NewLoanService(memory.New(nil), pub)

	created, err := svc.CreateLoan(ctx, core.Loan{Title: "Card", Kind: core.KindRevolving, CurrentBalance: 100, InterestRate: 15, MonthlyPayment: 10})
	require.NoError(t, err)

	_, err = svc.GetLoan(ctx, created.ID)
	assert.NoError(t, err)
}

func TestLoanService_WithoutPublisher(t *testing.T) {
	svc := NewLoanService(memory.New(nil), nil)

	_, err := svc.CreateLoan(context.Background(), core.Loan{Title: "Card", Kind: core.KindRevolving, CurrentBalance: 100, InterestRate: 15, MonthlyPayment: 10})
	assert.NoError(t, err)
	assert.NoError(t, svc.Close())
}

func TestLoanService_UpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	svc, pub := newLoanService(t)

	created, err := svc.CreateLoan(ctx, core.Loan{Title: "Student", CurrentBalance: 1000, InterestRate: 1, MonthlyPayment: 100})
	require.NoError(t, err)

	payment := 200.0
	updated, err := svc.UpdateLoan(ctx, created.ID, core.LoanPatch{MonthlyPayment: &payment})
	require.NoError(t, err)
	assert.Equal(t, payment, updated.MonthlyPayment)
	assert.Equal(t, created.Principal, updated.Principal)

	require.NoError(t, svc.DeleteLoan(ctx, created.ID))
	_, err = svc.GetLoan(ctx, created.ID)
	assert.ErrorIs(t, err, loans.ErrNotFound)

	assert.Equal(t, []event{
		{amqp.LoanCreated, created.ID},
		{amqp.LoanUpdated, created.ID},
		{amqp.LoanDeleted, created.ID},
	}, pub.events)

	_, err = svc.UpdateLoan(ctx, created.ID, core.LoanPatch{MonthlyPayment: &payment})
	assert.ErrorIs(t, err, loans.ErrNotFound)
	assert.ErrorIs(t, svc.DeleteLoan(ctx, created.ID), loans.ErrNotFound)
	assert.Len(t, pub.events, 3)
}

func TestLoanService_CreateFromTemplate(t *testing.T) {
	ctx := context.Background()
	svc, _ := newLoanService(t)

	t.Run("balance defaults to template principal", func(t *testing.T) {
		l, err := svc.CreateFromTemplate(ctx, "template-5", 0, core.LoanPatch{})
		require.NoError(t, err)
		assert.Equal(t, core.KindFixed, l.Kind)
		assert.Equal(t, 2_000_000.0, l.CurrentBalance)
		assert.Equal(t, 2_000_000.0, l.Principal)
	})

	t.Run("overrides apply on top", func(t *testing.T) {
		title := "My card"
		l, err := svc.CreateFromTemplate(ctx, "template-2", 120_000, core.LoanPatch{Title: &title})
		require.NoError(t, err)
		assert.Equal(t, title, l.Title)
		assert.Equal(t, core.KindRevolving, l.Kind)
		assert.Equal(t, 120_000.0, l.CurrentBalance)
	})

	t.Run("interest-free template needs a rate", func(t *testing.T) {
		_, err := svc.CreateFromTemplate(ctx, "template-8", 50_000, core.LoanPatch{})
		assert.ErrorIs(t, err, core.ErrInvalidRate)
	})

	t.Run("unknown template", func(t *testing.T) {
		_, err := svc.CreateFromTemplate(ctx, "nope", 0, core.LoanPatch{})
		assert.ErrorIs(t, err, ErrUnknownTemplate)
	})

	titles, err := svc.PreviousTitles(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"My card", "車ローン（トヨタ）"}, titles)
}
