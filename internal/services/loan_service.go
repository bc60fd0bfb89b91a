package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"shakkin/internal/amqp"
	"shakkin/internal/core"
	"shakkin/internal/loans"
)

// ErrUnknownTemplate is returned when a template ID is not in the catalog.
var ErrUnknownTemplate = errors.New("unknown loan template")

// EventPublisher announces loan changes. *amqp.Client implements it.
type EventPublisher interface {
	PublishLoanEvent(ctx context.Context, eventType amqp.EventType, loanID string) error
}

// LoanService orchestrates loan operations across storage and AMQP.
type LoanService struct {
	store     loans.Store
	publisher EventPublisher
}

// NewLoanService wires a store and an optional publisher; a nil publisher
// disables change events.
func NewLoanService(store loans.Store, publisher EventPublisher) *LoanService {
	return &LoanService{store: store, publisher: publisher}
}

func (s *LoanService) ListLoans(ctx context.Context) ([]core.Loan, error) {
	list, err := s.store.ListLoans(ctx)
	if err != nil {
		return nil, fmt.Errorf("list loans: %w", err)
	}
	return list, nil
}

func (s *LoanService) GetLoan(ctx context.Context, id string) (core.Loan, error) {
	return s.store.GetLoan(ctx, id)
}

// CreateLoan assigns an ID when missing, validates, stores the loan and
// publishes a created event.
func (s *LoanService) CreateLoan(ctx context.Context, l core.Loan) (core.Loan, error) {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	l = l.Normalize()
	if err := l.Validate(); err != nil {
		return core.Loan{}, err
	}

	if err := s.store.CreateLoan(ctx, l); err != nil {
		return core.Loan{}, fmt.Errorf("save loan: %w", err)
	}

	s.publish(ctx, amqp.LoanCreated, l.ID)
	return l, nil
}

// CreateFromTemplate creates a loan from a catalog entry. balance defaults to
// the template principal; overrides are applied on top of the template.
func (s *LoanService) CreateFromTemplate(ctx context.Context, templateID string, balance float64, overrides core.LoanPatch) (core.Loan, error) {
	tpl, ok := core.FindTemplate(templateID)
	if !ok {
		return core.Loan{}, fmt.Errorf("%w: %s", ErrUnknownTemplate, templateID)
	}
	return s.CreateLoan(ctx, overrides.Apply(core.NewLoanFromTemplate(tpl, balance)))
}

// UpdateLoan applies a partial update and publishes an updated event.
func (s *LoanService) UpdateLoan(ctx context.Context, id string, patch core.LoanPatch) (core.Loan, error) {
	updated, err := s.store.UpdateLoan(ctx, id, patch)
	if err != nil {
		return core.Loan{}, err
	}
	s.publish(ctx, amqp.LoanUpdated, id)
	return updated, nil
}

// DeleteLoan removes a loan and publishes a deleted event.
func (s *LoanService) DeleteLoan(ctx context.Context, id string) error {
	if err := s.store.DeleteLoan(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, amqp.LoanDeleted, id)
	return nil
}

// PreviousTitles lists the distinct titles already in use.
func (s *LoanService) PreviousTitles(ctx context.Context) ([]string, error) {
	list, err := s.ListLoans(ctx)
	if err != nil {
		return nil, err
	}
	return core.PreviousTitles(list), nil
}

// publish never fails the caller: the change is already stored.
func (s *LoanService) publish(ctx context.Context, eventType amqp.EventType, id string) {
	if s.publisher == nil {
		slog.DebugContext(ctx, "AMQP client not available, skipping loan event", "type", eventType)
		return
	}
	if err := s.publisher.PublishLoanEvent(ctx, eventType, id); err != nil {
		slog.ErrorContext(ctx, "Failed to publish loan event",
			"type", eventType,
			"loan_id", id,
			"error", err)
	}
}

// Close closes the store and publisher when they hold resources.
func (s *LoanService) Close() error {
	var errs []error

	if c, ok := s.store.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if c, ok := s.publisher.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close loan service: %w", errors.Join(errs...))
	}
	return nil
}
