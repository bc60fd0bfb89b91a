package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"shakkin/internal/core"
	"shakkin/internal/loans"
	"shakkin/internal/projection"
)

// LoanProjection is the per-loan view shown next to the portfolio totals.
type LoanProjection struct {
	Loan            core.Loan
	MonthlyInterest float64
	Payoff          projection.Payoff
	TotalInterest   float64
	PayoffDate      time.Time // zero when the loan never pays off
	ProgressPercent float64   // share of principal repaid; 0 without a principal
	PaidOff         bool
}

// Summary aggregates a portfolio at one point in time.
type Summary struct {
	GeneratedAt         time.Time
	LoanCount           int
	TotalBalance        float64
	TotalPrincipal      float64 // fixed loans only
	TotalMonthlyPayment float64
	PaidAmount          float64 // fixed principal minus fixed balance
	ProgressPercent     float64
	EstimatedMonths     int // ceil(total balance / total payment)
	TotalInterest       float64
	PayoffMonths        int       // longest finite payoff
	LatestPayoff        time.Time // zero when no loan has a payoff date
	NeverPayoffCount    int
	TruncatedCount      int
	Loans               []LoanProjection
}

// PortfolioService computes projections for every stored loan.
type PortfolioService struct {
	reader loans.Reader
	now    func() time.Time
}

func NewPortfolioService(reader loans.Reader) *PortfolioService {
	return &PortfolioService{reader: reader, now: time.Now}
}

// Loans returns the current portfolio snapshot.
func (s *PortfolioService) Loans(ctx context.Context) ([]core.Loan, error) {
	list, err := s.reader.ListLoans(ctx)
	if err != nil {
		return nil, fmt.Errorf("load portfolio: %w", err)
	}
	return list, nil
}

// Summary loads the portfolio and summarizes it as of now.
func (s *PortfolioService) Summary(ctx context.Context) (Summary, error) {
	list, err := s.Loans(ctx)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(ctx, list, s.now())
}

// Summarize computes the portfolio totals and the per-loan projections. The
// projections run concurrently; the result does not depend on scheduling.
func Summarize(ctx context.Context, list []core.Loan, now time.Time) (Summary, error) {
	sum := Summary{
		GeneratedAt: now,
		LoanCount:   len(list),
		Loans:       make([]LoanProjection, len(list)),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, l := range list {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			sum.Loans[i] = projectLoan(l, now)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Summary{}, fmt.Errorf("project loans: %w", err)
	}

	fixedBalance := 0.0
	for _, p := range sum.Loans {
		l := p.Loan
		sum.TotalBalance += l.CurrentBalance
		sum.TotalMonthlyPayment += l.MonthlyPayment
		sum.TotalInterest += p.TotalInterest
		if l.Kind == core.KindFixed {
			sum.TotalPrincipal += l.Principal
			fixedBalance += l.CurrentBalance
		}

		months, ok := p.Payoff.Months()
		if !ok {
			sum.NeverPayoffCount++
			continue
		}
		if p.Payoff.Truncated() {
			sum.TruncatedCount++
		}
		sum.PayoffMonths = max(sum.PayoffMonths, months)
		if p.PayoffDate.After(sum.LatestPayoff) {
			sum.LatestPayoff = p.PayoffDate
		}
	}

	sum.PaidAmount = sum.TotalPrincipal - fixedBalance
	if sum.TotalPrincipal > 0 {
		sum.ProgressPercent = sum.PaidAmount / sum.TotalPrincipal * 100
	}
	if sum.TotalMonthlyPayment > 0 {
		sum.EstimatedMonths = int(math.Ceil(sum.TotalBalance / sum.TotalMonthlyPayment))
	}

	return sum, nil
}

func projectLoan(l core.Loan, now time.Time) LoanProjection {
	p := LoanProjection{
		Loan:            l,
		MonthlyInterest: projection.MonthlyInterest(l),
		Payoff:          projection.MonthsToPayoff(l),
		TotalInterest:   projection.TotalInterest(l),
		PaidOff:         l.CurrentBalance <= 0,
	}
	if date, ok := projection.PayoffDate(l, now); ok {
		p.PayoffDate = date
	}
	if l.Principal > 0 {
		p.ProgressPercent = (l.Principal - l.CurrentBalance) / l.Principal * 100
	}
	return p
}

// Snapshot condenses a summary into the record stored over time.
func (s Summary) Snapshot() loans.Snapshot {
	return loans.Snapshot{
		TakenAt:          s.GeneratedAt,
		LoanCount:        s.LoanCount,
		TotalBalance:     s.TotalBalance,
		TotalInterest:    s.TotalInterest,
		PayoffMonths:     s.PayoffMonths,
		NeverPayoffCount: s.NeverPayoffCount,
	}
}
