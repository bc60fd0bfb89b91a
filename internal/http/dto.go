package http

import (
	"encoding/json"
	"fmt"
	"time"

	"shakkin/internal/core"
	"shakkin/internal/loans"
	"shakkin/internal/projection"
	"shakkin/internal/services"
)

// amount is a computed money figure, encoded as a JSON number rounded to
// core.AmountPlaces.
type amount float64

func (a amount) MarshalJSON() ([]byte, error) {
	return []byte(core.RoundAmount(float64(a)).String()), nil
}

// inputAmount accepts a JSON number or a string such as "¥3,000,000".
type inputAmount float64

func (a *inputAmount) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		v, err := core.ParseAmount(s)
		if err != nil {
			return err
		}
		*a = inputAmount(v)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("%w: %s", core.ErrInvalidAmount, b)
	}
	*a = inputAmount(f)
	return nil
}

// inputRate accepts a JSON number or a string such as "14.5%".
type inputRate float64

func (r *inputRate) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		v, err := core.ParseRate(s)
		if err != nil {
			return err
		}
		*r = inputRate(v)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("%w: %s", core.ErrInvalidRate, b)
	}
	*r = inputRate(f)
	return nil
}

// loanRequest is the body of loan create and update calls. Absent fields
// are left unchanged on update.
type loanRequest struct {
	ID             string       `json:"id,omitempty"`
	Title          *string      `json:"title"`
	Kind           *string      `json:"kind"`
	Principal      *inputAmount `json:"principal"`
	CurrentBalance *inputAmount `json:"current_balance"`
	InterestRate   *inputRate   `json:"interest_rate"`
	MonthlyPayment *inputAmount `json:"monthly_payment"`
}

func (req loanRequest) patch() (core.LoanPatch, error) {
	var p core.LoanPatch
	if req.Title != nil {
		t := sanitizeInput(*req.Title)
		p.Title = &t
	}
	if req.Kind != nil {
		k, err := core.ParseLoanKind(*req.Kind)
		if err != nil {
			return core.LoanPatch{}, err
		}
		p.Kind = &k
	}
	p.Principal = (*float64)(req.Principal)
	p.CurrentBalance = (*float64)(req.CurrentBalance)
	p.InterestRate = (*float64)(req.InterestRate)
	p.MonthlyPayment = (*float64)(req.MonthlyPayment)
	return p, nil
}

type loanResponse struct {
	ID             string  `json:"id"`
	Title          string  `json:"title"`
	Kind           string  `json:"kind"`
	Principal      amount  `json:"principal"`
	CurrentBalance amount  `json:"current_balance"`
	InterestRate   float64 `json:"interest_rate"`
	MonthlyPayment amount  `json:"monthly_payment"`
}

func toLoanResponse(l core.Loan) loanResponse {
	return loanResponse{
		ID:             l.ID,
		Title:          l.Title,
		Kind:           l.Kind.String(),
		Principal:      amount(l.Principal),
		CurrentBalance: amount(l.CurrentBalance),
		InterestRate:   l.InterestRate,
		MonthlyPayment: amount(l.MonthlyPayment),
	}
}

type templateResponse struct {
	ID             string  `json:"id"`
	Title          string  `json:"title"`
	Kind           string  `json:"kind"`
	Principal      amount  `json:"principal"`
	InterestRate   float64 `json:"interest_rate"`
	MonthlyPayment amount  `json:"monthly_payment"`
}

func toTemplateResponse(t core.Template) templateResponse {
	return templateResponse{
		ID:             t.ID,
		Title:          t.Title,
		Kind:           t.Kind.String(),
		Principal:      amount(t.Principal),
		InterestRate:   t.InterestRate,
		MonthlyPayment: amount(t.MonthlyPayment),
	}
}

const dateLayout = "2006-01-02"

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

type loanProjectionResponse struct {
	Loan            loanResponse `json:"loan"`
	MonthlyInterest amount       `json:"monthly_interest"`
	MonthsToPayoff  *int         `json:"months_to_payoff"` // null when the loan never pays off
	NeverPaysOff    bool         `json:"never_pays_off"`
	Truncated       bool         `json:"truncated"`
	TotalInterest   amount       `json:"total_interest"`
	PayoffDate      string       `json:"payoff_date,omitempty"`
	ProgressPercent amount       `json:"progress_percent"`
	PaidOff         bool         `json:"paid_off"`
}

type summaryResponse struct {
	AsOf                string                   `json:"as_of"`
	LoanCount           int                      `json:"loan_count"`
	TotalBalance        amount                   `json:"total_balance"`
	TotalPrincipal      amount                   `json:"total_principal"`
	TotalMonthlyPayment amount                   `json:"total_monthly_payment"`
	PaidAmount          amount                   `json:"paid_amount"`
	ProgressPercent     amount                   `json:"progress_percent"`
	EstimatedMonths     int                      `json:"estimated_months"`
	TotalInterest       amount                   `json:"total_interest"`
	PayoffMonths        int                      `json:"payoff_months"`
	LatestPayoff        string                   `json:"latest_payoff,omitempty"`
	NeverPayoffCount    int                      `json:"never_payoff_count"`
	TruncatedCount      int                      `json:"truncated_count"`
	Loans               []loanProjectionResponse `json:"loans"`
}

func toSummaryResponse(sum services.Summary) summaryResponse {
	out := summaryResponse{
		AsOf:                formatDate(sum.GeneratedAt),
		LoanCount:           sum.LoanCount,
		TotalBalance:        amount(sum.TotalBalance),
		TotalPrincipal:      amount(sum.TotalPrincipal),
		TotalMonthlyPayment: amount(sum.TotalMonthlyPayment),
		PaidAmount:          amount(sum.PaidAmount),
		ProgressPercent:     amount(sum.ProgressPercent),
		EstimatedMonths:     sum.EstimatedMonths,
		TotalInterest:       amount(sum.TotalInterest),
		PayoffMonths:        sum.PayoffMonths,
		LatestPayoff:        formatDate(sum.LatestPayoff),
		NeverPayoffCount:    sum.NeverPayoffCount,
		TruncatedCount:      sum.TruncatedCount,
		Loans:               make([]loanProjectionResponse, 0, len(sum.Loans)),
	}
	for _, p := range sum.Loans {
		lp := loanProjectionResponse{
			Loan:            toLoanResponse(p.Loan),
			MonthlyInterest: amount(p.MonthlyInterest),
			NeverPaysOff:    p.Payoff.Never(),
			Truncated:       p.Payoff.Truncated(),
			TotalInterest:   amount(p.TotalInterest),
			PayoffDate:      formatDate(p.PayoffDate),
			ProgressPercent: amount(p.ProgressPercent),
			PaidOff:         p.PaidOff,
		}
		if n, ok := p.Payoff.Months(); ok {
			lp.MonthsToPayoff = &n
		}
		out.Loans = append(out.Loans, lp)
	}
	return out
}

type monthlyEntryResponse struct {
	Period    int    `json:"period"`
	Month     string `json:"month"`
	Principal amount `json:"principal"`
	Interest  amount `json:"interest"`
	Total     amount `json:"total"`
}

type yearlyEntryResponse struct {
	Year      int    `json:"year"`
	From      string `json:"from"`
	Principal amount `json:"principal"`
	Interest  amount `json:"interest"`
	Total     amount `json:"total"`
}

type balanceEntryResponse struct {
	Period  int    `json:"period"`
	Month   string `json:"month"`
	Balance amount `json:"balance"`
}

type snapshotResponse struct {
	TakenAt          string `json:"taken_at"`
	LoanCount        int    `json:"loan_count"`
	TotalBalance     amount `json:"total_balance"`
	TotalInterest    amount `json:"total_interest"`
	PayoffMonths     int    `json:"payoff_months"`
	NeverPayoffCount int    `json:"never_payoff_count"`
}

func toSnapshotsResponse(snaps []loans.Snapshot) []snapshotResponse {
	out := make([]snapshotResponse, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, snapshotResponse{
			TakenAt:          s.TakenAt.UTC().Format(time.RFC3339),
			LoanCount:        s.LoanCount,
			TotalBalance:     amount(s.TotalBalance),
			TotalInterest:    amount(s.TotalInterest),
			PayoffMonths:     s.PayoffMonths,
			NeverPayoffCount: s.NeverPayoffCount,
		})
	}
	return out
}

type seriesResponse[T any] struct {
	Start   string `json:"start"`
	Entries []T    `json:"entries"`
}

func toMonthlyResponse(entries []projection.MonthlyEntry, now time.Time) seriesResponse[monthlyEntryResponse] {
	out := seriesResponse[monthlyEntryResponse]{Start: projection.PeriodLabel(now, 0)}
	for _, e := range entries {
		out.Entries = append(out.Entries, monthlyEntryResponse{
			Period:    e.Period,
			Month:     projection.PeriodLabel(now, e.Period),
			Principal: amount(e.Principal),
			Interest:  amount(e.Interest),
			Total:     amount(e.Total),
		})
	}
	return out
}

func toYearlyResponse(entries []projection.YearlyEntry, now time.Time) seriesResponse[yearlyEntryResponse] {
	out := seriesResponse[yearlyEntryResponse]{Start: projection.PeriodLabel(now, 0)}
	for _, e := range entries {
		out.Entries = append(out.Entries, yearlyEntryResponse{
			Year:      e.Year,
			From:      projection.PeriodLabel(now, 12*e.Year),
			Principal: amount(e.Principal),
			Interest:  amount(e.Interest),
			Total:     amount(e.Total),
		})
	}
	return out
}

func toBalanceResponse(entries []projection.BalanceEntry, now time.Time) seriesResponse[balanceEntryResponse] {
	out := seriesResponse[balanceEntryResponse]{Start: projection.PeriodLabel(now, 0)}
	for _, e := range entries {
		out.Entries = append(out.Entries, balanceEntryResponse{
			Period:  e.Period,
			Month:   projection.PeriodLabel(now, e.Period),
			Balance: amount(e.Balance),
		})
	}
	return out
}
