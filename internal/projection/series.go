package projection

import "shakkin/internal/core"

// MonthlyEntry is the portfolio-wide payment breakdown for one period.
// Period 0 is the current month.
type MonthlyEntry struct {
	Period    int
	Principal float64
	Interest  float64
	Total     float64
}

// YearlyEntry sums twelve consecutive MonthlyEntry values. Year 0 covers
// periods 0 through 11.
type YearlyEntry struct {
	Year      int
	Principal float64
	Interest  float64
	Total     float64
}

// BalanceEntry is the outstanding portfolio balance at the start of a period.
type BalanceEntry struct {
	Period  int
	Balance float64
}

// schedule is the per-loan state carried across periods by the series
// generators.
type schedule struct {
	loan    core.Loan
	rate    float64
	months  int
	balance float64
}

// MaxSeriesPeriods bounds the number of periods a series emits after period
// 0. Loans that take longer, such as interest-free loans with a tiny payment,
// are cut off at the bound.
const MaxSeriesPeriods = 1200

// schedules selects the loans that contribute to a series and returns them
// together with the last period index to emit: the longest finite payoff,
// capped at MaxSeriesPeriods.
func schedules(loans []core.Loan) ([]schedule, int) {
	horizon := 0
	out := make([]schedule, 0, len(loans))
	for _, loan := range loans {
		months, ok := MonthsToPayoff(loan).Months()
		if !ok {
			continue
		}
		horizon = max(horizon, months)
		if loan.CurrentBalance <= 0 || months == 0 {
			continue
		}
		out = append(out, schedule{
			loan:    loan,
			rate:    max(0, monthlyRate(loan)),
			months:  months,
			balance: loan.CurrentBalance,
		})
	}
	return out, min(horizon, MaxSeriesPeriods)
}

// active reports whether the loan still has a payment due in period.
func (s *schedule) active(period int) bool {
	return period < s.months && s.balance > 0
}

// advance applies one period of payment to the running balance.
func (s *schedule) advance() {
	if s.balance <= 0 {
		return
	}
	interest := s.balance * s.rate
	s.balance = max(0, s.balance-(s.loan.MonthlyPayment-interest))
}

// StackedMonthlySeries breaks the portfolio's payments down into principal
// and interest for every period from 0 up to the longest finite payoff (at
// most MaxSeriesPeriods), inclusive.
//
// Loans without a balance, loans that never pay off, and loans already paid
// off by a period contribute nothing to it. The final principal portion of a
// loan is clamped to its remaining balance.
func StackedMonthlySeries(loans []core.Loan) []MonthlyEntry {
	active, horizon := schedules(loans)
	series := make([]MonthlyEntry, 0, horizon+1)

	for period := 0; period <= horizon; period++ {
		entry := MonthlyEntry{Period: period}
		for i := range active {
			s := &active[i]
			if !s.active(period) {
				continue
			}
			interest := s.balance * s.rate
			principal := min(s.loan.MonthlyPayment-interest, s.balance)
			entry.Principal += principal
			entry.Interest += interest
			s.advance()
		}
		entry.Total = entry.Principal + entry.Interest
		series = append(series, entry)
	}

	return series
}

// StackedYearlySeries aggregates StackedMonthlySeries into 12-period buckets.
// The last bucket may span fewer than twelve periods.
func StackedYearlySeries(loans []core.Loan) []YearlyEntry {
	monthly := StackedMonthlySeries(loans)
	years := make([]YearlyEntry, 0, (len(monthly)+11)/12)

	for start := 0; start < len(monthly); start += 12 {
		end := min(start+12, len(monthly))
		entry := YearlyEntry{Year: start / 12}
		for _, m := range monthly[start:end] {
			entry.Principal += m.Principal
			entry.Interest += m.Interest
		}
		entry.Total = entry.Principal + entry.Interest
		years = append(years, entry)
	}

	return years
}

// BalanceSeries returns the portfolio balance still outstanding at the start
// of every period, using the same loan selection as StackedMonthlySeries.
func BalanceSeries(loans []core.Loan) []BalanceEntry {
	active, horizon := schedules(loans)
	series := make([]BalanceEntry, 0, horizon+1)

	for period := 0; period <= horizon; period++ {
		entry := BalanceEntry{Period: period}
		for i := range active {
			s := &active[i]
			if period >= s.months {
				continue
			}
			entry.Balance += s.balance
			s.advance()
		}
		series = append(series, entry)
	}

	return series
}
