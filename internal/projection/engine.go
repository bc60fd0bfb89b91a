package projection

import (
	"time"

	"shakkin/internal/core"
)

// MonthlyInterest returns the interest accrued on the current balance in one
// period. Non-positive rates or balances yield 0.
func MonthlyInterest(loan core.Loan) float64 {
	if loan.InterestRate <= 0 || loan.CurrentBalance <= 0 {
		return 0
	}
	return loan.CurrentBalance * monthlyRate(loan)
}

// MonthsToPayoff projects how many monthly payments clear the current
// balance.
//
// A loan with no payment or no balance pays off in 0 months. Interest-free
// loans use the closed form ceil(balance / payment). Otherwise the balance is
// walked one period at a time until it drops to BalanceTolerance, returning
// NeverPaysOff as soon as a payment fails to cover the period's interest. That
// walk stops at MaxPayoffMonths and reports that many months; the closed form
// has no cap.
func MonthsToPayoff(loan core.Loan) Payoff {
	return simulate(loan).payoff
}

// TotalInterest returns the interest paid over the whole projected payoff.
// It is 0 for interest-free loans, empty balances, and loans that pay off in
// 0 months or never.
func TotalInterest(loan core.Loan) float64 {
	if loan.InterestRate <= 0 || loan.CurrentBalance <= 0 {
		return 0
	}
	w := simulate(loan)
	if !w.payoff.Finite() {
		return 0
	}
	return w.interest
}

// PayoffDate advances now by the projected number of calendar months. ok is
// false when the loan never pays off.
func PayoffDate(loan core.Loan, now time.Time) (date time.Time, ok bool) {
	months, ok := MonthsToPayoff(loan).Months()
	if !ok {
		return time.Time{}, false
	}
	return now.AddDate(0, months, 0), true
}
