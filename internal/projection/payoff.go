// Package projection computes payoff projections for loans.
//
// Every function in this package is a pure transformation of the loans it
// receives: nothing is cached between calls and inputs are never modified.
// The model is simple interest per monthly period on the current balance,
// applied the same way to every loan kind.
package projection

import (
	"strconv"

	"shakkin/internal/core"
)

const (
	// MaxPayoffMonths caps the interest-bearing balance walk at 50 years. A
	// loan that is still amortizing when the cap is hit reports exactly
	// MaxPayoffMonths (see Payoff.Truncated) instead of NeverPaysOff.
	// Interest-free loans use a closed form and are never capped.
	MaxPayoffMonths = 600

	// BalanceTolerance is the residue below which a balance counts as paid.
	BalanceTolerance = 0.01
)

// Payoff is the result of projecting a loan to zero balance: either a finite
// number of monthly periods or the never-pays-off condition.
//
// The zero value is a payoff in 0 months.
type Payoff struct {
	months    int
	never     bool
	truncated bool
}

// NeverPaysOff is returned when the monthly payment cannot cover the interest
// accrued in a period, so the balance would never shrink.
var NeverPaysOff = Payoff{never: true}

// PaysOffIn returns a finite payoff in n monthly periods.
func PaysOffIn(n int) Payoff {
	if n < 0 {
		n = 0
	}
	return Payoff{months: n}
}

// Months returns the number of periods to payoff. ok is false when the loan
// never pays off, in which case n is meaningless.
func (p Payoff) Months() (n int, ok bool) {
	if p.never {
		return 0, false
	}
	return p.months, true
}

// Never reports whether the loan never pays off.
func (p Payoff) Never() bool {
	return p.never
}

// Finite reports whether the payoff is a finite, non-zero number of periods.
func (p Payoff) Finite() bool {
	return !p.never && p.months > 0
}

// Truncated reports whether the balance walk hit MaxPayoffMonths with money
// still owed. The month count and any figure derived from it is then a lower
// bound. A loan that lands exactly on the cap is not truncated.
func (p Payoff) Truncated() bool {
	return p.truncated
}

// String implements fmt.Stringer.
func (p Payoff) String() string {
	if p.never {
		return "never"
	}
	return strconv.Itoa(p.months) + " months"
}

// monthlyRate converts a nominal annual percentage into a per-period rate.
func monthlyRate(loan core.Loan) float64 {
	return loan.InterestRate / 100 / 12
}

// walk is the outcome of stepping a balance down one period at a time.
type walk struct {
	payoff   Payoff
	interest float64
}

// simulate runs the shared balance walk used by MonthsToPayoff and
// TotalInterest: each period accrues interest on the running balance and the
// rest of the payment reduces it.
func simulate(loan core.Loan) walk {
	if loan.MonthlyPayment <= 0 || loan.CurrentBalance <= 0 {
		return walk{}
	}

	if loan.InterestRate <= 0 {
		return walk{payoff: closedFormPayoff(loan)}
	}

	rate := monthlyRate(loan)
	if loan.CurrentBalance*rate >= loan.MonthlyPayment {
		return walk{payoff: NeverPaysOff}
	}

	balance := loan.CurrentBalance
	months := 0
	total := 0.0

	for balance > BalanceTolerance && months < MaxPayoffMonths {
		interest := balance * rate
		principal := loan.MonthlyPayment - interest
		if principal <= 0 {
			return walk{payoff: NeverPaysOff}
		}
		total += interest
		balance = max(0, balance-principal)
		months++
	}

	payoff := PaysOffIn(months)
	payoff.truncated = balance > BalanceTolerance
	return walk{payoff: payoff, interest: total}
}

// closedFormPayoff handles interest-free loans: the balance drops by exactly
// one payment per period, so the answer is ceil(balance / payment).
func closedFormPayoff(loan core.Loan) Payoff {
	n := loan.CurrentBalance / loan.MonthlyPayment
	months := int(n)
	if float64(months) < n {
		months++
	}
	return PaysOffIn(months)
}
