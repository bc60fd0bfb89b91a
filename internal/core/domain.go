package core

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

const (
	// KindFixed is an amortizing installment loan with a known original
	// principal (student loans, car loans).
	KindFixed LoanKind = "fixed"
	// KindRevolving is a credit-card or installment balance with no tracked
	// original principal.
	KindRevolving LoanKind = "revolving"
)

// MaxTitleLength bounds loan titles.
const MaxTitleLength = 200

type (
	LoanKind string

	Loan struct {
		ID             string
		Title          string
		Kind           LoanKind
		Principal      float64 // Original amount borrowed, fixed loans only
		CurrentBalance float64
		InterestRate   float64 // Nominal annual rate in percent (2.5 == 2.5%/year)
		MonthlyPayment float64
	}

	// LoanPatch carries a partial update. Nil fields are left untouched.
	LoanPatch struct {
		Title          *string
		Kind           *LoanKind
		Principal      *float64
		CurrentBalance *float64
		InterestRate   *float64
		MonthlyPayment *float64
	}
)

var (
	ErrEmptyTitle     = errors.New("empty title")
	ErrTitleTooLong   = errors.New("title too long")
	ErrInvalidKind    = errors.New("invalid loan kind")
	ErrInvalidRate    = errors.New("interest rate must be greater than zero")
	ErrInvalidBalance = errors.New("invalid current balance")
	ErrInvalidPayment = errors.New("invalid monthly payment")
	ErrInvalidAmount  = errors.New("invalid amount")
)

// ParseLoanKind accepts the canonical names plus the legacy "A"/"B" codes.
func ParseLoanKind(s string) (LoanKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fixed", "a":
		return KindFixed, nil
	case "revolving", "b":
		return KindRevolving, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
	}
}

// IsValid reports whether k is a known loan kind.
func (k LoanKind) IsValid() bool {
	return k == KindFixed || k == KindRevolving
}

// String implements fmt.Stringer
func (k LoanKind) String() string {
	return string(k)
}

// Validate checks the rules a loan must satisfy before it is stored.
// The projection engine does not require them.
func (l Loan) Validate() error {
	title := strings.TrimSpace(l.Title)
	if title == "" {
		return ErrEmptyTitle
	}
	if len(title) > MaxTitleLength {
		return fmt.Errorf("%w (max %d characters)", ErrTitleTooLong, MaxTitleLength)
	}
	if !l.Kind.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidKind, l.Kind)
	}
	if !(l.InterestRate > 0) || math.IsInf(l.InterestRate, 0) {
		return ErrInvalidRate
	}
	if !validAmount(l.CurrentBalance) {
		return ErrInvalidBalance
	}
	if !validAmount(l.MonthlyPayment) {
		return ErrInvalidPayment
	}
	if !validAmount(l.Principal) {
		return fmt.Errorf("%w: principal", ErrInvalidAmount)
	}
	return nil
}

// Normalize upgrades records written before loan kinds existed and clears
// fields that do not apply to the loan's kind. A record without a kind is a
// fixed loan; a fixed loan without a principal starts from its balance.
func (l Loan) Normalize() Loan {
	if l.Kind == "" {
		l.Kind = KindFixed
	}
	l.Title = strings.TrimSpace(l.Title)
	switch l.Kind {
	case KindFixed:
		if l.Principal == 0 {
			l.Principal = l.CurrentBalance
		}
	case KindRevolving:
		l.Principal = 0
	}
	return l
}

// Apply returns a copy of l with the non-nil fields of p applied.
func (p LoanPatch) Apply(l Loan) Loan {
	if p.Title != nil {
		l.Title = *p.Title
	}
	if p.Kind != nil {
		l.Kind = *p.Kind
	}
	if p.Principal != nil {
		l.Principal = *p.Principal
	}
	if p.CurrentBalance != nil {
		l.CurrentBalance = *p.CurrentBalance
	}
	if p.InterestRate != nil {
		l.InterestRate = *p.InterestRate
	}
	if p.MonthlyPayment != nil {
		l.MonthlyPayment = *p.MonthlyPayment
	}
	return l
}

// IsEmpty reports whether the patch changes nothing.
func (p LoanPatch) IsEmpty() bool {
	return p.Title == nil && p.Kind == nil && p.Principal == nil &&
		p.CurrentBalance == nil && p.InterestRate == nil && p.MonthlyPayment == nil
}

func validAmount(v float64) bool {
	return v >= 0 && !math.IsInf(v, 0)
}
