package core

import (
	"strings"

	"github.com/google/uuid"
)

// Template pre-fills a loan for common products. Principal and payment are
// zero when the product has no typical value.
type Template struct {
	ID             string
	Title          string
	Kind           LoanKind
	Principal      float64
	InterestRate   float64
	MonthlyPayment float64
}

// Templates is the built-in catalog offered when a loan is added.
var Templates = []Template{
	{ID: "template-1", Title: "日本学生支援機構 奨学金", Kind: KindFixed, Principal: 3_000_000, InterestRate: 0.5, MonthlyPayment: 30_000},
	{ID: "template-2", Title: "楽天カード", Kind: KindRevolving, InterestRate: 14.5, MonthlyPayment: 50_000},
	{ID: "template-3", Title: "三井住友カード", Kind: KindRevolving, InterestRate: 15.0, MonthlyPayment: 30_000},
	{ID: "template-4", Title: "三菱UFJカード", Kind: KindRevolving, InterestRate: 14.8, MonthlyPayment: 40_000},
	{ID: "template-5", Title: "車ローン（トヨタ）", Kind: KindFixed, Principal: 2_000_000, InterestRate: 2.5, MonthlyPayment: 50_000},
	{ID: "template-6", Title: "車ローン（日産）", Kind: KindFixed, Principal: 2_500_000, InterestRate: 2.8, MonthlyPayment: 60_000},
	{ID: "template-7", Title: "リボ払い（楽天）", Kind: KindRevolving, InterestRate: 14.5, MonthlyPayment: 20_000},
	{ID: "template-8", Title: "分割払い（Amazon）", Kind: KindRevolving, InterestRate: 0, MonthlyPayment: 10_000},
}

// FindTemplate looks up a catalog entry by ID.
func FindTemplate(id string) (Template, bool) {
	for _, t := range Templates {
		if t.ID == id {
			return t, true
		}
	}
	return Template{}, false
}

// NewLoanFromTemplate builds a loan with a fresh ID from tpl. A zero balance
// falls back to the template's principal.
func NewLoanFromTemplate(tpl Template, balance float64) Loan {
	if balance == 0 {
		balance = tpl.Principal
	}
	return Loan{
		ID:             uuid.NewString(),
		Title:          tpl.Title,
		Kind:           tpl.Kind,
		Principal:      tpl.Principal,
		CurrentBalance: balance,
		InterestRate:   tpl.InterestRate,
		MonthlyPayment: tpl.MonthlyPayment,
	}
}

// PreviousTitles returns the distinct loan titles in first-seen order, for
// title suggestions.
func PreviousTitles(loans []Loan) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(loans))
	for _, l := range loans {
		t := strings.TrimSpace(l.Title)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
