package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"shakkin/internal/core"
	"shakkin/internal/loans"
)

func newTestRepository(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "nested", "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLiteRepositoryLoans(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	fixed := core.Loan{
		ID: "fixed", Title: "Car loan", Kind: core.KindFixed,
		CurrentBalance: 1_500_000, InterestRate: 2.9, MonthlyPayment: 40_000,
	}
	card := core.Loan{
		ID: "card", Title: "Card", Kind: core.KindRevolving, Principal: 99,
		CurrentBalance: 200_000, InterestRate: 15, MonthlyPayment: 10_000,
	}
	for _, l := range []core.Loan{fixed, card} {
		if err := repo.CreateLoan(ctx, l); err != nil {
			t.Fatalf("CreateLoan(%s) error = %v", l.ID, err)
		}
	}

	list, err := repo.ListLoans(ctx)
	if err != nil {
		t.Fatalf("ListLoans() error = %v", err)
	}
	if len(list) != 2 || list[0].ID != "card" || list[1].ID != "fixed" {
		t.Fatalf("ListLoans() = %+v, want newest first", list)
	}
	if list[1].Principal != 1_500_000 {
		t.Errorf("fixed principal = %v, want balance as principal", list[1].Principal)
	}
	if list[0].Principal != 0 {
		t.Errorf("revolving principal = %v, want 0", list[0].Principal)
	}

	balance, payment := 1_200_000.0, 45_000.0
	updated, err := repo.UpdateLoan(ctx, "fixed", core.LoanPatch{CurrentBalance: &balance, MonthlyPayment: &payment})
	if err != nil {
		t.Fatalf("UpdateLoan() error = %v", err)
	}
	got, err := repo.GetLoan(ctx, "fixed")
	if err != nil {
		t.Fatalf("GetLoan() error = %v", err)
	}
	if got != updated || got.CurrentBalance != balance || got.MonthlyPayment != payment || got.Principal != 1_500_000 {
		t.Errorf("GetLoan() = %+v, want %+v", got, updated)
	}

	if err := repo.DeleteLoan(ctx, "card"); err != nil {
		t.Fatalf("DeleteLoan() error = %v", err)
	}
	if _, err := repo.GetLoan(ctx, "card"); !errors.Is(err, loans.ErrNotFound) {
		t.Errorf("GetLoan() after delete error = %v, want ErrNotFound", err)
	}
}

func TestSQLiteRepositoryErrors(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	if err := repo.CreateLoan(ctx, core.Loan{ID: "x", Title: " ", InterestRate: 1}); !errors.Is(err, core.ErrEmptyTitle) {
		t.Errorf("CreateLoan() error = %v, want ErrEmptyTitle", err)
	}

	rate := -1.0
	if _, err := repo.UpdateLoan(ctx, "missing", core.LoanPatch{InterestRate: &rate}); !errors.Is(err, loans.ErrNotFound) {
		t.Errorf("UpdateLoan() error = %v, want ErrNotFound", err)
	}
	if err := repo.DeleteLoan(ctx, "missing"); !errors.Is(err, loans.ErrNotFound) {
		t.Errorf("DeleteLoan() error = %v, want ErrNotFound", err)
	}

	l := core.Loan{ID: "a", Title: "A", Kind: core.KindFixed, CurrentBalance: 10, InterestRate: 1, MonthlyPayment: 1}
	if err := repo.CreateLoan(ctx, l); err != nil {
		t.Fatalf("CreateLoan() error = %v", err)
	}
	if err := repo.CreateLoan(ctx, l); !errors.Is(err, loans.ErrDuplicateID) {
		t.Errorf("CreateLoan() with duplicate id error = %v, want ErrDuplicateID", err)
	}
	if _, err := repo.UpdateLoan(ctx, "a", core.LoanPatch{InterestRate: &rate}); !errors.Is(err, core.ErrInvalidRate) {
		t.Errorf("UpdateLoan() error = %v, want ErrInvalidRate", err)
	}
}

func TestIsDuplicateKey(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	insert := `INSERT INTO loans (` + loanColumns + `) VALUES ('d', 'D', 'fixed', 0, 1, 1, 1)`
	if _, err := repo.db.ExecContext(ctx, insert); err != nil {
		t.Fatalf("first insert error = %v", err)
	}
	_, err := repo.db.ExecContext(ctx, insert)
	if err == nil {
		t.Fatal("second insert succeeded, want constraint error")
	}
	if !isDuplicateKey(err) {
		t.Errorf("isDuplicateKey(%v) = false, want true", err)
	}
	if !isDuplicateKey(fmt.Errorf("create loan: %w", err)) {
		t.Error("isDuplicateKey() does not unwrap wrapped errors")
	}

	if isDuplicateKey(errors.New("UNIQUE constraint failed: loans.id")) {
		t.Error("isDuplicateKey() matched a plain error by its text")
	}
	if isDuplicateKey(nil) {
		t.Error("isDuplicateKey(nil) = true")
	}
}

func TestSQLiteRepositorySnapshots(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	base := time.Date(2026, time.October, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		err := repo.SaveSnapshot(ctx, loans.Snapshot{
			TakenAt:      base.Add(time.Duration(i) * time.Hour),
			LoanCount:    i + 1,
			TotalBalance: 1000 * float64(i+1),
			PayoffMonths: 12 + i,
		})
		if err != nil {
			t.Fatalf("SaveSnapshot() error = %v", err)
		}
	}

	got, err := repo.RecentSnapshots(ctx, 2)
	if err != nil {
		t.Fatalf("RecentSnapshots() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("RecentSnapshots(2) returned %d rows", len(got))
	}
	if got[0].LoanCount != 3 || !got[0].TakenAt.Equal(base.Add(2*time.Hour)) || got[0].PayoffMonths != 14 {
		t.Errorf("latest snapshot = %+v", got[0])
	}

	all, err := repo.RecentSnapshots(ctx, 0)
	if err != nil || len(all) != 3 {
		t.Errorf("RecentSnapshots(0) = %d rows, err %v", len(all), err)
	}
}

func TestRunMigrationsIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.db")
	for i := 0; i < 2; i++ {
		if err := RunMigrations(path); err != nil {
			t.Fatalf("RunMigrations() run %d error = %v", i+1, err)
		}
	}
}
