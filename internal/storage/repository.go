package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"shakkin/internal/core"
	"shakkin/internal/loans"
	applog "shakkin/internal/log"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLiteRepository implements loans.Store, loans.SnapshotWriter and
// loans.SnapshotReader on a single SQLite file.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

const loanColumns = `id, title, kind, principal, current_balance, interest_rate, monthly_payment`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLoan(row rowScanner) (core.Loan, error) {
	var (
		l    core.Loan
		kind string
	)
	if err := row.Scan(&l.ID, &l.Title, &kind, &l.Principal, &l.CurrentBalance, &l.InterestRate, &l.MonthlyPayment); err != nil {
		return core.Loan{}, err
	}
	l.Kind = core.LoanKind(kind)
	return l.Normalize(), nil
}

// ListLoans implements loans.Reader
func (r *SQLiteRepository) ListLoans(ctx context.Context) ([]core.Loan, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+loanColumns+` FROM loans ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("list loans: %w", err)
	}
	defer rows.Close()

	var out []core.Loan
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan loan: %w", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate loans: %w", err)
	}
	return out, nil
}

// GetLoan implements loans.Reader
func (r *SQLiteRepository) GetLoan(ctx context.Context, id string) (core.Loan, error) {
	return getLoan(ctx, r.db, id)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getLoan(ctx context.Context, q querier, id string) (core.Loan, error) {
	l, err := scanLoan(q.QueryRowContext(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Loan{}, fmt.Errorf("get loan %s: %w", id, loans.ErrNotFound)
	}
	if err != nil {
		return core.Loan{}, fmt.Errorf("get loan %s: %w", id, err)
	}
	return l, nil
}

// CreateLoan implements loans.Writer
func (r *SQLiteRepository) CreateLoan(ctx context.Context, l core.Loan) error {
	l = l.Normalize()
	if err := l.Validate(); err != nil {
		return err
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO loans (`+loanColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.Title, string(l.Kind), l.Principal, l.CurrentBalance, l.InterestRate, l.MonthlyPayment)
	if err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("create loan %s: %w", l.ID, loans.ErrDuplicateID)
		}
		return fmt.Errorf("create loan: %w", err)
	}

	slog.InfoContext(ctx, "Loan saved to SQLite",
		applog.FieldComponent, applog.ComponentStorage,
		"id", l.ID,
		"kind", l.Kind,
		"current_balance", l.CurrentBalance)
	return nil
}

// isDuplicateKey reports whether err is SQLite rejecting a second row with
// the same primary key.
func isDuplicateKey(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return true
	}
	return false
}

// UpdateLoan implements loans.Writer
func (r *SQLiteRepository) UpdateLoan(ctx context.Context, id string, patch core.LoanPatch) (core.Loan, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Loan{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	current, err := getLoan(ctx, tx, id)
	if err != nil {
		return core.Loan{}, fmt.Errorf("update loan: %w", err)
	}

	updated := patch.Apply(current).Normalize()
	if err := updated.Validate(); err != nil {
		return core.Loan{}, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE loans
		SET title = ?, kind = ?, principal = ?, current_balance = ?, interest_rate = ?,
		    monthly_payment = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		updated.Title, string(updated.Kind), updated.Principal, updated.CurrentBalance,
		updated.InterestRate, updated.MonthlyPayment, id)
	if err != nil {
		return core.Loan{}, fmt.Errorf("update loan %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return core.Loan{}, fmt.Errorf("commit transaction: %w", err)
	}

	slog.InfoContext(ctx, "Loan updated in SQLite",
		applog.FieldComponent, applog.ComponentStorage, "id", id)
	return updated, nil
}

// DeleteLoan implements loans.Deleter
func (r *SQLiteRepository) DeleteLoan(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM loans WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete loan %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete loan %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("delete loan %s: %w", id, loans.ErrNotFound)
	}

	slog.InfoContext(ctx, "Loan deleted from SQLite",
		applog.FieldComponent, applog.ComponentStorage, "id", id)
	return nil
}

// SaveSnapshot implements loans.SnapshotWriter
func (r *SQLiteRepository) SaveSnapshot(ctx context.Context, s loans.Snapshot) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO projection_snapshots
		    (taken_at, loan_count, total_balance, total_interest, payoff_months, never_payoff_count)
		VALUES (?, ?, ?, ?, ?, ?)`,
		s.TakenAt.UTC().Format(time.RFC3339Nano), s.LoanCount, s.TotalBalance,
		s.TotalInterest, s.PayoffMonths, s.NeverPayoffCount)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// RecentSnapshots implements loans.SnapshotReader. A non-positive limit
// returns every snapshot.
func (r *SQLiteRepository) RecentSnapshots(ctx context.Context, limit int) ([]loans.Snapshot, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT taken_at, loan_count, total_balance, total_interest, payoff_months, never_payoff_count
		FROM projection_snapshots
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []loans.Snapshot
	for rows.Next() {
		var (
			s       loans.Snapshot
			takenAt string
		)
		if err := rows.Scan(&takenAt, &s.LoanCount, &s.TotalBalance, &s.TotalInterest, &s.PayoffMonths, &s.NeverPayoffCount); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		s.TakenAt, err = time.Parse(time.RFC3339Nano, takenAt)
		if err != nil {
			return nil, fmt.Errorf("parse snapshot time %q: %w", takenAt, err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return out, nil
}
