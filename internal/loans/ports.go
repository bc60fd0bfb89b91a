// Package loans declares the storage ports for loans and projection
// snapshots. Adapters live in loans/memory and storage.
package loans

import (
	"context"
	"errors"
	"time"

	"shakkin/internal/core"
)

// ErrNotFound is returned when no loan has the requested ID.
var ErrNotFound = errors.New("loan not found")

// ErrDuplicateID is returned when a created loan reuses a stored ID.
var ErrDuplicateID = errors.New("duplicate loan id")

// Ports for outbound adapters.
type (
	Reader interface {
		// ListLoans returns every stored loan, most recently created first.
		ListLoans(ctx context.Context) ([]core.Loan, error)
		GetLoan(ctx context.Context, id string) (core.Loan, error)
	}

	Writer interface {
		CreateLoan(ctx context.Context, loan core.Loan) error
		// UpdateLoan applies the non-nil fields of patch and returns the
		// stored result.
		UpdateLoan(ctx context.Context, id string, patch core.LoanPatch) (core.Loan, error)
	}

	Deleter interface {
		DeleteLoan(ctx context.Context, id string) error
	}

	Store interface {
		Reader
		Writer
		Deleter
	}

	// SnapshotWriter records portfolio projections over time.
	SnapshotWriter interface {
		SaveSnapshot(ctx context.Context, s Snapshot) error
	}

	// SnapshotReader returns the most recent snapshots, newest first.
	SnapshotReader interface {
		RecentSnapshots(ctx context.Context, limit int) ([]Snapshot, error)
	}
)

// Snapshot is one recorded portfolio projection. PayoffMonths is the longest
// finite payoff across the portfolio at TakenAt.
type Snapshot struct {
	TakenAt          time.Time
	LoanCount        int
	TotalBalance     float64
	TotalInterest    float64
	PayoffMonths     int
	NeverPayoffCount int
}
