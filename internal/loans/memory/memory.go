package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"shakkin/internal/core"
	"shakkin/internal/loans"
	applog "shakkin/internal/log"
)

// SeedFile is the name of the optional seed file read by NewFromFiles.
const SeedFile = "seed_loans.json"

// Store keeps loans in creation order; listings reverse it.
type Store struct {
	mu        sync.Mutex
	items     []core.Loan
	snapshots []loans.Snapshot
}

func New(seed []core.Loan) *Store {
	s := &Store{}
	for _, l := range seed {
		s.items = append(s.items, l.Normalize())
	}
	return s
}

// seedLoan mirrors the record layout of exported loan files.
type seedLoan struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Type           string   `json:"type"`
	Principal      *float64 `json:"principal"`
	CurrentBalance float64  `json:"currentBalance"`
	InterestRate   float64  `json:"interestRate"`
	MonthlyPayment float64  `json:"monthlyPayment"`
}

// NewFromFiles seeds the store from base/seed_loans.json. A missing file
// yields an empty store. A file that cannot be read or decoded is logged and
// also yields an empty store.
func NewFromFiles(base string, logger *applog.Logger) *Store {
	path := filepath.Join(base, SeedFile)
	seed, err := readSeed(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			if logger == nil {
				logger = applog.FromContext(context.Background())
			}
			logger.WithComponent(applog.ComponentStorage).Error("Failed to load seed loans",
				"path", path,
				applog.FieldError, err)
		}
		return New(nil)
	}
	return New(seed)
}

func readSeed(path string) ([]core.Loan, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var records []seedLoan
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	out := make([]core.Loan, 0, len(records))
	for _, r := range records {
		if r.ID == "" {
			continue
		}
		l := core.Loan{
			ID:             r.ID,
			Title:          r.Title,
			CurrentBalance: r.CurrentBalance,
			InterestRate:   r.InterestRate,
			MonthlyPayment: r.MonthlyPayment,
		}
		if r.Type != "" {
			kind, err := core.ParseLoanKind(r.Type)
			if err != nil {
				continue
			}
			l.Kind = kind
		}
		if r.Principal != nil {
			l.Principal = *r.Principal
		}
		out = append(out, l)
	}
	return out, nil
}

// ListLoans implements loans.Reader.
func (s *Store) ListLoans(_ context.Context) ([]core.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Loan, len(s.items))
	for i, l := range s.items {
		out[len(s.items)-1-i] = l
	}
	return out, nil
}

// GetLoan implements loans.Reader.
func (s *Store) GetLoan(_ context.Context, id string) (core.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return core.Loan{}, fmt.Errorf("get loan %s: %w", id, loans.ErrNotFound)
	}
	return s.items[i], nil
}

// CreateLoan implements loans.Writer.
func (s *Store) CreateLoan(_ context.Context, l core.Loan) error {
	l = l.Normalize()
	if err := l.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexOf(l.ID) >= 0 {
		return fmt.Errorf("create loan %s: %w", l.ID, loans.ErrDuplicateID)
	}
	s.items = append(s.items, l)
	return nil
}

// UpdateLoan implements loans.Writer.
func (s *Store) UpdateLoan(_ context.Context, id string, patch core.LoanPatch) (core.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return core.Loan{}, fmt.Errorf("update loan %s: %w", id, loans.ErrNotFound)
	}
	updated := patch.Apply(s.items[i]).Normalize()
	if err := updated.Validate(); err != nil {
		return core.Loan{}, err
	}
	s.items[i] = updated
	return updated, nil
}

// DeleteLoan implements loans.Deleter.
func (s *Store) DeleteLoan(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return fmt.Errorf("delete loan %s: %w", id, loans.ErrNotFound)
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	return nil
}

// SaveSnapshot implements loans.SnapshotWriter.
func (s *Store) SaveSnapshot(_ context.Context, snap loans.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = append(s.snapshots, snap)
	return nil
}

// RecentSnapshots implements loans.SnapshotReader.
func (s *Store) RecentSnapshots(_ context.Context, limit int) ([]loans.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.snapshots)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]loans.Snapshot, 0, n)
	for i := len(s.snapshots) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.snapshots[i])
	}
	return out, nil
}

func (s *Store) indexOf(id string) int {
	for i, l := range s.items {
		if l.ID == id {
			return i
		}
	}
	return -1
}
