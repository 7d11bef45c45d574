package memory

// Package memory provides a simple in-memory implementation used for
// development and tests. Mutating operations take the write lock for their
// whole validate-then-apply sequence, which gives the same all-or-nothing
// behavior the Postgres store gets from a transaction.
import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tinoosan/bankrecon/internal/errs"
	"github.com/tinoosan/bankrecon/internal/recon"
)

// Store is an in-memory implementation of the repository and writer
// interfaces used by the services. It is guarded by an RWMutex for
// concurrent reads/writes.
type Store struct {
	mu              sync.RWMutex
	accounts        map[uuid.UUID]recon.BankAccount
	transactions    map[uuid.UUID]*recon.BankTransaction
	reconciliations map[uuid.UUID]*recon.Reconciliation
	entries         map[uuid.UUID]recon.JournalEntry
}

// New constructs an empty in-memory store.
func New() *Store {
	return &Store{
		accounts:        make(map[uuid.UUID]recon.BankAccount),
		transactions:    make(map[uuid.UUID]*recon.BankTransaction),
		reconciliations: make(map[uuid.UUID]*recon.Reconciliation),
		entries:         make(map[uuid.UUID]recon.JournalEntry),
	}
}

// Seed helpers for local dev/tests.
func (s *Store) SeedBankAccount(a recon.BankAccount) {
	s.mu.Lock()
	s.accounts[a.ID] = a
	s.mu.Unlock()
}

func (s *Store) SeedTransaction(t recon.BankTransaction) {
	s.mu.Lock()
	tt := t
	s.transactions[tt.ID] = &tt
	s.mu.Unlock()
}

func (s *Store) SeedJournalEntry(e recon.JournalEntry) {
	s.mu.Lock()
	s.entries[e.ID] = e
	s.mu.Unlock()
}

// --- Bank account reads ---

func (s *Store) BankAccountByID(_ context.Context, id uuid.UUID) (recon.BankAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return recon.BankAccount{}, errs.ErrNotFound
	}
	return a, nil
}

// --- Transaction reads ---

func (s *Store) TransactionsByIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]recon.BankTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[uuid.UUID]recon.BankTransaction, len(ids))
	for _, id := range ids {
		if t, ok := s.transactions[id]; ok {
			out[id] = *t
		}
	}
	return out, nil
}

func (s *Store) TransactionByID(_ context.Context, id uuid.UUID) (recon.BankTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.transactions[id]
	if !ok {
		return recon.BankTransaction{}, errs.ErrNotFound
	}
	return *t, nil
}

// UnreconciledByAccount returns the unreconciled pools for an account up to
// and including asOf, partitioned by origin and sorted by (date, id) for
// stable output.
func (s *Store) UnreconciledByAccount(_ context.Context, bankAccountID uuid.UUID, asOf time.Time) ([]recon.BankTransaction, []recon.BankTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var statement, system []recon.BankTransaction
	for _, t := range s.transactions {
		if t.BankAccountID != bankAccountID || t.Reconciled || t.Date.After(asOf) {
			continue
		}
		if t.FromStatement {
			statement = append(statement, *t)
		} else {
			system = append(system, *t)
		}
	}
	sortTxns(statement)
	sortTxns(system)
	return statement, system, nil
}

func (s *Store) ItemsForReconciliation(_ context.Context, reconciliationID uuid.UUID) ([]recon.BankTransaction, []recon.BankTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var statement, system []recon.BankTransaction
	for _, t := range s.transactions {
		if t.ReconciliationID == nil || *t.ReconciliationID != reconciliationID {
			continue
		}
		if t.FromStatement {
			statement = append(statement, *t)
		} else {
			system = append(system, *t)
		}
	}
	sortTxns(statement)
	sortTxns(system)
	return statement, system, nil
}

// --- Transaction writes ---

// ClaimTransactions marks every listed transaction reconciled under the
// given reconciliation. Preconditions are re-checked under the write lock;
// nothing is applied if any row fails.
func (s *Store) ClaimTransactions(_ context.Context, ids []uuid.UUID, reconciliationID uuid.UUID, statementDate time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.reconciliations[reconciliationID]
	if !ok {
		return errs.ErrNotFound
	}
	if rec.Status != recon.StatusDraft {
		return errs.ErrImmutable
	}
	for _, id := range ids {
		t, ok := s.transactions[id]
		if !ok {
			return errs.ErrNotFound
		}
		if t.Reconciled {
			return errs.ErrConflict
		}
		if t.BankAccountID != rec.BankAccountID {
			return errs.ErrInvalid
		}
	}
	for _, id := range ids {
		t := s.transactions[id]
		t.Reconciled = true
		rid := reconciliationID
		t.ReconciliationID = &rid
		d := statementDate
		t.ReconciledDate = &d
	}
	return nil
}

// ReleaseTransactions clears the reconciliation claim from every listed
// transaction. Rows claimed by a finalized reconciliation reject the whole
// batch; already-unreconciled rows are no-ops.
func (s *Store) ReleaseTransactions(_ context.Context, ids []uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		t, ok := s.transactions[id]
		if !ok {
			return errs.ErrNotFound
		}
		if t.ReconciliationID == nil {
			continue
		}
		if rec, ok := s.reconciliations[*t.ReconciliationID]; ok && rec.Status == recon.StatusFinalized {
			return errs.ErrImmutable
		}
	}
	for _, id := range ids {
		t := s.transactions[id]
		t.Reconciled = false
		t.ReconciliationID = nil
		t.ReconciledDate = nil
	}
	return nil
}

// --- Reconciliation reads ---

func (s *Store) ReconciliationByID(_ context.Context, id uuid.UUID) (recon.Reconciliation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reconciliations[id]
	if !ok {
		return recon.Reconciliation{}, errs.ErrNotFound
	}
	return *r, nil
}

func (s *Store) ListFinalized(_ context.Context, bankAccountID uuid.UUID, limit, offset int) ([]recon.Reconciliation, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := make([]recon.Reconciliation, 0)
	for _, r := range s.reconciliations {
		if r.BankAccountID == bankAccountID && r.Status == recon.StatusFinalized {
			all = append(all, *r)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].StatementDate.Equal(all[j].StatementDate) {
			return all[i].StatementDate.After(all[j].StatementDate)
		}
		return all[i].ID.String() < all[j].ID.String()
	})
	total := len(all)
	if offset >= total {
		return []recon.Reconciliation{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	out := make([]recon.Reconciliation, end-offset)
	copy(out, all[offset:end])
	return out, total, nil
}

// --- Reconciliation writes ---

// GetOrCreateDraft resumes the draft for the (account, statement date)
// pair, updating its statement balance, or inserts the given record. The
// lookup and insert happen under one write lock so concurrent resumption
// cannot produce duplicate drafts.
func (s *Store) GetOrCreateDraft(_ context.Context, draft recon.Reconciliation) (recon.Reconciliation, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.reconciliations {
		if r.BankAccountID == draft.BankAccountID && r.Status == recon.StatusDraft && r.StatementDate.Equal(draft.StatementDate) {
			r.StatementBalance = draft.StatementBalance
			return *r, false, nil
		}
	}
	d := draft
	s.reconciliations[d.ID] = &d
	return d, true, nil
}

// FinalizeReconciliation flips a draft to finalized and persists the agreed
// figures. Claimed transactions are not touched.
func (s *Store) FinalizeReconciliation(_ context.Context, id uuid.UUID, statementMinor, bookMinor, differenceMinor int64, finalizedAt time.Time) (recon.Reconciliation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reconciliations[id]
	if !ok {
		return recon.Reconciliation{}, errs.ErrNotFound
	}
	if r.Status == recon.StatusFinalized {
		return recon.Reconciliation{}, errs.ErrAlreadyFinalized
	}
	acc, ok := s.accounts[r.BankAccountID]
	if !ok {
		return recon.Reconciliation{}, errs.ErrNotFound
	}
	r.StatementBalance = mustAmount(acc.Currency, statementMinor)
	book := mustAmount(acc.Currency, bookMinor)
	diff := mustAmount(acc.Currency, differenceMinor)
	r.BookBalance = &book
	r.Difference = &diff
	r.Status = recon.StatusFinalized
	t := finalizedAt
	r.FinalizedAt = &t
	return *r, nil
}

// --- Journal ---

// GLBalanceMinor sums journal lines for an account up to asOf inclusive,
// debits positive.
func (s *Store) GLBalanceMinor(_ context.Context, glAccountID uuid.UUID, asOf time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var net int64
	for _, e := range s.entries {
		if e.Date.After(asOf) {
			continue
		}
		for _, ln := range e.Lines {
			if ln.AccountID != glAccountID {
				continue
			}
			m, _ := ln.Amount.MinorUnits()
			if ln.Side == recon.SideDebit {
				net += m
			} else {
				net -= m
			}
		}
	}
	return net, nil
}

// BookAdjustment stores the entry and its mirror bank transaction together.
func (s *Store) BookAdjustment(_ context.Context, entry recon.JournalEntry, txn recon.BankTransaction) (recon.JournalEntry, recon.BankTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.ID] = entry
	t := txn
	s.transactions[t.ID] = &t
	return entry, t, nil
}

func sortTxns(ts []recon.BankTransaction) {
	sort.Slice(ts, func(i, j int) bool {
		if !ts[i].Date.Equal(ts[j].Date) {
			return ts[i].Date.Before(ts[j].Date)
		}
		return ts[i].ID.String() < ts[j].ID.String()
	})
}
