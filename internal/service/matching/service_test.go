package matching

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/money"

	"github.com/tinoosan/bankrecon/internal/errs"
	"github.com/tinoosan/bankrecon/internal/recon"
)

// fakeStore is a minimal Repo/Writer pair recording claim calls.
type fakeStore struct {
	rec      recon.Reconciliation
	acc      recon.BankAccount
	txns     map[uuid.UUID]recon.BankTransaction
	claimed  []uuid.UUID
	released []uuid.UUID
}

func (f *fakeStore) ReconciliationByID(_ context.Context, id uuid.UUID) (recon.Reconciliation, error) {
	if id != f.rec.ID {
		return recon.Reconciliation{}, errs.ErrNotFound
	}
	return f.rec, nil
}

func (f *fakeStore) BankAccountByID(_ context.Context, id uuid.UUID) (recon.BankAccount, error) {
	if id != f.acc.ID {
		return recon.BankAccount{}, errs.ErrNotFound
	}
	return f.acc, nil
}

func (f *fakeStore) TransactionsByIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]recon.BankTransaction, error) {
	out := make(map[uuid.UUID]recon.BankTransaction, len(ids))
	for _, id := range ids {
		if t, ok := f.txns[id]; ok {
			out[id] = t
		}
	}
	return out, nil
}

func (f *fakeStore) ClaimTransactions(_ context.Context, ids []uuid.UUID, _ uuid.UUID, _ time.Time) error {
	f.claimed = append(f.claimed, ids...)
	return nil
}

func (f *fakeStore) ReleaseTransactions(_ context.Context, ids []uuid.UUID) error {
	f.released = append(f.released, ids...)
	return nil
}

func newFake(t *testing.T) *fakeStore {
	t.Helper()
	acc := recon.BankAccount{ID: uuid.New(), Currency: "USD", GLAccountID: uuid.New(), Active: true}
	return &fakeStore{
		acc: acc,
		rec: recon.Reconciliation{
			ID:            uuid.New(),
			BankAccountID: acc.ID,
			StatementDate: time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC),
			Status:        recon.StatusDraft,
		},
		txns: make(map[uuid.UUID]recon.BankTransaction),
	}
}

func (f *fakeStore) addTxn(t *testing.T, minor int64, fromStatement bool) uuid.UUID {
	t.Helper()
	amt, err := money.NewAmountFromMinorUnits(f.acc.Currency, minor)
	if err != nil {
		t.Fatalf("amount: %v", err)
	}
	id := uuid.New()
	f.txns[id] = recon.BankTransaction{
		ID:            id,
		BankAccountID: f.acc.ID,
		Date:          f.rec.StatementDate.AddDate(0, 0, -1),
		Amount:        amt,
		FromStatement: fromStatement,
	}
	return id
}

func TestMatch_BalancedSelections(t *testing.T) {
	cases := []struct {
		name      string
		statement []int64
		system    []int64
	}{
		{"one to one", []int64{-2500}, []int64{-2500}},
		{"one to many", []int64{10000}, []int64{6000, 4000}},
		{"many to one", []int64{300, 700}, []int64{1000}},
		{"within tolerance", []int64{1000}, []int64{999}},
		{"mixed signs", []int64{500, -200}, []int64{300}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFake(t)
			svc := New(f, f)
			var stmtIDs, sysIDs []uuid.UUID
			for _, m := range tc.statement {
				stmtIDs = append(stmtIDs, f.addTxn(t, m, true))
			}
			for _, m := range tc.system {
				sysIDs = append(sysIDs, f.addTxn(t, m, false))
			}
			if err := svc.Match(context.Background(), f.rec.ID, stmtIDs, sysIDs, f.rec.StatementDate, "tester"); err != nil {
				t.Fatalf("expected match to succeed: %v", err)
			}
			if len(f.claimed) != len(stmtIDs)+len(sysIDs) {
				t.Fatalf("expected %d claimed, got %d", len(stmtIDs)+len(sysIDs), len(f.claimed))
			}
		})
	}
}

func TestMatch_UnbalancedSelection(t *testing.T) {
	f := newFake(t)
	svc := New(f, f)
	stmt := f.addTxn(t, 1000, true)
	sys := f.addTxn(t, 900, false)

	err := svc.Match(context.Background(), f.rec.ID, []uuid.UUID{stmt}, []uuid.UUID{sys}, f.rec.StatementDate, "tester")
	var ub *errs.UnbalancedSelectionError
	if !errors.As(err, &ub) {
		t.Fatalf("expected UnbalancedSelectionError, got %v", err)
	}
	if ub.StatementSumMinor != 1000 || ub.SystemSumMinor != 900 {
		t.Fatalf("expected sums 1000/900, got %d/%d", ub.StatementSumMinor, ub.SystemSumMinor)
	}
	if len(f.claimed) != 0 {
		t.Fatalf("expected nothing claimed, got %d", len(f.claimed))
	}
}

func TestMatch_Validation(t *testing.T) {
	f := newFake(t)
	svc := New(f, f)
	stmt := f.addTxn(t, 100, true)
	sys := f.addTxn(t, 100, false)
	ctx := context.Background()

	// Empty selection groups.
	if err := svc.Match(ctx, f.rec.ID, nil, []uuid.UUID{sys}, f.rec.StatementDate, "tester"); !errors.Is(err, errs.ErrInvalid) {
		t.Fatalf("expected ErrInvalid for empty statement group, got %v", err)
	}
	// Unknown transaction.
	if err := svc.Match(ctx, f.rec.ID, []uuid.UUID{uuid.New()}, []uuid.UUID{sys}, f.rec.StatementDate, "tester"); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	// Duplicate id in one group.
	if err := svc.Match(ctx, f.rec.ID, []uuid.UUID{stmt, stmt}, []uuid.UUID{sys}, f.rec.StatementDate, "tester"); !errors.Is(err, errs.ErrInvalid) {
		t.Fatalf("expected ErrInvalid for duplicate, got %v", err)
	}
	// Wrong origin: a system row offered on the statement side.
	if err := svc.Match(ctx, f.rec.ID, []uuid.UUID{sys}, []uuid.UUID{stmt}, f.rec.StatementDate, "tester"); !errors.Is(err, errs.ErrInvalid) {
		t.Fatalf("expected ErrInvalid for wrong origin, got %v", err)
	}
}

func TestMatch_RejectsForeignAccountAndReconciled(t *testing.T) {
	f := newFake(t)
	svc := New(f, f)
	stmt := f.addTxn(t, 100, true)
	sys := f.addTxn(t, 100, false)
	ctx := context.Background()

	// Transaction belonging to another account.
	foreign := f.txns[stmt]
	foreign.BankAccountID = uuid.New()
	f.txns[stmt] = foreign
	if err := svc.Match(ctx, f.rec.ID, []uuid.UUID{stmt}, []uuid.UUID{sys}, f.rec.StatementDate, "tester"); !errors.Is(err, errs.ErrInvalid) {
		t.Fatalf("expected ErrInvalid for foreign account, got %v", err)
	}

	// Already reconciled row.
	foreign.BankAccountID = f.acc.ID
	foreign.Reconciled = true
	f.txns[stmt] = foreign
	if err := svc.Match(ctx, f.rec.ID, []uuid.UUID{stmt}, []uuid.UUID{sys}, f.rec.StatementDate, "tester"); !errors.Is(err, errs.ErrConflict) {
		t.Fatalf("expected ErrConflict for reconciled row, got %v", err)
	}
}

func TestMatch_FinalizedDraftIsImmutable(t *testing.T) {
	f := newFake(t)
	f.rec.Status = recon.StatusFinalized
	svc := New(f, f)
	stmt := f.addTxn(t, 100, true)
	sys := f.addTxn(t, 100, false)

	err := svc.Match(context.Background(), f.rec.ID, []uuid.UUID{stmt}, []uuid.UUID{sys}, f.rec.StatementDate, "tester")
	if !errors.Is(err, errs.ErrImmutable) {
		t.Fatalf("expected ErrImmutable, got %v", err)
	}
}

func TestUnmatch(t *testing.T) {
	f := newFake(t)
	svc := New(f, f)
	id := f.addTxn(t, 100, true)
	ctx := context.Background()

	if err := svc.Unmatch(ctx, []uuid.UUID{id}, "tester"); err != nil {
		t.Fatalf("unmatch: %v", err)
	}
	if len(f.released) != 1 || f.released[0] != id {
		t.Fatalf("expected release of %s, got %v", id, f.released)
	}
	if err := svc.Unmatch(ctx, nil, "tester"); !errors.Is(err, errs.ErrInvalid) {
		t.Fatalf("expected ErrInvalid for empty ids, got %v", err)
	}
	if err := svc.Unmatch(ctx, []uuid.UUID{id}, ""); !errors.Is(err, errs.ErrInvalid) {
		t.Fatalf("expected ErrInvalid for missing actor, got %v", err)
	}
}
