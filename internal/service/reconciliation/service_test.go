package reconciliation

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

type fakeStore struct {
	acc       recon.BankAccount
	recs      map[uuid.UUID]recon.Reconciliation
	statement []recon.BankTransaction
	system    []recon.BankTransaction
	glMinor   int64
	finalized []uuid.UUID
}

func newFake(t *testing.T) *fakeStore {
	t.Helper()
	return &fakeStore{
		acc:  recon.BankAccount{ID: uuid.New(), Currency: "USD", GLAccountID: uuid.New(), Active: true},
		recs: make(map[uuid.UUID]recon.Reconciliation),
	}
}

func (f *fakeStore) ReconciliationByID(_ context.Context, id uuid.UUID) (recon.Reconciliation, error) {
	r, ok := f.recs[id]
	if !ok {
		return recon.Reconciliation{}, errs.ErrNotFound
	}
	return r, nil
}

func (f *fakeStore) ListFinalized(_ context.Context, _ uuid.UUID, limit, offset int) ([]recon.Reconciliation, int, error) {
	var out []recon.Reconciliation
	for _, r := range f.recs {
		if r.Status == recon.StatusFinalized {
			out = append(out, r)
		}
	}
	return out, len(out), nil
}

func (f *fakeStore) BankAccountByID(_ context.Context, id uuid.UUID) (recon.BankAccount, error) {
	if id != f.acc.ID {
		return recon.BankAccount{}, errs.ErrNotFound
	}
	return f.acc, nil
}

func (f *fakeStore) UnreconciledByAccount(_ context.Context, _ uuid.UUID, _ time.Time) ([]recon.BankTransaction, []recon.BankTransaction, error) {
	return f.statement, f.system, nil
}

func (f *fakeStore) ItemsForReconciliation(_ context.Context, _ uuid.UUID) ([]recon.BankTransaction, []recon.BankTransaction, error) {
	return nil, nil, nil
}

func (f *fakeStore) GLBalanceMinor(_ context.Context, _ uuid.UUID, _ time.Time) (int64, error) {
	return f.glMinor, nil
}

func (f *fakeStore) GetOrCreateDraft(_ context.Context, draft recon.Reconciliation) (recon.Reconciliation, bool, error) {
	for _, r := range f.recs {
		if r.BankAccountID == draft.BankAccountID && r.Status == recon.StatusDraft && r.StatementDate.Equal(draft.StatementDate) {
			r.StatementBalance = draft.StatementBalance
			f.recs[r.ID] = r
			return r, false, nil
		}
	}
	f.recs[draft.ID] = draft
	return draft, true, nil
}

func (f *fakeStore) FinalizeReconciliation(_ context.Context, id uuid.UUID, statementMinor, bookMinor, differenceMinor int64, finalizedAt time.Time) (recon.Reconciliation, error) {
	r, ok := f.recs[id]
	if !ok {
		return recon.Reconciliation{}, errs.ErrNotFound
	}
	if r.Status == recon.StatusFinalized {
		return recon.Reconciliation{}, errs.ErrAlreadyFinalized
	}
	r.Status = recon.StatusFinalized
	r.FinalizedAt = &finalizedAt
	book, _ := money.NewAmountFromMinorUnits(f.acc.Currency, bookMinor)
	diff, _ := money.NewAmountFromMinorUnits(f.acc.Currency, differenceMinor)
	r.BookBalance = &book
	r.Difference = &diff
	f.recs[id] = r
	f.finalized = append(f.finalized, id)
	return r, nil
}

func statementTxn(t *testing.T, minor int64, fromStatement bool) recon.BankTransaction {
	t.Helper()
	amt, err := money.NewAmountFromMinorUnits("USD", minor)
	if err != nil {
		t.Fatalf("amount: %v", err)
	}
	return recon.BankTransaction{ID: uuid.New(), Amount: amt, FromStatement: fromStatement}
}

func TestGetOrCreateDraft_ResumesExisting(t *testing.T) {
	f := newFake(t)
	svc := New(f, f)
	ctx := context.Background()
	stmtDate := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)

	first, created, err := svc.GetOrCreateDraft(ctx, f.acc.ID, stmtDate, 50000, "tester")
	if err != nil || !created {
		t.Fatalf("expected new draft, got created=%v err=%v", created, err)
	}
	second, created, err := svc.GetOrCreateDraft(ctx, f.acc.ID, stmtDate, 51000, "tester")
	if err != nil || created {
		t.Fatalf("expected resumed draft, got created=%v err=%v", created, err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected same draft, got %s vs %s", second.ID, first.ID)
	}
	m, _ := second.StatementBalance.MinorUnits()
	if m != 51000 {
		t.Fatalf("expected updated balance 51000, got %d", m)
	}

	if _, _, err := svc.GetOrCreateDraft(ctx, uuid.New(), stmtDate, 0, "tester"); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown account, got %v", err)
	}
	if _, _, err := svc.GetOrCreateDraft(ctx, f.acc.ID, stmtDate, 0, ""); !errors.Is(err, errs.ErrInvalid) {
		t.Fatalf("expected ErrInvalid for missing actor, got %v", err)
	}
}

func TestSummary_DerivesIdentityFromStore(t *testing.T) {
	f := newFake(t)
	f.glMinor = 100000
	f.statement = []recon.BankTransaction{
		statementTxn(t, 200, true),
		statementTxn(t, -500, true),
	}
	f.system = []recon.BankTransaction{
		statementTxn(t, 3000, false),
		statementTxn(t, -1500, false),
	}
	svc := New(f, f)
	ctx := context.Background()

	draft, _, err := svc.GetOrCreateDraft(ctx, f.acc.ID, time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC), 98200, "tester")
	if err != nil {
		t.Fatalf("draft: %v", err)
	}
	sum, err := svc.Summary(ctx, draft.ID)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	book, _ := sum.AdjustedBookBalance.MinorUnits()
	bank, _ := sum.AdjustedBankBalance.MinorUnits()
	if book != 99700 || bank != 99700 {
		t.Fatalf("expected 99700/99700, got %d/%d", book, bank)
	}
	if !sum.Balanced() {
		t.Fatal("expected balanced summary")
	}
}

func TestFinalize_Gates(t *testing.T) {
	f := newFake(t)
	svc := New(f, f)
	ctx := context.Background()

	draft, _, err := svc.GetOrCreateDraft(ctx, f.acc.ID, time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC), 0, "tester")
	if err != nil {
		t.Fatalf("draft: %v", err)
	}

	// Out of tolerance fails before touching storage.
	if _, err := svc.Finalize(ctx, draft.ID, 0, 500, -500, "tester"); !errors.Is(err, errs.ErrNotBalanced) {
		t.Fatalf("expected ErrNotBalanced, got %v", err)
	}
	if len(f.finalized) != 0 {
		t.Fatal("storage should not have been called")
	}

	// One minor unit of residual is accepted.
	rec, err := svc.Finalize(ctx, draft.ID, 0, 1, -1, "tester")
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if rec.Status != recon.StatusFinalized || rec.FinalizedAt == nil {
		t.Fatalf("expected finalized record, got %+v", rec)
	}

	// Finalize is not repeatable.
	if _, err := svc.Finalize(ctx, draft.ID, 0, 0, 0, "tester"); !errors.Is(err, errs.ErrAlreadyFinalized) {
		t.Fatalf("expected ErrAlreadyFinalized, got %v", err)
	}

	if _, err := svc.Finalize(ctx, uuid.New(), 0, 0, 0, "tester"); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
