package postgres

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/money"

	"github.com/tinoosan/bankrecon/internal/errs"
	"github.com/tinoosan/bankrecon/internal/recon"
)

func getTestDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping Postgres store tests")
	}
	return dsn
}

func mustOpen(t *testing.T, dsn string) *Store {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return s
}

func applyInitSQL(t *testing.T, dsn string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open for init: %v", err)
	}
	defer s.Close()
	// Resolve init SQL path relative to this test file so CWD doesn't matter
	_, thisFile, _, _ := runtime.Caller(0)
	repoRoot := filepath.Clean(filepath.Join(filepath.Dir(thisFile), "../../../"))
	path := filepath.Join(repoRoot, "db", "migrations", "0001_init.sql")
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read init sql: %v", err)
	}
	// Exec may contain multiple statements; pgx supports this
	if _, err := s.pool.Exec(ctx, string(b)); err != nil {
		t.Fatalf("apply init sql: %v", err)
	}
}

func truncateAll(t *testing.T, dsn string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open for truncate: %v", err)
	}
	defer s.Close()
	_, _ = s.pool.Exec(ctx, `truncate table journal_lines, journal_entries, bank_transactions, reconciliations, bank_accounts cascade`)
}

func seedTxn(t *testing.T, ctx context.Context, s *Store, acc recon.BankAccount, minor int64, fromStatement bool, typ recon.TransactionType, date time.Time) recon.BankTransaction {
	t.Helper()
	amt, err := money.NewAmountFromMinorUnits(acc.Currency, minor)
	if err != nil {
		t.Fatalf("amount: %v", err)
	}
	txn, err := s.CreateBankTransaction(ctx, recon.BankTransaction{
		ID:            uuid.New(),
		BankAccountID: acc.ID,
		Date:          date,
		Amount:        amt,
		Type:          typ,
		FromStatement: fromStatement,
	})
	if err != nil {
		t.Fatalf("create transaction: %v", err)
	}
	return txn
}

func TestStore_ReconciliationLifecycle(t *testing.T) {
	dsn := getTestDSN(t)
	applyInitSQL(t, dsn)
	truncateAll(t, dsn)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	s := mustOpen(t, dsn)
	defer s.Close()

	if err := s.Ready(ctx); err != nil {
		t.Fatalf("ready: %v", err)
	}

	acc, err := s.SeedDev(ctx)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if acc.ID == uuid.Nil {
		t.Fatalf("unexpected seed: %+v", acc)
	}
	got, err := s.BankAccountByID(ctx, acc.ID)
	if err != nil || got.Currency != acc.Currency {
		t.Fatalf("get account: %v %+v", err, got)
	}

	stmtDate := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	txDate := stmtDate.AddDate(0, 0, -3)
	stmt := seedTxn(t, ctx, s, acc, -2500, true, recon.TypeWithdrawal, txDate)
	sys := seedTxn(t, ctx, s, acc, -2500, false, recon.TypeWithdrawal, txDate)

	// Draft creation and resumption.
	bal, _ := money.NewAmountFromMinorUnits(acc.Currency, 50000)
	draft := recon.Reconciliation{
		ID:               uuid.New(),
		BankAccountID:    acc.ID,
		StatementDate:    stmtDate,
		StatementBalance: bal,
		Status:           recon.StatusDraft,
		CreatedBy:        "tester",
		CreatedAt:        time.Now().UTC(),
	}
	created, isNew, err := s.GetOrCreateDraft(ctx, draft)
	if err != nil || !isNew {
		t.Fatalf("create draft: %v isNew=%v", err, isNew)
	}
	resume := draft
	resume.ID = uuid.New()
	resume.StatementBalance, _ = money.NewAmountFromMinorUnits(acc.Currency, 51000)
	resumed, isNew, err := s.GetOrCreateDraft(ctx, resume)
	if err != nil || isNew {
		t.Fatalf("resume draft: %v isNew=%v", err, isNew)
	}
	if resumed.ID != created.ID {
		t.Fatalf("expected same draft, got %s vs %s", resumed.ID, created.ID)
	}
	if m, _ := resumed.StatementBalance.MinorUnits(); m != 51000 {
		t.Fatalf("expected updated balance, got %d", m)
	}

	// Claim both rows, then verify pools and items.
	ids := []uuid.UUID{stmt.ID, sys.ID}
	if err := s.ClaimTransactions(ctx, ids, created.ID, stmtDate); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := s.ClaimTransactions(ctx, ids, created.ID, stmtDate); !errors.Is(err, errs.ErrConflict) {
		t.Fatalf("expected ErrConflict on double claim, got %v", err)
	}
	stmtPool, sysPool, err := s.UnreconciledByAccount(ctx, acc.ID, stmtDate)
	if err != nil {
		t.Fatalf("pools: %v", err)
	}
	for _, tx := range append(stmtPool, sysPool...) {
		if tx.ID == stmt.ID || tx.ID == sys.ID {
			t.Fatalf("claimed row still in pool: %s", tx.ID)
		}
	}
	items, sysItems, err := s.ItemsForReconciliation(ctx, created.ID)
	if err != nil || len(items) != 1 || len(sysItems) != 1 {
		t.Fatalf("items: %v %d/%d", err, len(items), len(sysItems))
	}

	// Release and re-claim.
	if err := s.ReleaseTransactions(ctx, ids); err != nil {
		t.Fatalf("release: %v", err)
	}
	released, err := s.TransactionByID(ctx, stmt.ID)
	if err != nil || released.Reconciled || released.ReconciliationID != nil {
		t.Fatalf("expected released row, got %v %+v", err, released)
	}
	if err := s.ClaimTransactions(ctx, ids, created.ID, stmtDate); err != nil {
		t.Fatalf("re-claim: %v", err)
	}

	// GL balance from the seed's opening entry.
	glMinor, err := s.GLBalanceMinor(ctx, acc.GLAccountID, stmtDate)
	if err != nil {
		t.Fatalf("gl balance: %v", err)
	}
	if glMinor == 0 {
		t.Fatalf("expected non-zero GL balance from seed")
	}

	// Finalize, then verify immutability.
	fin, err := s.FinalizeReconciliation(ctx, created.ID, 51000, 51000, 0, time.Now().UTC())
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if fin.Status != recon.StatusFinalized || fin.FinalizedAt == nil {
		t.Fatalf("expected finalized record, got %+v", fin)
	}
	if _, err := s.FinalizeReconciliation(ctx, created.ID, 51000, 51000, 0, time.Now().UTC()); !errors.Is(err, errs.ErrAlreadyFinalized) {
		t.Fatalf("expected ErrAlreadyFinalized, got %v", err)
	}
	if err := s.ReleaseTransactions(ctx, ids); !errors.Is(err, errs.ErrImmutable) {
		t.Fatalf("expected ErrImmutable releasing finalized rows, got %v", err)
	}
	extra := seedTxn(t, ctx, s, acc, 100, true, recon.TypeDeposit, txDate)
	if err := s.ClaimTransactions(ctx, []uuid.UUID{extra.ID}, created.ID, stmtDate); !errors.Is(err, errs.ErrImmutable) {
		t.Fatalf("expected ErrImmutable claiming into finalized, got %v", err)
	}

	// Finalized reconciliations appear in history.
	list, total, err := s.ListFinalized(ctx, acc.ID, 10, 0)
	if err != nil || total != 1 || len(list) != 1 || list[0].ID != created.ID {
		t.Fatalf("history: %v total=%d len=%d", err, total, len(list))
	}
}

func TestStore_BookAdjustment(t *testing.T) {
	dsn := getTestDSN(t)
	applyInitSQL(t, dsn)
	truncateAll(t, dsn)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s := mustOpen(t, dsn)
	defer s.Close()

	acc, err := s.SeedDev(ctx)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	date := time.Date(2025, 6, 28, 0, 0, 0, 0, time.UTC)
	amt, _ := money.NewAmountFromMinorUnits(acc.Currency, 500)
	signed, _ := money.NewAmountFromMinorUnits(acc.Currency, -500)
	entryID := uuid.New()
	entry := recon.JournalEntry{
		ID: entryID, Date: date, Currency: acc.Currency, Memo: "monthly service fee", CreatedBy: "tester",
		Lines: []recon.JournalLine{
			{ID: uuid.New(), EntryID: entryID, AccountID: acc.GLAccountID, Side: recon.SideCredit, Amount: amt},
			{ID: uuid.New(), EntryID: entryID, AccountID: uuid.New(), Side: recon.SideDebit, Amount: amt},
		},
	}
	mirror := recon.BankTransaction{
		ID: uuid.New(), BankAccountID: acc.ID, Date: date,
		Amount: signed, Description: "monthly service fee",
		Reference: "adj:" + entryID.String(), Type: recon.TypeFee,
	}

	glBefore, err := s.GLBalanceMinor(ctx, acc.GLAccountID, date)
	if err != nil {
		t.Fatalf("gl before: %v", err)
	}
	_, txn, err := s.BookAdjustment(ctx, entry, mirror)
	if err != nil {
		t.Fatalf("book adjustment: %v", err)
	}
	if txn.AmountMinor() != -500 || txn.FromStatement {
		t.Fatalf("unexpected mirror: %+v", txn)
	}
	glAfter, err := s.GLBalanceMinor(ctx, acc.GLAccountID, date)
	if err != nil {
		t.Fatalf("gl after: %v", err)
	}
	if glAfter != glBefore-500 {
		t.Fatalf("expected GL to drop by 500: before=%d after=%d", glBefore, glAfter)
	}
}
