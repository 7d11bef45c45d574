package postgres

// Package postgres provides a pgx-backed storage implementation that
// satisfies the repository and writer interfaces used by the services.
//
// Every mutating operation runs inside one pgx transaction with row locks
// on the records it re-validates, so callers never observe a half-applied
// match, a duplicated draft or a finalize race. Migrations that create the
// expected schema live under db/migrations.

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/money"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tinoosan/bankrecon/internal/errs"
	"github.com/tinoosan/bankrecon/internal/recon"
)

// Store holds a pgx connection pool and implements the read/write
// interfaces used across the service layer. All methods are safe for
// concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// Open establishes a pgx pool using the provided connection string.
func Open(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ready pings the pool to verify connectivity.
func (s *Store) Ready(ctx context.Context) error { return s.pool.Ping(ctx) }

// --- Bank accounts ---

func (s *Store) BankAccountByID(ctx context.Context, id uuid.UUID) (recon.BankAccount, error) {
	var a recon.BankAccount
	err := s.pool.QueryRow(ctx, `
        select id, name, currency, gl_account_id, active
        from bank_accounts
        where id = $1
    `, id).Scan(&a.ID, &a.Name, &a.Currency, &a.GLAccountID, &a.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return recon.BankAccount{}, errs.ErrNotFound
	}
	if err != nil {
		return recon.BankAccount{}, err
	}
	return a, nil
}

// --- Transactions ---

const txnColumns = `
    t.id, t.bank_account_id, t.date, t.amount_minor, t.description, t.reference,
    t.type, t.from_statement, t.reconciled, t.reconciled_date, t.reconciliation_id,
    a.currency
`

func (s *Store) TransactionsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]recon.BankTransaction, error) {
	if len(ids) == 0 {
		return map[uuid.UUID]recon.BankTransaction{}, nil
	}
	rows, err := s.pool.Query(ctx, `
        select `+txnColumns+`
        from bank_transactions t
        join bank_accounts a on a.id = t.bank_account_id
        where t.id = any($1)
    `, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[uuid.UUID]recon.BankTransaction, len(ids))
	for rows.Next() {
		t, err := scanTxn(rows)
		if err != nil {
			return nil, err
		}
		out[t.ID] = t
	}
	return out, rows.Err()
}

func (s *Store) TransactionByID(ctx context.Context, id uuid.UUID) (recon.BankTransaction, error) {
	m, err := s.TransactionsByIDs(ctx, []uuid.UUID{id})
	if err != nil {
		return recon.BankTransaction{}, err
	}
	t, ok := m[id]
	if !ok {
		return recon.BankTransaction{}, errs.ErrNotFound
	}
	return t, nil
}

// UnreconciledByAccount returns the unreconciled pools for an account up to
// and including asOf, partitioned by origin.
func (s *Store) UnreconciledByAccount(ctx context.Context, bankAccountID uuid.UUID, asOf time.Time) ([]recon.BankTransaction, []recon.BankTransaction, error) {
	rows, err := s.pool.Query(ctx, `
        select `+txnColumns+`
        from bank_transactions t
        join bank_accounts a on a.id = t.bank_account_id
        where t.bank_account_id = $1 and not t.reconciled and t.date <= $2
        order by t.date asc, t.id asc
    `, bankAccountID, asOf)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()
	return partitionRows(rows)
}

func (s *Store) ItemsForReconciliation(ctx context.Context, reconciliationID uuid.UUID) ([]recon.BankTransaction, []recon.BankTransaction, error) {
	rows, err := s.pool.Query(ctx, `
        select `+txnColumns+`
        from bank_transactions t
        join bank_accounts a on a.id = t.bank_account_id
        where t.reconciliation_id = $1
        order by t.date asc, t.id asc
    `, reconciliationID)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()
	return partitionRows(rows)
}

// CreateBankTransaction inserts a transaction row. Used by seeds and by
// the statement-import side in deployments that share this store.
func (s *Store) CreateBankTransaction(ctx context.Context, t recon.BankTransaction) (recon.BankTransaction, error) {
	if err := insertTxn(ctx, s.pool, t); err != nil {
		return recon.BankTransaction{}, err
	}
	return t, nil
}

// ClaimTransactions marks the listed transactions reconciled under a draft
// within one transaction. Rows are locked and preconditions re-checked, so
// a selection raced by another session rolls back with errs.ErrConflict.
func (s *Store) ClaimTransactions(ctx context.Context, ids []uuid.UUID, reconciliationID uuid.UUID, statementDate time.Time) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var status recon.Status
	var accountID uuid.UUID
	err = tx.QueryRow(ctx, `
        select status, bank_account_id from reconciliations where id = $1 for update
    `, reconciliationID).Scan(&status, &accountID)
	if errors.Is(err, pgx.ErrNoRows) {
		return errs.ErrNotFound
	}
	if err != nil {
		return err
	}
	if status != recon.StatusDraft {
		return errs.ErrImmutable
	}

	rows, err := tx.Query(ctx, `
        select id, reconciled, bank_account_id
        from bank_transactions
        where id = any($1)
        for update
    `, ids)
	if err != nil {
		return err
	}
	found := 0
	for rows.Next() {
		var id uuid.UUID
		var reconciled bool
		var accID uuid.UUID
		if err := rows.Scan(&id, &reconciled, &accID); err != nil {
			rows.Close()
			return err
		}
		if reconciled {
			rows.Close()
			return errs.ErrConflict
		}
		if accID != accountID {
			rows.Close()
			return errs.ErrInvalid
		}
		found++
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	if found != len(ids) {
		return errs.ErrNotFound
	}

	if _, err := tx.Exec(ctx, `
        update bank_transactions
        set reconciled = true, reconciliation_id = $2, reconciled_date = $3
        where id = any($1)
    `, ids, reconciliationID, statementDate); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// ReleaseTransactions clears the claim from the listed transactions in one
// transaction. Any row pointing at a finalized reconciliation rejects the
// whole batch.
func (s *Store) ReleaseTransactions(ctx context.Context, ids []uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
        select t.id, r.status
        from bank_transactions t
        left join reconciliations r on r.id = t.reconciliation_id
        where t.id = any($1)
        for update of t
    `, ids)
	if err != nil {
		return err
	}
	found := 0
	for rows.Next() {
		var id uuid.UUID
		var status *string
		if err := rows.Scan(&id, &status); err != nil {
			rows.Close()
			return err
		}
		if status != nil && *status == string(recon.StatusFinalized) {
			rows.Close()
			return errs.ErrImmutable
		}
		found++
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	if found != len(ids) {
		return errs.ErrNotFound
	}

	if _, err := tx.Exec(ctx, `
        update bank_transactions
        set reconciled = false, reconciliation_id = null, reconciled_date = null
        where id = any($1)
    `, ids); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// --- Reconciliations ---

const recColumns = `
    r.id, r.bank_account_id, r.statement_date, r.statement_balance_minor,
    r.book_balance_minor, r.difference_minor, r.status, r.created_by,
    r.created_at, r.finalized_at, a.currency
`

func (s *Store) ReconciliationByID(ctx context.Context, id uuid.UUID) (recon.Reconciliation, error) {
	row := s.pool.QueryRow(ctx, `
        select `+recColumns+`
        from reconciliations r
        join bank_accounts a on a.id = r.bank_account_id
        where r.id = $1
    `, id)
	rec, err := scanRec(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return recon.Reconciliation{}, errs.ErrNotFound
	}
	return rec, err
}

func (s *Store) ListFinalized(ctx context.Context, bankAccountID uuid.UUID, limit, offset int) ([]recon.Reconciliation, int, error) {
	var total int
	if err := s.pool.QueryRow(ctx, `
        select count(*) from reconciliations
        where bank_account_id = $1 and status = 'finalized'
    `, bankAccountID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := s.pool.Query(ctx, `
        select `+recColumns+`
        from reconciliations r
        join bank_accounts a on a.id = r.bank_account_id
        where r.bank_account_id = $1 and r.status = 'finalized'
        order by r.statement_date desc, r.id asc
        limit $2 offset $3
    `, bankAccountID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := make([]recon.Reconciliation, 0, limit)
	for rows.Next() {
		rec, err := scanRec(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, rec)
	}
	return out, total, rows.Err()
}

// GetOrCreateDraft resumes or inserts a draft inside one transaction. The
// existing draft row is locked before its statement balance is updated, so
// two sessions resuming concurrently cannot create duplicates (the partial
// unique index on (bank_account_id, statement_date) where status='draft'
// backstops the race).
func (s *Store) GetOrCreateDraft(ctx context.Context, draft recon.Reconciliation) (recon.Reconciliation, bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return recon.Reconciliation{}, false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	stmtMinor, _ := draft.StatementBalance.MinorUnits()
	var existingID uuid.UUID
	err = tx.QueryRow(ctx, `
        select id from reconciliations
        where bank_account_id = $1 and statement_date = $2 and status = 'draft'
        for update
    `, draft.BankAccountID, draft.StatementDate).Scan(&existingID)
	switch {
	case err == nil:
		if _, err := tx.Exec(ctx, `
            update reconciliations set statement_balance_minor = $2 where id = $1
        `, existingID, stmtMinor); err != nil {
			return recon.Reconciliation{}, false, err
		}
		if err := tx.Commit(ctx); err != nil {
			return recon.Reconciliation{}, false, err
		}
		rec, err := s.ReconciliationByID(ctx, existingID)
		return rec, false, err
	case errors.Is(err, pgx.ErrNoRows):
		if _, err := tx.Exec(ctx, `
            insert into reconciliations
                (id, bank_account_id, statement_date, statement_balance_minor, status, created_by, created_at)
            values ($1, $2, $3, $4, 'draft', $5, $6)
        `, draft.ID, draft.BankAccountID, draft.StatementDate, stmtMinor, draft.CreatedBy, draft.CreatedAt); err != nil {
			return recon.Reconciliation{}, false, err
		}
		if err := tx.Commit(ctx); err != nil {
			return recon.Reconciliation{}, false, err
		}
		return draft, true, nil
	default:
		return recon.Reconciliation{}, false, err
	}
}

// FinalizeReconciliation flips a draft to finalized, persisting the agreed
// figures. The row is locked first so a double finalize loses with
// errs.ErrAlreadyFinalized. Claimed transactions are not touched.
func (s *Store) FinalizeReconciliation(ctx context.Context, id uuid.UUID, statementMinor, bookMinor, differenceMinor int64, finalizedAt time.Time) (recon.Reconciliation, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return recon.Reconciliation{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var status recon.Status
	err = tx.QueryRow(ctx, `
        select status from reconciliations where id = $1 for update
    `, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return recon.Reconciliation{}, errs.ErrNotFound
	}
	if err != nil {
		return recon.Reconciliation{}, err
	}
	if status == recon.StatusFinalized {
		return recon.Reconciliation{}, errs.ErrAlreadyFinalized
	}
	if _, err := tx.Exec(ctx, `
        update reconciliations
        set status = 'finalized', statement_balance_minor = $2,
            book_balance_minor = $3, difference_minor = $4, finalized_at = $5
        where id = $1
    `, id, statementMinor, bookMinor, differenceMinor, finalizedAt); err != nil {
		return recon.Reconciliation{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return recon.Reconciliation{}, err
	}
	return s.ReconciliationByID(ctx, id)
}

// --- Journal ---

// GLBalanceMinor sums journal lines for an account up to asOf inclusive,
// debits positive.
func (s *Store) GLBalanceMinor(ctx context.Context, glAccountID uuid.UUID, asOf time.Time) (int64, error) {
	var net int64
	err := s.pool.QueryRow(ctx, `
        select coalesce(sum(case l.side when 'debit' then l.amount_minor else -l.amount_minor end), 0)
        from journal_lines l
        join journal_entries e on e.id = l.entry_id
        where l.account_id = $1 and e.date <= $2
    `, glAccountID, asOf).Scan(&net)
	return net, err
}

// BookAdjustment inserts the entry, its lines and the mirror bank
// transaction in one transaction.
func (s *Store) BookAdjustment(ctx context.Context, entry recon.JournalEntry, txn recon.BankTransaction) (recon.JournalEntry, recon.BankTransaction, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return recon.JournalEntry{}, recon.BankTransaction{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
        insert into journal_entries (id, date, currency, memo, created_by)
        values ($1, $2, $3, $4, $5)
    `, entry.ID, entry.Date, entry.Currency, entry.Memo, entry.CreatedBy); err != nil {
		return recon.JournalEntry{}, recon.BankTransaction{}, err
	}
	for _, ln := range entry.Lines {
		minor, _ := ln.Amount.MinorUnits()
		if _, err := tx.Exec(ctx, `
            insert into journal_lines (id, entry_id, account_id, side, amount_minor)
            values ($1, $2, $3, $4, $5)
        `, ln.ID, entry.ID, ln.AccountID, ln.Side, minor); err != nil {
			return recon.JournalEntry{}, recon.BankTransaction{}, err
		}
	}
	if err := insertTxn(ctx, tx, txn); err != nil {
		return recon.JournalEntry{}, recon.BankTransaction{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return recon.JournalEntry{}, recon.BankTransaction{}, err
	}
	return entry, txn, nil
}

// --- Dev seed ---

// SeedDev inserts a bank account with a handful of unreconciled statement
// and system transactions plus an opening GL balance, for quick local
// testing.
func (s *Store) SeedDev(ctx context.Context) (recon.BankAccount, error) {
	acc := recon.BankAccount{
		ID:          uuid.New(),
		Name:        "Operating Account",
		Currency:    "USD",
		GLAccountID: uuid.New(),
		Active:      true,
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return recon.BankAccount{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if _, err := tx.Exec(ctx, `
        insert into bank_accounts (id, name, currency, gl_account_id, active)
        values ($1, $2, $3, $4, $5)
    `, acc.ID, acc.Name, acc.Currency, acc.GLAccountID, acc.Active); err != nil {
		return recon.BankAccount{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return recon.BankAccount{}, err
	}

	now := time.Now().UTC()
	opening := recon.JournalEntry{
		ID: uuid.New(), Date: now.AddDate(0, -1, 0), Currency: acc.Currency,
		Memo: "opening balance", CreatedBy: "seed",
	}
	equity := uuid.New()
	amt, _ := money.NewAmountFromMinorUnits(acc.Currency, 100000)
	opening.Lines = []recon.JournalLine{
		{ID: uuid.New(), EntryID: opening.ID, AccountID: acc.GLAccountID, Side: recon.SideDebit, Amount: amt},
		{ID: uuid.New(), EntryID: opening.ID, AccountID: equity, Side: recon.SideCredit, Amount: amt},
	}
	mirror := recon.BankTransaction{
		ID: uuid.New(), BankAccountID: acc.ID, Date: now.AddDate(0, -1, 0),
		Amount: amt, Description: "opening balance", Type: recon.TypeDeposit, FromStatement: true,
	}
	if _, _, err := s.BookAdjustment(ctx, opening, mirror); err != nil {
		return recon.BankAccount{}, err
	}
	return acc, nil
}

// --- scanning helpers ---

func scanTxn(rows pgx.Rows) (recon.BankTransaction, error) {
	var t recon.BankTransaction
	var minor int64
	var currency string
	if err := rows.Scan(&t.ID, &t.BankAccountID, &t.Date, &minor, &t.Description, &t.Reference,
		&t.Type, &t.FromStatement, &t.Reconciled, &t.ReconciledDate, &t.ReconciliationID, &currency); err != nil {
		return recon.BankTransaction{}, err
	}
	t.Amount, _ = money.NewAmountFromMinorUnits(currency, minor)
	return t, nil
}

func scanRec(row pgx.Row) (recon.Reconciliation, error) {
	var r recon.Reconciliation
	var stmtMinor int64
	var bookMinor, diffMinor *int64
	var currency string
	if err := row.Scan(&r.ID, &r.BankAccountID, &r.StatementDate, &stmtMinor,
		&bookMinor, &diffMinor, &r.Status, &r.CreatedBy, &r.CreatedAt, &r.FinalizedAt, &currency); err != nil {
		return recon.Reconciliation{}, err
	}
	r.StatementBalance, _ = money.NewAmountFromMinorUnits(currency, stmtMinor)
	if bookMinor != nil {
		b, _ := money.NewAmountFromMinorUnits(currency, *bookMinor)
		r.BookBalance = &b
	}
	if diffMinor != nil {
		d, _ := money.NewAmountFromMinorUnits(currency, *diffMinor)
		r.Difference = &d
	}
	return r, nil
}

func partitionRows(rows pgx.Rows) ([]recon.BankTransaction, []recon.BankTransaction, error) {
	var statement, system []recon.BankTransaction
	for rows.Next() {
		t, err := scanTxn(rows)
		if err != nil {
			return nil, nil, err
		}
		if t.FromStatement {
			statement = append(statement, t)
		} else {
			system = append(system, t)
		}
	}
	return statement, system, rows.Err()
}

// execer is satisfied by both *pgxpool.Pool and pgx.Tx.
type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

func insertTxn(ctx context.Context, ex execer, t recon.BankTransaction) error {
	minor, _ := t.Amount.MinorUnits()
	_, err := ex.Exec(ctx, `
        insert into bank_transactions
            (id, bank_account_id, date, amount_minor, description, reference, type,
             from_statement, reconciled, reconciled_date, reconciliation_id)
        values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
    `, t.ID, t.BankAccountID, t.Date, minor, t.Description, t.Reference, t.Type,
		t.FromStatement, t.Reconciled, t.ReconciledDate, t.ReconciliationID)
	return err
}
