package reconciliation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/money"

	"github.com/tinoosan/bankrecon/internal/errs"
	"github.com/tinoosan/bankrecon/internal/recon"
)

// Repo defines read operations needed by the service.
type Repo interface {
	ReconciliationByID(ctx context.Context, id uuid.UUID) (recon.Reconciliation, error)
	ListFinalized(ctx context.Context, bankAccountID uuid.UUID, limit, offset int) ([]recon.Reconciliation, int, error)
	BankAccountByID(ctx context.Context, id uuid.UUID) (recon.BankAccount, error)
	// UnreconciledByAccount returns the statement-sourced and system-sourced
	// pools up to and including asOf.
	UnreconciledByAccount(ctx context.Context, bankAccountID uuid.UUID, asOf time.Time) (statement, system []recon.BankTransaction, err error)
	// ItemsForReconciliation returns the rows claimed by a reconciliation,
	// partitioned the same way.
	ItemsForReconciliation(ctx context.Context, reconciliationID uuid.UUID) (statement, system []recon.BankTransaction, err error)
	// GLBalanceMinor returns the general-ledger balance of an account as of
	// a date, in minor units (debits positive).
	GLBalanceMinor(ctx context.Context, glAccountID uuid.UUID, asOf time.Time) (int64, error)
}

// Writer defines write operations needed by the service. Both methods run
// inside a single storage transaction.
type Writer interface {
	// GetOrCreateDraft resumes the draft for (bank account, statement date)
	// if one exists, updating its statement balance, and inserts the given
	// record otherwise. The second return reports whether a new draft was
	// created.
	GetOrCreateDraft(ctx context.Context, draft recon.Reconciliation) (recon.Reconciliation, bool, error)
	// FinalizeReconciliation flips a draft to finalized and persists the
	// agreed figures. Fails with errs.ErrAlreadyFinalized if the record is
	// no longer a draft.
	FinalizeReconciliation(ctx context.Context, id uuid.UUID, statementMinor, bookMinor, differenceMinor int64, finalizedAt time.Time) (recon.Reconciliation, error)
}

// Service owns the reconciliation lifecycle: draft resumption, summary
// derivation and the irreversible finalization step.
type Service interface {
	GetOrCreateDraft(ctx context.Context, bankAccountID uuid.UUID, statementDate time.Time, statementBalanceMinor int64, actorID string) (recon.Reconciliation, bool, error)
	ListHistory(ctx context.Context, bankAccountID uuid.UUID, page, pageSize int) ([]recon.Reconciliation, int, error)
	Summary(ctx context.Context, draftID uuid.UUID) (recon.Summary, error)
	Pools(ctx context.Context, bankAccountID uuid.UUID, asOf time.Time) (statement, system []recon.BankTransaction, err error)
	Items(ctx context.Context, reconciliationID uuid.UUID) (statement, system []recon.BankTransaction, err error)
	Finalize(ctx context.Context, draftID uuid.UUID, statementBalanceMinor, bookBalanceMinor, differenceMinor int64, actorID string) (recon.Reconciliation, error)
}

type service struct {
	repo   Repo
	writer Writer
	now    func() time.Time
}

// New constructs the reconciliation service.
func New(repo Repo, writer Writer) Service {
	return &service{repo: repo, writer: writer, now: time.Now}
}

func (s *service) GetOrCreateDraft(ctx context.Context, bankAccountID uuid.UUID, statementDate time.Time, statementBalanceMinor int64, actorID string) (recon.Reconciliation, bool, error) {
	if bankAccountID == uuid.Nil || statementDate.IsZero() || actorID == "" {
		return recon.Reconciliation{}, false, errs.ErrInvalid
	}
	acc, err := s.repo.BankAccountByID(ctx, bankAccountID)
	if err != nil {
		return recon.Reconciliation{}, false, err
	}
	bal, err := money.NewAmountFromMinorUnits(acc.Currency, statementBalanceMinor)
	if err != nil {
		return recon.Reconciliation{}, false, errs.ErrInvalid
	}
	draft := recon.Reconciliation{
		ID:               uuid.New(),
		BankAccountID:    bankAccountID,
		StatementDate:    statementDate.UTC(),
		StatementBalance: bal,
		Status:           recon.StatusDraft,
		CreatedBy:        actorID,
		CreatedAt:        s.now().UTC(),
	}
	return s.writer.GetOrCreateDraft(ctx, draft)
}

func (s *service) ListHistory(ctx context.Context, bankAccountID uuid.UUID, page, pageSize int) ([]recon.Reconciliation, int, error) {
	if bankAccountID == uuid.Nil {
		return nil, 0, errs.ErrInvalid
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return s.repo.ListFinalized(ctx, bankAccountID, pageSize, (page-1)*pageSize)
}

// Summary re-derives the balance reconciliation identity for a draft from
// the store. Nothing is cached: a stale pool seen by one session is
// corrected on the next call.
func (s *service) Summary(ctx context.Context, draftID uuid.UUID) (recon.Summary, error) {
	if draftID == uuid.Nil {
		return recon.Summary{}, errs.ErrInvalid
	}
	rec, err := s.repo.ReconciliationByID(ctx, draftID)
	if err != nil {
		return recon.Summary{}, err
	}
	acc, err := s.repo.BankAccountByID(ctx, rec.BankAccountID)
	if err != nil {
		return recon.Summary{}, err
	}
	glMinor, err := s.repo.GLBalanceMinor(ctx, acc.GLAccountID, rec.StatementDate)
	if err != nil {
		return recon.Summary{}, err
	}
	statement, system, err := s.repo.UnreconciledByAccount(ctx, rec.BankAccountID, rec.StatementDate)
	if err != nil {
		return recon.Summary{}, err
	}
	stmtMinor, _ := rec.StatementBalance.MinorUnits()
	return recon.Summarize(acc.Currency, glMinor, stmtMinor, statement, system), nil
}

func (s *service) Pools(ctx context.Context, bankAccountID uuid.UUID, asOf time.Time) ([]recon.BankTransaction, []recon.BankTransaction, error) {
	if bankAccountID == uuid.Nil || asOf.IsZero() {
		return nil, nil, errs.ErrInvalid
	}
	if _, err := s.repo.BankAccountByID(ctx, bankAccountID); err != nil {
		return nil, nil, err
	}
	return s.repo.UnreconciledByAccount(ctx, bankAccountID, asOf)
}

func (s *service) Items(ctx context.Context, reconciliationID uuid.UUID) ([]recon.BankTransaction, []recon.BankTransaction, error) {
	if reconciliationID == uuid.Nil {
		return nil, nil, errs.ErrInvalid
	}
	if _, err := s.repo.ReconciliationByID(ctx, reconciliationID); err != nil {
		return nil, nil, err
	}
	return s.repo.ItemsForReconciliation(ctx, reconciliationID)
}

// Finalize commits a draft permanently. The caller must re-confirm the
// statement balance and the derived figures in this call; the difference
// gate is checked here and again inside the storage transaction so a
// concurrent finalize loses cleanly.
func (s *service) Finalize(ctx context.Context, draftID uuid.UUID, statementBalanceMinor, bookBalanceMinor, differenceMinor int64, actorID string) (recon.Reconciliation, error) {
	if draftID == uuid.Nil || actorID == "" {
		return recon.Reconciliation{}, errs.ErrInvalid
	}
	if differenceMinor > recon.ToleranceMinor || differenceMinor < -recon.ToleranceMinor {
		return recon.Reconciliation{}, errs.ErrNotBalanced
	}
	rec, err := s.repo.ReconciliationByID(ctx, draftID)
	if err != nil {
		return recon.Reconciliation{}, err
	}
	if rec.Status == recon.StatusFinalized {
		return recon.Reconciliation{}, errs.ErrAlreadyFinalized
	}
	return s.writer.FinalizeReconciliation(ctx, draftID, statementBalanceMinor, bookBalanceMinor, differenceMinor, s.now().UTC())
}
