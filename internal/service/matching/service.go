package matching

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tinoosan/bankrecon/internal/errs"
	"github.com/tinoosan/bankrecon/internal/recon"
)

// Repo defines read operations needed by the service.
type Repo interface {
	ReconciliationByID(ctx context.Context, id uuid.UUID) (recon.Reconciliation, error)
	BankAccountByID(ctx context.Context, id uuid.UUID) (recon.BankAccount, error)
	TransactionsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]recon.BankTransaction, error)
}

// Writer defines write operations needed by the service. Both methods are
// atomic over the full id list and re-validate preconditions inside the
// storage transaction, so a selection raced by another session fails with
// errs.ErrConflict instead of half-applying.
type Writer interface {
	ClaimTransactions(ctx context.Context, ids []uuid.UUID, reconciliationID uuid.UUID, statementDate time.Time) error
	ReleaseTransactions(ctx context.Context, ids []uuid.UUID) error
}

// Service validates and applies selection groups against a draft.
//
// State machine per transaction: unreconciled -> provisionally matched
// (draft) -> finalized, with unmatch as the reverse edge available only
// while the owning reconciliation is a draft.
type Service interface {
	Match(ctx context.Context, draftID uuid.UUID, statementTxnIDs, systemTxnIDs []uuid.UUID, statementDate time.Time, actorID string) error
	Unmatch(ctx context.Context, txnIDs []uuid.UUID, actorID string) error
}

type service struct {
	repo   Repo
	writer Writer
}

// New constructs the matching service.
func New(repo Repo, writer Writer) Service { return &service{repo: repo, writer: writer} }

// Match enforces the signed-sum invariant: the statement selection and the
// system selection must sum to the same signed amount within tolerance.
// One equality covers one-to-one, one-to-many and many-to-one matches
// because both sides use the same sign convention.
func (s *service) Match(ctx context.Context, draftID uuid.UUID, statementTxnIDs, systemTxnIDs []uuid.UUID, statementDate time.Time, actorID string) error {
	if draftID == uuid.Nil || actorID == "" || statementDate.IsZero() {
		return errs.ErrInvalid
	}
	if len(statementTxnIDs) == 0 || len(systemTxnIDs) == 0 {
		return errs.ErrInvalid
	}
	draft, err := s.repo.ReconciliationByID(ctx, draftID)
	if err != nil {
		return err
	}
	if draft.Status != recon.StatusDraft {
		return errs.ErrImmutable
	}
	acc, err := s.repo.BankAccountByID(ctx, draft.BankAccountID)
	if err != nil {
		return err
	}

	all := make([]uuid.UUID, 0, len(statementTxnIDs)+len(systemTxnIDs))
	all = append(all, statementTxnIDs...)
	all = append(all, systemTxnIDs...)
	txns, err := s.repo.TransactionsByIDs(ctx, all)
	if err != nil {
		return err
	}

	statementSum, err := sumSide(txns, statementTxnIDs, draft.BankAccountID, true)
	if err != nil {
		return err
	}
	systemSum, err := sumSide(txns, systemTxnIDs, draft.BankAccountID, false)
	if err != nil {
		return err
	}
	diff := statementSum - systemSum
	if diff > recon.ToleranceMinor || diff < -recon.ToleranceMinor {
		return &errs.UnbalancedSelectionError{
			Currency:          acc.Currency,
			StatementSumMinor: statementSum,
			SystemSumMinor:    systemSum,
		}
	}
	return s.writer.ClaimTransactions(ctx, all, draftID, statementDate.UTC())
}

// Unmatch releases provisionally matched transactions back to the pool.
// Rows claimed by a finalized reconciliation are rejected as a whole;
// finalized history is never unwound through this path.
func (s *service) Unmatch(ctx context.Context, txnIDs []uuid.UUID, actorID string) error {
	if len(txnIDs) == 0 || actorID == "" {
		return errs.ErrInvalid
	}
	return s.writer.ReleaseTransactions(ctx, txnIDs)
}

// sumSide checks each id of one selection group (exists, unreconciled,
// right account, right origin) and accumulates its signed minor units.
func sumSide(txns map[uuid.UUID]recon.BankTransaction, ids []uuid.UUID, bankAccountID uuid.UUID, fromStatement bool) (int64, error) {
	var sum int64
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return 0, errs.ErrInvalid
		}
		seen[id] = struct{}{}
		t, ok := txns[id]
		if !ok {
			return 0, errs.ErrNotFound
		}
		if t.BankAccountID != bankAccountID || t.FromStatement != fromStatement {
			return 0, errs.ErrInvalid
		}
		if t.Reconciled {
			return 0, errs.ErrConflict
		}
		sum += t.AmountMinor()
	}
	return sum, nil
}
