package journal

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
	BankAccountByID(ctx context.Context, id uuid.UUID) (recon.BankAccount, error)
}

// Writer persists an adjusting entry together with its mirror bank
// transaction in one storage transaction.
type Writer interface {
	BookAdjustment(ctx context.Context, entry recon.JournalEntry, txn recon.BankTransaction) (recon.JournalEntry, recon.BankTransaction, error)
}

// AdjustmentInput describes a statement-only item (bank fee, interest)
// discovered during reconciliation that the caller wants booked into the
// books so it can then be matched.
type AdjustmentInput struct {
	BankAccountID uuid.UUID
	// OffsetAccountID is the GL account taking the other side of the entry
	// (an expense account for fees, an income account for interest).
	OffsetAccountID uuid.UUID
	Date            time.Time
	// AmountMinor is signed: positive for interest, negative for fees.
	AmountMinor int64
	Type        recon.TransactionType
	Description string
	ActorID     string
}

// Service books balanced adjusting entries against the bank GL account.
// It is the engine's one-way call into journal posting; it never inspects
// journal internals beyond the created entry.
type Service interface {
	CreateAdjustment(ctx context.Context, in AdjustmentInput) (recon.JournalEntry, recon.BankTransaction, error)
}

type service struct {
	repo   Repo
	writer Writer
}

// New constructs the journal service.
func New(repo Repo, writer Writer) Service { return &service{repo: repo, writer: writer} }

func (s *service) CreateAdjustment(ctx context.Context, in AdjustmentInput) (recon.JournalEntry, recon.BankTransaction, error) {
	if err := validate(in); err != nil {
		return recon.JournalEntry{}, recon.BankTransaction{}, err
	}
	acc, err := s.repo.BankAccountByID(ctx, in.BankAccountID)
	if err != nil {
		return recon.JournalEntry{}, recon.BankTransaction{}, err
	}

	abs := in.AmountMinor
	if abs < 0 {
		abs = -abs
	}
	lineAmt, err := money.NewAmountFromMinorUnits(acc.Currency, abs)
	if err != nil {
		return recon.JournalEntry{}, recon.BankTransaction{}, errs.ErrInvalid
	}
	signedAmt, _ := money.NewAmountFromMinorUnits(acc.Currency, in.AmountMinor)

	// Interest debits the bank account, fees credit it; the offset account
	// always takes the opposite side so the entry stays balanced.
	bankSide, offsetSide := recon.SideDebit, recon.SideCredit
	if in.AmountMinor < 0 {
		bankSide, offsetSide = recon.SideCredit, recon.SideDebit
	}

	entryID := uuid.New()
	entry := recon.JournalEntry{
		ID:        entryID,
		Date:      in.Date.UTC(),
		Currency:  acc.Currency,
		Memo:      in.Description,
		CreatedBy: in.ActorID,
		Lines: []recon.JournalLine{
			{ID: uuid.New(), EntryID: entryID, AccountID: acc.GLAccountID, Side: bankSide, Amount: lineAmt},
			{ID: uuid.New(), EntryID: entryID, AccountID: in.OffsetAccountID, Side: offsetSide, Amount: lineAmt},
		},
	}
	txn := recon.BankTransaction{
		ID:            uuid.New(),
		BankAccountID: in.BankAccountID,
		Date:          in.Date.UTC(),
		Amount:        signedAmt,
		Description:   in.Description,
		Reference:     "adj:" + entryID.String(),
		Type:          in.Type,
		FromStatement: false,
	}
	return s.writer.BookAdjustment(ctx, entry, txn)
}

func validate(in AdjustmentInput) error {
	if in.BankAccountID == uuid.Nil || in.OffsetAccountID == uuid.Nil {
		return errs.ErrInvalid
	}
	if in.Date.IsZero() || in.AmountMinor == 0 || in.ActorID == "" {
		return errs.ErrInvalid
	}
	switch in.Type {
	case recon.TypeFee, recon.TypeInterest, recon.TypeAdjustment:
	default:
		return errs.ErrInvalid
	}
	// Sign must agree with the type so downstream matching can trust it.
	if in.Type == recon.TypeFee && in.AmountMinor > 0 {
		return errs.ErrInvalid
	}
	if in.Type == recon.TypeInterest && in.AmountMinor < 0 {
		return errs.ErrInvalid
	}
	return nil
}
