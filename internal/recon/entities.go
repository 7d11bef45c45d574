package recon

import (
	"time"

	"github.com/google/uuid"
	"github.com/govalues/money"
)

// TransactionType classifies a movement on a bank account. The sign of the
// amount is fixed at entry time (inflows positive, outflows negative), so
// the engine never re-derives it from the type.
type TransactionType string

const (
	TypeDeposit    TransactionType = "deposit"
	TypeWithdrawal TransactionType = "withdrawal"
	TypeInterest   TransactionType = "interest"
	TypeFee        TransactionType = "fee"
	TypeTransfer   TransactionType = "transfer"
	TypeAdjustment TransactionType = "adjustment"
)

// Status is the lifecycle state of a reconciliation.
type Status string

const (
	// StatusDraft marks an open, resumable reconciliation session.
	StatusDraft Status = "draft"
	// StatusFinalized marks a committed reconciliation; it and every
	// transaction claimed by it are immutable from then on.
	StatusFinalized Status = "finalized"
)

// ToleranceMinor is the allowed residual in minor units when comparing
// selection sums or the finalization difference (0.01 in a two-decimal
// currency).
const ToleranceMinor int64 = 1

// BankAccount links a bank account to the general-ledger account that
// carries its book balance. Owned by the master-data side; the engine
// only reads it.
type BankAccount struct {
	ID          uuid.UUID
	Name        string
	Currency    string
	GLAccountID uuid.UUID
	Active      bool
}

// BankTransaction is a single movement on a bank account.
type BankTransaction struct {
	ID            uuid.UUID
	BankAccountID uuid.UUID
	Date          time.Time
	// Amount is signed: deposits and interest positive, withdrawals and
	// fees negative.
	Amount      money.Amount
	Description string
	Reference   string
	Type        TransactionType
	// FromStatement is true for statement-sourced rows, false for rows
	// the organization recorded itself.
	FromStatement bool
	Reconciled    bool
	// ReconciledDate is the statement date of the claiming reconciliation,
	// not a wall-clock timestamp.
	ReconciledDate   *time.Time
	ReconciliationID *uuid.UUID
}

// AmountMinor returns the signed amount in minor units.
func (t BankTransaction) AmountMinor() int64 {
	units, _ := t.Amount.MinorUnits()
	return units
}

// Reconciliation is one statement-period reconciliation attempt for one
// bank account. At most one draft may exist per (account, statement date).
type Reconciliation struct {
	ID               uuid.UUID
	BankAccountID    uuid.UUID
	StatementDate    time.Time
	StatementBalance money.Amount
	// BookBalance and Difference stay nil until finalization.
	BookBalance *money.Amount
	Difference  *money.Amount
	Status      Status
	CreatedBy   string
	CreatedAt   time.Time
	FinalizedAt *time.Time
}

// Side represents the accounting position of a journal line.
type Side string

const (
	SideDebit  Side = "debit"
	SideCredit Side = "credit"
)

// JournalEntry is a balanced adjusting entry booked for a statement-only
// item (bank fee, interest) discovered during reconciliation.
type JournalEntry struct {
	ID        uuid.UUID
	Date      time.Time
	Currency  string
	Memo      string
	CreatedBy string
	Lines     []JournalLine
}

// JournalLine posts an amount to a GL account on one side.
type JournalLine struct {
	ID        uuid.UUID
	EntryID   uuid.UUID
	AccountID uuid.UUID
	Side      Side
	Amount    money.Amount
}
