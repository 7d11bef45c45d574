package v1

import (
	"time"

	"github.com/google/uuid"
	"github.com/govalues/money"

	"github.com/tinoosan/bankrecon/internal/recon"
)

type postReconciliationRequest struct {
	BankAccountID         uuid.UUID `json:"bank_account_id"`
	StatementDate         time.Time `json:"statement_date"`
	StatementBalanceMinor int64     `json:"statement_balance_minor"`
	ActorID               string    `json:"actor_id"`
}

type reconciliationResponse struct {
	ID                    uuid.UUID    `json:"id"`
	BankAccountID         uuid.UUID    `json:"bank_account_id"`
	StatementDate         time.Time    `json:"statement_date"`
	StatementBalanceMinor int64        `json:"statement_balance_minor"`
	StatementBalance      string       `json:"statement_balance"`
	BookBalanceMinor      *int64       `json:"book_balance_minor,omitempty"`
	DifferenceMinor       *int64       `json:"difference_minor,omitempty"`
	Status                recon.Status `json:"status"`
	CreatedBy             string       `json:"created_by"`
	CreatedAt             time.Time    `json:"created_at"`
	FinalizedAt           *time.Time   `json:"finalized_at,omitempty"`
}

func toReconciliationResponse(r recon.Reconciliation) reconciliationResponse {
	stmtMinor, _ := r.StatementBalance.MinorUnits()
	out := reconciliationResponse{
		ID:                    r.ID,
		BankAccountID:         r.BankAccountID,
		StatementDate:         r.StatementDate,
		StatementBalanceMinor: stmtMinor,
		StatementBalance:      r.StatementBalance.String(),
		Status:                r.Status,
		CreatedBy:             r.CreatedBy,
		CreatedAt:             r.CreatedAt,
		FinalizedAt:           r.FinalizedAt,
	}
	if r.BookBalance != nil {
		m, _ := r.BookBalance.MinorUnits()
		out.BookBalanceMinor = &m
	}
	if r.Difference != nil {
		m, _ := r.Difference.MinorUnits()
		out.DifferenceMinor = &m
	}
	return out
}

// listHistoryQuery holds validated query params for GET /reconciliations.
type listHistoryQuery struct {
	BankAccountID uuid.UUID
	Page          int
	PageSize      int
}

type listHistoryResponse struct {
	Items      []reconciliationResponse `json:"items"`
	TotalCount int                      `json:"total_count"`
	Page       int                      `json:"page"`
	PageSize   int                      `json:"page_size"`
}

type transactionResponse struct {
	ID               uuid.UUID             `json:"id"`
	BankAccountID    uuid.UUID             `json:"bank_account_id"`
	Date             time.Time             `json:"date"`
	AmountMinor      int64                 `json:"amount_minor"`
	Amount           string                `json:"amount"`
	Description      string                `json:"description,omitempty"`
	Reference        string                `json:"reference,omitempty"`
	Type             recon.TransactionType `json:"type"`
	FromStatement    bool                  `json:"from_statement"`
	Reconciled       bool                  `json:"reconciled"`
	ReconciledDate   *time.Time            `json:"reconciled_date,omitempty"`
	ReconciliationID *uuid.UUID            `json:"reconciliation_id,omitempty"`
}

func toTransactionResponses(ts []recon.BankTransaction) []transactionResponse {
	out := make([]transactionResponse, 0, len(ts))
	for _, t := range ts {
		out = append(out, transactionResponse{
			ID:               t.ID,
			BankAccountID:    t.BankAccountID,
			Date:             t.Date,
			AmountMinor:      t.AmountMinor(),
			Amount:           t.Amount.String(),
			Description:      t.Description,
			Reference:        t.Reference,
			Type:             t.Type,
			FromStatement:    t.FromStatement,
			Reconciled:       t.Reconciled,
			ReconciledDate:   t.ReconciledDate,
			ReconciliationID: t.ReconciliationID,
		})
	}
	return out
}

type poolsResponse struct {
	StatementItems []transactionResponse `json:"statement_items"`
	SystemItems    []transactionResponse `json:"system_items"`
}

type matchRequest struct {
	StatementTxnIDs []uuid.UUID `json:"statement_txn_ids"`
	SystemTxnIDs    []uuid.UUID `json:"system_txn_ids"`
	StatementDate   time.Time   `json:"statement_date"`
	ActorID         string      `json:"actor_id"`
}

type unmatchRequest struct {
	TransactionIDs []uuid.UUID `json:"transaction_ids"`
	ActorID        string      `json:"actor_id"`
}

type finalizeRequest struct {
	StatementBalanceMinor int64  `json:"statement_balance_minor"`
	BookBalanceMinor      int64  `json:"book_balance_minor"`
	DifferenceMinor       int64  `json:"difference_minor"`
	ActorID               string `json:"actor_id"`
}

type summaryResponse struct {
	Currency                    string `json:"currency"`
	GLBalanceMinor              int64  `json:"gl_balance_minor"`
	StatementBalanceMinor       int64  `json:"statement_balance_minor"`
	InterestNotInBookMinor      int64  `json:"interest_not_in_book_minor"`
	ChargesNotInBookMinor       int64  `json:"charges_not_in_book_minor"`
	DepositsInTransitMinor      int64  `json:"deposits_in_transit_minor"`
	OutstandingWithdrawalsMinor int64  `json:"outstanding_withdrawals_minor"`
	AdjustedBookBalanceMinor    int64  `json:"adjusted_book_balance_minor"`
	AdjustedBankBalanceMinor    int64  `json:"adjusted_bank_balance_minor"`
	DifferenceMinor             int64  `json:"difference_minor"`
	Balanced                    bool   `json:"balanced"`
}

func toSummaryResponse(sum recon.Summary) summaryResponse {
	minor := func(a money.Amount) int64 {
		m, _ := a.MinorUnits()
		return m
	}
	return summaryResponse{
		Currency:                    sum.Currency,
		GLBalanceMinor:              minor(sum.GLBalance),
		StatementBalanceMinor:       minor(sum.StatementBalance),
		InterestNotInBookMinor:      minor(sum.InterestNotInBook),
		ChargesNotInBookMinor:       minor(sum.ChargesNotInBook),
		DepositsInTransitMinor:      minor(sum.DepositsInTransit),
		OutstandingWithdrawalsMinor: minor(sum.OutstandingWithdrawals),
		AdjustedBookBalanceMinor:    minor(sum.AdjustedBookBalance),
		AdjustedBankBalanceMinor:    minor(sum.AdjustedBankBalance),
		DifferenceMinor:             minor(sum.Difference),
		Balanced:                    sum.Balanced(),
	}
}

type adjustmentRequest struct {
	BankAccountID   uuid.UUID             `json:"bank_account_id"`
	OffsetAccountID uuid.UUID             `json:"offset_account_id"`
	Date            time.Time             `json:"date"`
	AmountMinor     int64                 `json:"amount_minor"`
	Type            recon.TransactionType `json:"type"`
	Description     string                `json:"description"`
	ActorID         string                `json:"actor_id"`
}

type adjustmentResponse struct {
	JournalEntryID uuid.UUID           `json:"journal_entry_id"`
	Transaction    transactionResponse `json:"transaction"`
}
