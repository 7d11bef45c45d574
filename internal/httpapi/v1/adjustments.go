package v1

import (
	"net/http"

	"github.com/tinoosan/bankrecon/internal/recon"
	"github.com/tinoosan/bankrecon/internal/service/journal"
)

// postAdjustment books a statement-only item (bank fee, interest) as a
// balanced journal entry plus its mirror system-sourced bank transaction,
// so the item can then be matched like any other.
func (s *Server) postAdjustment(w http.ResponseWriter, r *http.Request) {
	req, ok := r.Context().Value(ctxKeyAdjustment).(adjustmentRequest)
	if !ok {
		badRequest(w, "missing validated request")
		return
	}
	entry, txn, err := s.jrnlSvc.CreateAdjustment(r.Context(), journal.AdjustmentInput{
		BankAccountID:   req.BankAccountID,
		OffsetAccountID: req.OffsetAccountID,
		Date:            req.Date,
		AmountMinor:     req.AmountMinor,
		Type:            req.Type,
		Description:     req.Description,
		ActorID:         req.ActorID,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	txns := toTransactionResponses([]recon.BankTransaction{txn})
	toJSON(w, http.StatusCreated, adjustmentResponse{
		JournalEntryID: entry.ID,
		Transaction:    txns[0],
	})
}
