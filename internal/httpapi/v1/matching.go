package v1

import (
	"net/http"
)

// postMatch validates and applies a selection of statement transactions
// against a selection of system transactions under a draft.
func (s *Server) postMatch(w http.ResponseWriter, r *http.Request) {
	draftID, ok := pathID(w, r)
	if !ok {
		return
	}
	req, ok := r.Context().Value(ctxKeyMatch).(matchRequest)
	if !ok {
		badRequest(w, "missing validated request")
		return
	}
	err := s.matchSvc.Match(r.Context(), draftID, req.StatementTxnIDs, req.SystemTxnIDs, req.StatementDate, req.ActorID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	matchesCommittedTotal.Inc()
	toJSON(w, http.StatusOK, map[string]any{
		"matched": len(req.StatementTxnIDs) + len(req.SystemTxnIDs),
	})
}

// postUnmatch releases provisionally matched transactions back to the
// unreconciled pool.
func (s *Server) postUnmatch(w http.ResponseWriter, r *http.Request) {
	req, ok := r.Context().Value(ctxKeyUnmatch).(unmatchRequest)
	if !ok {
		badRequest(w, "missing validated request")
		return
	}
	if err := s.matchSvc.Unmatch(r.Context(), req.TransactionIDs, req.ActorID); err != nil {
		s.writeServiceError(w, err)
		return
	}
	toJSON(w, http.StatusOK, map[string]any{
		"unmatched": len(req.TransactionIDs),
	})
}
