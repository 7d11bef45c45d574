package v1

import (
	"net/http"
	"time"
)

// getUnreconciled returns the unreconciled statement and system pools for
// a bank account up to the as_of date (RFC3339, required).
func (s *Server) getUnreconciled(w http.ResponseWriter, r *http.Request) {
	accountID, ok := pathID(w, r)
	if !ok {
		return
	}
	raw := r.URL.Query().Get("as_of")
	if raw == "" {
		badRequest(w, "as_of is required")
		return
	}
	asOf, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		badRequest(w, "invalid as_of")
		return
	}
	statement, system, err := s.reconSvc.Pools(r.Context(), accountID, asOf.UTC())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	toJSON(w, http.StatusOK, poolsResponse{
		StatementItems: toTransactionResponses(statement),
		SystemItems:    toTransactionResponses(system),
	})
}
