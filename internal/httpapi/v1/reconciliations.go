package v1

import (
	"net/http"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// postReconciliation creates or resumes the draft for a (bank account,
// statement date) pair. 201 when a new draft is created, 200 when an
// existing draft is resumed with its statement balance updated.
func (s *Server) postReconciliation(w http.ResponseWriter, r *http.Request) {
	req, ok := r.Context().Value(ctxKeyPostReconciliation).(postReconciliationRequest)
	if !ok {
		badRequest(w, "missing validated request")
		return
	}
	rec, created, err := s.reconSvc.GetOrCreateDraft(r.Context(), req.BankAccountID, req.StatementDate, req.StatementBalanceMinor, req.ActorID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	toJSON(w, status, toReconciliationResponse(rec))
}

// listHistory returns finalized reconciliations, newest statement date
// first.
func (s *Server) listHistory(w http.ResponseWriter, r *http.Request) {
	q, ok := r.Context().Value(ctxKeyListHistory).(listHistoryQuery)
	if !ok {
		badRequest(w, "missing validated request")
		return
	}
	items, total, err := s.reconSvc.ListHistory(r.Context(), q.BankAccountID, q.Page, q.PageSize)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	out := listHistoryResponse{
		Items:      make([]reconciliationResponse, 0, len(items)),
		TotalCount: total,
		Page:       q.Page,
		PageSize:   q.PageSize,
	}
	for _, rec := range items {
		out.Items = append(out.Items, toReconciliationResponse(rec))
	}
	toJSON(w, http.StatusOK, out)
}

// getItems returns the transactions claimed by a reconciliation,
// partitioned by origin (history detail view).
func (s *Server) getItems(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	statement, system, err := s.reconSvc.Items(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	toJSON(w, http.StatusOK, poolsResponse{
		StatementItems: toTransactionResponses(statement),
		SystemItems:    toTransactionResponses(system),
	})
}

// getSummary re-derives the balance reconciliation figures for a draft
// from the store.
func (s *Server) getSummary(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	sum, err := s.reconSvc.Summary(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	toJSON(w, http.StatusOK, toSummaryResponse(sum))
}

// postFinalize commits a draft permanently once the difference is within
// tolerance.
func (s *Server) postFinalize(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	req, ok := r.Context().Value(ctxKeyFinalize).(finalizeRequest)
	if !ok {
		badRequest(w, "missing validated request")
		return
	}
	rec, err := s.reconSvc.Finalize(r.Context(), id, req.StatementBalanceMinor, req.BookBalanceMinor, req.DifferenceMinor, req.ActorID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	toJSON(w, http.StatusOK, toReconciliationResponse(rec))
}

// pathID parses the {id} URL parameter; writes 400 and returns false when
// it is not a UUID.
func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}
