package v1

import (
	"errors"
	"net/http"

	"github.com/tinoosan/bankrecon/internal/errs"
)

// errorResponse is the standard error payload for the API. Details carries
// structured context for recoverable failures (e.g. both selection sums on
// an unbalanced match) so callers can render a message without re-deriving
// it.
type errorResponse struct {
	Error   string         `json:"error"`
	Code    string         `json:"code,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

func writeErr(w http.ResponseWriter, status int, msg, code string) {
	toJSON(w, status, errorResponse{Error: msg, Code: code})
}

func badRequest(w http.ResponseWriter, msg string) { writeErr(w, http.StatusBadRequest, msg, "") }
func notFound(w http.ResponseWriter) {
	writeErr(w, http.StatusNotFound, "not_found", "not_found")
}

// writeServiceError maps service-layer errors onto the error envelope.
// Business-rule violations come back as structured failures; anything
// unrecognized is an infrastructure error and surfaces as a 500.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	var unbalanced *errs.UnbalancedSelectionError
	switch {
	case errors.As(err, &unbalanced):
		toJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error: unbalanced.Error(),
			Code:  "unbalanced_selection",
			Details: map[string]any{
				"currency":            unbalanced.Currency,
				"statement_sum_minor": unbalanced.StatementSumMinor,
				"system_sum_minor":    unbalanced.SystemSumMinor,
				"tolerance_minor":     1,
			},
		})
	case errors.Is(err, errs.ErrNotFound):
		notFound(w)
	case errors.Is(err, errs.ErrInvalid):
		writeErr(w, http.StatusBadRequest, err.Error(), "invalid")
	case errors.Is(err, errs.ErrConflict):
		writeErr(w, http.StatusConflict, "transaction already reconciled", "transaction_conflict")
	case errors.Is(err, errs.ErrImmutable):
		writeErr(w, http.StatusConflict, "reconciliation is finalized", "immutable_record")
	case errors.Is(err, errs.ErrAlreadyFinalized):
		writeErr(w, http.StatusConflict, "reconciliation already finalized", "already_finalized")
	case errors.Is(err, errs.ErrNotBalanced):
		writeErr(w, http.StatusUnprocessableEntity, "difference exceeds tolerance", "not_balanced")
	default:
		s.log.Error("internal error", "err", err)
		writeErr(w, http.StatusInternalServerError, "internal_error", "internal_error")
	}
}
