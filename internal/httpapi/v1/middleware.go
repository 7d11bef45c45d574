package v1

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"
)

type ctxKey string

const ctxKeyPostReconciliation ctxKey = "validatedPostReconciliation"
const ctxKeyListHistory ctxKey = "validatedListHistory"
const ctxKeyMatch ctxKey = "validatedMatch"
const ctxKeyUnmatch ctxKey = "validatedUnmatch"
const ctxKeyFinalize ctxKey = "validatedFinalize"
const ctxKeyAdjustment ctxKey = "validatedAdjustment"

// validatePostReconciliation parses and validates the POST /reconciliations
// body and stores the typed request in the context for the handler.
func (s *Server) validatePostReconciliation() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !requireJSON(w, r) {
				return
			}
			var req postReconciliationRequest
			if !decodeStrict(w, r, &req) {
				return
			}
			if req.BankAccountID == uuid.Nil || req.StatementDate.IsZero() || req.ActorID == "" {
				badRequest(w, "bank_account_id, statement_date and actor_id are required")
				return
			}
			ctx := context.WithValue(r.Context(), ctxKeyPostReconciliation, req)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// validateListHistory parses query params for GET /reconciliations.
func (s *Server) validateListHistory() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			raw := q.Get("bank_account_id")
			if raw == "" {
				badRequest(w, "bank_account_id is required")
				return
			}
			accountID, err := uuid.Parse(raw)
			if err != nil {
				badRequest(w, "invalid bank_account_id")
				return
			}
			query := listHistoryQuery{BankAccountID: accountID, Page: 1, PageSize: 20}
			if p := q.Get("page"); p != "" {
				n, err := strconv.Atoi(p)
				if err != nil || n < 1 {
					badRequest(w, "invalid page")
					return
				}
				query.Page = n
			}
			if ps := q.Get("page_size"); ps != "" {
				n, err := strconv.Atoi(ps)
				if err != nil || n < 1 {
					badRequest(w, "invalid page_size")
					return
				}
				query.PageSize = n
			}
			ctx := context.WithValue(r.Context(), ctxKeyListHistory, query)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// validateMatch parses POST /reconciliations/{id}/match. The selection
// groups must both be non-empty; the balance invariant itself is checked by
// the matching service.
func (s *Server) validateMatch() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !requireJSON(w, r) {
				return
			}
			var req matchRequest
			if !decodeStrict(w, r, &req) {
				return
			}
			if len(req.StatementTxnIDs) == 0 || len(req.SystemTxnIDs) == 0 {
				badRequest(w, "statement_txn_ids and system_txn_ids must be non-empty")
				return
			}
			if req.StatementDate.IsZero() || req.ActorID == "" {
				badRequest(w, "statement_date and actor_id are required")
				return
			}
			ctx := context.WithValue(r.Context(), ctxKeyMatch, req)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// validateUnmatch parses POST /transactions/unmatch.
func (s *Server) validateUnmatch() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !requireJSON(w, r) {
				return
			}
			var req unmatchRequest
			if !decodeStrict(w, r, &req) {
				return
			}
			if len(req.TransactionIDs) == 0 || req.ActorID == "" {
				badRequest(w, "transaction_ids and actor_id are required")
				return
			}
			ctx := context.WithValue(r.Context(), ctxKeyUnmatch, req)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// validateFinalize parses POST /reconciliations/{id}/finalize. The caller
// must restate the statement balance and derived figures in the body; this
// guards against committing stale UI state.
func (s *Server) validateFinalize() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !requireJSON(w, r) {
				return
			}
			var req finalizeRequest
			if !decodeStrict(w, r, &req) {
				return
			}
			if req.ActorID == "" {
				badRequest(w, "actor_id is required")
				return
			}
			ctx := context.WithValue(r.Context(), ctxKeyFinalize, req)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// validateAdjustment parses POST /adjustments.
func (s *Server) validateAdjustment() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !requireJSON(w, r) {
				return
			}
			var req adjustmentRequest
			if !decodeStrict(w, r, &req) {
				return
			}
			if req.BankAccountID == uuid.Nil || req.OffsetAccountID == uuid.Nil {
				badRequest(w, "bank_account_id and offset_account_id are required")
				return
			}
			if req.Date.IsZero() || req.AmountMinor == 0 || req.ActorID == "" {
				badRequest(w, "date, amount_minor and actor_id are required")
				return
			}
			ctx := context.WithValue(r.Context(), ctxKeyAdjustment, req)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// decodeStrict decodes a JSON body rejecting unknown fields; writes a 400
// and returns false on failure.
func decodeStrict(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		badRequest(w, "invalid JSON: "+err.Error())
		return false
	}
	return true
}
