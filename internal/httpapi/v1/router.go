// Package v1 wires the HTTP surface of the reconciliation engine.
// It keeps handlers thin, delegating business rules to the service layer.
package v1

import (
	"log/slog"
	"net/http"

	chi "github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/tinoosan/bankrecon/internal/service/journal"
	"github.com/tinoosan/bankrecon/internal/service/matching"
	"github.com/tinoosan/bankrecon/internal/service/reconciliation"
)

// Server wires handlers and middleware using Chi. It composes read (repo)
// and write (writer) dependencies through services.
type Server struct {
	reconSvc reconciliation.Service
	matchSvc matching.Service
	jrnlSvc  journal.Service
	store    any
	log      *slog.Logger
	rt       *chi.Mux
}

// New constructs the HTTP server with routes and middleware. The logger is
// used by request/response logging and panic recovery.
func New(rrepo reconciliation.Repo, rwriter reconciliation.Writer, mrepo matching.Repo, mwriter matching.Writer, jrepo journal.Repo, jwriter journal.Writer, logger *slog.Logger) *Server {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(requestLogger(logger))
	r.Use(recoverer(logger))
	r.Use(metricsMiddleware)

	s := &Server{
		reconSvc: reconciliation.New(rrepo, rwriter),
		matchSvc: matching.New(mrepo, mwriter),
		jrnlSvc:  journal.New(jrepo, jwriter),
		store:    rrepo,
		log:      logger,
		rt:       r,
	}
	s.routes()
	return s
}

// Handler exposes the configured http.Handler.
func (s *Server) Handler() http.Handler { return s.rt }

// routes declares the public HTTP API endpoints and attaches any per-route
// middleware.
func (s *Server) routes() {
	// Reconciliations (v1)
	s.rt.With(s.validatePostReconciliation()).Post("/v1/reconciliations", s.postReconciliation)
	s.rt.With(s.validateListHistory()).Get("/v1/reconciliations", s.listHistory)
	s.rt.Get("/v1/reconciliations/{id}/items", s.getItems)
	s.rt.Get("/v1/reconciliations/{id}/summary", s.getSummary)
	s.rt.With(s.validateMatch()).Post("/v1/reconciliations/{id}/match", s.postMatch)
	s.rt.With(s.validateFinalize()).Post("/v1/reconciliations/{id}/finalize", s.postFinalize)
	// Transactions
	s.rt.With(s.validateUnmatch()).Post("/v1/transactions/unmatch", s.postUnmatch)
	s.rt.Get("/v1/bank-accounts/{id}/unreconciled", s.getUnreconciled)
	// Adjusting entries for statement-only items
	s.rt.With(s.validateAdjustment()).Post("/v1/adjustments", s.postAdjustment)
	// Ops (unversioned)
	s.rt.Get("/healthz", s.healthz)
	s.rt.Get("/readyz", s.readyz)
	s.rt.Method(http.MethodGet, "/metrics", metricsHandler())
}
