// Package httptransport is the thin HTTP layer. Handlers decode, delegate to
// domain services, and encode; no business logic lives here.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stratum/internal/balance"
	"stratum/internal/hierarchy"
	"stratum/internal/ledger"
	"stratum/internal/registry"
	"stratum/internal/transaction"
	"stratum/internal/validator"
	"stratum/pkg/platform/httputil"

	dErrors "stratum/pkg/domain-errors"
)

// requesterHeader carries the caller identity, populated upstream by the
// authenticating gateway. The core treats it as an opaque id.
const requesterHeader = "X-Requester-ID"

// Handler wires all endpoints to their services.
type Handler struct {
	nodes        hierarchy.Store
	registry     *registry.Service
	verifier     *ledger.Verifier
	pipeline     *validator.Service
	transactions *transaction.Service
	balances     balance.Store
	logger       *slog.Logger
}

func NewHandler(
	nodes hierarchy.Store,
	reg *registry.Service,
	verifier *ledger.Verifier,
	pipeline *validator.Service,
	transactions *transaction.Service,
	balances balance.Store,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		nodes:        nodes,
		registry:     reg,
		verifier:     verifier,
		pipeline:     pipeline,
		transactions: transactions,
		balances:     balances,
		logger:       logger,
	}
}

// NewRouter mounts every endpoint.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/layers", func(r chi.Router) {
		r.Get("/hierarchy", h.handleHierarchy)
		r.Get("/nodes", h.handleNodesByLevel)
		r.Post("/entities", h.handleRegisterEntity)
		r.Get("/entities/{entityID}", h.handleLookupEntity)
		r.Post("/verify", h.handleVerifyPreview)
	})

	r.Route("/balances", func(r chi.Router) {
		r.Put("/{entityID}", h.handleSetBalance)
		r.Get("/{entityID}", h.handleGetBalance)
	})

	r.Route("/transactions", func(r chi.Router) {
		r.Post("/", h.handleCreateTransaction)
		r.Post("/validate", h.handleValidatePreview)
		r.Get("/", h.handleHistory)
		r.Get("/stats", h.handleStats)
		r.Get("/{id}", h.handleGetTransaction)
		r.Post("/{id}/verify", h.handleVerifyTransaction)
		r.Post("/{id}/complete", h.handleCompleteTransaction)
		r.Post("/{id}/cancel", h.handleCancelTransaction)
		r.Post("/{id}/approve", h.handleApproveTransaction)
	})

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// requester extracts the caller identity or writes a bad-request envelope.
func requester(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.Header.Get(requesterHeader)
	if id == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "missing "+requesterHeader+" header"))
		return "", false
	}
	return id, true
}
