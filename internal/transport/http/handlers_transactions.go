package httptransport

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"stratum/internal/transaction"
	"stratum/pkg/platform/httputil"

	dErrors "stratum/pkg/domain-errors"
)

type validatePreviewRequest struct {
	FromEntityID        string          `json:"from_entity_id"`
	ToEntityID          string          `json:"to_entity_id"`
	Amount              decimal.Decimal `json:"amount"`
	HasExplicitApproval bool            `json:"has_explicit_approval"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

// handleCreateTransaction handles POST /transactions.
func (h *Handler) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	requesterID, ok := requester(w, r)
	if !ok {
		return
	}
	input, ok := httputil.Decode[transaction.CreateInput](w, r, h.logger)
	if !ok {
		return
	}

	tx, err := h.transactions.Create(r.Context(), requesterID, input)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, tx)
}

// handleValidatePreview handles POST /transactions/validate. It runs the
// pipeline without creating anything.
func (h *Handler) handleValidatePreview(w http.ResponseWriter, r *http.Request) {
	requesterID, ok := requester(w, r)
	if !ok {
		return
	}
	req, ok := httputil.Decode[validatePreviewRequest](w, r, h.logger)
	if !ok {
		return
	}

	result, err := h.pipeline.Validate(r.Context(), req.FromEntityID, req.ToEntityID, req.Amount, requesterID, req.HasExplicitApproval)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

// handleGetTransaction handles GET /transactions/{id}.
func (h *Handler) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	requesterID, ok := requester(w, r)
	if !ok {
		return
	}
	tx, err := h.transactions.Get(r.Context(), requesterID, chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tx)
}

// handleVerifyTransaction handles POST /transactions/{id}/verify.
func (h *Handler) handleVerifyTransaction(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.transactions.Verify)
}

// handleCompleteTransaction handles POST /transactions/{id}/complete.
func (h *Handler) handleCompleteTransaction(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.transactions.Complete)
}

// handleApproveTransaction handles POST /transactions/{id}/approve.
func (h *Handler) handleApproveTransaction(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.transactions.Approve)
}

// handleCancelTransaction handles POST /transactions/{id}/cancel. The body is
// optional; an empty one cancels without a recorded reason.
func (h *Handler) handleCancelTransaction(w http.ResponseWriter, r *http.Request) {
	requesterID, ok := requester(w, r)
	if !ok {
		return
	}
	var reason string
	if r.ContentLength > 0 {
		req, ok := httputil.Decode[cancelRequest](w, r, h.logger)
		if !ok {
			return
		}
		reason = req.Reason
	}

	tx, err := h.transactions.Cancel(r.Context(), requesterID, chi.URLParam(r, "id"), reason)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tx)
}

// handleHistory handles GET /transactions with optional status, type,
// from_date, to_date (RFC 3339), limit and offset query parameters.
func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	requesterID, ok := requester(w, r)
	if !ok {
		return
	}
	filter, err := parseFilter(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	txs, err := h.transactions.History(r.Context(), requesterID, filter)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if txs == nil {
		txs = []transaction.Transaction{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"transactions": txs})
}

// handleStats handles GET /transactions/stats.
func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	requesterID, ok := requester(w, r)
	if !ok {
		return
	}
	stats, err := h.transactions.Stats(r.Context(), requesterID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

// lifecycle factors the shared shape of the verify/complete/approve
// endpoints: resolve the requester, run the transition, write the record.
func (h *Handler) lifecycle(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, requesterID, id string) (*transaction.Transaction, error)) {
	requesterID, ok := requester(w, r)
	if !ok {
		return
	}
	tx, err := op(r.Context(), requesterID, chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tx)
}

func parseFilter(r *http.Request) (transaction.Filter, error) {
	q := r.URL.Query()
	filter := transaction.Filter{
		Status: transaction.Status(q.Get("status")),
		Type:   transaction.Type(q.Get("type")),
	}

	for key, dst := range map[string]**time.Time{"from_date": &filter.FromDate, "to_date": &filter.ToDate} {
		if raw := q.Get(key); raw != "" {
			t, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				return filter, dErrors.Newf(dErrors.CodeBadRequest, "invalid %s: %q", key, raw)
			}
			*dst = &t
		}
	}
	for key, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		if raw := q.Get(key); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				return filter, dErrors.Newf(dErrors.CodeBadRequest, "invalid %s: %q", key, raw)
			}
			*dst = n
		}
	}
	return filter, nil
}
