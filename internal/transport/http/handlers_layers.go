package httptransport

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"stratum/internal/hierarchy"
	"stratum/pkg/platform/httputil"

	dErrors "stratum/pkg/domain-errors"
)

type registerEntityRequest struct {
	EntityID   string `json:"entity_id"`
	DistrictID string `json:"district_id"`
}

type verifyPreviewRequest struct {
	FromEntityID string          `json:"from_entity_id"`
	ToEntityID   string          `json:"to_entity_id"`
	Amount       decimal.Decimal `json:"amount"`
}

// handleHierarchy handles GET /layers/hierarchy.
func (h *Handler) handleHierarchy(w http.ResponseWriter, r *http.Request) {
	nodes, err := h.nodes.All(r.Context())
	if err != nil {
		h.logger.Error("list hierarchy failed", "error", err)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "list hierarchy"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"nodes": nodes})
}

// handleNodesByLevel handles GET /layers/nodes?level=N.
func (h *Handler) handleNodesByLevel(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("level")
	n, err := strconv.Atoi(raw)
	if err != nil || !hierarchy.Level(n).IsValid() {
		httputil.WriteError(w, dErrors.Newf(dErrors.CodeBadRequest, "invalid level %q", raw))
		return
	}
	level := hierarchy.Level(n)

	nodes, err := h.nodes.NodesByLevel(r.Context(), level)
	if err != nil {
		h.logger.Error("list nodes failed", "level", level.String(), "error", err)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "list nodes"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"level": n,
		"name":  level.String(),
		"nodes": nodes,
	})
}

// handleRegisterEntity handles POST /layers/entities.
func (h *Handler) handleRegisterEntity(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[registerEntityRequest](w, r, h.logger)
	if !ok {
		return
	}

	info, err := h.registry.Register(r.Context(), req.EntityID, req.DistrictID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, info)
}

// handleLookupEntity handles GET /layers/entities/{entityID}.
func (h *Handler) handleLookupEntity(w http.ResponseWriter, r *http.Request) {
	info, err := h.registry.Lookup(r.Context(), chi.URLParam(r, "entityID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, info)
}

// handleVerifyPreview handles POST /layers/verify. It computes the delta set
// a transfer would produce without touching any balance.
func (h *Handler) handleVerifyPreview(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[verifyPreviewRequest](w, r, h.logger)
	if !ok {
		return
	}
	if req.FromEntityID == "" || req.ToEntityID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "from_entity_id and to_entity_id are required"))
		return
	}

	result, err := h.verifier.Verify(r.Context(), req.FromEntityID, req.ToEntityID, req.Amount)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}
