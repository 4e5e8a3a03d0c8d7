package httptransport

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"stratum/internal/balance"
	"stratum/internal/hierarchy"
	"stratum/pkg/platform/httputil"
	"stratum/pkg/platform/sentinel"

	dErrors "stratum/pkg/domain-errors"
)

type setBalanceRequest struct {
	Balance    decimal.Decimal `json:"balance"`
	Verified   bool            `json:"verified"`
	KYCLevel   int             `json:"kyc_level"`
	DailyLimit decimal.Decimal `json:"daily_limit"`
}

// handleSetBalance handles PUT /balances/{entityID}. It is the provisioning
// surface for entity working balances and risk profiles.
func (h *Handler) handleSetBalance(w http.ResponseWriter, r *http.Request) {
	entityID := chi.URLParam(r, "entityID")
	req, ok := httputil.Decode[setBalanceRequest](w, r, h.logger)
	if !ok {
		return
	}
	if req.Balance.IsNegative() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "balance must not be negative"))
		return
	}
	if !balance.KYCLevelValid(req.KYCLevel) {
		httputil.WriteError(w, dErrors.Newf(dErrors.CodeInvalidInput, "kyc level %d out of range", req.KYCLevel))
		return
	}

	record := balance.EntityBalance{
		EntityID:   entityID,
		Balance:    req.Balance,
		Currency:   hierarchy.DefaultCurrency,
		Verified:   req.Verified,
		KYCLevel:   req.KYCLevel,
		DailyLimit: req.DailyLimit,
	}
	if err := h.balances.Upsert(r.Context(), record); err != nil {
		h.logger.Error("upsert balance failed", "entity_id", entityID, "error", err)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "upsert balance"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, record)
}

// handleGetBalance handles GET /balances/{entityID}.
func (h *Handler) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	entityID := chi.URLParam(r, "entityID")
	record, err := h.balances.Get(r.Context(), entityID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			httputil.WriteError(w, dErrors.Newf(dErrors.CodeNotFound, "no balance record for entity %s", entityID))
			return
		}
		h.logger.Error("get balance failed", "entity_id", entityID, "error", err)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "get balance"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, record)
}
