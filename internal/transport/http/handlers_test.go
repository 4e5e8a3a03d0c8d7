package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/suite"

	"stratum/internal/balance"
	"stratum/internal/hierarchy"
	"stratum/internal/ledger"
	"stratum/internal/registry"
	"stratum/internal/transaction"
	"stratum/internal/validator"
)

// =============================================================================
// HTTP Handler Test Suite
// =============================================================================
// Justification for unit tests: the transport layer owns requester-header
// enforcement, query parsing and error envelope mapping; these are cheapest
// to pin with httptest against the real services on memory stores.

type HandlersSuite struct {
	suite.Suite
	router http.Handler
}

func TestHandlersSuite(t *testing.T) {
	suite.Run(t, new(HandlersSuite))
}

func (s *HandlersSuite) SetupTest() {
	ctx := context.Background()
	nodes := hierarchy.NewInMemoryStore()
	s.Require().NoError(hierarchy.Bootstrap(ctx, nodes))

	reg, err := registry.New(nodes, registry.NewInMemoryStore())
	s.Require().NoError(err)
	verifier, err := ledger.New(reg, nodes)
	s.Require().NoError(err)

	balances := balance.NewInMemoryStore()
	stats := validator.NewInMemoryStats()
	pipeline, err := validator.New(balances, reg, stats, validator.NewStaticPolicy(nil, nil))
	s.Require().NoError(err)
	txs, err := transaction.New(transaction.NewInMemoryStore(), verifier, pipeline, balances, stats)
	s.Require().NoError(err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.router = NewRouter(NewHandler(nodes, reg, verifier, pipeline, txs, balances, logger))

	// Register and fund two entities for the transfer tests.
	for entity, district := range map[string]string{
		"alice": "KR-JEJU-JEJU-YEON",
		"bob":   "KR-JEJU-JEJU-NOHYUNG",
	} {
		s.do(http.MethodPost, "/layers/entities", "", map[string]string{
			"entity_id": entity, "district_id": district,
		}, http.StatusCreated)
		s.do(http.MethodPut, "/balances/"+entity, "", map[string]any{
			"balance": "500", "verified": true, "kyc_level": 2,
		}, http.StatusOK)
	}
}

// do performs a request and asserts the status, returning the decoded body.
func (s *HandlersSuite) do(method, path, requesterID string, body any, wantStatus int) map[string]any {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if requesterID != "" {
		req.Header.Set(requesterHeader, requesterID)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	s.Require().Equal(wantStatus, w.Code, "unexpected status for %s %s: %s", method, path, w.Body)

	var decoded map[string]any
	if w.Body.Len() > 0 {
		s.Require().NoError(json.NewDecoder(w.Body).Decode(&decoded))
	}
	return decoded
}

func (s *HandlersSuite) TestLayers() {
	s.Run("hierarchy lists all nodes", func() {
		body := s.do(http.MethodGet, "/layers/hierarchy", "", nil, http.StatusOK)
		s.Len(body["nodes"], 17)
	})

	s.Run("nodes by level", func() {
		body := s.do(http.MethodGet, "/layers/nodes?level=2", "", nil, http.StatusOK)
		s.Equal("city", body["name"])
		s.Len(body["nodes"], 2)
	})

	s.Run("invalid level is a bad request", func() {
		body := s.do(http.MethodGet, "/layers/nodes?level=9", "", nil, http.StatusBadRequest)
		s.Equal("bad_request", body["error"])
	})

	s.Run("register rejects a non-district node", func() {
		body := s.do(http.MethodPost, "/layers/entities", "", map[string]string{
			"entity_id": "x", "district_id": "KR",
		}, http.StatusUnprocessableEntity)
		s.Equal("validation_failed", body["error"])
	})

	s.Run("lookup returns the chain", func() {
		body := s.do(http.MethodGet, "/layers/entities/alice", "", nil, http.StatusOK)
		s.Equal("KR-JEJU-JEJU-YEON", body["layer1_id"])
		s.Equal("GLOBAL", body["layer5_id"])
	})

	s.Run("verify preview reports deltas", func() {
		body := s.do(http.MethodPost, "/layers/verify", "", map[string]any{
			"from_entity_id": "alice", "to_entity_id": "bob", "amount": "50",
		}, http.StatusOK)
		s.Equal(true, body["valid"])
		s.Len(body["changed_layers"], 2)
	})
}

func (s *HandlersSuite) TestTransactions() {
	createBody := map[string]any{
		"type": "TRANSFER", "amount": "50",
		"from_entity_id": "alice", "to_entity_id": "bob",
	}

	s.Run("requester header is required", func() {
		body := s.do(http.MethodPost, "/transactions/", "", createBody, http.StatusBadRequest)
		s.Equal("bad_request", body["error"])
	})

	s.Run("full lifecycle over HTTP", func() {
		created := s.do(http.MethodPost, "/transactions/", "req-1", createBody, http.StatusCreated)
		s.Equal("PENDING", created["status"])
		id := created["id"].(string)

		verified := s.do(http.MethodPost, fmt.Sprintf("/transactions/%s/verify", id), "req-1", nil, http.StatusOK)
		s.Equal("VERIFIED", verified["status"])

		completed := s.do(http.MethodPost, fmt.Sprintf("/transactions/%s/complete", id), "req-1", nil, http.StatusOK)
		s.Equal("COMPLETED", completed["status"])

		balanceBody := s.do(http.MethodGet, "/balances/alice", "", nil, http.StatusOK)
		s.Equal("450", balanceBody["balance"])

		stats := s.do(http.MethodGet, "/transactions/stats", "req-1", nil, http.StatusOK)
		s.Equal(float64(1), stats["completed"])
	})

	s.Run("completing a pending transaction maps to conflict", func() {
		created := s.do(http.MethodPost, "/transactions/", "req-2", createBody, http.StatusCreated)
		id := created["id"].(string)

		body := s.do(http.MethodPost, fmt.Sprintf("/transactions/%s/complete", id), "req-2", nil, http.StatusConflict)
		s.Equal("invalid_state_transition", body["error"])
	})

	s.Run("foreign transactions are invisible", func() {
		created := s.do(http.MethodPost, "/transactions/", "req-3", createBody, http.StatusCreated)
		id := created["id"].(string)

		s.do(http.MethodGet, "/transactions/"+id, "someone-else", nil, http.StatusNotFound)
	})

	s.Run("validate preview never persists", func() {
		body := s.do(http.MethodPost, "/transactions/validate", "req-4", map[string]any{
			"from_entity_id": "alice", "to_entity_id": "bob", "amount": "50",
		}, http.StatusOK)
		s.Equal(true, body["valid"])

		history := s.do(http.MethodGet, "/transactions/", "req-4", nil, http.StatusOK)
		s.Empty(history["transactions"])
	})
}
