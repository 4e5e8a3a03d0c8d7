package transaction

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"stratum/internal/balance"
	"stratum/internal/hierarchy"
	"stratum/internal/ledger"
	"stratum/internal/registry"
	"stratum/internal/validator"
	"stratum/pkg/platform/audit"

	dErrors "stratum/pkg/domain-errors"
)

// =============================================================================
// Transaction Service Test Suite
// =============================================================================
// Justification for unit tests: the lifecycle couples the state machine, the
// ledger apply, balance adjustment and audit emission. E2E coverage cannot
// pin intermediate states like APPROVAL_REQUIRED or the exact FAILED reasons.

type TransactionServiceSuite struct {
	suite.Suite
	nodes    *hierarchy.InMemoryStore
	balances *balance.InMemoryStore
	stats    *validator.InMemoryStats
	audit    *audit.InMemoryPublisher
	service  *Service
	now      time.Time
}

const requesterID = "requester-1"

func TestTransactionServiceSuite(t *testing.T) {
	suite.Run(t, new(TransactionServiceSuite))
}

func (s *TransactionServiceSuite) SetupTest() {
	ctx := context.Background()
	s.nodes = hierarchy.NewInMemoryStore()
	s.Require().NoError(hierarchy.Bootstrap(ctx, s.nodes))

	reg, err := registry.New(s.nodes, registry.NewInMemoryStore())
	s.Require().NoError(err)
	for entity, district := range map[string]string{
		"alice": "KR-JEJU-JEJU-YEON",
		"bob":   "KR-JEJU-SEOGWIPO-JUNGMUN",
	} {
		_, err := reg.Register(ctx, entity, district)
		s.Require().NoError(err)
	}

	s.balances = balance.NewInMemoryStore()
	for _, entity := range []string{"alice", "bob"} {
		s.Require().NoError(s.balances.Upsert(ctx, balance.EntityBalance{
			EntityID: entity,
			Balance:  decimal.NewFromInt(1000),
			Currency: hierarchy.DefaultCurrency,
			Verified: true,
			KYCLevel: 2,
		}))
	}

	verifier, err := ledger.New(reg, s.nodes)
	s.Require().NoError(err)

	s.stats = validator.NewInMemoryStats()
	s.now = time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	pipeline, err := validator.New(s.balances, reg, s.stats, validator.NewStaticPolicy(nil, nil),
		validator.WithClock(func() time.Time { return s.now }),
		validator.WithConfig(validator.Config{
			ExplicitApprovalThreshold: decimal.NewFromInt(100),
			DefaultDailyLimit:         decimal.NewFromInt(500),
			MaxTransactionsPerHour:    10,
			MaxAmountPerHour:          decimal.NewFromInt(500),
			SpikeMultiplier:           decimal.NewFromInt(5),
			CTRThreshold:              decimal.NewFromInt(1000),
		}))
	s.Require().NoError(err)

	s.audit = audit.NewInMemoryPublisher()
	s.service, err = New(NewInMemoryStore(), verifier, pipeline, s.balances, s.stats,
		WithAudit(s.audit),
		WithClock(func() time.Time { return s.now }))
	s.Require().NoError(err)
}

func (s *TransactionServiceSuite) create(amount int64, approved bool) *Transaction {
	tx, err := s.service.Create(context.Background(), requesterID, CreateInput{
		Type:                TypeTransfer,
		Amount:              decimal.NewFromInt(amount),
		FromEntityID:        "alice",
		ToEntityID:          "bob",
		HasExplicitApproval: approved,
	})
	s.Require().NoError(err)
	return tx
}

func (s *TransactionServiceSuite) TestCreate() {
	ctx := context.Background()

	s.Run("valid transfer starts pending with both snapshots", func() {
		tx := s.create(50, false)
		s.Equal(StatusPending, tx.Status)
		s.Require().NotNil(tx.LayerVerification)
		s.True(tx.LayerVerification.Valid)
		s.Require().NotNil(tx.ValidationResult)
		s.True(tx.ValidationResult.Valid)
		s.NotEmpty(tx.ID)
	})

	s.Run("above-threshold transfer needs approval", func() {
		tx := s.create(150, false)
		s.Equal(StatusApprovalRequired, tx.Status)
		s.True(tx.ValidationResult.RequiresExplicitApproval)
	})

	s.Run("failed validation is persisted as FAILED", func() {
		s.Require().NoError(s.balances.Upsert(ctx, balance.EntityBalance{
			EntityID: "alice",
			Balance:  decimal.NewFromInt(10),
			Currency: hierarchy.DefaultCurrency,
			Verified: true,
		}))
		tx := s.create(50, false)
		s.Equal(StatusFailed, tx.Status)
		s.Equal(validator.StepBalance, tx.ValidationResult.FailedStep)
		s.Contains(tx.FailureReason, "validation failed")

		stored, err := s.service.Get(ctx, requesterID, tx.ID)
		s.NoError(err)
		s.Equal(StatusFailed, stored.Status)
	})

	s.Run("unregistered recipient fails layer verification", func() {
		tx, err := s.service.Create(ctx, requesterID, CreateInput{
			Type:         TypeTransfer,
			Amount:       decimal.NewFromInt(50),
			FromEntityID: "alice",
			ToEntityID:   "stranger",
		})
		s.Require().NoError(err)
		s.Equal(StatusFailed, tx.Status)
		s.Contains(tx.FailureReason, "layer verification failed")
		s.Nil(tx.ValidationResult, "pipeline must not run after a verification failure")
	})

	s.Run("reward skips verification and validation", func() {
		tx, err := s.service.Create(ctx, requesterID, CreateInput{
			Type:         TypeReward,
			Amount:       decimal.NewFromInt(25),
			FromEntityID: "alice",
		})
		s.Require().NoError(err)
		s.Equal(StatusPending, tx.Status)
		s.Nil(tx.LayerVerification)
		s.Nil(tx.ValidationResult)
	})

	s.Run("input validation", func() {
		_, err := s.service.Create(ctx, "", CreateInput{Type: TypeTransfer})
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))

		_, err = s.service.Create(ctx, requesterID, CreateInput{Type: "BOGUS"})
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))

		_, err = s.service.Create(ctx, requesterID, CreateInput{
			Type: TypeTransfer, FromEntityID: "alice", ToEntityID: "bob",
			Amount: decimal.NewFromInt(-1),
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

		_, err = s.service.Create(ctx, requesterID, CreateInput{
			Type: TypeTransfer, FromEntityID: "alice",
			Amount: decimal.NewFromInt(10),
		})
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})
}

func (s *TransactionServiceSuite) TestLifecycle() {
	ctx := context.Background()

	s.Run("create, verify, complete moves value once", func() {
		tx := s.create(50, false)

		verified, err := s.service.Verify(ctx, requesterID, tx.ID)
		s.Require().NoError(err)
		s.Equal(StatusVerified, verified.Status)
		s.NotNil(verified.VerifiedAt)

		completed, err := s.service.Complete(ctx, requesterID, tx.ID)
		s.Require().NoError(err)
		s.Equal(StatusCompleted, completed.Status)
		s.NotNil(completed.CompletedAt)

		alice, err := s.balances.Get(ctx, "alice")
		s.Require().NoError(err)
		s.True(alice.Balance.Equal(decimal.NewFromInt(950)))
		bob, err := s.balances.Get(ctx, "bob")
		s.Require().NoError(err)
		s.True(bob.Balance.Equal(decimal.NewFromInt(1050)))

		fromDistrict, err := s.nodes.GetNode(ctx, "KR-JEJU-JEJU-YEON")
		s.Require().NoError(err)
		s.True(fromDistrict.Balance.Equal(decimal.NewFromInt(-50)))
	})

	s.Run("completing twice is an illegal transition", func() {
		tx := s.create(10, false)
		_, err := s.service.Verify(ctx, requesterID, tx.ID)
		s.Require().NoError(err)
		_, err = s.service.Complete(ctx, requesterID, tx.ID)
		s.Require().NoError(err)

		_, err = s.service.Complete(ctx, requesterID, tx.ID)
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidStateTransition))
	})

	s.Run("completing without verification is rejected", func() {
		tx := s.create(10, false)
		_, err := s.service.Complete(ctx, requesterID, tx.ID)
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidStateTransition))
	})

	s.Run("insufficient balance at settlement fails the transaction", func() {
		tx := s.create(90, false)
		_, err := s.service.Verify(ctx, requesterID, tx.ID)
		s.Require().NoError(err)

		// Drain alice between verification and settlement.
		_, err = s.balances.Adjust(ctx, "alice", decimal.NewFromInt(-1000))
		s.Require().NoError(err)

		failed, err := s.service.Complete(ctx, requesterID, tx.ID)
		s.NoError(err)
		s.Equal(StatusFailed, failed.Status)
		s.Contains(failed.FailureReason, "insufficient balance at settlement")
	})

	s.Run("unknown transaction is not found", func() {
		_, err := s.service.Verify(ctx, requesterID, "nope")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("another requester cannot see the transaction", func() {
		tx := s.create(10, false)
		_, err := s.service.Get(ctx, "requester-2", tx.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *TransactionServiceSuite) TestCancel() {
	ctx := context.Background()

	s.Run("pending transaction can be cancelled", func() {
		tx := s.create(50, false)
		cancelled, err := s.service.Cancel(ctx, requesterID, tx.ID, "changed my mind")
		s.NoError(err)
		s.Equal(StatusCancelled, cancelled.Status)
		s.Equal("changed my mind", cancelled.FailureReason)
	})

	s.Run("verified transaction cannot be cancelled", func() {
		tx := s.create(50, false)
		_, err := s.service.Verify(ctx, requesterID, tx.ID)
		s.Require().NoError(err)

		_, err = s.service.Cancel(ctx, requesterID, tx.ID, "")
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidStateTransition))
	})
}

func (s *TransactionServiceSuite) TestApprove() {
	ctx := context.Background()

	s.Run("approval re-validates and returns to pending", func() {
		tx := s.create(150, false)
		s.Require().Equal(StatusApprovalRequired, tx.Status)

		approved, err := s.service.Approve(ctx, requesterID, tx.ID)
		s.NoError(err)
		s.Equal(StatusPending, approved.Status)
		s.Require().NotNil(approved.ValidationResult)
		s.True(approved.ValidationResult.Valid)

		// The approved transaction can then settle normally.
		_, err = s.service.Verify(ctx, requesterID, tx.ID)
		s.Require().NoError(err)
		completed, err := s.service.Complete(ctx, requesterID, tx.ID)
		s.Require().NoError(err)
		s.Equal(StatusCompleted, completed.Status)
	})

	s.Run("approving a pending transaction is rejected", func() {
		tx := s.create(50, false)
		_, err := s.service.Approve(ctx, requesterID, tx.ID)
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidStateTransition))
	})
}

func (s *TransactionServiceSuite) TestHistoryAndStats() {
	ctx := context.Background()

	s.create(10, false)
	tx := s.create(20, false)
	_, err := s.service.Verify(ctx, requesterID, tx.ID)
	s.Require().NoError(err)
	_, err = s.service.Complete(ctx, requesterID, tx.ID)
	s.Require().NoError(err)

	s.Run("history lists newest first and honors filters", func() {
		all, err := s.service.History(ctx, requesterID, Filter{})
		s.NoError(err)
		s.Len(all, 2)

		completed, err := s.service.History(ctx, requesterID, Filter{Status: StatusCompleted})
		s.NoError(err)
		s.Require().Len(completed, 1)
		s.Equal(tx.ID, completed[0].ID)
	})

	s.Run("stats tally by status", func() {
		stats, err := s.service.Stats(ctx, requesterID)
		s.NoError(err)
		s.Equal(2, stats.Total)
		s.Equal(1, stats.Pending)
		s.Equal(1, stats.Completed)
		s.True(stats.CompletedAmount.Equal(decimal.NewFromInt(20)))
	})

	s.Run("other requesters see nothing", func() {
		all, err := s.service.History(ctx, "requester-2", Filter{})
		s.NoError(err)
		s.Empty(all)
	})
}

func (s *TransactionServiceSuite) TestAuditTrail() {
	ctx := context.Background()

	tx := s.create(50, false)
	_, err := s.service.Verify(ctx, requesterID, tx.ID)
	s.Require().NoError(err)
	_, err = s.service.Complete(ctx, requesterID, tx.ID)
	s.Require().NoError(err)

	events := s.audit.Events()
	s.Require().Len(events, 3)
	s.Equal(audit.ActionTransactionCreated, events[0].Action)
	s.Equal(audit.ActionTransactionVerified, events[1].Action)
	s.Equal(audit.ActionTransactionCompleted, events[2].Action)
	for _, event := range events {
		s.Equal(tx.ID, event.TransactionID)
		s.Equal("50", event.Amount)
	}
}
