package transaction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"stratum/internal/balance"
	"stratum/internal/hierarchy"
	"stratum/internal/ledger"
	"stratum/internal/platform/metrics"
	"stratum/internal/validator"
	"stratum/pkg/platform/audit"
	"stratum/pkg/platform/sentinel"

	dErrors "stratum/pkg/domain-errors"
)

// Service owns the transaction lifecycle. Creation snapshots the layer
// verification and validation outcomes onto the record; completion is the
// only operation that moves value, and it re-verifies under per-entity locks
// so the balance read and the ledger apply are mutually exclusive with any
// other transfer touching the same entities.
type Service struct {
	store    Store
	verifier *ledger.Verifier
	pipeline *validator.Service
	balances balance.Store
	stats    validator.ActivityStats
	audit    audit.Publisher
	locks    *lockManager
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAudit(publisher audit.Publisher) Option {
	return func(s *Service) {
		s.audit = publisher
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func New(store Store, verifier *ledger.Verifier, pipeline *validator.Service, balances balance.Store, stats validator.ActivityStats, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("transaction store is required")
	}
	if verifier == nil {
		return nil, fmt.Errorf("ledger verifier is required")
	}
	if pipeline == nil {
		return nil, fmt.Errorf("validator service is required")
	}
	if balances == nil {
		return nil, fmt.Errorf("balance store is required")
	}
	if stats == nil {
		return nil, fmt.Errorf("activity stats is required")
	}

	svc := &Service{
		store:    store,
		verifier: verifier,
		pipeline: pipeline,
		balances: balances,
		stats:    stats,
		locks:    newLockManager(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Create persists a new transaction. Transfers and payments run layer
// verification and the validation pipeline first; the outcome decides the
// initial status. Every attempt is persisted, including rejected ones, so
// failed submissions remain auditable.
func (s *Service) Create(ctx context.Context, requesterID string, input CreateInput) (*Transaction, error) {
	if requesterID == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "requester id is required")
	}
	if !input.Type.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeBadRequest, "unknown transaction type %q", input.Type)
	}
	if input.FromEntityID == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "from entity id is required")
	}
	if input.Amount.IsNegative() || input.Amount.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "amount must be positive")
	}
	if input.Type.RequiresValidation() && input.ToEntityID == "" {
		return nil, dErrors.Newf(dErrors.CodeBadRequest, "%s requires a recipient", input.Type)
	}

	now := s.now()
	tx := &Transaction{
		ID:           uuid.NewString(),
		RequesterID:  requesterID,
		Type:         input.Type,
		Amount:       input.Amount,
		Currency:     hierarchy.DefaultCurrency,
		Status:       StatusPending,
		FromEntityID: input.FromEntityID,
		ToEntityID:   input.ToEntityID,
		Description:  input.Description,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if input.Type.RequiresValidation() {
		verification, err := s.verifier.Verify(ctx, input.FromEntityID, input.ToEntityID, input.Amount)
		if err != nil {
			return nil, err
		}
		tx.LayerVerification = verification
		if !verification.Valid {
			tx.Status = StatusFailed
			tx.FailureReason = "layer verification failed: " + verification.Error
		}

		if tx.Status != StatusFailed {
			result, err := s.pipeline.Validate(ctx, input.FromEntityID, input.ToEntityID, input.Amount, requesterID, input.HasExplicitApproval)
			if err != nil {
				return nil, err
			}
			tx.ValidationResult = result
			switch {
			case result.Valid:
				// stays PENDING
			case result.RequiresExplicitApproval:
				tx.Status = StatusApprovalRequired
			default:
				tx.Status = StatusFailed
				tx.FailureReason = "validation failed at step " + string(result.FailedStep)
			}
		}
	}

	if err := s.store.Insert(ctx, tx); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "persist transaction")
	}

	if err := s.stats.RecordAttempt(ctx, tx.FromEntityID, tx.Amount, now); err != nil && s.logger != nil {
		s.logger.Warn("record attempt failed", "transaction_id", tx.ID, "error", err)
	}

	if s.metrics != nil {
		s.metrics.TransactionsCreated.WithLabelValues(string(tx.Status)).Inc()
		if tx.Status == StatusFailed {
			s.metrics.TransactionsFailed.Inc()
		}
	}
	s.publish(tx, audit.ActionTransactionCreated, tx.FailureReason)
	if s.logger != nil {
		s.logger.Info("transaction created",
			"transaction_id", tx.ID,
			"type", string(tx.Type),
			"status", string(tx.Status),
			"amount", tx.Amount.String(),
		)
	}
	return tx, nil
}

// Verify moves a PENDING transaction to VERIFIED after re-checking the layer
// invariant against current hierarchy state.
func (s *Service) Verify(ctx context.Context, requesterID, id string) (*Transaction, error) {
	tx, err := s.get(ctx, requesterID, id)
	if err != nil {
		return nil, err
	}
	if err := s.requireTransition(tx, StatusVerified); err != nil {
		return nil, err
	}

	if tx.Type.RequiresValidation() {
		verification, err := s.verifier.Verify(ctx, tx.FromEntityID, tx.ToEntityID, tx.Amount)
		if err != nil {
			return nil, err
		}
		tx.LayerVerification = verification
		if !verification.Valid {
			return s.markFailed(ctx, tx, "layer verification failed: "+verification.Error)
		}
	}

	now := s.now()
	tx.Status = StatusVerified
	tx.VerifiedAt = &now
	tx.UpdatedAt = now
	if err := s.store.Update(ctx, tx); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "persist verification")
	}

	s.publish(tx, audit.ActionTransactionVerified, "")
	if s.logger != nil {
		s.logger.Info("transaction verified", "transaction_id", tx.ID)
	}
	return tx, nil
}

// Complete settles a VERIFIED transaction: it applies the ledger deltas
// atomically and adjusts both entity working balances. The whole step runs
// under the entity-pair locks so a concurrent transfer cannot interleave
// between the balance check and the apply.
func (s *Service) Complete(ctx context.Context, requesterID, id string) (*Transaction, error) {
	tx, err := s.get(ctx, requesterID, id)
	if err != nil {
		return nil, err
	}
	if err := s.requireTransition(tx, StatusCompleted); err != nil {
		return nil, err
	}

	release := s.locks.acquire(tx.FromEntityID, tx.ToEntityID)
	defer release()

	if tx.Type.RequiresValidation() {
		sender, err := s.balances.Get(ctx, tx.FromEntityID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return s.markFailed(ctx, tx, "no balance record for sender")
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load sender balance")
		}
		if sender.Balance.LessThan(tx.Amount) {
			return s.markFailed(ctx, tx, fmt.Sprintf("insufficient balance at settlement: have %s, need %s", sender.Balance, tx.Amount))
		}

		verification, err := s.verifier.Execute(ctx, tx.FromEntityID, tx.ToEntityID, tx.Amount)
		if err != nil {
			return nil, err
		}
		tx.LayerVerification = verification
		if !verification.Valid {
			return s.markFailed(ctx, tx, "layer verification failed: "+verification.Error)
		}

		if _, err := s.balances.Adjust(ctx, tx.FromEntityID, tx.Amount.Neg()); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "debit sender balance")
		}
		if _, err := s.balances.Adjust(ctx, tx.ToEntityID, tx.Amount); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "credit recipient balance")
		}
	}

	now := s.now()
	tx.Status = StatusCompleted
	tx.CompletedAt = &now
	tx.UpdatedAt = now
	if err := s.store.Update(ctx, tx); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "persist completion")
	}

	if err := s.stats.RecordCompleted(ctx, tx.FromEntityID, tx.Amount, now); err != nil && s.logger != nil {
		s.logger.Warn("record completion failed", "transaction_id", tx.ID, "error", err)
	}
	if s.metrics != nil {
		s.metrics.TransactionsCompleted.Inc()
	}
	s.publish(tx, audit.ActionTransactionCompleted, "")
	if s.logger != nil {
		s.logger.Info("transaction completed",
			"transaction_id", tx.ID,
			"amount", tx.Amount.String(),
			"from_entity_id", tx.FromEntityID,
			"to_entity_id", tx.ToEntityID,
		)
	}
	return tx, nil
}

// Cancel aborts a transaction that has not yet been verified.
func (s *Service) Cancel(ctx context.Context, requesterID, id, reason string) (*Transaction, error) {
	tx, err := s.get(ctx, requesterID, id)
	if err != nil {
		return nil, err
	}
	if err := s.requireTransition(tx, StatusCancelled); err != nil {
		return nil, err
	}

	tx.Status = StatusCancelled
	if reason != "" {
		tx.FailureReason = reason
	}
	tx.UpdatedAt = s.now()
	if err := s.store.Update(ctx, tx); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "persist cancellation")
	}

	s.publish(tx, audit.ActionTransactionCancelled, reason)
	if s.logger != nil {
		s.logger.Info("transaction cancelled", "transaction_id", tx.ID)
	}
	return tx, nil
}

// Approve resubmits an APPROVAL_REQUIRED transaction with explicit approval.
// The pipeline runs again with the limit checks waived; a clean run moves the
// transaction back to PENDING, anything else fails it.
func (s *Service) Approve(ctx context.Context, requesterID, id string) (*Transaction, error) {
	tx, err := s.get(ctx, requesterID, id)
	if err != nil {
		return nil, err
	}
	if tx.Status != StatusApprovalRequired {
		return nil, dErrors.Newf(dErrors.CodeInvalidStateTransition,
			"cannot approve transaction in status %s", tx.Status)
	}

	result, err := s.pipeline.Validate(ctx, tx.FromEntityID, tx.ToEntityID, tx.Amount, requesterID, true)
	if err != nil {
		return nil, err
	}
	tx.ValidationResult = result
	if !result.Valid {
		return s.markFailed(ctx, tx, "validation failed at step "+string(result.FailedStep))
	}

	tx.Status = StatusPending
	tx.FailureReason = ""
	tx.UpdatedAt = s.now()
	if err := s.store.Update(ctx, tx); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "persist approval")
	}

	s.publish(tx, audit.ActionTransactionApproved, "")
	if s.logger != nil {
		s.logger.Info("transaction approved", "transaction_id", tx.ID)
	}
	return tx, nil
}

// Get returns one of the requester's transactions.
func (s *Service) Get(ctx context.Context, requesterID, id string) (*Transaction, error) {
	return s.get(ctx, requesterID, id)
}

// History lists the requester's transactions, newest first.
func (s *Service) History(ctx context.Context, requesterID string, filter Filter) ([]Transaction, error) {
	txs, err := s.store.List(ctx, requesterID, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list transactions")
	}
	return txs, nil
}

// Stats aggregates the requester's transaction history.
func (s *Service) Stats(ctx context.Context, requesterID string) (*Stats, error) {
	stats, err := s.store.Stats(ctx, requesterID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "transaction stats")
	}
	return stats, nil
}

func (s *Service) get(ctx context.Context, requesterID, id string) (*Transaction, error) {
	if requesterID == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "requester id is required")
	}
	tx, err := s.store.Get(ctx, requesterID, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "transaction %s not found", id)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load transaction")
	}
	return tx, nil
}

func (s *Service) requireTransition(tx *Transaction, to Status) error {
	if !tx.Status.CanTransitionTo(to) {
		return dErrors.Newf(dErrors.CodeInvalidStateTransition,
			"cannot transition transaction from %s to %s", tx.Status, to)
	}
	return nil
}

// markFailed moves tx to FAILED with the given reason. The transition table
// still applies; a terminal transaction cannot be failed again.
func (s *Service) markFailed(ctx context.Context, tx *Transaction, reason string) (*Transaction, error) {
	if err := s.requireTransition(tx, StatusFailed); err != nil {
		return nil, err
	}
	tx.Status = StatusFailed
	tx.FailureReason = reason
	tx.UpdatedAt = s.now()
	if err := s.store.Update(ctx, tx); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "persist failure")
	}

	if s.metrics != nil {
		s.metrics.TransactionsFailed.Inc()
	}
	s.publish(tx, audit.ActionTransactionFailed, reason)
	if s.logger != nil {
		s.logger.Warn("transaction failed", "transaction_id", tx.ID, "reason", reason)
	}
	return tx, nil
}

func (s *Service) publish(tx *Transaction, action, reason string) {
	if s.audit == nil {
		return
	}
	s.audit.Publish(audit.Event{
		ID:            uuid.NewString(),
		Action:        action,
		TransactionID: tx.ID,
		RequesterID:   tx.RequesterID,
		FromEntityID:  tx.FromEntityID,
		ToEntityID:    tx.ToEntityID,
		Amount:        tx.Amount.String(),
		Status:        string(tx.Status),
		Reason:        reason,
		Timestamp:     s.now(),
	})
}
