package validator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"stratum/internal/balance"
	"stratum/internal/platform/metrics"
	"stratum/internal/registry"
	"stratum/pkg/platform/sentinel"

	dErrors "stratum/pkg/domain-errors"
)

// Service runs the fixed five-stage validation pipeline:
// balance -> identity -> limit -> anomaly -> compliance.
//
// The pipeline is fail-fast: the first failing stage halts it and later
// stages never appear in the step sequence. Stage 3 (limit) failures and
// stage 4 (anomaly) failures mark the result approval-eligible; only the
// limit checks can actually be bypassed by resubmitting with explicit
// approval. Validation is a pure read: it never mutates any store.
type Service struct {
	balances balance.Store
	registry *registry.Service
	stats    ActivityStats
	policy   PolicyProvider
	cfg      Config
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

func WithConfig(cfg Config) Option {
	return func(s *Service) {
		s.cfg = cfg
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func New(balances balance.Store, reg *registry.Service, stats ActivityStats, policy PolicyProvider, opts ...Option) (*Service, error) {
	if balances == nil {
		return nil, fmt.Errorf("balance store is required")
	}
	if reg == nil {
		return nil, fmt.Errorf("registry service is required")
	}
	if stats == nil {
		return nil, fmt.Errorf("activity stats is required")
	}
	if policy == nil {
		return nil, fmt.Errorf("policy provider is required")
	}

	svc := &Service{
		balances: balances,
		registry: reg,
		stats:    stats,
		policy:   policy,
		cfg:      DefaultConfig(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Validate runs all five stages for a proposed transfer. Stage failures are
// captured in the result; only infrastructure problems return a Go error.
func (s *Service) Validate(ctx context.Context, fromEntityID, toEntityID string, amount decimal.Decimal, requesterID string, hasExplicitApproval bool) (*Result, error) {
	if amount.IsNegative() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "amount must not be negative")
	}

	result := &Result{SchemaVersion: SchemaVersion}

	fail := func(step StepResult, approvalEligible bool) *Result {
		result.Steps = append(result.Steps, step)
		result.FailedStep = step.Step
		if approvalEligible {
			result.RequiresExplicitApproval = true
			result.ApprovalReason = step.Message
		}
		s.observe(result, fromEntityID, requesterID)
		return result
	}

	// Stage 1: balance.
	step, err := s.checkBalance(ctx, fromEntityID, amount)
	if err != nil {
		return nil, err
	}
	if !step.Passed {
		return fail(step, false), nil
	}
	result.Steps = append(result.Steps, step)

	// Stage 2: identity.
	step, err = s.checkIdentity(ctx, fromEntityID, toEntityID)
	if err != nil {
		return nil, err
	}
	if !step.Passed {
		return fail(step, false), nil
	}
	result.Steps = append(result.Steps, step)

	// Stage 3: limit. Failures here are soft: the caller may resubmit with
	// explicit approval, which skips these checks entirely.
	step, err = s.checkLimit(ctx, fromEntityID, amount, hasExplicitApproval)
	if err != nil {
		return nil, err
	}
	if !step.Passed {
		return fail(step, true), nil
	}
	result.Steps = append(result.Steps, step)

	// Stage 4: anomaly. Hard failures that are still flagged for human
	// re-review, unlike balance/identity/compliance failures.
	step, err = s.checkAnomaly(ctx, fromEntityID, amount)
	if err != nil {
		return nil, err
	}
	if !step.Passed {
		return fail(step, true), nil
	}
	result.Steps = append(result.Steps, step)

	// Stage 5: compliance. Hard, never approval-eligible.
	step, err = s.checkCompliance(ctx, fromEntityID, toEntityID, amount)
	if err != nil {
		return nil, err
	}
	if !step.Passed {
		return fail(step, false), nil
	}
	result.Steps = append(result.Steps, step)

	result.Valid = true
	s.observe(result, fromEntityID, requesterID)
	return result, nil
}

func (s *Service) checkBalance(ctx context.Context, entityID string, amount decimal.Decimal) (StepResult, error) {
	record, err := s.balances.Get(ctx, entityID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return StepResult{
				Step:    StepBalance,
				Message: "no balance record for sender",
				Details: map[string]any{"entity_id": entityID},
			}, nil
		}
		return StepResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "load sender balance")
	}

	if record.Balance.LessThan(amount) {
		return StepResult{
			Step:    StepBalance,
			Message: fmt.Sprintf("insufficient balance: have %s, need %s", record.Balance, amount),
			Details: map[string]any{
				"current_balance": record.Balance.String(),
				"required_amount": amount.String(),
				"shortage":        amount.Sub(record.Balance).String(),
			},
		}, nil
	}

	return StepResult{
		Step:    StepBalance,
		Passed:  true,
		Message: "balance check passed",
		Details: map[string]any{
			"current_balance": record.Balance.String(),
			"after_balance":   record.Balance.Sub(amount).String(),
		},
	}, nil
}

func (s *Service) checkIdentity(ctx context.Context, fromEntityID, toEntityID string) (StepResult, error) {
	from, err := s.balances.Get(ctx, fromEntityID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return StepResult{
				Step:    StepIdentity,
				Message: "sender is unknown",
				Details: map[string]any{"from_entity_id": fromEntityID},
			}, nil
		}
		return StepResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "load sender record")
	}
	if !from.Verified {
		return StepResult{
			Step:    StepIdentity,
			Message: "sender identity is not verified",
			Details: map[string]any{"from_entity_id": fromEntityID, "verified": false},
		}, nil
	}

	to, err := s.balances.Get(ctx, toEntityID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return StepResult{
				Step:    StepIdentity,
				Message: "recipient is unknown",
				Details: map[string]any{"to_entity_id": toEntityID},
			}, nil
		}
		return StepResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "load recipient record")
	}

	fromRegistered, err := s.isRegistered(ctx, fromEntityID)
	if err != nil {
		return StepResult{}, err
	}
	toRegistered, err := s.isRegistered(ctx, toEntityID)
	if err != nil {
		return StepResult{}, err
	}
	if !fromRegistered || !toRegistered {
		return StepResult{
			Step:    StepIdentity,
			Message: "layer registration is required for both entities",
			Details: map[string]any{
				"from_layer_registered": fromRegistered,
				"to_layer_registered":   toRegistered,
			},
		}, nil
	}

	return StepResult{
		Step:    StepIdentity,
		Passed:  true,
		Message: "identity check passed",
		Details: map[string]any{
			"from_kyc_level": from.KYCLevel,
			"to_verified":    to.Verified,
		},
	}, nil
}

func (s *Service) isRegistered(ctx context.Context, entityID string) (bool, error) {
	_, err := s.registry.Lookup(ctx, entityID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *Service) checkLimit(ctx context.Context, entityID string, amount decimal.Decimal, hasExplicitApproval bool) (StepResult, error) {
	if hasExplicitApproval {
		return StepResult{
			Step:    StepLimit,
			Passed:  true,
			Message: "limit checks skipped by explicit approval",
			Details: map[string]any{"explicit_approval": true},
		}, nil
	}

	dailyLimit := s.cfg.DefaultDailyLimit
	if record, err := s.balances.Get(ctx, entityID); err == nil && record.DailyLimit.IsPositive() {
		dailyLimit = record.DailyLimit
	} else if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return StepResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "load sender limit")
	}

	todayTotal, err := s.stats.CompletedTotalOn(ctx, entityID, s.now())
	if err != nil {
		return StepResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "load daily total")
	}
	newTotal := todayTotal.Add(amount)

	if amount.GreaterThan(s.cfg.ExplicitApprovalThreshold) {
		return StepResult{
			Step:    StepLimit,
			Message: fmt.Sprintf("transfers above %s require explicit approval", s.cfg.ExplicitApprovalThreshold),
			Details: map[string]any{
				"amount":            amount.String(),
				"limit":             s.cfg.ExplicitApprovalThreshold.String(),
				"requires_approval": true,
			},
		}, nil
	}

	if newTotal.GreaterThan(dailyLimit) {
		return StepResult{
			Step:    StepLimit,
			Message: fmt.Sprintf("daily limit of %s exceeded", dailyLimit),
			Details: map[string]any{
				"today_total":       todayTotal.String(),
				"amount":            amount.String(),
				"new_total":         newTotal.String(),
				"daily_limit":       dailyLimit.String(),
				"requires_approval": true,
			},
		}, nil
	}

	return StepResult{
		Step:    StepLimit,
		Passed:  true,
		Message: "limit check passed",
		Details: map[string]any{
			"today_total":     todayTotal.String(),
			"amount":          amount.String(),
			"new_total":       newTotal.String(),
			"daily_limit":     dailyLimit.String(),
			"remaining_limit": dailyLimit.Sub(newTotal).String(),
		},
	}, nil
}

func (s *Service) checkAnomaly(ctx context.Context, entityID string, amount decimal.Decimal) (StepResult, error) {
	window, err := s.stats.HourlyWindow(ctx, entityID, s.now())
	if err != nil {
		return StepResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "load hourly window")
	}

	if window.Count >= s.cfg.MaxTransactionsPerHour {
		return StepResult{
			Step:    StepAnomaly,
			Message: fmt.Sprintf("hourly transaction count limit of %d exceeded", s.cfg.MaxTransactionsPerHour),
			Details: map[string]any{
				"hourly_count": window.Count,
				"max_allowed":  s.cfg.MaxTransactionsPerHour,
				"anomaly_type": AnomalyFrequency,
			},
		}, nil
	}

	if window.Total.Add(amount).GreaterThan(s.cfg.MaxAmountPerHour) {
		return StepResult{
			Step:    StepAnomaly,
			Message: fmt.Sprintf("hourly volume limit of %s exceeded", s.cfg.MaxAmountPerHour),
			Details: map[string]any{
				"hourly_amount": window.Total.String(),
				"new_amount":    amount.String(),
				"max_allowed":   s.cfg.MaxAmountPerHour.String(),
				"anomaly_type":  AnomalyVolume,
			},
		}, nil
	}

	// Spike detection only makes sense against a non-empty window.
	if window.Count > 0 {
		average := window.Total.Div(decimal.NewFromInt(int64(window.Count)))
		if average.IsPositive() && amount.GreaterThan(average.Mul(s.cfg.SpikeMultiplier)) {
			return StepResult{
				Step:    StepAnomaly,
				Message: "amount is abnormally large for this entity",
				Details: map[string]any{
					"amount":         amount.String(),
					"average_amount": average.String(),
					"ratio":          amount.Div(average).String(),
					"anomaly_type":   AnomalySpike,
				},
			}, nil
		}
	}

	return StepResult{
		Step:    StepAnomaly,
		Passed:  true,
		Message: "anomaly check passed",
		Details: map[string]any{
			"hourly_count":  window.Count,
			"hourly_amount": window.Total.String(),
		},
	}, nil
}

func (s *Service) checkCompliance(ctx context.Context, fromEntityID, toEntityID string, amount decimal.Decimal) (StepResult, error) {
	var violations []string

	for _, entityID := range []string{fromEntityID, toEntityID} {
		listed, err := s.policy.IsBlacklisted(ctx, entityID)
		if err != nil {
			return StepResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "blacklist lookup")
		}
		if listed {
			violations = append(violations, "blacklisted entity "+entityID)
		}
	}

	sanctioned, err := s.policy.IsSanctioned(ctx, toEntityID)
	if err != nil {
		return StepResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "sanctions lookup")
	}
	if sanctioned {
		violations = append(violations, "sanctioned recipient "+toEntityID)
	}

	if len(violations) > 0 {
		return StepResult{
			Step:    StepCompliance,
			Message: "compliance violation: " + violations[0],
			Details: map[string]any{"violations": violations},
		}, nil
	}

	// Large transfers are flagged for reporting but never failed on that
	// basis alone.
	requiresCTR := amount.GreaterThanOrEqual(s.cfg.CTRThreshold)
	return StepResult{
		Step:    StepCompliance,
		Passed:  true,
		Message: "compliance check passed",
		Details: map[string]any{
			"requires_ctr":  requiresCTR,
			"ctr_threshold": s.cfg.CTRThreshold.String(),
		},
	}, nil
}

func (s *Service) observe(result *Result, fromEntityID, requesterID string) {
	outcome := "failed"
	if result.Valid {
		outcome = "valid"
	} else if result.RequiresExplicitApproval {
		outcome = "approval_required"
	}
	if s.metrics != nil {
		s.metrics.ValidationsRun.WithLabelValues(outcome).Inc()
	}
	if s.logger != nil {
		s.logger.Info("validation finished",
			"outcome", outcome,
			"from_entity_id", fromEntityID,
			"requester_id", requesterID,
			"failed_step", string(result.FailedStep),
		)
	}
}
