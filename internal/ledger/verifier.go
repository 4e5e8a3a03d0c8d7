package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"stratum/internal/hierarchy"
	"stratum/internal/platform/metrics"
	"stratum/internal/registry"

	dErrors "stratum/pkg/domain-errors"
)

// Verifier computes and applies the per-node balance deltas that keep the
// hierarchical ledger zero-sum. Verify is a pure preview; Execute is the only
// code path that mutates node balances.
type Verifier struct {
	registry *registry.Service
	nodes    hierarchy.Store
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Verifier)

func WithLogger(logger *slog.Logger) Option {
	return func(v *Verifier) {
		v.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(v *Verifier) {
		v.metrics = m
	}
}

func New(reg *registry.Service, nodes hierarchy.Store, opts ...Option) (*Verifier, error) {
	if reg == nil {
		return nil, fmt.Errorf("registry service is required")
	}
	if nodes == nil {
		return nil, fmt.Errorf("hierarchy store is required")
	}

	v := &Verifier{registry: reg, nodes: nodes}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Verify computes the hypothetical delta set for a transfer between two
// registered entities. Unregistered entities and invariant violations are
// reported in the result, not as errors, so the outcome can be persisted as
// an audit snapshot.
func (v *Verifier) Verify(ctx context.Context, fromEntityID, toEntityID string, amount decimal.Decimal) (*VerificationResult, error) {
	if amount.IsNegative() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "amount must not be negative")
	}

	result := &VerificationResult{SchemaVersion: SchemaVersion}

	fromInfo, err := v.registry.Lookup(ctx, fromEntityID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			result.Error = fmt.Sprintf("entity %s is not registered", fromEntityID)
			return result, nil
		}
		return nil, err
	}
	toInfo, err := v.registry.Lookup(ctx, toEntityID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			result.Error = fmt.Sprintf("entity %s is not registered", toEntityID)
			return result, nil
		}
		return nil, err
	}

	common, err := v.registry.FindCommonLayer(ctx, *fromInfo, *toInfo)
	if err != nil {
		return nil, err
	}
	result.CommonLevel = common.Level
	result.CommonLayerID = common.ID
	result.CommonLayerName = common.Name

	// Every level strictly below the common ancestor holds a divergent pair
	// of nodes: debit the sender's node, credit the receiver's.
	for level := hierarchy.LevelDistrict; level < common.Level; level++ {
		fromID := fromInfo.LayerAt(level)
		toID := toInfo.LayerAt(level)
		if fromID == toID {
			continue
		}
		fromChange, err := v.describeChange(ctx, level, fromID, amount.Neg())
		if err != nil {
			return nil, err
		}
		toChange, err := v.describeChange(ctx, level, toID, amount)
		if err != nil {
			return nil, err
		}
		result.ChangedLayers = append(result.ChangedLayers, fromChange, toChange)
	}

	// Levels at and above the common ancestor are invariant; record them so
	// audits and tests can assert they stayed untouched.
	for level := common.Level; level <= hierarchy.LevelGlobal; level++ {
		inv, err := v.describeInvariant(ctx, level, fromInfo.LayerAt(level))
		if err != nil {
			return nil, err
		}
		result.InvariantLayers = append(result.InvariantLayers, inv)
	}

	// Structural invariant: the emitted deltas must sum to exactly zero.
	// Always true for a single shared currency, but asserted directly so a
	// future multi-asset change cannot silently break the ledger.
	if sum := result.DeltaSum(); !sum.IsZero() {
		result.Error = fmt.Sprintf("balance invariant violated: delta sum = %s", sum)
		return result, nil
	}

	result.Valid = true
	return result, nil
}

// Execute verifies the transfer and, when valid, applies the delta batch
// atomically. An invalid verification is returned unmutated; a failed apply
// is an invariant violation and is never partially committed.
func (v *Verifier) Execute(ctx context.Context, fromEntityID, toEntityID string, amount decimal.Decimal) (*VerificationResult, error) {
	result, err := v.Verify(ctx, fromEntityID, toEntityID, amount)
	if err != nil {
		return nil, err
	}
	if !result.Valid {
		return result, nil
	}

	if err := v.nodes.ApplyDeltas(ctx, result.Deltas()); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvariantViolation, "apply ledger deltas")
	}

	if v.metrics != nil {
		v.metrics.LedgerApplies.Inc()
	}
	if v.logger != nil {
		v.logger.Info("ledger deltas applied",
			"from_entity_id", fromEntityID,
			"to_entity_id", toEntityID,
			"amount", amount.String(),
			"common_level", result.CommonLevel.String(),
			"changed_layers", len(result.ChangedLayers),
		)
	}
	return result, nil
}

func (v *Verifier) describeChange(ctx context.Context, level hierarchy.Level, nodeID string, delta decimal.Decimal) (LayerChange, error) {
	change := LayerChange{Level: level, LevelName: level.String(), NodeID: nodeID, Delta: delta}
	node, err := v.nodes.GetNode(ctx, nodeID)
	if err != nil {
		if hierarchy.IsNotFound(err) {
			// A registered chain pointing at a vanished node is a corrupted
			// hierarchy; surface it rather than emitting a blind delta.
			return change, dErrors.Newf(dErrors.CodeValidation,
				"broken hierarchy: registered node %s is missing", nodeID)
		}
		return change, dErrors.Wrap(err, dErrors.CodeInternal, "load changed layer node")
	}
	change.NodeName = node.Name
	return change, nil
}

func (v *Verifier) describeInvariant(ctx context.Context, level hierarchy.Level, nodeID string) (InvariantLayer, error) {
	inv := InvariantLayer{Level: level, LevelName: level.String(), NodeID: nodeID}
	node, err := v.nodes.GetNode(ctx, nodeID)
	if err != nil {
		if hierarchy.IsNotFound(err) {
			return inv, dErrors.Newf(dErrors.CodeValidation,
				"broken hierarchy: registered node %s is missing", nodeID)
		}
		return inv, dErrors.Wrap(err, dErrors.CodeInternal, "load invariant layer node")
	}
	inv.NodeName = node.Name
	inv.Balance = node.Balance
	return inv, nil
}
