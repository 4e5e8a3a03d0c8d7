package ledger

import (
	"github.com/shopspring/decimal"

	"stratum/internal/hierarchy"
)

// SchemaVersion tags serialized verification results so persisted snapshots
// stay readable across format changes.
const SchemaVersion = 1

// LayerChange is one signed balance adjustment the transfer applies to a
// ledger node below the common ancestor.
type LayerChange struct {
	Level     hierarchy.Level `json:"level"`
	LevelName string          `json:"level_name"`
	NodeID    string          `json:"node_id"`
	NodeName  string          `json:"node_name"`
	Delta     decimal.Decimal `json:"delta"`
}

// InvariantLayer is a ledger node at or above the common ancestor whose
// balance must not change. Recorded for audit, never mutated.
type InvariantLayer struct {
	Level     hierarchy.Level `json:"level"`
	LevelName string          `json:"level_name"`
	NodeID    string          `json:"node_id"`
	NodeName  string          `json:"node_name"`
	Balance   decimal.Decimal `json:"balance"`
}

// VerificationResult is the full outcome of a balance invariant check.
// It is persisted as a transaction snapshot, so failures are data here;
// only infrastructure problems surface as Go errors.
type VerificationResult struct {
	SchemaVersion   int              `json:"schema_version"`
	Valid           bool             `json:"valid"`
	CommonLevel     hierarchy.Level  `json:"common_level"`
	CommonLayerID   string           `json:"common_layer_id"`
	CommonLayerName string           `json:"common_layer_name"`
	ChangedLayers   []LayerChange    `json:"changed_layers"`
	InvariantLayers []InvariantLayer `json:"invariant_layers"`
	Error           string           `json:"error,omitempty"`
}

// Deltas converts the changed layers into the store's batch format.
func (r VerificationResult) Deltas() []hierarchy.Delta {
	deltas := make([]hierarchy.Delta, 0, len(r.ChangedLayers))
	for _, change := range r.ChangedLayers {
		deltas = append(deltas, hierarchy.Delta{NodeID: change.NodeID, Amount: change.Delta})
	}
	return deltas
}

// DeltaSum returns the sum of all emitted deltas. Zero for every valid
// single-currency transfer; asserted directly rather than trusted.
func (r VerificationResult) DeltaSum() decimal.Decimal {
	sum := decimal.Zero
	for _, change := range r.ChangedLayers {
		sum = sum.Add(change.Delta)
	}
	return sum
}
