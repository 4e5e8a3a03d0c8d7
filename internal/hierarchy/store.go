package hierarchy

import "context"

// Store owns all ledger node balances. No other component mutates them;
// every mutation goes through ApplyDeltas as one atomic batch.
type Store interface {
	// InsertNode adds a node. Inserting an id that already exists is a
	// no-op so hierarchy bootstrap stays idempotent.
	InsertNode(ctx context.Context, node Node) error
	// GetNode returns the node or sentinel.ErrNotFound.
	GetNode(ctx context.Context, id string) (*Node, error)
	// ApplyDeltas adds each delta to the named node's balance. The batch is
	// all-or-nothing: if any node id is missing, no balance changes.
	ApplyDeltas(ctx context.Context, deltas []Delta) error
	// NodesByLevel lists all nodes at one level, ordered by name.
	NodesByLevel(ctx context.Context, level Level) ([]Node, error)
	// All lists every node, highest level first.
	All(ctx context.Context) ([]Node, error)
}
