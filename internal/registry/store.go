package registry

import "context"

// Store persists entity-to-ancestor-chain mappings.
type Store interface {
	// Upsert replaces any existing mapping for the entity.
	Upsert(ctx context.Context, info EntityLayerInfo) error
	// Get returns the mapping or sentinel.ErrNotFound.
	Get(ctx context.Context, entityID string) (*EntityLayerInfo, error)
}
