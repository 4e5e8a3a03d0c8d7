package balance

import (
	"context"

	"github.com/shopspring/decimal"
)

// Store persists entity working balances and risk profiles.
type Store interface {
	// Upsert replaces the entity's record.
	Upsert(ctx context.Context, record EntityBalance) error
	// Get returns the record or sentinel.ErrNotFound.
	Get(ctx context.Context, entityID string) (*EntityBalance, error)
	// Adjust adds delta to the entity's balance and returns the updated
	// record, or sentinel.ErrNotFound for an unknown entity.
	Adjust(ctx context.Context, entityID string, delta decimal.Decimal) (*EntityBalance, error)
}
