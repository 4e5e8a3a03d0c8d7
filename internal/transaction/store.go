package transaction

import "context"

// Store persists transaction records. Lookups are scoped to the requesting
// user: a transaction is only visible to the requester that created it.
type Store interface {
	Insert(ctx context.Context, tx *Transaction) error
	// Get returns the transaction or sentinel.ErrNotFound (including when it
	// exists but belongs to another requester).
	Get(ctx context.Context, requesterID, id string) (*Transaction, error)
	Update(ctx context.Context, tx *Transaction) error
	List(ctx context.Context, requesterID string, filter Filter) ([]Transaction, error)
	Stats(ctx context.Context, requesterID string) (*Stats, error)
}
