// Package audit records transaction lifecycle events for compliance review.
// Events are fire-and-forget from the caller's perspective: a failing
// publisher must never block or fail a ledger operation.
package audit

import "time"

// Event is one auditable fact about a transaction.
type Event struct {
	ID            string    `json:"id"`
	Action        string    `json:"action"`
	TransactionID string    `json:"transaction_id,omitempty"`
	RequesterID   string    `json:"requester_id,omitempty"`
	FromEntityID  string    `json:"from_entity_id,omitempty"`
	ToEntityID    string    `json:"to_entity_id,omitempty"`
	Amount        string    `json:"amount,omitempty"`
	Status        string    `json:"status,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Actions emitted by the transaction service.
const (
	ActionTransactionCreated   = "transaction_created"
	ActionTransactionVerified  = "transaction_verified"
	ActionTransactionCompleted = "transaction_completed"
	ActionTransactionFailed    = "transaction_failed"
	ActionTransactionCancelled = "transaction_cancelled"
	ActionTransactionApproved  = "transaction_approved"
)

// Publisher delivers audit events to the audit stream.
type Publisher interface {
	Publish(event Event)
	Close()
}
