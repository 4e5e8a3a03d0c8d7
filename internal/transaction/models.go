package transaction

import (
	"time"

	"github.com/shopspring/decimal"

	"stratum/internal/ledger"
	"stratum/internal/validator"
)

// Status is the lifecycle state of a persisted transaction.
//
// Transitions:
//
//	PENDING           -> VERIFIED | FAILED | CANCELLED
//	APPROVAL_REQUIRED -> PENDING | FAILED | CANCELLED
//	VERIFIED          -> COMPLETED | FAILED
//	COMPLETED / FAILED / CANCELLED are terminal.
//
// VERIFIED -> COMPLETED is the only transition that mutates ledger balances.
type Status string

const (
	StatusPending          Status = "PENDING"
	StatusApprovalRequired Status = "APPROVAL_REQUIRED"
	StatusVerified         Status = "VERIFIED"
	StatusCompleted        Status = "COMPLETED"
	StatusFailed           Status = "FAILED"
	StatusCancelled        Status = "CANCELLED"
)

var legalTransitions = map[Status][]Status{
	StatusPending:          {StatusVerified, StatusFailed, StatusCancelled},
	StatusApprovalRequired: {StatusPending, StatusFailed, StatusCancelled},
	StatusVerified:         {StatusCompleted, StatusFailed},
	StatusCompleted:        {},
	StatusFailed:           {},
	StatusCancelled:        {},
}

// CanTransitionTo reports whether s -> to is a legal lifecycle move.
func (s Status) CanTransitionTo(to Status) bool {
	for _, allowed := range legalTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is legal from s.
func (s Status) IsTerminal() bool {
	return len(legalTransitions[s]) == 0
}

// Type classifies the economic intent of a transaction.
type Type string

const (
	TypeTransfer Type = "TRANSFER"
	TypePayment  Type = "PAYMENT"
	TypeReward   Type = "REWARD"
	TypeRefund   Type = "REFUND"
)

// IsValid reports whether t is a known transaction type.
func (t Type) IsValid() bool {
	switch t {
	case TypeTransfer, TypePayment, TypeReward, TypeRefund:
		return true
	}
	return false
}

// RequiresValidation reports whether creating a transaction of this type
// runs layer verification and the five-stage pipeline. Only transfers and
// payments move value between two entities.
func (t Type) RequiresValidation() bool {
	return t == TypeTransfer || t == TypePayment
}

// Transaction is the persisted transfer record. The verification and
// validation snapshots are immutable once written; they preserve exactly
// what was checked at submission time for audit.
type Transaction struct {
	ID                string                     `json:"id"`
	RequesterID       string                     `json:"requester_id"`
	Type              Type                       `json:"type"`
	Amount            decimal.Decimal            `json:"amount"`
	Currency          string                     `json:"currency"`
	Status            Status                     `json:"status"`
	FromEntityID      string                     `json:"from_entity_id"`
	ToEntityID        string                     `json:"to_entity_id,omitempty"`
	Description       string                     `json:"description,omitempty"`
	FailureReason     string                     `json:"failure_reason,omitempty"`
	LayerVerification *ledger.VerificationResult `json:"layer_verification,omitempty"`
	ValidationResult  *validator.Result          `json:"validation_result,omitempty"`
	CreatedAt         time.Time                  `json:"created_at"`
	UpdatedAt         time.Time                  `json:"updated_at"`
	VerifiedAt        *time.Time                 `json:"verified_at,omitempty"`
	CompletedAt       *time.Time                 `json:"completed_at,omitempty"`
}

// CreateInput is the caller-supplied shape of a new transaction.
type CreateInput struct {
	Type                Type            `json:"type"`
	Amount              decimal.Decimal `json:"amount"`
	FromEntityID        string          `json:"from_entity_id"`
	ToEntityID          string          `json:"to_entity_id,omitempty"`
	Description         string          `json:"description,omitempty"`
	HasExplicitApproval bool            `json:"has_explicit_approval,omitempty"`
}

// Filter narrows a transaction history listing.
type Filter struct {
	Status   Status
	Type     Type
	FromDate *time.Time
	ToDate   *time.Time
	Limit    int
	Offset   int
}

// Stats aggregates one requester's transaction history.
type Stats struct {
	Total            int             `json:"total"`
	Pending          int             `json:"pending"`
	Completed        int             `json:"completed"`
	Failed           int             `json:"failed"`
	ApprovalRequired int             `json:"approval_required"`
	CompletedAmount  decimal.Decimal `json:"completed_amount"`
}
