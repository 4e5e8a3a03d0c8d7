package validator

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// WindowStats summarizes an entity's transaction activity over the trailing
// one-hour window.
type WindowStats struct {
	Count int
	Total decimal.Decimal
}

// ActivityStats tracks per-entity transaction activity for the limit and
// anomaly stages. The transaction service records attempts at creation and
// completions when ledger application succeeds.
type ActivityStats interface {
	// RecordAttempt notes a created transaction (any outcome) for the
	// trailing-hour window.
	RecordAttempt(ctx context.Context, entityID string, amount decimal.Decimal, at time.Time) error
	// RecordCompleted notes a completed transaction for the daily total.
	RecordCompleted(ctx context.Context, entityID string, amount decimal.Decimal, at time.Time) error
	// HourlyWindow returns attempt count and volume inside the trailing hour.
	HourlyWindow(ctx context.Context, entityID string, now time.Time) (WindowStats, error)
	// CompletedTotalOn returns the completed-transaction volume for the
	// calendar day containing now (UTC).
	CompletedTotalOn(ctx context.Context, entityID string, now time.Time) (decimal.Decimal, error)
}
