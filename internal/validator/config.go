package validator

import "github.com/shopspring/decimal"

// Config carries the tunable thresholds for the validation pipeline.
type Config struct {
	// ExplicitApprovalThreshold is the single-transaction amount above which
	// an explicit approval flag is required (stage 3).
	ExplicitApprovalThreshold decimal.Decimal
	// DefaultDailyLimit applies when an entity has no configured daily limit.
	DefaultDailyLimit decimal.Decimal
	// MaxTransactionsPerHour caps trailing-hour transaction count (stage 4).
	MaxTransactionsPerHour int
	// MaxAmountPerHour caps trailing-hour transaction volume (stage 4).
	MaxAmountPerHour decimal.Decimal
	// SpikeMultiplier flags amounts above this multiple of the trailing-hour
	// average (stage 4, only evaluated when the window is non-empty).
	SpikeMultiplier decimal.Decimal
	// CTRThreshold marks transfers for currency transaction reporting
	// (stage 5, reporting flag only, never a failure).
	CTRThreshold decimal.Decimal
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		ExplicitApprovalThreshold: decimal.NewFromInt(100),
		DefaultDailyLimit:         decimal.NewFromInt(100),
		MaxTransactionsPerHour:    10,
		MaxAmountPerHour:          decimal.NewFromInt(500),
		SpikeMultiplier:           decimal.NewFromInt(5),
		CTRThreshold:              decimal.NewFromInt(1000),
	}
}
