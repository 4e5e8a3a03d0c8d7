package balance

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntityBalance is an entity's own spendable balance and risk profile. It is
// distinct from the hierarchical ledger node balances: stage 1 of validation
// checks it, and transaction completion keeps it consistent by convention.
type EntityBalance struct {
	EntityID   string          `json:"entity_id"`
	Balance    decimal.Decimal `json:"balance"`
	Currency   string          `json:"currency"`
	Verified   bool            `json:"verified"`
	KYCLevel   int             `json:"kyc_level"` // 0 none, 1 basic, 2 enhanced, 3 full
	DailyLimit decimal.Decimal `json:"daily_limit"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// KYCLevelValid reports whether a level is within the modeled 0..3 range.
func KYCLevelValid(level int) bool {
	return level >= 0 && level <= 3
}
