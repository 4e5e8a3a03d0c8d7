package hierarchy

import (
	"time"

	"github.com/shopspring/decimal"
)

// Level identifies a tier in the fixed six-level administrative hierarchy.
// Entities sit at level 0; every ledger node lives at levels 1..5.
type Level int

const (
	LevelEntity   Level = 0
	LevelDistrict Level = 1
	LevelCity     Level = 2
	LevelProvince Level = 3
	LevelCountry  Level = 4
	LevelGlobal   Level = 5
)

var levelNames = map[Level]string{
	LevelEntity:   "entity",
	LevelDistrict: "district",
	LevelCity:     "city",
	LevelProvince: "province",
	LevelCountry:  "country",
	LevelGlobal:   "global",
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "unknown"
}

// IsValid reports whether l is a ledger node level (1..5).
func (l Level) IsValid() bool {
	return l >= LevelDistrict && l <= LevelGlobal
}

// Node is one ledger node in the administrative tree. The root (level 5) is
// the only node without a parent. Balances are mutated exclusively through
// Store.ApplyDeltas.
type Node struct {
	ID        string          `json:"id"`
	Level     Level           `json:"level"`
	Name      string          `json:"name"`
	ParentID  *string         `json:"parent_id"`
	Balance   decimal.Decimal `json:"balance"`
	Currency  string          `json:"currency"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Delta is one signed balance adjustment addressed to a node.
type Delta struct {
	NodeID string          `json:"node_id"`
	Amount decimal.Decimal `json:"amount"`
}

// DefaultCurrency is the single symbolic unit the ledger operates in.
const DefaultCurrency = "T"
