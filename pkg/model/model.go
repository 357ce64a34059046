// Package model defines the ledger and order records, their gorm mapping, and the database openers.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Model struct {
	CreatedAt time.Time `json:"createdAt" gorm:"omitempty; not null; type:datetime(3);"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"omitempty; not null; type:datetime(3);"`
}

// DefaultScale is used for assets the catalog does not know
const DefaultScale int32 = 18

// RoundAmount rounds a monetary amount half-up to scale fractional digits
func RoundAmount(d decimal.Decimal, scale int32) decimal.Decimal {
	return d.Round(scale)
}

// TruncQty rounds a quantity toward zero to scale fractional digits,
// so that no more base quantity is allocated than was available
func TruncQty(d decimal.Decimal, scale int32) decimal.Decimal {
	return d.Truncate(scale)
}

// Tables lists every record for migrations
func Tables() []interface{} {
	return []interface{}{
		&Asset{},
		&Market{},
		&Balance{},
		&Hold{},
		&BalanceSnap{},
		&Order{},
		&Trade{},
	}
}
