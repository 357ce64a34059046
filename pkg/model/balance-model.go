package model

import (
	"github.com/shopspring/decimal"
)

// Balance model, one row per (owner, asset)
//
//	Available + Locked only changes through deposit, withdraw, transfer and the hold protocol
type Balance struct {
	ID int64 `json:"id" gorm:"omitempty; primaryKey;"`

	Owner int64  `json:"owner" gorm:"omitempty; not null; default:0; uniqueIndex:idx_b_owner_asset;"`
	Asset string `json:"asset" gorm:"omitempty; not null; default:''; type:varchar(16); uniqueIndex:idx_b_owner_asset;"`

	Available decimal.Decimal `json:"available" gorm:"omitempty; not null; default:0; type:decimal(36,18);"`
	Locked    decimal.Decimal `json:"locked" gorm:"omitempty; not null; default:0; type:decimal(36,18);"`

	Version int64 `json:"version" gorm:"omitempty; not null; default:0;"` // bumped on every save

	Model
}

// Total returns available + locked
func (b *Balance) Total() decimal.Decimal {
	return b.Available.Add(b.Locked)
}

// Valid reports whether both amounts are non-negative
func (b *Balance) Valid() bool {
	return !b.Available.IsNegative() && !b.Locked.IsNegative()
}
