package model

import (
	"github.com/shopspring/decimal"
)

// BalanceSnap model, the audit journal of balance mutations
//
//	Written in the same transaction as the balance change, so the journal and the balances never diverge
type BalanceSnap struct {
	ID int64 `json:"id" gorm:"omitempty; primaryKey;"`

	Owner int64  `json:"owner" gorm:"omitempty; not null; default:0; index:idx_bs_owner_asset;"`
	Asset string `json:"asset" gorm:"omitempty; not null; default:''; type:varchar(16); index:idx_bs_owner_asset;"`

	Reason  string `json:"reason" gorm:"omitempty; not null; default:''; type:varchar(32);"` // e.g. reserve, capture, deposit
	RefType string `json:"refType" gorm:"omitempty; not null; default:''; type:varchar(16);"`
	RefID   int64  `json:"refID" gorm:"omitempty; not null; default:0;"`
	Memo    string `json:"memo" gorm:"omitempty; not null; default:''; type:varchar(64);"`

	AvailableChange decimal.Decimal `json:"availableChange" gorm:"omitempty; not null; default:0; type:decimal(36,18);"`
	LockedChange    decimal.Decimal `json:"lockedChange" gorm:"omitempty; not null; default:0; type:decimal(36,18);"`
	AvailableNew    decimal.Decimal `json:"availableNew" gorm:"omitempty; not null; default:0; type:decimal(36,18);"`
	LockedNew       decimal.Decimal `json:"lockedNew" gorm:"omitempty; not null; default:0; type:decimal(36,18);"`

	Model
}

const (
	SnapReserve     = "reserve"
	SnapRelease     = "release"
	SnapCapture     = "capture"
	SnapRefund      = "refund"
	SnapDeposit     = "deposit"
	SnapWithdraw    = "withdraw"
	SnapTransferOut = "transfer_out"
	SnapTransferIn  = "transfer_in"
	SnapTrade       = "trade"

	SnapRefTransfer = "TRANSFER"
)

// NewSnap records the change between before and the balance's current amounts
func NewSnap(b *Balance, availableBefore, lockedBefore decimal.Decimal, reason, refType string, refID int64) *BalanceSnap {
	return &BalanceSnap{
		Owner:           b.Owner,
		Asset:           b.Asset,
		Reason:          reason,
		RefType:         refType,
		RefID:           refID,
		AvailableChange: b.Available.Sub(availableBefore),
		LockedChange:    b.Locked.Sub(lockedBefore),
		AvailableNew:    b.Available,
		LockedNew:       b.Locked,
	}
}
