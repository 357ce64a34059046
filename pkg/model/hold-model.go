package model

import (
	"github.com/shopspring/decimal"
)

// Hold model, funds moved from available to locked on behalf of one reference
//
//	Created ACTIVE by a reservation, terminated exactly once by release or capture
type Hold struct {
	ID int64 `json:"id" gorm:"omitempty; primaryKey;"`

	Owner   int64  `json:"owner" gorm:"omitempty; not null; default:0; index:idx_h_ref;"`
	Asset   string `json:"asset" gorm:"omitempty; not null; default:''; type:varchar(16); index:idx_h_ref;"`
	RefType string `json:"refType" gorm:"omitempty; not null; default:''; type:varchar(16); index:idx_h_ref;"`
	RefID   int64  `json:"refID" gorm:"omitempty; not null; default:0; index:idx_h_ref;"`

	Amount decimal.Decimal `json:"amount" gorm:"omitempty; not null; default:0; type:decimal(36,18);"` // remaining reserved amount
	Status string          `json:"status" gorm:"omitempty; not null; default:'ACTIVE'; type:varchar(16);"`

	Model
}

const (
	HoldStatusActive   = "ACTIVE"
	HoldStatusReleased = "RELEASED"
	HoldStatusCaptured = "CAPTURED"

	HoldRefOrder = "ORDER"
)

func (h *Hold) IsActive() bool {
	return h.Status == HoldStatusActive
}
