package model

import (
	"github.com/shopspring/decimal"
)

// Order model
type Order struct {
	ID int64 `json:"id" gorm:"omitempty; primaryKey;"`

	Owner    int64  `json:"owner" gorm:"omitempty; not null; default:0; index;"`
	MarketID int64  `json:"marketID" gorm:"omitempty; not null; default:0; index:idx_o_book;"`
	Symbol   string `json:"symbol" gorm:"omitempty; not null; default:''; type:varchar(32);"`
	Side     int8   `json:"side" gorm:"omitempty; not null; default:0; type:tinyint(1); index:idx_o_book;"` // 1 sell ask, 2 buy bid
	Type     int8   `json:"type" gorm:"omitempty; not null; default:0; type:tinyint(1);"`                   // 1 limit, 2 market
	Status   int8   `json:"status" gorm:"omitempty; not null; default:0; type:tinyint(2); index:idx_o_book;"`

	Price    decimal.Decimal `json:"price" gorm:"omitempty; not null; default:0; type:decimal(36,18); index:idx_o_book;"` // at quote scale
	Quantity decimal.Decimal `json:"quantity" gorm:"omitempty; not null; default:0; type:decimal(36,18);"`                // at base scale
	Filled   decimal.Decimal `json:"filled" gorm:"omitempty; not null; default:0; type:decimal(36,18);"`                  // never exceeds Quantity

	Model
}

const (
	OrderStatusNew             int8 = 10 // Accepted and funds reserved
	OrderStatusPartiallyFilled int8 = 20 // Matching stage
	OrderStatusFilled          int8 = 40 // Finishing stage
	OrderStatusCanceled        int8 = 41 // User canceled

	OrderSideSell int8 = 1
	OrderSideBuy  int8 = 2

	OrderTypeLimit  int8 = 1
	OrderTypeMarket int8 = 2
)

// Remaining returns the unfilled quantity
func (o *Order) Remaining() decimal.Decimal {
	return o.Quantity.Sub(o.Filled)
}

// IsOpen reports whether the order can still be matched or canceled
func (o *Order) IsOpen() bool {
	return o.Status == OrderStatusNew || o.Status == OrderStatusPartiallyFilled
}

// CanTransition reports whether status may move forward to `to`
//
//	NEW -> PARTIALLY_FILLED | FILLED | CANCELED
//	PARTIALLY_FILLED -> PARTIALLY_FILLED | FILLED | CANCELED
func (o *Order) CanTransition(to int8) bool {
	switch o.Status {
	case OrderStatusNew:
		return to == OrderStatusPartiallyFilled || to == OrderStatusFilled || to == OrderStatusCanceled
	case OrderStatusPartiallyFilled:
		return to == OrderStatusPartiallyFilled || to == OrderStatusFilled || to == OrderStatusCanceled
	}
	return false
}

// Fill adds qty to the filled quantity and moves the status forward
func (o *Order) Fill(qty decimal.Decimal) error {
	filled := o.Filled.Add(qty)
	if !qty.IsPositive() || filled.GreaterThan(o.Quantity) {
		return ErrInvalidOrderState
	}
	to := OrderStatusPartiallyFilled
	if filled.Equal(o.Quantity) {
		to = OrderStatusFilled
	}
	if !o.CanTransition(to) {
		return ErrInvalidOrderState
	}
	o.Filled = filled
	o.Status = to
	return nil
}

func (o *Order) IsBuy() bool {
	return o.Side == OrderSideBuy
}

// SideName returns BUY or SELL
func SideName(side int8) string {
	switch side {
	case OrderSideBuy:
		return "BUY"
	case OrderSideSell:
		return "SELL"
	}
	return "UNKNOWN"
}

// ParseSide accepts BUY/SELL as well as bid/ask
func ParseSide(s string) (int8, bool) {
	switch s {
	case "BUY", "buy", "bid", "BID":
		return OrderSideBuy, true
	case "SELL", "sell", "ask", "ASK":
		return OrderSideSell, true
	}
	return 0, false
}

// StatusName returns the upper case status name
func StatusName(status int8) string {
	switch status {
	case OrderStatusNew:
		return "NEW"
	case OrderStatusPartiallyFilled:
		return "PARTIALLY_FILLED"
	case OrderStatusFilled:
		return "FILLED"
	case OrderStatusCanceled:
		return "CANCELED"
	}
	return "UNKNOWN"
}
