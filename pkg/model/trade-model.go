package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade model, one row per side of a fill. Both rows of a fill share MatchID
type Trade struct {
	ID      int64  `json:"id" gorm:"omitempty; primaryKey;"`
	MatchID string `json:"matchID" gorm:"omitempty; not null; default:''; type:varchar(36); index;"`

	OrderID        int64  `json:"orderID" gorm:"omitempty; not null; default:0; index;"`
	CounterOrderID int64  `json:"counterOrderID" gorm:"omitempty; not null; default:0;"`
	Owner          int64  `json:"owner" gorm:"omitempty; not null; default:0; index;"`
	MarketID       int64  `json:"marketID" gorm:"omitempty; not null; default:0;"`
	Symbol         string `json:"symbol" gorm:"omitempty; not null; default:''; type:varchar(32);"`
	Side           int8   `json:"side" gorm:"omitempty; not null; default:0; type:tinyint(1);"`
	Maker          bool   `json:"maker" gorm:"not null; default:false;"`

	Price       decimal.Decimal `json:"price" gorm:"omitempty; not null; default:0; type:decimal(36,18);"` // maker's price
	Quantity    decimal.Decimal `json:"quantity" gorm:"omitempty; not null; default:0; type:decimal(36,18);"`
	QuoteAmount decimal.Decimal `json:"quoteAmount" gorm:"omitempty; not null; default:0; type:decimal(36,18);"`

	ExecutedAt time.Time `json:"executedAt" gorm:"omitempty; not null; type:datetime(3);"`
}

// BuyerOrder returns the buy side order id of the fill
func (t *Trade) BuyerOrder() int64 {
	if t.Side == OrderSideBuy {
		return t.OrderID
	}
	return t.CounterOrderID
}

// SellerOrder returns the sell side order id of the fill
func (t *Trade) SellerOrder() int64 {
	if t.Side == OrderSideSell {
		return t.OrderID
	}
	return t.CounterOrderID
}
