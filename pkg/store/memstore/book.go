package memstore

import (
	"github.com/google/btree"
	"github.com/shopspring/decimal"

	"ccspot/pkg/model"
)

type bookKey struct {
	MarketID int64
	Side     int8
}

// AskItem a resting sell order, cheapest first then oldest
type AskItem struct {
	ID    int64
	Price decimal.Decimal
}

// BidItem a resting buy order, highest first then oldest
type BidItem struct {
	ID    int64
	Price decimal.Decimal
}

// Less compare the size of two AskItems
func (a AskItem) Less(item btree.Item) bool {
	b, _ := item.(AskItem)

	if a.ID == b.ID {
		return false
	}

	f := a.Price.Cmp(b.Price)
	if f == 0 {
		return a.ID < b.ID
	}

	return f < 0
}

// Less compare the size of two BidItems
func (a BidItem) Less(item btree.Item) bool {
	b, _ := item.(BidItem)

	if a.ID == b.ID {
		return false
	}

	f := a.Price.Cmp(b.Price)
	if f == 0 {
		return a.ID < b.ID
	}

	return f > 0
}

func bookItem(o *model.Order) btree.Item {
	if o.Side == model.OrderSideBuy {
		return BidItem{ID: o.ID, Price: o.Price}
	}
	return AskItem{ID: o.ID, Price: o.Price}
}

func itemOf(item btree.Item) (int64, decimal.Decimal) {
	switch it := item.(type) {
	case AskItem:
		return it.ID, it.Price
	case BidItem:
		return it.ID, it.Price
	}
	return 0, decimal.Zero
}
