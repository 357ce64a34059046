// Package store is the persistence contract of the ledger and the order book.
//
// Every mutation happens inside Store.Transaction. Rows returned by the Lock* methods of Tx
// are guarded handles: the caller has exclusive access to them until the transaction ends,
// and must hand them back through the matching Save* method for changes to persist.
//
// Lock order inside one transaction: orders by ascending id, then balances by
// (owner, asset) ascending, then holds. Locking a row twice in the same transaction is allowed.
package store

import (
	"context"
	"sort"

	"ccspot/pkg/model"

	"github.com/shopspring/decimal"
)

type Store interface {
	// Transaction runs fn in one short local transaction, any error rolls back every mutation.
	// fn may run again after a rollback the database forced, so it must not keep state outside tx.
	Transaction(ctx context.Context, fn func(tx Tx) error) error

	GetOrder(ctx context.Context, id int64) (*model.Order, error)
	GetBalance(ctx context.Context, owner int64, asset string) (*model.Balance, error)
	ListBalances(ctx context.Context, owner int64) ([]*model.Balance, error)
	ListTrades(ctx context.Context, orderID int64) ([]*model.Trade, error)
	ListHolds(ctx context.Context, owner int64, asset string) ([]*model.Hold, error)
	ListSnaps(ctx context.Context, owner int64, asset string) ([]*model.BalanceSnap, error)

	// FindMakers is a non-locking read of the best resting orders, candidates must be locked before use
	FindMakers(ctx context.Context, q MakerQuery) ([]*model.Order, error)

	GetMarket(ctx context.Context, id int64) (*model.Market, error)
	GetMarketBySymbol(ctx context.Context, symbol string) (*model.Market, error)
	ListMarkets(ctx context.Context) ([]*model.Market, error)
	SaveMarket(ctx context.Context, m *model.Market) error
	SaveAsset(ctx context.Context, a *model.Asset) error
	GetAsset(ctx context.Context, symbol string) (*model.Asset, error)
}

type Tx interface {
	// LockBalance locks the (owner, asset) row, creating a zero balance when missing
	LockBalance(owner int64, asset string) (*model.Balance, error)
	SaveBalance(b *model.Balance) error

	// LockHold locks and returns the latest hold of the reference whatever its status, nil when none exists
	LockHold(owner int64, asset, refType string, refID int64) (*model.Hold, error)
	CreateHold(h *model.Hold) error
	SaveHold(h *model.Hold) error

	CreateOrder(o *model.Order) error
	// LockOrder returns model.ErrNotFound for unknown ids
	LockOrder(id int64) (*model.Order, error)
	SaveOrder(o *model.Order) error

	FindMakers(q MakerQuery) ([]*model.Order, error)
	CreateTrades(trades ...*model.Trade) error
	AppendSnaps(snaps ...*model.BalanceSnap) error
}

// MakerQuery selects resting orders crossing a taker
//
//	BUY taker:  SELL makers with price <= Price, price asc then time asc
//	SELL taker: BUY makers with price >= Price, price desc then time asc
type MakerQuery struct {
	MarketID  int64
	TakerSide int8
	Price     decimal.Decimal
	ExcludeID int64 // the taker itself
	Limit     int
}

// MakerSide returns the side of the resting orders a taker of the query meets
func (q MakerQuery) MakerSide() int8 {
	if q.TakerSide == model.OrderSideBuy {
		return model.OrderSideSell
	}
	return model.OrderSideBuy
}

// Crosses reports whether a maker price satisfies the taker's limit
func (q MakerQuery) Crosses(makerPrice decimal.Decimal) bool {
	if q.TakerSide == model.OrderSideBuy {
		return makerPrice.LessThanOrEqual(q.Price)
	}
	return makerPrice.GreaterThanOrEqual(q.Price)
}

type BalanceKey struct {
	Owner int64
	Asset string
}

// LockBalancesOrdered locks every distinct key in (owner, asset) ascending order, whatever order the caller lists them
func LockBalancesOrdered(tx Tx, keys ...BalanceKey) (map[BalanceKey]*model.Balance, error) {
	uniq := make([]BalanceKey, 0, len(keys))
	seen := make(map[BalanceKey]bool, len(keys))
	for _, k := range keys {
		if !seen[k] {
			seen[k] = true
			uniq = append(uniq, k)
		}
	}
	sort.Slice(uniq, func(i, j int) bool {
		if uniq[i].Owner != uniq[j].Owner {
			return uniq[i].Owner < uniq[j].Owner
		}
		return uniq[i].Asset < uniq[j].Asset
	})

	out := make(map[BalanceKey]*model.Balance, len(uniq))
	for _, k := range uniq {
		b, err := tx.LockBalance(k.Owner, k.Asset)
		if err != nil {
			return nil, err
		}
		out[k] = b
	}
	return out, nil
}

// LockOrdersOrdered locks the given orders in ascending id order and returns them in the order asked
func LockOrdersOrdered(tx Tx, ids ...int64) ([]*model.Order, error) {
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	locked := make(map[int64]*model.Order, len(sorted))
	for _, id := range sorted {
		if _, ok := locked[id]; ok {
			continue
		}
		o, err := tx.LockOrder(id)
		if err != nil {
			return nil, err
		}
		locked[id] = o
	}

	out := make([]*model.Order, len(ids))
	for i, id := range ids {
		out[i] = locked[id]
	}
	return out, nil
}
