// Package memstore is an in-memory store.Store.
//
// Rows locked in a transaction stay locked until commit or rollback. Writes are staged on
// the transaction and applied to the shared state at commit, so readers never observe
// a half finished transaction.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"ccspot/pkg/model"
	"ccspot/pkg/store"

	"github.com/google/btree"
)

type holdKey struct {
	Owner   int64
	Asset   string
	RefType string
	RefID   int64
}

func holdKeyOf(h *model.Hold) holdKey {
	return holdKey{h.Owner, h.Asset, h.RefType, h.RefID}
}

type Store struct {
	locks *rowLocks

	mu sync.RWMutex // guards everything below

	seqOrder, seqBalance, seqHold, seqTrade, seqSnap int64

	balances map[store.BalanceKey]*model.Balance
	orders   map[int64]*model.Order
	holds    map[holdKey][]*model.Hold // ascending id
	trades   map[int64][]*model.Trade  // by order id
	snaps    map[store.BalanceKey][]*model.BalanceSnap
	markets  map[int64]*model.Market
	assets   map[string]*model.Asset
	books    map[bookKey]*btree.BTree
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		locks:    newRowLocks(),
		balances: make(map[store.BalanceKey]*model.Balance),
		orders:   make(map[int64]*model.Order),
		holds:    make(map[holdKey][]*model.Hold),
		trades:   make(map[int64][]*model.Trade),
		snaps:    make(map[store.BalanceKey][]*model.BalanceSnap),
		markets:  make(map[int64]*model.Market),
		assets:   make(map[string]*model.Asset),
		books:    make(map[bookKey]*btree.BTree),
	}
}

func (s *Store) nextID(seq *int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	*seq++
	return *seq
}

func (s *Store) book(marketID int64, side int8) *btree.BTree {
	k := bookKey{marketID, side}
	b, ok := s.books[k]
	if !ok {
		b = btree.New(32)
		s.books[k] = b
	}
	return b
}

func (s *Store) Transaction(ctx context.Context, fn func(tx store.Tx) error) error {
	t := newTx(ctx, s)
	defer t.release()

	if err := fn(t); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	t.commit()
	return nil
}

func (s *Store) GetOrder(ctx context.Context, id int64) (*model.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return cloneOrder(o), nil
}

func (s *Store) GetBalance(ctx context.Context, owner int64, asset string) (*model.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.balances[store.BalanceKey{Owner: owner, Asset: asset}]
	if !ok {
		return nil, model.ErrNotFound
	}
	return cloneBalance(b), nil
}

func (s *Store) ListBalances(ctx context.Context, owner int64) ([]*model.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*model.Balance
	for k, b := range s.balances {
		if k.Owner == owner {
			out = append(out, cloneBalance(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Asset < out[j].Asset })
	return out, nil
}

func (s *Store) ListTrades(ctx context.Context, orderID int64) ([]*model.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.Trade, 0, len(s.trades[orderID]))
	for _, t := range s.trades[orderID] {
		c := *t
		out = append(out, &c)
	}
	return out, nil
}

func (s *Store) ListHolds(ctx context.Context, owner int64, asset string) ([]*model.Hold, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*model.Hold
	for k, hs := range s.holds {
		if k.Owner != owner || k.Asset != asset {
			continue
		}
		for _, h := range hs {
			out = append(out, cloneHold(h))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListSnaps(ctx context.Context, owner int64, asset string) ([]*model.BalanceSnap, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	src := s.snaps[store.BalanceKey{Owner: owner, Asset: asset}]
	out := make([]*model.BalanceSnap, 0, len(src))
	for _, sn := range src {
		c := *sn
		out = append(out, &c)
	}
	return out, nil
}

func (s *Store) FindMakers(ctx context.Context, q store.MakerQuery) ([]*model.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*model.Order
	b, ok := s.books[bookKey{q.MarketID, q.MakerSide()}]
	if !ok {
		return out, nil
	}

	b.Ascend(func(item btree.Item) bool {
		id, price := itemOf(item)
		if !q.Crosses(price) {
			return false
		}
		if id == q.ExcludeID {
			return true
		}
		if o, ok := s.orders[id]; ok {
			out = append(out, cloneOrder(o))
		}
		return q.Limit <= 0 || len(out) < q.Limit
	})
	return out, nil
}

func (s *Store) GetMarket(ctx context.Context, id int64) (*model.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.markets[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	c := *m
	return &c, nil
}

func (s *Store) GetMarketBySymbol(ctx context.Context, symbol string) (*model.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	symbol = model.NormalizeSymbol(symbol)
	for _, m := range s.markets {
		if m.Symbol == symbol {
			c := *m
			return &c, nil
		}
	}
	return nil, model.ErrNotFound
}

func (s *Store) ListMarkets(ctx context.Context) ([]*model.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.Market, 0, len(s.markets))
	for _, m := range s.markets {
		c := *m
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) SaveMarket(ctx context.Context, m *model.Market) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m.ID == 0 {
		for id := range s.markets {
			if id > m.ID {
				m.ID = id
			}
		}
		m.ID++
	}
	now := time.Now()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now
	c := *m
	s.markets[m.ID] = &c
	return nil
}

func (s *Store) SaveAsset(ctx context.Context, a *model.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	c := *a
	s.assets[a.Symbol] = &c
	return nil
}

func (s *Store) GetAsset(ctx context.Context, symbol string) (*model.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.assets[symbol]
	if !ok {
		return nil, model.ErrNotFound
	}
	c := *a
	return &c, nil
}

func cloneOrder(o *model.Order) *model.Order {
	c := *o
	return &c
}

func cloneBalance(b *model.Balance) *model.Balance {
	c := *b
	return &c
}

func cloneHold(h *model.Hold) *model.Hold {
	c := *h
	return &c
}
