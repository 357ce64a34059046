package memstore

import (
	"context"
	"fmt"
	"time"

	"ccspot/pkg/model"
	"ccspot/pkg/store"
)

type tx struct {
	ctx context.Context
	s   *Store

	held  map[string]bool
	order []string // lock acquisition order

	balances  map[store.BalanceKey]*model.Balance
	orders    map[int64]*model.Order
	newOrders map[int64]bool
	holds     map[int64]*model.Hold
	holdIndex map[holdKey]int64
	trades    []*model.Trade
	snaps     []*model.BalanceSnap
}

var _ store.Tx = (*tx)(nil)

func newTx(ctx context.Context, s *Store) *tx {
	return &tx{
		ctx:       ctx,
		s:         s,
		held:      make(map[string]bool),
		balances:  make(map[store.BalanceKey]*model.Balance),
		orders:    make(map[int64]*model.Order),
		newOrders: make(map[int64]bool),
		holds:     make(map[int64]*model.Hold),
		holdIndex: make(map[holdKey]int64),
	}
}

func (t *tx) lock(key string) error {
	if t.held[key] {
		return nil
	}
	if err := t.s.locks.lock(t.ctx, key); err != nil {
		return err
	}
	t.held[key] = true
	t.order = append(t.order, key)
	return nil
}

func (t *tx) release() {
	for i := len(t.order) - 1; i >= 0; i-- {
		t.s.locks.unlock(t.order[i])
	}
	t.order = nil
	t.held = map[string]bool{}
}

func balanceLockKey(owner int64, asset string) string {
	return fmt.Sprintf("b:%d:%s", owner, asset)
}

func (t *tx) LockBalance(owner int64, asset string) (*model.Balance, error) {
	if err := t.lock(balanceLockKey(owner, asset)); err != nil {
		return nil, err
	}

	k := store.BalanceKey{Owner: owner, Asset: asset}
	if b, ok := t.balances[k]; ok {
		return cloneBalance(b), nil
	}

	t.s.mu.RLock()
	b, ok := t.s.balances[k]
	if ok {
		b = cloneBalance(b)
	}
	t.s.mu.RUnlock()

	if !ok {
		now := time.Now()
		b = &model.Balance{ID: t.s.nextID(&t.s.seqBalance), Owner: owner, Asset: asset}
		b.CreatedAt, b.UpdatedAt = now, now
		t.balances[k] = cloneBalance(b)
	}
	return b, nil
}

func (t *tx) SaveBalance(b *model.Balance) error {
	if !t.held[balanceLockKey(b.Owner, b.Asset)] {
		return fmt.Errorf("balance %d/%s saved without lock", b.Owner, b.Asset)
	}
	if !b.Valid() {
		return fmt.Errorf("%w: negative balance %d/%s", model.ErrInsufficientBalance, b.Owner, b.Asset)
	}
	b.Version++
	b.UpdatedAt = time.Now()
	t.balances[store.BalanceKey{Owner: b.Owner, Asset: b.Asset}] = cloneBalance(b)
	return nil
}

func holdLockKey(k holdKey) string {
	return fmt.Sprintf("h:%d:%s:%s:%d", k.Owner, k.Asset, k.RefType, k.RefID)
}

func (t *tx) LockHold(owner int64, asset, refType string, refID int64) (*model.Hold, error) {
	k := holdKey{owner, asset, refType, refID}
	if err := t.lock(holdLockKey(k)); err != nil {
		return nil, err
	}

	if id, ok := t.holdIndex[k]; ok {
		return cloneHold(t.holds[id]), nil
	}

	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	hs := t.s.holds[k]
	if len(hs) == 0 {
		return nil, nil
	}
	return cloneHold(hs[len(hs)-1]), nil
}

func (t *tx) CreateHold(h *model.Hold) error {
	k := holdKeyOf(h)
	if err := t.lock(holdLockKey(k)); err != nil {
		return err
	}
	now := time.Now()
	h.ID = t.s.nextID(&t.s.seqHold)
	h.CreatedAt, h.UpdatedAt = now, now
	t.holds[h.ID] = cloneHold(h)
	t.holdIndex[k] = h.ID
	return nil
}

func (t *tx) SaveHold(h *model.Hold) error {
	k := holdKeyOf(h)
	if !t.held[holdLockKey(k)] {
		return fmt.Errorf("hold %d saved without lock", h.ID)
	}
	h.UpdatedAt = time.Now()
	t.holds[h.ID] = cloneHold(h)
	if h.ID >= t.holdIndex[k] {
		t.holdIndex[k] = h.ID
	}
	return nil
}

func orderLockKey(id int64) string {
	return fmt.Sprintf("o:%d", id)
}

func (t *tx) CreateOrder(o *model.Order) error {
	o.ID = t.s.nextID(&t.s.seqOrder)
	if err := t.lock(orderLockKey(o.ID)); err != nil {
		return err
	}
	now := time.Now()
	o.CreatedAt, o.UpdatedAt = now, now
	t.orders[o.ID] = cloneOrder(o)
	t.newOrders[o.ID] = true
	return nil
}

func (t *tx) LockOrder(id int64) (*model.Order, error) {
	if err := t.lock(orderLockKey(id)); err != nil {
		return nil, err
	}
	if o, ok := t.orders[id]; ok {
		return cloneOrder(o), nil
	}

	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	o, ok := t.s.orders[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return cloneOrder(o), nil
}

func (t *tx) SaveOrder(o *model.Order) error {
	if !t.held[orderLockKey(o.ID)] {
		return fmt.Errorf("order %d saved without lock", o.ID)
	}
	o.UpdatedAt = time.Now()
	t.orders[o.ID] = cloneOrder(o)
	return nil
}

func (t *tx) FindMakers(q store.MakerQuery) ([]*model.Order, error) {
	return t.s.FindMakers(t.ctx, q)
}

func (t *tx) CreateTrades(trades ...*model.Trade) error {
	for _, tr := range trades {
		tr.ID = t.s.nextID(&t.s.seqTrade)
		if tr.ExecutedAt.IsZero() {
			tr.ExecutedAt = time.Now()
		}
		c := *tr
		t.trades = append(t.trades, &c)
	}
	return nil
}

func (t *tx) AppendSnaps(snaps ...*model.BalanceSnap) error {
	for _, sn := range snaps {
		sn.ID = t.s.nextID(&t.s.seqSnap)
		now := time.Now()
		sn.CreatedAt, sn.UpdatedAt = now, now
		c := *sn
		t.snaps = append(t.snaps, &c)
	}
	return nil
}

// commit applies every staged write while the row locks are still held
func (t *tx) commit() {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, b := range t.balances {
		s.balances[k] = b
	}

	for id, o := range t.orders {
		if old, ok := s.orders[id]; ok && old.IsOpen() {
			s.book(old.MarketID, old.Side).Delete(bookItem(old))
		}
		s.orders[id] = o
		if o.IsOpen() {
			s.book(o.MarketID, o.Side).ReplaceOrInsert(bookItem(o))
		}
	}

	for _, h := range t.holds {
		k := holdKeyOf(h)
		hs := s.holds[k]
		replaced := false
		for i := range hs {
			if hs[i].ID == h.ID {
				hs[i] = h
				replaced = true
				break
			}
		}
		if !replaced {
			hs = append(hs, h)
			for i := len(hs) - 1; i > 0 && hs[i].ID < hs[i-1].ID; i-- {
				hs[i], hs[i-1] = hs[i-1], hs[i]
			}
		}
		s.holds[k] = hs
	}

	for _, tr := range t.trades {
		s.trades[tr.OrderID] = append(s.trades[tr.OrderID], tr)
	}

	for _, sn := range t.snaps {
		k := store.BalanceKey{Owner: sn.Owner, Asset: sn.Asset}
		s.snaps[k] = append(s.snaps[k], sn)
	}
}
