package memstore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"ccspot/pkg/model"
	"ccspot/pkg/store"
	"ccspot/pkg/store/memstore"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var ctx = context.Background()

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCommitAndRollback(t *testing.T) {
	s := memstore.New()

	err := s.Transaction(ctx, func(tx store.Tx) error {
		b, err := tx.LockBalance(1, "USDT")
		if err != nil {
			return err
		}
		b.Available = d("100")
		return tx.SaveBalance(b)
	})
	require.Nil(t, err)

	boom := errors.New("boom")
	err = s.Transaction(ctx, func(tx store.Tx) error {
		b, err := tx.LockBalance(1, "USDT")
		if err != nil {
			return err
		}
		b.Available = d("1")
		if err := tx.SaveBalance(b); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	b, err := s.GetBalance(ctx, 1, "USDT")
	require.Nil(t, err)
	require.True(t, b.Available.Equal(d("100")))
	require.Equal(t, int64(1), b.Version)
}

func TestRelockSeesSavedValue(t *testing.T) {
	s := memstore.New()

	err := s.Transaction(ctx, func(tx store.Tx) error {
		b, _ := tx.LockBalance(7, "BTC")
		b.Available = d("2")
		require.Nil(t, tx.SaveBalance(b))

		again, err := tx.LockBalance(7, "BTC")
		require.Nil(t, err)
		require.True(t, again.Available.Equal(d("2")))
		return nil
	})
	require.Nil(t, err)
}

func TestRowLockBlocks(t *testing.T) {
	s := memstore.New()

	locked := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_ = s.Transaction(ctx, func(tx store.Tx) error {
			_, _ = tx.LockBalance(1, "USDT")
			close(locked)
			<-done
			return nil
		})
	}()
	<-locked

	c, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	err := s.Transaction(c, func(tx store.Tx) error {
		_, err := tx.LockBalance(1, "USDT")
		return err
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	close(done)
}

func TestSaveWithoutLock(t *testing.T) {
	s := memstore.New()
	err := s.Transaction(ctx, func(tx store.Tx) error {
		return tx.SaveBalance(&model.Balance{Owner: 1, Asset: "USDT"})
	})
	require.NotNil(t, err)
}

func placeResting(t *testing.T, s *memstore.Store, side int8, price string) int64 {
	o := &model.Order{
		Owner:    1,
		MarketID: 1,
		Side:     side,
		Type:     model.OrderTypeLimit,
		Price:    d(price),
		Quantity: d("1"),
		Status:   model.OrderStatusNew,
	}
	err := s.Transaction(ctx, func(tx store.Tx) error {
		return tx.CreateOrder(o)
	})
	require.Nil(t, err)
	return o.ID
}

func TestFindMakers(t *testing.T) {
	s := memstore.New()

	a1 := placeResting(t, s, model.OrderSideSell, "101")
	a2 := placeResting(t, s, model.OrderSideSell, "100")
	a3 := placeResting(t, s, model.OrderSideSell, "100")
	placeResting(t, s, model.OrderSideSell, "103")

	makers, err := s.FindMakers(ctx, store.MakerQuery{MarketID: 1, TakerSide: model.OrderSideBuy, Price: d("102"), Limit: 10})
	require.Nil(t, err)
	require.Len(t, makers, 3)
	require.Equal(t, []int64{a2, a3, a1}, []int64{makers[0].ID, makers[1].ID, makers[2].ID})

	makers, err = s.FindMakers(ctx, store.MakerQuery{MarketID: 1, TakerSide: model.OrderSideBuy, Price: d("102"), Limit: 1})
	require.Nil(t, err)
	require.Len(t, makers, 1)

	b1 := placeResting(t, s, model.OrderSideBuy, "99")
	b2 := placeResting(t, s, model.OrderSideBuy, "99.5")
	makers, err = s.FindMakers(ctx, store.MakerQuery{MarketID: 1, TakerSide: model.OrderSideSell, Price: d("99"), Limit: 10})
	require.Nil(t, err)
	require.Equal(t, []int64{b2, b1}, []int64{makers[0].ID, makers[1].ID})

	// a terminal order leaves the book
	err = s.Transaction(ctx, func(tx store.Tx) error {
		o, err := tx.LockOrder(b2)
		if err != nil {
			return err
		}
		o.Status = model.OrderStatusCanceled
		return tx.SaveOrder(o)
	})
	require.Nil(t, err)
	makers, err = s.FindMakers(ctx, store.MakerQuery{MarketID: 1, TakerSide: model.OrderSideSell, Price: d("99"), Limit: 10, ExcludeID: b1})
	require.Nil(t, err)
	require.Empty(t, makers)
}

func TestHolds(t *testing.T) {
	s := memstore.New()

	err := s.Transaction(ctx, func(tx store.Tx) error {
		h, err := tx.LockHold(1, "USDT", model.HoldRefOrder, 5)
		require.Nil(t, err)
		require.Nil(t, h)
		return tx.CreateHold(&model.Hold{Owner: 1, Asset: "USDT", RefType: model.HoldRefOrder, RefID: 5, Amount: d("10"), Status: model.HoldStatusActive})
	})
	require.Nil(t, err)

	err = s.Transaction(ctx, func(tx store.Tx) error {
		h, err := tx.LockHold(1, "USDT", model.HoldRefOrder, 5)
		require.Nil(t, err)
		require.NotNil(t, h)
		h.Status = model.HoldStatusReleased
		return tx.SaveHold(h)
	})
	require.Nil(t, err)

	hs, err := s.ListHolds(ctx, 1, "USDT")
	require.Nil(t, err)
	require.Len(t, hs, 1)
	require.Equal(t, model.HoldStatusReleased, hs[0].Status)
}

func TestLockOrderNotFound(t *testing.T) {
	s := memstore.New()
	err := s.Transaction(ctx, func(tx store.Tx) error {
		_, err := tx.LockOrder(42)
		return err
	})
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestLockBalancesOrdered(t *testing.T) {
	s := memstore.New()
	err := s.Transaction(ctx, func(tx store.Tx) error {
		bs, err := store.LockBalancesOrdered(tx,
			store.BalanceKey{Owner: 2, Asset: "USDT"},
			store.BalanceKey{Owner: 1, Asset: "BTC"},
			store.BalanceKey{Owner: 2, Asset: "USDT"},
		)
		require.Nil(t, err)
		require.Len(t, bs, 2)
		return nil
	})
	require.Nil(t, err)
}
