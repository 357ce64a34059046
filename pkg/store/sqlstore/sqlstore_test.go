package sqlstore_test

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"ccspot/pkg/catalog"
	"ccspot/pkg/model"
	"ccspot/pkg/store"
	"ccspot/pkg/store/sqlstore"

	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func open(t *testing.T) *sqlstore.Store {
	dsn := os.Getenv("CCSPOT_MYSQL_DSN")
	if dsn == "" {
		t.Skip("CCSPOT_MYSQL_DSN not set")
	}
	db, err := model.OpenMySQLDSN(dsn, 8, true)
	require.Nil(t, err)
	require.Nil(t, model.Migrate(db))
	return sqlstore.New(db)
}

func TestIsDeadlock(t *testing.T) {
	deadlock := &mysql.MySQLError{Number: 1213, Message: "Deadlock found when trying to get lock"}
	require.True(t, sqlstore.IsDeadlock(deadlock))
	require.True(t, sqlstore.IsDeadlock(fmt.Errorf("reserve: %w", deadlock)))
	require.False(t, sqlstore.IsDeadlock(&mysql.MySQLError{Number: 1062}))
	require.False(t, sqlstore.IsDeadlock(model.ErrNotFound))
	require.False(t, sqlstore.IsDeadlock(nil))
}

func TestBalanceVersion(t *testing.T) {
	s := open(t)
	ctx := context.Background()
	owner := int64(900001)

	var version int64
	err := s.Transaction(ctx, func(tx store.Tx) error {
		b, err := tx.LockBalance(owner, "USDT")
		if err != nil {
			return err
		}
		b.Available = b.Available.Add(decimal.NewFromInt(10))
		if err := tx.SaveBalance(b); err != nil {
			return err
		}
		version = b.Version
		return nil
	})
	require.Nil(t, err)

	b, err := s.GetBalance(ctx, owner, "USDT")
	require.Nil(t, err)
	require.Equal(t, version, b.Version)
}

func TestFindMakersOrdering(t *testing.T) {
	s := open(t)
	ctx := context.Background()
	marketID := 900000 + time.Now().UnixNano()%100000000

	var ids []int64
	for _, p := range []string{"101", "100", "100"} {
		o := &model.Order{Owner: 1, MarketID: marketID, Side: model.OrderSideSell, Type: model.OrderTypeLimit,
			Price: decimal.RequireFromString(p), Quantity: decimal.NewFromInt(1), Status: model.OrderStatusNew}
		require.Nil(t, s.Transaction(ctx, func(tx store.Tx) error { return tx.CreateOrder(o) }))
		ids = append(ids, o.ID)
	}

	makers, err := s.FindMakers(ctx, store.MakerQuery{MarketID: marketID, TakerSide: model.OrderSideBuy,
		Price: decimal.NewFromInt(101), Limit: 10})
	require.Nil(t, err)
	require.GreaterOrEqual(t, len(makers), 3)
	require.Equal(t, ids[1], makers[0].ID)
	require.Equal(t, ids[2], makers[1].ID)
}

func TestSeedKeepsInactiveAndZeroScale(t *testing.T) {
	s := open(t)
	ctx := context.Background()
	n := time.Now().UnixNano() % 100000000
	base := fmt.Sprintf("Z%d", n)

	cat := catalog.NewStatic()
	cat.AddAsset(model.Asset{Symbol: base, Scale: 0})
	cat.AddAsset(model.Asset{Symbol: "USDT", Scale: 2})
	cat.AddMarket(model.Market{ID: 800000000 + n, Symbol: base + "_USDT", BaseAsset: base, QuoteAsset: "USDT", Active: false})
	require.Nil(t, catalog.Seed(ctx, s, cat))

	a, err := s.GetAsset(ctx, base)
	require.Nil(t, err)
	require.Zero(t, a.Scale)

	m, err := s.GetMarketBySymbol(ctx, base+"_USDT")
	require.Nil(t, err)
	require.False(t, m.Active)
	require.Zero(t, m.BaseScale)
	require.Equal(t, int32(2), m.QuoteScale)
}

func TestConcurrentFirstTouch(t *testing.T) {
	s := open(t)
	ctx := context.Background()
	owner := 700000000 + time.Now().UnixNano()%100000000

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.Transaction(ctx, func(tx store.Tx) error {
				b, err := tx.LockBalance(owner, "USDT")
				if err != nil {
					return err
				}
				b.Available = b.Available.Add(decimal.NewFromInt(1))
				return tx.SaveBalance(b)
			})
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.Nil(t, err)
	}

	b, err := s.GetBalance(ctx, owner, "USDT")
	require.Nil(t, err)
	require.True(t, b.Available.Equal(decimal.NewFromInt(8)))
}
