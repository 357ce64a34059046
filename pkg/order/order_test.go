package order_test

import (
	"context"
	"testing"

	"ccspot/pkg/catalog"
	"ccspot/pkg/model"
	"ccspot/pkg/notify"
	"ccspot/pkg/order"
	"ccspot/pkg/store/memstore"
	"ccspot/pkg/wallet"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var ctx = context.Background()

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type fixture struct {
	cat    *catalog.Static
	st     *memstore.Store
	wallet *wallet.Service
	orders *order.Service
	sink   *notify.Memory
}

func newFixture(t *testing.T) *fixture {
	cat := catalog.NewStatic()
	cat.AddAsset(model.Asset{Symbol: "BTC", Scale: 8})
	cat.AddAsset(model.Asset{Symbol: "USDT", Scale: 2})
	cat.AddMarket(model.Market{ID: 1, Symbol: "BTC_USDT", BaseAsset: "BTC", QuoteAsset: "USDT", Active: true})
	cat.AddMarket(model.Market{ID: 2, Symbol: "ETH_USDT", BaseAsset: "ETH", QuoteAsset: "USDT", Active: false})

	st := memstore.New()
	w := wallet.New(st, cat)
	sink := notify.NewMemory()
	return &fixture{cat: cat, st: st, wallet: w, orders: order.New(st, cat, w, sink), sink: sink}
}

func (f *fixture) balance(t *testing.T, owner int64, asset string) *model.Balance {
	b, err := f.wallet.Balance(ctx, owner, asset)
	require.Nil(t, err)
	return b
}

func TestPlaceBuyAndCancel(t *testing.T) {
	f := newFixture(t)
	_, err := f.wallet.Deposit(ctx, 1, "USDT", d("60000"))
	require.Nil(t, err)

	o, err := f.orders.PlaceOrder(ctx, order.PlaceRequest{
		Owner: 1, MarketID: 1, Side: model.OrderSideBuy, Price: d("50000"), Quantity: d("1"),
	})
	require.Nil(t, err)
	require.Equal(t, model.OrderStatusNew, o.Status)
	require.True(t, f.balance(t, 1, "USDT").Locked.Equal(d("50000")))
	require.True(t, f.balance(t, 1, "USDT").Available.Equal(d("10000")))

	created := f.sink.OfType(notify.TypeOrderCreated)
	require.Len(t, created, 1)
	require.Equal(t, o.ID, created[0].(notify.OrderCreated).OrderID)
	require.Equal(t, "BUY", created[0].(notify.OrderCreated).Side)

	c, err := f.orders.CancelOrder(ctx, o.ID, 1)
	require.Nil(t, err)
	require.Equal(t, model.OrderStatusCanceled, c.Status)

	b := f.balance(t, 1, "USDT")
	require.True(t, b.Available.Equal(d("60000")))
	require.True(t, b.Locked.IsZero())
	require.Len(t, f.sink.OfType(notify.TypeOrderCanceled), 1)

	_, err = f.orders.CancelOrder(ctx, o.ID, 1)
	require.ErrorIs(t, err, model.ErrInvalidOrderState)
}

func TestPlaceSellNormalizes(t *testing.T) {
	f := newFixture(t)
	_, err := f.wallet.Deposit(ctx, 2, "BTC", d("1"))
	require.Nil(t, err)

	o, err := f.orders.PlaceOrder(ctx, order.PlaceRequest{
		Owner: 2, Symbol: "btc-usdt", Side: model.OrderSideSell, Price: d("50000.005"), Quantity: d("0.123456789"),
	})
	require.Nil(t, err)
	require.True(t, o.Price.Equal(d("50000.01")))
	require.True(t, o.Quantity.Equal(d("0.12345678")))
	require.True(t, f.balance(t, 2, "BTC").Locked.Equal(d("0.12345678")))
}

func TestPlaceValidation(t *testing.T) {
	f := newFixture(t)
	_, err := f.wallet.Deposit(ctx, 1, "USDT", d("100"))
	require.Nil(t, err)

	cases := []struct {
		name string
		req  order.PlaceRequest
		err  error
	}{
		{"zero quantity", order.PlaceRequest{Owner: 1, MarketID: 1, Side: model.OrderSideBuy, Price: d("1"), Quantity: decimal.Zero}, model.ErrInvalidOrder},
		{"negative price", order.PlaceRequest{Owner: 1, MarketID: 1, Side: model.OrderSideBuy, Price: d("-1"), Quantity: d("1")}, model.ErrInvalidOrder},
		{"market type", order.PlaceRequest{Owner: 1, MarketID: 1, Side: model.OrderSideBuy, Type: model.OrderTypeMarket, Price: d("1"), Quantity: d("1")}, model.ErrInvalidOrder},
		{"bad side", order.PlaceRequest{Owner: 1, MarketID: 1, Side: 7, Price: d("1"), Quantity: d("1")}, model.ErrInvalidOrder},
		{"dust quantity", order.PlaceRequest{Owner: 1, MarketID: 1, Side: model.OrderSideBuy, Price: d("1"), Quantity: d("0.000000001")}, model.ErrInvalidOrder},
		{"unknown market", order.PlaceRequest{Owner: 1, MarketID: 9, Side: model.OrderSideBuy, Price: d("1"), Quantity: d("1")}, model.ErrInvalidOrder},
		{"inactive market", order.PlaceRequest{Owner: 1, MarketID: 2, Side: model.OrderSideBuy, Price: d("1"), Quantity: d("1")}, model.ErrMarketInactive},
		{"insufficient", order.PlaceRequest{Owner: 1, MarketID: 1, Side: model.OrderSideBuy, Price: d("101"), Quantity: d("1")}, model.ErrInsufficientBalance},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := f.orders.PlaceOrder(ctx, c.req)
			require.ErrorIs(t, err, c.err)
		})
	}

	// nothing was left behind by the failed placements
	require.Empty(t, f.sink.Events())
	b := f.balance(t, 1, "USDT")
	require.True(t, b.Available.Equal(d("100")))
	require.True(t, b.Locked.IsZero())
}

func TestInsufficientLeavesNoOrder(t *testing.T) {
	f := newFixture(t)
	_, err := f.orders.PlaceOrder(ctx, order.PlaceRequest{Owner: 1, MarketID: 1, Side: model.OrderSideSell, Price: d("1"), Quantity: d("1")})
	require.ErrorIs(t, err, model.ErrInsufficientBalance)

	_, err = f.orders.GetOrder(ctx, 1)
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestCancelByOtherOwner(t *testing.T) {
	f := newFixture(t)
	_, err := f.wallet.Deposit(ctx, 1, "USDT", d("100"))
	require.Nil(t, err)
	o, err := f.orders.PlaceOrder(ctx, order.PlaceRequest{Owner: 1, MarketID: 1, Side: model.OrderSideBuy, Price: d("10"), Quantity: d("1")})
	require.Nil(t, err)

	_, err = f.orders.CancelOrder(ctx, o.ID, 2)
	require.ErrorIs(t, err, model.ErrNotFound)
	_, err = f.orders.CancelOrder(ctx, 999, 1)
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestCancelAfterHoldGone(t *testing.T) {
	f := newFixture(t)
	_, err := f.wallet.Deposit(ctx, 1, "USDT", d("100"))
	require.Nil(t, err)
	o, err := f.orders.PlaceOrder(ctx, order.PlaceRequest{Owner: 1, MarketID: 1, Side: model.OrderSideBuy, Price: d("10"), Quantity: d("1")})
	require.Nil(t, err)

	// funds already released elsewhere, cancel still succeeds
	_, err = f.wallet.Release(ctx, 1, "USDT", d("10"), o.ID)
	require.Nil(t, err)

	c, err := f.orders.CancelOrder(ctx, o.ID, 1)
	require.Nil(t, err)
	require.Equal(t, model.OrderStatusCanceled, c.Status)
	require.True(t, f.balance(t, 1, "USDT").Available.Equal(d("100")))
}

func TestDeliveryFailureDoesNotFailPlacement(t *testing.T) {
	f := newFixture(t)
	f.sink.Err = context.DeadlineExceeded
	_, err := f.wallet.Deposit(ctx, 1, "USDT", d("100"))
	require.Nil(t, err)

	o, err := f.orders.PlaceOrder(ctx, order.PlaceRequest{Owner: 1, MarketID: 1, Side: model.OrderSideBuy, Price: d("10"), Quantity: d("1")})
	require.Nil(t, err)
	require.NotZero(t, o.ID)
}

func TestPlaceReturnsStateAfterDelivery(t *testing.T) {
	f := newFixture(t)
	_, err := f.wallet.Deposit(ctx, 1, "USDT", d("100"))
	require.Nil(t, err)

	f.sink.Handler = func(ctx context.Context, ev notify.Event) {
		if c, ok := ev.(notify.OrderCreated); ok {
			_, err := f.orders.CancelOrder(ctx, c.OrderID, 1)
			require.Nil(t, err)
		}
	}

	o, err := f.orders.PlaceOrder(ctx, order.PlaceRequest{Owner: 1, MarketID: 1, Side: model.OrderSideBuy, Price: d("10"), Quantity: d("2")})
	require.Nil(t, err)
	require.Equal(t, model.OrderStatusCanceled, o.Status)
	require.True(t, f.balance(t, 1, "USDT").Available.Equal(d("100")))
}
