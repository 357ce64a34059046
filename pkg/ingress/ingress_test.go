package ingress_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"ccspot/pkg/catalog"
	"ccspot/pkg/ingress"
	"ccspot/pkg/model"
	"ccspot/pkg/notify"
	"ccspot/pkg/order"
	"ccspot/pkg/store/memstore"
	"ccspot/pkg/wallet"
	"ccspot/pkg/xnats"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var ctx = context.Background()

type countingSender struct {
	mu   sync.Mutex
	reqs []xnats.OrderReq
}

func (s *countingSender) SendOrderReq(ctx context.Context, req xnats.OrderReq) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reqs = append(s.reqs, req)
	return nil
}

func TestGenerator(t *testing.T) {
	g := ingress.NewGenerator([]string{"BTC_USDT", "ETH_USDT"}, 1)
	g.Concurrency = 4
	s := &countingSender{}

	st := g.Run(ctx, s, 500)
	require.Equal(t, int64(500), st.Sent)
	require.Zero(t, st.Failed)
	require.Len(t, s.reqs, 500)

	for _, r := range s.reqs {
		require.Contains(t, []string{"BTC_USDT", "ETH_USDT"}, r.Symbol)
		require.Contains(t, []int8{model.OrderSideSell, model.OrderSideBuy}, r.Side)
		require.True(t, r.Price.GreaterThanOrEqual(decimal.NewFromInt(10)))
		require.True(t, r.Price.LessThan(decimal.NewFromInt(110)))
		require.True(t, r.Quantity.IsPositive())
		require.True(t, r.Owner >= 1 && r.Owner <= 1000)
	}
}

func newOrders(t *testing.T) (*order.Service, *wallet.Service) {
	cat := catalog.NewStatic()
	cat.AddAsset(model.Asset{Symbol: "BTC", Scale: 8})
	cat.AddAsset(model.Asset{Symbol: "USDT", Scale: 2})
	cat.AddMarket(model.Market{ID: 1, Symbol: "BTC_USDT", BaseAsset: "BTC", QuoteAsset: "USDT", Active: true})
	st := memstore.New()
	w := wallet.New(st, cat)
	return order.New(st, cat, w, notify.Nop{}), w
}

func TestDirectSenderCountsRejections(t *testing.T) {
	orders, w := newOrders(t)
	g := ingress.NewGenerator([]string{"BTC_USDT"}, 2)
	g.Owners = 2
	for owner := int64(1); owner <= 2; owner++ {
		_, err := w.Deposit(ctx, owner, "USDT", decimal.NewFromInt(1_000_000))
		require.Nil(t, err)
		_, err = w.Deposit(ctx, owner, "BTC", decimal.NewFromInt(1_000_000))
		require.Nil(t, err)
	}

	st := g.Run(ctx, &ingress.DirectSender{Orders: orders}, 200)
	require.Equal(t, int64(200), st.Sent)

	// an owner without funds is refused but still counted
	g.Owners = 5
	st = g.Run(ctx, &ingress.DirectSender{Orders: orders}, 200)
	require.Equal(t, int64(200), st.Sent+st.Failed)
	require.Positive(t, st.Failed)
}

func TestHandle(t *testing.T) {
	orders, w := newOrders(t)
	_, err := w.Deposit(ctx, 1, "USDT", decimal.NewFromInt(100))
	require.Nil(t, err)

	data, err := json.Marshal(xnats.OrderReq{Symbol: "BTC_USDT", Owner: 1, Side: model.OrderSideBuy, Price: decimal.NewFromInt(10), Quantity: decimal.NewFromInt(2)})
	require.Nil(t, err)
	require.Nil(t, ingress.Handle(ctx, orders, xnats.MsgTypeOrderReq, data))

	b, err := w.Balance(ctx, 1, "USDT")
	require.Nil(t, err)
	require.True(t, b.Locked.Equal(decimal.NewFromInt(20)))

	data, err = json.Marshal(xnats.CancelReq{OrderID: 1, Owner: 1})
	require.Nil(t, err)
	require.Nil(t, ingress.Handle(ctx, orders, xnats.MsgTypeCancelReq, data))
	b, err = w.Balance(ctx, 1, "USDT")
	require.Nil(t, err)
	require.True(t, b.Locked.IsZero())

	require.Error(t, ingress.Handle(ctx, orders, xnats.MsgTypeOrderReq, []byte("{")))
	require.Error(t, ingress.Handle(ctx, orders, "Bogus", nil))
}
