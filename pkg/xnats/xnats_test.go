package xnats_test

import (
	"encoding/json"
	"os"
	"testing"

	"ccspot/pkg/model"
	"ccspot/pkg/notify"
	"ccspot/pkg/xnats"

	"github.com/nats-io/nats.go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestOrderReq(t *testing.T) {
	var r xnats.OrderReq
	err := json.Unmarshal([]byte(`{"symbol":"btc_usdt","owner":3,"side":2,"type":1,"price":"100.5","quantity":"0.25","time":1660000000}`), &r)
	require.Nil(t, err)

	p := r.PlaceRequest()
	require.Equal(t, int64(3), p.Owner)
	require.Equal(t, model.OrderSideBuy, p.Side)
	require.True(t, p.Price.Equal(decimal.RequireFromString("100.5")))
	require.Equal(t, "SPOT.BTC_USDT.OrderReq", xnats.SubjectReq("SPOT", r.Symbol, xnats.MsgTypeOrderReq))
}

func TestCreateStream(t *testing.T) {
	url := os.Getenv("CCSPOT_NATS_URL")
	if url == "" {
		t.Skip("CCSPOT_NATS_URL not set")
	}

	nc, err := nats.Connect(url)
	require.Nil(t, err)
	defer nc.Close()

	js, err := nc.JetStream()
	require.Nil(t, err)

	require.Nil(t, notify.EnsureStream(js, "SPOTTEST"))
	// a second call finds the stream
	require.Nil(t, notify.EnsureStream(js, "SPOTTEST"))
}
