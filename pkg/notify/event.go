// Package notify carries domain events to downstream consumers, after the owning transaction committed.
package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	TypeOrderCreated  = "OrderCreated"
	TypeTradeExecuted = "TradeExecuted"
	TypeOrderCanceled = "OrderCanceled"
)

type Event interface {
	Type() string
	// Market returns the market symbol, used as subject token and partition key
	Market() string
}

type OrderCreated struct {
	OrderID      int64     `json:"orderId"`
	MarketSymbol string    `json:"marketSymbol"`
	Side         string    `json:"side"`
	Timestamp    time.Time `json:"timestamp"`
}

func (OrderCreated) Type() string     { return TypeOrderCreated }
func (e OrderCreated) Market() string { return e.MarketSymbol }

type TradeExecuted struct {
	TradeID      int64           `json:"tradeId"`
	MatchID      string          `json:"matchId"`
	MarketSymbol string          `json:"marketSymbol"`
	BuyOrderID   int64           `json:"buyOrderId"`
	SellOrderID  int64           `json:"sellOrderId"`
	Price        decimal.Decimal `json:"price"`
	Quantity     decimal.Decimal `json:"quantity"`
	QuoteAmount  decimal.Decimal `json:"quoteAmount"`
	ExecutedAt   time.Time       `json:"executedAt"`
}

func (TradeExecuted) Type() string     { return TypeTradeExecuted }
func (e TradeExecuted) Market() string { return e.MarketSymbol }

type OrderCanceled struct {
	OrderID      int64           `json:"orderId"`
	MarketSymbol string          `json:"marketSymbol"`
	Side         string          `json:"side"`
	Released     decimal.Decimal `json:"released"` // unfilled quantity whose reservation was returned
	Timestamp    time.Time       `json:"timestamp"`
}

func (OrderCanceled) Type() string     { return TypeOrderCanceled }
func (e OrderCanceled) Market() string { return e.MarketSymbol }

// Envelope is the wire form of every event
type Envelope struct {
	Type string          `json:"type"`
	ID   string          `json:"id"`
	Ts   int64           `json:"ts"` // unix milliseconds
	Data json.RawMessage `json:"data"`
}

// Encode wraps ev in a fresh envelope
func Encode(ev Event) (env Envelope, b []byte, err error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	env = Envelope{
		Type: ev.Type(),
		ID:   uuid.NewString(),
		Ts:   time.Now().UnixMilli(),
		Data: data,
	}
	b, err = json.Marshal(env)
	return
}

// Decode parses an envelope and its payload
func Decode(b []byte) (env Envelope, ev Event, err error) {
	if err = json.Unmarshal(b, &env); err != nil {
		return
	}

	switch env.Type {
	case TypeOrderCreated:
		var e OrderCreated
		err = json.Unmarshal(env.Data, &e)
		ev = e
	case TypeTradeExecuted:
		var e TradeExecuted
		err = json.Unmarshal(env.Data, &e)
		ev = e
	case TypeOrderCanceled:
		var e OrderCanceled
		err = json.Unmarshal(env.Data, &e)
		ev = e
	default:
		err = fmt.Errorf("unknown event type %q", env.Type)
	}
	return
}
