// Package xnats order requests carried over NATS from ingress to the order service.
package xnats

import (
	"fmt"
	"strings"

	"ccspot/pkg/order"

	"github.com/shopspring/decimal"
)

// OrderReq structure for creating an order request, sent from ingress to the order service
type OrderReq struct {
	Symbol   string          `json:"symbol"`
	Owner    int64           `json:"owner"`
	Side     int8            `json:"side"`     // 1 sell ask, 2 buy bid
	Type     int8            `json:"type"`     // 1 limit
	Price    decimal.Decimal `json:"price"`    // limit price
	Quantity decimal.Decimal `json:"quantity"` // base quantity
	Time     int64           `json:"time"`     // request creation time, in nanoseconds
}

// CancelReq asks the order service to cancel an order of Owner
type CancelReq struct {
	OrderID int64 `json:"orderId"`
	Owner   int64 `json:"owner"`
	Time    int64 `json:"time"`
}

const (
	MsgTypeOrderReq  = "OrderReq"
	MsgTypeCancelReq = "CancelReq"
)

func (r OrderReq) PlaceRequest() order.PlaceRequest {
	return order.PlaceRequest{
		Owner:    r.Owner,
		Symbol:   r.Symbol,
		Side:     r.Side,
		Type:     r.Type,
		Price:    r.Price,
		Quantity: r.Quantity,
	}
}

// SubjectReq returns STREAM.SYMBOL.Type of a request, e.g. SPOT.BTC_USDT.OrderReq
func SubjectReq(stream, symbol, typ string) string {
	return fmt.Sprintf("%s.%s.%s", stream, strings.ToUpper(symbol), typ)
}
