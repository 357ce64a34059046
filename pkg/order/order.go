// Package order places and cancels limit orders, reserving and releasing their funds through the wallet.
package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ccspot/pkg/catalog"
	"ccspot/pkg/model"
	"ccspot/pkg/notify"
	"ccspot/pkg/store"
	"ccspot/pkg/wallet"
	"ccspot/pkg/xlog"

	"github.com/shopspring/decimal"
)

var logger = xlog.GetLogger().Named("order")

type PlaceRequest struct {
	Owner    int64           `json:"owner" binding:"required"`
	MarketID int64           `json:"marketId"`
	Symbol   string          `json:"symbol"` // used when MarketID is zero
	Side     int8            `json:"side" binding:"required"`
	Type     int8            `json:"type"` // defaults to limit
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
}

type Service struct {
	st     store.Store
	cat    catalog.Catalog
	wallet *wallet.Service
	sink   notify.Sink
}

func New(st store.Store, cat catalog.Catalog, w *wallet.Service, sink notify.Sink) *Service {
	if sink == nil {
		sink = notify.Nop{}
	}
	return &Service{st: st, cat: cat, wallet: w, sink: sink}
}

func (s *Service) market(ctx context.Context, id int64, symbol string) (*model.Market, error) {
	var m *model.Market
	var err error
	if id != 0 {
		m, err = s.cat.MarketByID(ctx, id)
	} else {
		m, err = s.cat.MarketBySymbol(ctx, symbol)
	}
	if errors.Is(err, model.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", model.ErrInvalidOrder, err)
	}
	return m, err
}

// reservation returns the asset and amount an order holds for qty of unfilled quantity
func reservation(m *model.Market, o *model.Order, qty decimal.Decimal) (string, decimal.Decimal) {
	if o.IsBuy() {
		return m.QuoteAsset, model.RoundAmount(o.Price.Mul(qty), m.QuoteScale)
	}
	return m.BaseAsset, qty
}

// PlaceOrder persists a NEW limit order and reserves its funds in one transaction
func (s *Service) PlaceOrder(ctx context.Context, req PlaceRequest) (o *model.Order, err error) {
	defer func() {
		if err != nil {
			logger.Infof("place order of %d rejected: %s", req.Owner, err)
		}
	}()

	if req.Type == 0 {
		req.Type = model.OrderTypeLimit
	}
	if req.Type != model.OrderTypeLimit {
		return nil, fmt.Errorf("%w: only limit orders are matched", model.ErrInvalidOrder)
	}
	if req.Side != model.OrderSideBuy && req.Side != model.OrderSideSell {
		return nil, fmt.Errorf("%w: side %d", model.ErrInvalidOrder, req.Side)
	}
	if !req.Quantity.IsPositive() {
		return nil, fmt.Errorf("%w: quantity %s", model.ErrInvalidOrder, req.Quantity)
	}
	if !req.Price.IsPositive() {
		return nil, fmt.Errorf("%w: price %s", model.ErrInvalidOrder, req.Price)
	}

	m, err := s.market(ctx, req.MarketID, req.Symbol)
	if err != nil {
		return
	}
	if !m.Active {
		return nil, fmt.Errorf("%w: %s", model.ErrMarketInactive, m.Symbol)
	}

	price := model.RoundAmount(req.Price, m.QuoteScale)
	qty := model.TruncQty(req.Quantity, m.BaseScale)
	if !price.IsPositive() || !qty.IsPositive() {
		return nil, fmt.Errorf("%w: price %s quantity %s below market scale", model.ErrInvalidOrder, req.Price, req.Quantity)
	}

	o = &model.Order{
		Owner:    req.Owner,
		MarketID: m.ID,
		Symbol:   m.Symbol,
		Side:     req.Side,
		Type:     req.Type,
		Price:    price,
		Quantity: qty,
		Filled:   decimal.Zero,
		Status:   model.OrderStatusNew,
	}

	err = s.st.Transaction(ctx, func(tx store.Tx) error {
		if err := tx.CreateOrder(o); err != nil {
			return err
		}
		asset, amount := reservation(m, o, qty)
		if !amount.IsPositive() {
			return fmt.Errorf("%w: reservation of %s %s rounds to zero", model.ErrInvalidOrder, asset, amount)
		}
		_, err := s.wallet.ReserveTx(ctx, tx, o.Owner, asset, amount, o.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	notify.Deliver(ctx, s.sink, notify.OrderCreated{
		OrderID:      o.ID,
		MarketSymbol: o.Symbol,
		Side:         model.SideName(o.Side),
		Timestamp:    o.CreatedAt,
	})

	// an in-process sink may have matched the order already
	if cur, err := s.st.GetOrder(ctx, o.ID); err == nil {
		o = cur
	}
	return o, nil
}

// CancelOrder releases the reservation of the unfilled remainder and marks the order CANCELED
func (s *Service) CancelOrder(ctx context.Context, orderID, owner int64) (o *model.Order, err error) {
	peek, err := s.st.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if peek.Owner != owner {
		return nil, fmt.Errorf("%w: order %d", model.ErrNotFound, orderID)
	}
	m, err := s.cat.MarketByID(ctx, peek.MarketID)
	if err != nil {
		return nil, err
	}

	var remaining decimal.Decimal
	err = s.st.Transaction(ctx, func(tx store.Tx) error {
		var err error
		o, err = tx.LockOrder(orderID)
		if err != nil {
			return err
		}
		if !o.CanTransition(model.OrderStatusCanceled) {
			return fmt.Errorf("%w: order %d is %s", model.ErrInvalidOrderState, o.ID, model.StatusName(o.Status))
		}

		remaining = o.Remaining()
		asset, amount := reservation(m, o, remaining)
		if amount.IsPositive() {
			if _, err := s.wallet.ReleaseTx(ctx, tx, o.Owner, asset, amount, o.ID); err != nil {
				logger.Warningf("cancel order %d release %s %s failed, err: %s", o.ID, amount, asset, err)
			}
		}

		o.Status = model.OrderStatusCanceled
		return tx.SaveOrder(o)
	})
	if err != nil {
		return nil, err
	}

	notify.Deliver(ctx, s.sink, notify.OrderCanceled{
		OrderID:      o.ID,
		MarketSymbol: o.Symbol,
		Side:         model.SideName(o.Side),
		Released:     remaining,
		Timestamp:    time.Now(),
	})
	return o, nil
}

func (s *Service) GetOrder(ctx context.Context, id int64) (*model.Order, error) {
	return s.st.GetOrder(ctx, id)
}

func (s *Service) Trades(ctx context.Context, orderID int64) ([]*model.Trade, error) {
	return s.st.ListTrades(ctx, orderID)
}
