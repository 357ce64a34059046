// Package ome matching engine, pairs a taker with resting makers by price-time priority and settles every fill.
//
//  1. The taker is matched against the best crossing makers, a page of candidates at a time
//  2. Every fill is one short transaction: both orders, then the four balances, are locked and re-read
//  3. A trade-executed notification is published after the fill committed
package ome

import (
	"context"
	"errors"
	"fmt"

	"ccspot/pkg/catalog"
	"ccspot/pkg/config"
	"ccspot/pkg/model"
	"ccspot/pkg/notify"
	"ccspot/pkg/store"
	"ccspot/pkg/wallet"
	"ccspot/pkg/xlog"
)

var logger = xlog.GetLogger().Named("ome")

// maxIdlePages bounds consecutive candidate pages that produced no fill, e.g. when every candidate raced to terminal
const maxIdlePages = 2

type Engine struct {
	st     store.Store
	cat    catalog.Catalog
	wallet *wallet.Service
	sink   notify.Sink

	pageSize int
}

func New(st store.Store, cat catalog.Catalog, w *wallet.Service, sink notify.Sink, pageSize int) *Engine {
	if sink == nil {
		sink = notify.Nop{}
	}
	if pageSize <= 0 {
		pageSize = config.DefaultPageSize
	}
	return &Engine{
		st:       st,
		cat:      cat,
		wallet:   w,
		sink:     sink,
		pageSize: pageSize,
	}
}

// MatchOrder fills the taker against crossing makers until it is filled or nothing crosses.
// It returns the taker side trade rows, empty for an order that is already terminal.
func (e *Engine) MatchOrder(ctx context.Context, takerID int64) (trades []*model.Trade, err error) {
	defer func() {
		if err != nil {
			logger.Errorf("MatchOrder %d failed with err:%s", takerID, err)
		} else if len(trades) > 0 {
			logger.Debugf("MatchOrder %d done with %d trades", takerID, len(trades))
		}
	}()

	taker, err := e.st.GetOrder(ctx, takerID)
	if err != nil {
		return
	}
	trades = []*model.Trade{}
	if !taker.IsOpen() {
		return
	}
	if taker.Type != model.OrderTypeLimit {
		return nil, fmt.Errorf("%w: order %d is not a limit order", model.ErrInvalidOrder, takerID)
	}

	m, err := e.cat.MarketByID(ctx, taker.MarketID)
	if err != nil {
		return
	}

	q := store.MakerQuery{
		MarketID:  taker.MarketID,
		TakerSide: taker.Side,
		Price:     taker.Price,
		ExcludeID: taker.ID,
		Limit:     e.pageSize,
	}

	idle := 0
	for idle < maxIdlePages {
		if err = ctx.Err(); err != nil {
			return
		}

		var makers []*model.Order
		makers, err = e.st.FindMakers(ctx, q)
		if err != nil || len(makers) == 0 {
			return
		}

		progressed := false
		for _, maker := range makers {
			var f *fill
			f, err = e.fill(ctx, m, takerID, maker.ID)
			if err != nil {
				return
			}
			if f.takerClosed {
				return
			}
			if f.trade == nil {
				continue
			}

			progressed = true
			trades = append(trades, f.trade)
			notify.Deliver(ctx, e.sink, f.event)
			if f.takerFilled {
				return
			}
		}

		if progressed {
			idle = 0
		} else {
			idle++
		}
	}
	return
}

// HandleEvent matches the order of an OrderCreated notification, other events are ignored
func (e *Engine) HandleEvent(ctx context.Context, ev notify.Event) error {
	created, ok := ev.(notify.OrderCreated)
	if !ok {
		return nil
	}
	_, err := e.MatchOrder(ctx, created.OrderID)
	if errors.Is(err, model.ErrNotFound) {
		logger.Warningf("HandleEvent order %d of %s not found, skipped", created.OrderID, created.MarketSymbol)
		return nil
	}
	return err
}
