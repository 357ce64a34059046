package ome

import (
	"context"
	"fmt"
	"time"

	"ccspot/pkg/model"
	"ccspot/pkg/notify"
	"ccspot/pkg/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type fill struct {
	takerClosed bool // taker was terminal when locked
	takerFilled bool // taker became FILLED by this fill

	trade *model.Trade // taker side row, nil when the maker was skipped
	event notify.TradeExecuted
}

// fill executes at most one trade between taker and maker in its own transaction
func (e *Engine) fill(ctx context.Context, m *model.Market, takerID, makerID int64) (f *fill, err error) {
	f = &fill{}

	err = e.st.Transaction(ctx, func(tx store.Tx) error {
		os, err := store.LockOrdersOrdered(tx, takerID, makerID)
		if err != nil {
			return err
		}
		taker, maker := os[0], os[1]

		if !taker.IsOpen() {
			f.takerClosed = true
			return nil
		}
		if !maker.IsOpen() || maker.Side == taker.Side {
			return nil
		}

		q := store.MakerQuery{TakerSide: taker.Side, Price: taker.Price}
		if !q.Crosses(maker.Price) {
			return nil
		}

		qty := model.TruncQty(decimal.Min(taker.Remaining(), maker.Remaining()), m.BaseScale)
		if !qty.IsPositive() {
			return nil
		}
		price := maker.Price
		quote := model.RoundAmount(price.Mul(qty), m.QuoteScale)

		buyer, seller := taker, maker
		if !taker.IsBuy() {
			buyer, seller = maker, taker
		}

		if err := e.settle(ctx, tx, m, buyer, seller, qty, quote); err != nil {
			return err
		}

		if err := taker.Fill(qty); err != nil {
			return fmt.Errorf("fill taker %d: %w", taker.ID, err)
		}
		if err := maker.Fill(qty); err != nil {
			return fmt.Errorf("fill maker %d: %w", maker.ID, err)
		}
		if err := tx.SaveOrder(taker); err != nil {
			return err
		}
		if err := tx.SaveOrder(maker); err != nil {
			return err
		}

		now := time.Now()
		matchID := uuid.NewString()
		row := func(o, counter *model.Order) *model.Trade {
			return &model.Trade{
				MatchID:        matchID,
				OrderID:        o.ID,
				CounterOrderID: counter.ID,
				Owner:          o.Owner,
				MarketID:       m.ID,
				Symbol:         m.Symbol,
				Side:           o.Side,
				Maker:          o.ID == maker.ID,
				Price:          price,
				Quantity:       qty,
				QuoteAmount:    quote,
				ExecutedAt:     now,
			}
		}
		takerRow, makerRow := row(taker, maker), row(maker, taker)
		if err := tx.CreateTrades(takerRow, makerRow); err != nil {
			return err
		}

		f.trade = takerRow
		f.takerFilled = taker.Status == model.OrderStatusFilled
		f.event = notify.TradeExecuted{
			TradeID:      takerRow.ID,
			MatchID:      matchID,
			MarketSymbol: m.Symbol,
			BuyOrderID:   buyer.ID,
			SellOrderID:  seller.ID,
			Price:        price,
			Quantity:     qty,
			QuoteAmount:  quote,
			ExecutedAt:   now,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

// settle moves the funds of one trade, the four balances are locked up front in the global order
//
//	buyer:  hold of quote shrinks to round(limit price * remaining after fill), quote is spent, the rest refunded
//	seller: qty of base is spent from the hold, quote credited
//	buyer:  qty of base credited
func (e *Engine) settle(ctx context.Context, tx store.Tx, m *model.Market, buyer, seller *model.Order, qty, quote decimal.Decimal) error {
	_, err := store.LockBalancesOrdered(tx,
		store.BalanceKey{Owner: buyer.Owner, Asset: m.QuoteAsset},
		store.BalanceKey{Owner: buyer.Owner, Asset: m.BaseAsset},
		store.BalanceKey{Owner: seller.Owner, Asset: m.QuoteAsset},
		store.BalanceKey{Owner: seller.Owner, Asset: m.BaseAsset},
	)
	if err != nil {
		return err
	}

	consume := quote
	h, err := e.wallet.HoldTx(ctx, tx, buyer.Owner, m.QuoteAsset, buyer.ID)
	if err != nil {
		return err
	}
	if h != nil && h.IsActive() {
		keep := model.RoundAmount(buyer.Price.Mul(buyer.Remaining().Sub(qty)), m.QuoteScale)
		consume = decimal.Min(decimal.Max(h.Amount.Sub(keep), quote), h.Amount)
	}

	if consume.IsPositive() {
		captured, err := e.wallet.CaptureTx(ctx, tx, buyer.Owner, m.QuoteAsset, consume, buyer.ID)
		if err != nil {
			return err
		}
		if captured.LessThan(quote) {
			return fmt.Errorf("%w: order %d captured %s %s, trade needs %s",
				model.ErrInconsistentLedger, buyer.ID, captured, m.QuoteAsset, quote)
		}
		if refund := captured.Sub(quote); refund.IsPositive() {
			if _, err := e.wallet.CreditTx(ctx, tx, buyer.Owner, m.QuoteAsset, refund, model.SnapRefund, model.HoldRefOrder, buyer.ID); err != nil {
				return err
			}
		}
	}

	captured, err := e.wallet.CaptureTx(ctx, tx, seller.Owner, m.BaseAsset, qty, seller.ID)
	if err != nil {
		return err
	}
	if captured.LessThan(qty) {
		return fmt.Errorf("%w: order %d captured %s %s, trade needs %s",
			model.ErrInconsistentLedger, seller.ID, captured, m.BaseAsset, qty)
	}

	if quote.IsPositive() {
		if _, err := e.wallet.CreditTx(ctx, tx, seller.Owner, m.QuoteAsset, quote, model.SnapTrade, model.HoldRefOrder, seller.ID); err != nil {
			return err
		}
	}
	_, err = e.wallet.CreditTx(ctx, tx, buyer.Owner, m.BaseAsset, qty, model.SnapTrade, model.HoldRefOrder, buyer.ID)
	return err
}
