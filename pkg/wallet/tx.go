package wallet

import (
	"context"
	"fmt"

	"ccspot/pkg/model"
	"ccspot/pkg/store"

	"github.com/shopspring/decimal"
)

// ReserveTx returns the active hold of refID unchanged when there is one,
// otherwise it locks amount of available funds under a new hold
func (s *Service) ReserveTx(ctx context.Context, tx store.Tx, owner int64, asset string, amount decimal.Decimal, refID int64) (*model.Hold, error) {
	a, err := s.Amount(ctx, asset, amount)
	if err != nil {
		return nil, err
	}

	b, err := tx.LockBalance(owner, asset)
	if err != nil {
		return nil, err
	}
	h, err := tx.LockHold(owner, asset, model.HoldRefOrder, refID)
	if err != nil {
		return nil, err
	}
	if h != nil && h.IsActive() {
		return h, nil
	}

	if b.Available.LessThan(a) {
		return nil, fmt.Errorf("%w: %d has %s %s, reserve %s", model.ErrInsufficientBalance, owner, b.Available, asset, a)
	}

	avail, locked := b.Available, b.Locked
	b.Available = b.Available.Sub(a)
	b.Locked = b.Locked.Add(a)
	if err := tx.SaveBalance(b); err != nil {
		return nil, err
	}

	h = &model.Hold{
		Owner:   owner,
		Asset:   asset,
		RefType: model.HoldRefOrder,
		RefID:   refID,
		Amount:  a,
		Status:  model.HoldStatusActive,
	}
	if err := tx.CreateHold(h); err != nil {
		return nil, err
	}

	return h, tx.AppendSnaps(model.NewSnap(b, avail, locked, model.SnapReserve, model.HoldRefOrder, refID))
}

// ReleaseTx returns min(amount, hold) to available and terminates the hold, it is a no-op without an active hold
func (s *Service) ReleaseTx(ctx context.Context, tx store.Tx, owner int64, asset string, amount decimal.Decimal, refID int64) (decimal.Decimal, error) {
	a, err := s.Amount(ctx, asset, amount)
	if err != nil {
		return decimal.Zero, err
	}

	b, err := tx.LockBalance(owner, asset)
	if err != nil {
		return decimal.Zero, err
	}
	h, err := tx.LockHold(owner, asset, model.HoldRefOrder, refID)
	if err != nil {
		return decimal.Zero, err
	}
	if h == nil || !h.IsActive() {
		return decimal.Zero, nil
	}

	rel := decimal.Min(a, h.Amount)
	if b.Locked.LessThan(rel) {
		return decimal.Zero, fmt.Errorf("%w: %d locked %s %s below hold %d release %s",
			model.ErrInsufficientBalance, owner, b.Locked, asset, h.ID, rel)
	}

	avail, locked := b.Available, b.Locked
	b.Locked = b.Locked.Sub(rel)
	b.Available = b.Available.Add(rel)
	if err := tx.SaveBalance(b); err != nil {
		return decimal.Zero, err
	}

	h.Amount = h.Amount.Sub(rel)
	h.Status = model.HoldStatusReleased
	if err := tx.SaveHold(h); err != nil {
		return decimal.Zero, err
	}

	return rel, tx.AppendSnaps(model.NewSnap(b, avail, locked, model.SnapRelease, model.HoldRefOrder, refID))
}

// CaptureTx spends min(amount, hold) of locked funds, the hold is CAPTURED once fully consumed.
// A terminated hold makes it a no-op. When refID never reserved anything the strict mode
// fails with ErrInconsistentLedger, the lenient mode decrements locked directly.
func (s *Service) CaptureTx(ctx context.Context, tx store.Tx, owner int64, asset string, amount decimal.Decimal, refID int64) (decimal.Decimal, error) {
	a, err := s.Amount(ctx, asset, amount)
	if err != nil {
		return decimal.Zero, err
	}

	b, err := tx.LockBalance(owner, asset)
	if err != nil {
		return decimal.Zero, err
	}
	h, err := tx.LockHold(owner, asset, model.HoldRefOrder, refID)
	if err != nil {
		return decimal.Zero, err
	}

	if h == nil {
		if s.strictCapture {
			return decimal.Zero, fmt.Errorf("%w: capture %s %s of %d without hold for order %d",
				model.ErrInconsistentLedger, a, asset, owner, refID)
		}
		logger.Warningf("capture %s %s of %d without hold for order %d, decrement locked directly", a, asset, owner, refID)
		if b.Locked.LessThan(a) {
			return decimal.Zero, fmt.Errorf("%w: %d locked %s %s, capture %s", model.ErrInsufficientBalance, owner, b.Locked, asset, a)
		}
		avail, locked := b.Available, b.Locked
		b.Locked = b.Locked.Sub(a)
		if err := tx.SaveBalance(b); err != nil {
			return decimal.Zero, err
		}
		return a, tx.AppendSnaps(model.NewSnap(b, avail, locked, model.SnapCapture, model.HoldRefOrder, refID))
	}

	if !h.IsActive() {
		return decimal.Zero, nil
	}

	c := decimal.Min(a, h.Amount)
	if b.Locked.LessThan(c) {
		return decimal.Zero, fmt.Errorf("%w: %d locked %s %s below hold %d capture %s",
			model.ErrInconsistentLedger, owner, b.Locked, asset, h.ID, c)
	}

	avail, locked := b.Available, b.Locked
	b.Locked = b.Locked.Sub(c)
	if err := tx.SaveBalance(b); err != nil {
		return decimal.Zero, err
	}

	h.Amount = h.Amount.Sub(c)
	if h.Amount.IsZero() {
		h.Status = model.HoldStatusCaptured
	}
	if err := tx.SaveHold(h); err != nil {
		return decimal.Zero, err
	}

	return c, tx.AppendSnaps(model.NewSnap(b, avail, locked, model.SnapCapture, model.HoldRefOrder, refID))
}

// HoldTx locks and returns the latest hold of order refID, nil when it never reserved
func (s *Service) HoldTx(ctx context.Context, tx store.Tx, owner int64, asset string, refID int64) (*model.Hold, error) {
	return tx.LockHold(owner, asset, model.HoldRefOrder, refID)
}

// CreditTx adds amount to available, reason names the audit row
func (s *Service) CreditTx(ctx context.Context, tx store.Tx, owner int64, asset string, amount decimal.Decimal, reason, refType string, refID int64) (*model.Balance, error) {
	a, err := s.Amount(ctx, asset, amount)
	if err != nil {
		return nil, err
	}

	b, err := tx.LockBalance(owner, asset)
	if err != nil {
		return nil, err
	}

	avail, locked := b.Available, b.Locked
	b.Available = b.Available.Add(a)
	if err := tx.SaveBalance(b); err != nil {
		return nil, err
	}
	return b, tx.AppendSnaps(model.NewSnap(b, avail, locked, reason, refType, refID))
}

// DebitTx takes amount from available, failing with ErrInsufficientBalance rather than going negative
func (s *Service) DebitTx(ctx context.Context, tx store.Tx, owner int64, asset string, amount decimal.Decimal, reason, refType string, refID int64) (*model.Balance, error) {
	a, err := s.Amount(ctx, asset, amount)
	if err != nil {
		return nil, err
	}

	b, err := tx.LockBalance(owner, asset)
	if err != nil {
		return nil, err
	}
	if b.Available.LessThan(a) {
		return nil, fmt.Errorf("%w: %d has %s %s, debit %s", model.ErrInsufficientBalance, owner, b.Available, asset, a)
	}

	avail, locked := b.Available, b.Locked
	b.Available = b.Available.Sub(a)
	if err := tx.SaveBalance(b); err != nil {
		return nil, err
	}
	return b, tx.AppendSnaps(model.NewSnap(b, avail, locked, reason, refType, refID))
}
