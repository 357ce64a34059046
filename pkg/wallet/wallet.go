// Package wallet moves funds between available and locked through holds.
//
// A hold is created by a reservation and terminated exactly once, either by a release
// that returns it to available or by a capture that spends it. Repeating a release or
// a capture on a terminated hold changes nothing.
//
// Every public operation runs in its own transaction. The *Tx variants run on a caller's
// transaction so placement, cancellation and settlement stay atomic.
package wallet

import (
	"context"
	"errors"
	"fmt"

	"ccspot/pkg/catalog"
	"ccspot/pkg/model"
	"ccspot/pkg/store"
	"ccspot/pkg/xlog"

	"github.com/shopspring/decimal"
)

var logger = xlog.GetLogger().Named("wallet")

type Service struct {
	st  store.Store
	cat catalog.Catalog

	strictCapture bool
}

type Option func(*Service)

// WithStrictCapture false turns a capture without any hold into a direct locked decrement
func WithStrictCapture(strict bool) Option {
	return func(s *Service) {
		s.strictCapture = strict
	}
}

func New(st store.Store, cat catalog.Catalog, opts ...Option) *Service {
	s := &Service{
		st:            st,
		cat:           cat,
		strictCapture: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// callerError reports errors caused by the request rather than by the system
func callerError(err error) bool {
	return errors.Is(err, model.ErrInvalidAmount) ||
		errors.Is(err, model.ErrInsufficientBalance) ||
		errors.Is(err, model.ErrNotFound)
}

func logFailure(op string, err error) {
	if err == nil {
		return
	}
	if callerError(err) {
		logger.Debugf("%s rejected: %s", op, err)
		return
	}
	logger.Errorf("%s failed: %s", op, err)
}

// Amount validates a positive amount and rounds it half-up to the asset scale
func (s *Service) Amount(ctx context.Context, asset string, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s %s", model.ErrInvalidAmount, amount, asset)
	}
	a := model.RoundAmount(amount, s.cat.AssetScale(ctx, asset))
	if !a.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s %s rounds to zero", model.ErrInvalidAmount, amount, asset)
	}
	return a, nil
}

// Reserve moves amount from available to locked under a hold of order refID
func (s *Service) Reserve(ctx context.Context, owner int64, asset string, amount decimal.Decimal, refID int64) (h *model.Hold, err error) {
	defer func() { logFailure("reserve", err) }()

	err = s.st.Transaction(ctx, func(tx store.Tx) error {
		h, err = s.ReserveTx(ctx, tx, owner, asset, amount, refID)
		return err
	})
	return
}

// Release returns up to amount of the hold of order refID to available
func (s *Service) Release(ctx context.Context, owner int64, asset string, amount decimal.Decimal, refID int64) (released decimal.Decimal, err error) {
	defer func() { logFailure("release", err) }()

	err = s.st.Transaction(ctx, func(tx store.Tx) error {
		released, err = s.ReleaseTx(ctx, tx, owner, asset, amount, refID)
		return err
	})
	return
}

// Capture spends up to amount of the hold of order refID
func (s *Service) Capture(ctx context.Context, owner int64, asset string, amount decimal.Decimal, refID int64) (captured decimal.Decimal, err error) {
	defer func() { logFailure("capture", err) }()

	err = s.st.Transaction(ctx, func(tx store.Tx) error {
		captured, err = s.CaptureTx(ctx, tx, owner, asset, amount, refID)
		return err
	})
	return
}

func (s *Service) Deposit(ctx context.Context, owner int64, asset string, amount decimal.Decimal) (b *model.Balance, err error) {
	defer func() { logFailure("deposit", err) }()

	err = s.st.Transaction(ctx, func(tx store.Tx) error {
		b, err = s.CreditTx(ctx, tx, owner, asset, amount, model.SnapDeposit, "", 0)
		return err
	})
	return
}

func (s *Service) Withdraw(ctx context.Context, owner int64, asset string, amount decimal.Decimal) (b *model.Balance, err error) {
	defer func() { logFailure("withdraw", err) }()

	err = s.st.Transaction(ctx, func(tx store.Tx) error {
		b, err = s.DebitTx(ctx, tx, owner, asset, amount, model.SnapWithdraw, "", 0)
		return err
	})
	return
}

// Transfer moves available funds between two owners, reason is kept on the audit rows
func (s *Service) Transfer(ctx context.Context, from, to int64, asset string, amount decimal.Decimal, reason string, refID int64) (err error) {
	defer func() { logFailure("transfer", err) }()

	if from == to {
		return fmt.Errorf("%w: transfer to self", model.ErrInvalidAmount)
	}
	a, err := s.Amount(ctx, asset, amount)
	if err != nil {
		return
	}

	err = s.st.Transaction(ctx, func(tx store.Tx) error {
		fk := store.BalanceKey{Owner: from, Asset: asset}
		tk := store.BalanceKey{Owner: to, Asset: asset}
		bs, err := store.LockBalancesOrdered(tx, fk, tk)
		if err != nil {
			return err
		}
		src, dst := bs[fk], bs[tk]
		if src.Available.LessThan(a) {
			return fmt.Errorf("%w: %d has %s %s, transfer %s", model.ErrInsufficientBalance, from, src.Available, asset, a)
		}

		srcAvail, srcLocked := src.Available, src.Locked
		dstAvail, dstLocked := dst.Available, dst.Locked
		src.Available = src.Available.Sub(a)
		dst.Available = dst.Available.Add(a)

		if err := tx.SaveBalance(src); err != nil {
			return err
		}
		if err := tx.SaveBalance(dst); err != nil {
			return err
		}

		out := model.NewSnap(src, srcAvail, srcLocked, model.SnapTransferOut, model.SnapRefTransfer, refID)
		in := model.NewSnap(dst, dstAvail, dstLocked, model.SnapTransferIn, model.SnapRefTransfer, refID)
		out.Memo, in.Memo = memo(reason), memo(reason)
		return tx.AppendSnaps(out, in)
	})
	return
}

func memo(s string) string {
	if len(s) > 64 {
		return s[:64]
	}
	return s
}

// Balance returns a zero balance for an (owner, asset) never touched
func (s *Service) Balance(ctx context.Context, owner int64, asset string) (*model.Balance, error) {
	b, err := s.st.GetBalance(ctx, owner, asset)
	if errors.Is(err, model.ErrNotFound) {
		return &model.Balance{Owner: owner, Asset: asset}, nil
	}
	return b, err
}

func (s *Service) Balances(ctx context.Context, owner int64) ([]*model.Balance, error) {
	return s.st.ListBalances(ctx, owner)
}

func (s *Service) Holds(ctx context.Context, owner int64, asset string) ([]*model.Hold, error) {
	return s.st.ListHolds(ctx, owner, asset)
}
