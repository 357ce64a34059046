// Package sqlstore implements store.Store on gorm, row locks are SELECT ... FOR UPDATE.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ccspot/pkg/model"
	"ccspot/pkg/store"
	"ccspot/pkg/xlog"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var logger = xlog.GetLogger().Named("sqlstore")

// ErrStaleBalance is returned when a balance changed underneath a locked handle
var ErrStaleBalance = errors.New("stale balance version")

type Store struct {
	db *gorm.DB
}

var _ store.Store = (*Store)(nil)

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) DB() *gorm.DB {
	return s.db
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.ErrNotFound
	}
	return err
}

// mysqlDeadlock is ER_LOCK_DEADLOCK, the victim transaction is rolled back as a whole
const mysqlDeadlock = 1213

func IsDeadlock(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDeadlock
}

// Transaction runs fn a second time when the first run was chosen as a deadlock victim
func (s *Store) Transaction(ctx context.Context, fn func(tx store.Tx) error) (err error) {
	for round := 1; ; round++ {
		err = s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
			return fn(&tx{db: db})
		})
		if round > 1 || !IsDeadlock(err) {
			return
		}
		logger.Warningf("round:%d deadlock, retrying: %s", round, err)
	}
}

func (s *Store) GetOrder(ctx context.Context, id int64) (*model.Order, error) {
	var o model.Order
	if err := s.db.WithContext(ctx).Take(&o, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &o, nil
}

func (s *Store) GetBalance(ctx context.Context, owner int64, asset string) (*model.Balance, error) {
	var b model.Balance
	err := s.db.WithContext(ctx).Where("owner = ? AND asset = ?", owner, asset).Take(&b).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &b, nil
}

func (s *Store) ListBalances(ctx context.Context, owner int64) ([]*model.Balance, error) {
	var out []*model.Balance
	err := s.db.WithContext(ctx).Where("owner = ?", owner).Order("asset").Find(&out).Error
	return out, err
}

func (s *Store) ListTrades(ctx context.Context, orderID int64) ([]*model.Trade, error) {
	var out []*model.Trade
	err := s.db.WithContext(ctx).Where("order_id = ?", orderID).Order("id").Find(&out).Error
	return out, err
}

func (s *Store) ListHolds(ctx context.Context, owner int64, asset string) ([]*model.Hold, error) {
	var out []*model.Hold
	err := s.db.WithContext(ctx).Where("owner = ? AND asset = ?", owner, asset).Order("id").Find(&out).Error
	return out, err
}

func (s *Store) ListSnaps(ctx context.Context, owner int64, asset string) ([]*model.BalanceSnap, error) {
	var out []*model.BalanceSnap
	err := s.db.WithContext(ctx).Where("owner = ? AND asset = ?", owner, asset).Order("id").Find(&out).Error
	return out, err
}

func (s *Store) FindMakers(ctx context.Context, q store.MakerQuery) ([]*model.Order, error) {
	return findMakers(s.db.WithContext(ctx), q)
}

func findMakers(db *gorm.DB, q store.MakerQuery) ([]*model.Order, error) {
	db = db.Where("market_id = ? AND side = ? AND status IN ?", q.MarketID, q.MakerSide(),
		[]int8{model.OrderStatusNew, model.OrderStatusPartiallyFilled})
	if q.TakerSide == model.OrderSideBuy {
		db = db.Where("price <= ?", q.Price).Order("price ASC")
	} else {
		db = db.Where("price >= ?", q.Price).Order("price DESC")
	}
	if q.ExcludeID != 0 {
		db = db.Where("id <> ?", q.ExcludeID)
	}
	if q.Limit > 0 {
		db = db.Limit(q.Limit)
	}

	var out []*model.Order
	err := db.Order("created_at ASC").Order("id ASC").Find(&out).Error
	return out, err
}

func (s *Store) GetMarket(ctx context.Context, id int64) (*model.Market, error) {
	var m model.Market
	if err := s.db.WithContext(ctx).Take(&m, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

func (s *Store) GetMarketBySymbol(ctx context.Context, symbol string) (*model.Market, error) {
	var m model.Market
	err := s.db.WithContext(ctx).Where("symbol = ?", model.NormalizeSymbol(symbol)).Take(&m).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

func (s *Store) ListMarkets(ctx context.Context) ([]*model.Market, error) {
	var out []*model.Market
	err := s.db.WithContext(ctx).Order("id").Find(&out).Error
	return out, err
}

func (s *Store) SaveMarket(ctx context.Context, m *model.Market) error {
	return s.db.WithContext(ctx).Save(m).Error
}

func (s *Store) SaveAsset(ctx context.Context, a *model.Asset) error {
	return s.db.WithContext(ctx).Save(a).Error
}

func (s *Store) GetAsset(ctx context.Context, symbol string) (*model.Asset, error) {
	var a model.Asset
	if err := s.db.WithContext(ctx).Where("symbol = ?", symbol).Take(&a).Error; err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

type tx struct {
	db *gorm.DB
}

var _ store.Tx = (*tx)(nil)

func (t *tx) locking() *gorm.DB {
	return t.db.Clauses(clause.Locking{Strength: "UPDATE"})
}

// LockBalance makes sure the row exists before locking it: a locking read of a missing row
// takes a gap lock, and two first touches inserting under gap locks deadlock each other
func (t *tx) LockBalance(owner int64, asset string) (*model.Balance, error) {
	var n int64
	err := t.db.Model(&model.Balance{}).Where("owner = ? AND asset = ?", owner, asset).Count(&n).Error
	if err != nil {
		return nil, err
	}
	if n == 0 {
		zero := model.Balance{Owner: owner, Asset: asset}
		err = t.db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "owner"}, {Name: "asset"}},
			DoNothing: true,
		}).Create(&zero).Error
		if err != nil {
			return nil, err
		}
	}

	var b model.Balance
	if err := t.locking().Where("owner = ? AND asset = ?", owner, asset).Take(&b).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

func (t *tx) SaveBalance(b *model.Balance) error {
	if !b.Valid() {
		return fmt.Errorf("%w: negative balance %d/%s", model.ErrInsufficientBalance, b.Owner, b.Asset)
	}
	now := time.Now()
	res := t.db.Model(&model.Balance{}).
		Where("id = ? AND version = ?", b.ID, b.Version).
		Updates(map[string]interface{}{
			"available":  b.Available,
			"locked":     b.Locked,
			"version":    b.Version + 1,
			"updated_at": now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %d/%s v%d", ErrStaleBalance, b.Owner, b.Asset, b.Version)
	}
	b.Version++
	b.UpdatedAt = now
	return nil
}

func (t *tx) LockHold(owner int64, asset, refType string, refID int64) (*model.Hold, error) {
	var h model.Hold
	err := t.locking().
		Where("owner = ? AND asset = ? AND ref_type = ? AND ref_id = ?", owner, asset, refType, refID).
		Order("id DESC").
		Take(&h).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func (t *tx) CreateHold(h *model.Hold) error {
	return t.db.Create(h).Error
}

func (t *tx) SaveHold(h *model.Hold) error {
	return t.db.Save(h).Error
}

func (t *tx) CreateOrder(o *model.Order) error {
	return t.db.Create(o).Error
}

func (t *tx) LockOrder(id int64) (*model.Order, error) {
	var o model.Order
	if err := t.locking().Take(&o, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &o, nil
}

func (t *tx) SaveOrder(o *model.Order) error {
	return t.db.Save(o).Error
}

func (t *tx) FindMakers(q store.MakerQuery) ([]*model.Order, error) {
	return findMakers(t.db, q)
}

func (t *tx) CreateTrades(trades ...*model.Trade) error {
	if len(trades) == 0 {
		return nil
	}
	return t.db.Create(trades).Error
}

func (t *tx) AppendSnaps(snaps ...*model.BalanceSnap) error {
	if len(snaps) == 0 {
		return nil
	}
	return t.db.Create(snaps).Error
}
