// Package catalog resolves markets and asset scales for the ledger and the matcher.
package catalog

import (
	"context"
	"fmt"
	"sync"

	"ccspot/pkg/config"
	"ccspot/pkg/model"
	"ccspot/pkg/store"
	"ccspot/pkg/xlog"
)

var logger = xlog.GetLogger()

type Catalog interface {
	MarketByID(ctx context.Context, id int64) (*model.Market, error)
	MarketBySymbol(ctx context.Context, symbol string) (*model.Market, error)
	// AssetScale returns model.DefaultScale for unknown assets
	AssetScale(ctx context.Context, asset string) int32
}

// Static is a fixed catalog, built from the config file or by tests
type Static struct {
	mu      sync.RWMutex
	assets  map[string]model.Asset
	markets map[int64]model.Market
}

func NewStatic() *Static {
	return &Static{
		assets:  make(map[string]model.Asset),
		markets: make(map[int64]model.Market),
	}
}

// FromConfig loads the assets and markets sections, market scales come from their assets
func FromConfig(cfg *config.Config) (*Static, error) {
	s := NewStatic()
	for _, a := range cfg.Assets {
		s.AddAsset(model.Asset{Symbol: a.Symbol, Name: a.Name, Scale: a.Scale})
	}
	for _, m := range cfg.Markets {
		if _, ok := s.assets[m.Base]; !ok {
			return nil, fmt.Errorf("market %s: unknown base asset %s", m.Symbol, m.Base)
		}
		if _, ok := s.assets[m.Quote]; !ok {
			return nil, fmt.Errorf("market %s: unknown quote asset %s", m.Symbol, m.Quote)
		}
		s.AddMarket(model.Market{
			ID:         m.ID,
			Symbol:     m.Symbol,
			BaseAsset:  m.Base,
			QuoteAsset: m.Quote,
			Active:     m.Active,
		})
	}
	return s, nil
}

func (s *Static) AddAsset(a model.Asset) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assets[a.Symbol] = a
}

// AddMarket registers m, zero scales are taken from the registered assets
func (s *Static) AddMarket(m model.Market) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m.Symbol = model.NormalizeSymbol(m.Symbol)
	if m.BaseScale == 0 {
		m.BaseScale = s.scale(m.BaseAsset)
	}
	if m.QuoteScale == 0 {
		m.QuoteScale = s.scale(m.QuoteAsset)
	}
	s.markets[m.ID] = m
}

// SetActive toggles trading on a market
func (s *Static) SetActive(id int64, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.markets[id]; ok {
		m.Active = active
		s.markets[id] = m
	}
}

func (s *Static) Assets() []model.Asset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Asset, 0, len(s.assets))
	for _, a := range s.assets {
		out = append(out, a)
	}
	return out
}

func (s *Static) Markets() []model.Market {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Market, 0, len(s.markets))
	for _, m := range s.markets {
		out = append(out, m)
	}
	return out
}

func (s *Static) scale(asset string) int32 {
	if a, ok := s.assets[asset]; ok {
		return a.Scale
	}
	return model.DefaultScale
}

func (s *Static) MarketByID(ctx context.Context, id int64) (*model.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.markets[id]
	if !ok {
		return nil, fmt.Errorf("%w: market %d", model.ErrNotFound, id)
	}
	return &m, nil
}

func (s *Static) MarketBySymbol(ctx context.Context, symbol string) (*model.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	symbol = model.NormalizeSymbol(symbol)
	for _, m := range s.markets {
		if m.Symbol == symbol {
			m := m
			return &m, nil
		}
	}
	return nil, fmt.Errorf("%w: market %s", model.ErrNotFound, symbol)
}

func (s *Static) AssetScale(ctx context.Context, asset string) int32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scale(asset)
}

// StoreCatalog reads the markets and assets tables
type StoreCatalog struct {
	st store.Store
}

func NewStoreCatalog(st store.Store) *StoreCatalog {
	return &StoreCatalog{st: st}
}

func (c *StoreCatalog) MarketByID(ctx context.Context, id int64) (*model.Market, error) {
	m, err := c.st.GetMarket(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("market %d: %w", id, err)
	}
	return m, nil
}

func (c *StoreCatalog) MarketBySymbol(ctx context.Context, symbol string) (*model.Market, error) {
	m, err := c.st.GetMarketBySymbol(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("market %s: %w", symbol, err)
	}
	return m, nil
}

func (c *StoreCatalog) AssetScale(ctx context.Context, asset string) int32 {
	a, err := c.st.GetAsset(ctx, asset)
	if err != nil {
		return model.DefaultScale
	}
	return a.Scale
}

// Seed writes the assets and markets of a static catalog into the store
func Seed(ctx context.Context, st store.Store, s *Static) error {
	for _, a := range s.Assets() {
		a := a
		if err := st.SaveAsset(ctx, &a); err != nil {
			return err
		}
	}
	for _, m := range s.Markets() {
		m := m
		if err := st.SaveMarket(ctx, &m); err != nil {
			return err
		}
		logger.Infof("market %d %s seeded, active: %v", m.ID, m.Symbol, m.Active)
	}
	return nil
}
