package model

import "strings"

// Market model, an asset pair e.g. BTC_USDT with base BTC and quote USDT
type Market struct {
	ID     int64  `json:"id" gorm:"omitempty; primaryKey;"`
	Symbol string `json:"symbol" gorm:"omitempty; not null; type:varchar(32); uniqueIndex;"`

	BaseAsset  string `json:"baseAsset" gorm:"omitempty; not null; type:varchar(16);"`
	QuoteAsset string `json:"quoteAsset" gorm:"omitempty; not null; type:varchar(16);"`
	BaseScale  int32  `json:"baseScale" gorm:"not null;"`
	QuoteScale int32  `json:"quoteScale" gorm:"not null;"`

	// no column default, gorm would write it in place of a false
	Active bool `json:"active" gorm:"not null;"`

	Model
}

// NormalizeSymbol turns btc-usdt, btc/usdt and btc_usdt into BTC_USDT
func NormalizeSymbol(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	return strings.NewReplacer("-", "_", "/", "_").Replace(s)
}

// ReserveAsset returns the asset an order on this market locks: quote for buys, base for sells
func (m *Market) ReserveAsset(side int8) string {
	if side == OrderSideBuy {
		return m.QuoteAsset
	}
	return m.BaseAsset
}

// Scale returns the scale of one of the market's assets, DefaultScale for any other asset
func (m *Market) Scale(asset string) int32 {
	switch asset {
	case m.BaseAsset:
		return m.BaseScale
	case m.QuoteAsset:
		return m.QuoteScale
	}
	return DefaultScale
}
