package catalog_test

import (
	"context"
	"os"
	"testing"
	"time"

	"ccspot/pkg/catalog"
	"ccspot/pkg/config"
	"ccspot/pkg/model"
	"ccspot/pkg/store/memstore"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
)

var ctx = context.Background()

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Assets = []config.Asset{
		{Symbol: "BTC", Name: "Bitcoin", Scale: 8},
		{Symbol: "USDT", Name: "Tether", Scale: 2},
	}
	cfg.Markets = []config.Market{
		{ID: 1, Symbol: "btc-usdt", Base: "BTC", Quote: "USDT", Active: true},
	}
	return cfg
}

func TestFromConfig(t *testing.T) {
	c, err := catalog.FromConfig(testConfig())
	require.Nil(t, err)

	m, err := c.MarketBySymbol(ctx, "BTC_USDT")
	require.Nil(t, err)
	require.Equal(t, int64(1), m.ID)
	require.Equal(t, int32(8), m.BaseScale)
	require.Equal(t, int32(2), m.QuoteScale)

	_, err = c.MarketByID(ctx, 2)
	require.ErrorIs(t, err, model.ErrNotFound)

	require.Equal(t, int32(2), c.AssetScale(ctx, "USDT"))
	require.Equal(t, model.DefaultScale, c.AssetScale(ctx, "DOGE"))

	c.SetActive(1, false)
	m, err = c.MarketByID(ctx, 1)
	require.Nil(t, err)
	require.False(t, m.Active)
}

func TestFromConfigUnknownAsset(t *testing.T) {
	cfg := testConfig()
	cfg.Markets = append(cfg.Markets, config.Market{ID: 2, Symbol: "ETH_USDT", Base: "ETH", Quote: "USDT"})
	_, err := catalog.FromConfig(cfg)
	require.NotNil(t, err)
}

func TestStoreCatalog(t *testing.T) {
	static, err := catalog.FromConfig(testConfig())
	require.Nil(t, err)

	st := memstore.New()
	require.Nil(t, catalog.Seed(ctx, st, static))

	c := catalog.NewStoreCatalog(st)
	m, err := c.MarketBySymbol(ctx, "btc/usdt")
	require.Nil(t, err)
	require.Equal(t, "USDT", m.QuoteAsset)
	require.Equal(t, int32(8), c.AssetScale(ctx, "BTC"))

	_, err = c.MarketByID(ctx, 99)
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestRedisCache(t *testing.T) {
	addr := os.Getenv("CCSPOT_REDIS_ADDR")
	if addr == "" {
		t.Skip("CCSPOT_REDIS_ADDR not set")
	}
	static, err := catalog.FromConfig(testConfig())
	require.Nil(t, err)

	rc := redis.NewClient(&redis.Options{Addr: addr})
	c := catalog.NewRedisCache(static, rc, time.Second)

	m, err := c.MarketByID(ctx, 1)
	require.Nil(t, err)
	require.Nil(t, c.Invalidate(ctx, m))

	m, err = c.MarketBySymbol(ctx, "BTC_USDT")
	require.Nil(t, err)
	require.Equal(t, int64(1), m.ID)
	require.Equal(t, int32(2), c.AssetScale(ctx, "USDT"))
}
