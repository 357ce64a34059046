package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"ccspot/pkg/config"

	"github.com/stretchr/testify/require"
)

const sample = `
is_debug: true
data_dir: /tmp/ccspot
mysql:
  main:
    enabled: true
    host: 127.0.0.1
    port: 3306
    user: root
    pass: secret
    db: ccspot
nats:
  enabled: true
  url: nats://127.0.0.1:4222
matching:
  page_size: 20
  symbols: [BTC_USDT]
wallet:
  strict_capture: false
assets:
  - {symbol: BTC, scale: 8}
  - {symbol: USDT, scale: 2}
markets:
  - {id: 1, symbol: BTC_USDT, base: BTC, quote: USDT, active: true}
`

func TestInit(t *testing.T) {
	fpath := filepath.Join(t.TempDir(), "config.yml")
	require.Nil(t, os.WriteFile(fpath, []byte(sample), 0644))

	config.Init(fpath)
	cfg := config.Shared

	require.True(t, cfg.IsDebug)
	require.Equal(t, "root:secret@tcp(127.0.0.1:3306)/ccspot?charset=utf8mb4&parseTime=True&loc=Local", cfg.MySQL.Main.DSN())
	require.Equal(t, 20, cfg.Matching.PageSize)
	require.Equal(t, []string{"BTC_USDT"}, cfg.Matching.Symbols)
	require.False(t, cfg.Wallet.StrictCapture)
	require.Len(t, cfg.Assets, 2)
	require.Equal(t, int32(2), cfg.Assets[1].Scale)
	require.Equal(t, "USDT", cfg.Markets[0].Quote)

	// untouched sections keep their defaults
	require.Equal(t, "SPOT", cfg.Nats.Stream)
	require.Equal(t, ":8080", cfg.HTTP.Addr)
	require.Equal(t, "/tmp/ccspot/journal/events.log", cfg.JournalPath())
}

func TestDefault(t *testing.T) {
	cfg := config.Default()
	require.True(t, cfg.Wallet.StrictCapture)
	require.Equal(t, config.DefaultPageSize, cfg.Matching.PageSize)
	require.Equal(t, 100, cfg.Journal.BatchSize)

	cfg.Journal.Path = "/var/ccspot/events.log"
	require.Equal(t, "/var/ccspot/events.log", cfg.JournalPath())
}

func TestInitMissingFile(t *testing.T) {
	require.Panics(t, func() { config.Init(filepath.Join(t.TempDir(), "nope.yml")) })
}
