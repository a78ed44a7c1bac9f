package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadFillsDefaultsForOmittedKeys(t *testing.T) {
	path := writeConfigFile(t, `
exchange:
  environment: mainnet
trading:
  enabled: true
  symbols: ["BTCUSDT", "ETHUSDT"]
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "mainnet", cfg.Exchange.Environment)
	require.False(t, cfg.Exchange.Testnet())
	require.True(t, cfg.Trading.Enabled)
	require.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, cfg.Trading.Symbols)

	require.Equal(t, 5, cfg.OBI.DepthLevels)
	require.Equal(t, 10, cfg.OBI.SmoothingPeriod)
	require.InDelta(t, 100.0, cfg.Risk.MaxPositionUSD, 1e-9)
	require.InDelta(t, 0.6, cfg.Filter.ImbalanceThreshold, 1e-9)
}

func TestLoadOverridesDefaultsFromFile(t *testing.T) {
	path := writeConfigFile(t, `
risk:
  max_position_usd: 250
  stop_loss_pct: 0.30
filter:
  confirmation_ticks: 5
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.InDelta(t, 250.0, cfg.Risk.MaxPositionUSD, 1e-9)
	require.InDelta(t, 0.30, cfg.Risk.StopLossPct, 1e-9)
	require.Equal(t, 5, cfg.Filter.ConfirmationTicks)
}

func TestLoadOverridesFromEnvironmentVariable(t *testing.T) {
	path := writeConfigFile(t, `
exchange:
  environment: testnet
`)
	t.Setenv("OPUS_EXCHANGE_API_KEY", "env-key")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "env-key", cfg.Exchange.APIKey)
}

func TestExchangeConfigDefaultsTestnetWhenUnset(t *testing.T) {
	var cfg ExchangeConfig
	require.True(t, cfg.Testnet())
}

func TestLoadErrorsOnMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestConfigConvertersProduceComponentConfigs(t *testing.T) {
	path := writeConfigFile(t, `
obi:
  depth_levels: 8
risk:
  max_position_usd: 300
filter:
  cooldown_seconds: 45
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 8, cfg.OBIGeneratorConfig().DepthLevels)
	require.InDelta(t, 300.0, cfg.RiskManagerConfig().MaxPositionUSD, 1e-9)
	require.Equal(t, 45, cfg.FilterManagerConfig().CooldownSeconds)

	engineCfg := cfg.EngineConfig("btcusdt")
	require.Equal(t, "BTCUSDT", engineCfg.Symbol.String())
	require.Equal(t, 8, engineCfg.DepthLevels)
}
