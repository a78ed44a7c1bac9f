// Package config loads the engine's YAML configuration file through
// viper, layering environment-variable overrides on top and reading
// exchange secrets from a local .env file first. There is no hot-reload:
// the risk floors and trading parameters are immutable once loaded.
package config

import (
	"fmt"

	"github.com/furkntrg41/opus-trade-bot/internal/engine"
	"github.com/furkntrg41/opus-trade-bot/internal/filter"
	"github.com/furkntrg41/opus-trade-bot/internal/obi"
	"github.com/furkntrg41/opus-trade-bot/internal/risk"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ExchangeConfig holds credentials and environment selection.
type ExchangeConfig struct {
	APIKey      string `mapstructure:"api_key"`
	SecretKey   string `mapstructure:"secret_key"`
	Environment string `mapstructure:"environment"` // "testnet" or "mainnet"
}

// Testnet reports whether Environment selects Binance's testnet, the
// default when unset so a misconfigured deployment fails safe.
func (e ExchangeConfig) Testnet() bool {
	return e.Environment != "mainnet"
}

// TradingConfig holds the top-level enable switch and traded symbol set.
type TradingConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Symbols []string `mapstructure:"symbols"`
}

// OBIConfig mirrors internal/obi.Config's recognized keys.
type OBIConfig struct {
	DepthLevels        int     `mapstructure:"depth_levels"`
	ImbalanceThreshold float64 `mapstructure:"imbalance_threshold"`
	SmoothingPeriod    int     `mapstructure:"smoothing_period"`
}

// RiskConfig mirrors internal/risk.Config's tunable (pre-clamp) keys.
type RiskConfig struct {
	MaxPositionUSD     float64 `mapstructure:"max_position_usd"`
	MaxOrdersPerMinute int     `mapstructure:"max_orders_per_minute"`
	StopLossPct        float64 `mapstructure:"stop_loss_pct"`
	TakeProfitPct      float64 `mapstructure:"take_profit_pct"`
	MaxDailyLossUSD    float64 `mapstructure:"max_daily_loss_usd"`
	MinOrderIntervalMs int     `mapstructure:"min_order_interval_ms"`
	MaxOpenPositions   int     `mapstructure:"max_open_positions"`
}

// FilterConfig mirrors internal/filter.Config's recognized keys.
type FilterConfig struct {
	ImbalanceThreshold      float64 `mapstructure:"imbalance_threshold"`
	HighConvictionThreshold float64 `mapstructure:"high_conviction_threshold"`
	ConfirmationTicks       int     `mapstructure:"confirmation_ticks"`
	HighConvictionTicks     int     `mapstructure:"high_conviction_ticks"`
	CooldownSeconds         int     `mapstructure:"cooldown_seconds"`
	MaxSpreadPct            float64 `mapstructure:"max_spread_pct"`
}

// Config is the fully-populated, immutable engine configuration.
type Config struct {
	Exchange ExchangeConfig `mapstructure:"exchange"`
	Trading  TradingConfig  `mapstructure:"trading"`
	OBI      OBIConfig      `mapstructure:"obi"`
	Risk     RiskConfig     `mapstructure:"risk"`
	Filter   FilterConfig   `mapstructure:"filter"`
}

// defaults mirrors each component package's own DefaultConfig, so a
// config file only needs to specify the keys it wants to override.
func defaults() Config {
	obiDefault := obi.DefaultConfig()
	riskDefault := risk.DefaultConfig()
	filterDefault := filter.DefaultConfig()

	return Config{
		Exchange: ExchangeConfig{Environment: "testnet"},
		Trading:  TradingConfig{Enabled: false, Symbols: []string{"BTCUSDT"}},
		OBI: OBIConfig{
			DepthLevels:        obiDefault.DepthLevels,
			ImbalanceThreshold: obiDefault.Threshold,
			SmoothingPeriod:    obiDefault.SmoothingPeriod,
		},
		Risk: RiskConfig{
			MaxPositionUSD:     riskDefault.MaxPositionUSD,
			MaxOrdersPerMinute: riskDefault.MaxOrdersPerMinute,
			StopLossPct:        riskDefault.StopLossPct,
			TakeProfitPct:      riskDefault.TakeProfitPct,
			MaxDailyLossUSD:    riskDefault.MaxDailyLossUSD,
			MinOrderIntervalMs: riskDefault.MinOrderIntervalMs,
			MaxOpenPositions:   riskDefault.MaxOpenPositions,
		},
		Filter: FilterConfig{
			ImbalanceThreshold:      filterDefault.ImbalanceThreshold,
			HighConvictionThreshold: filterDefault.HighConvictionThreshold,
			ConfirmationTicks:       filterDefault.ConfirmationTicks,
			HighConvictionTicks:     filterDefault.HighConvictionTicks,
			CooldownSeconds:         filterDefault.CooldownSeconds,
			MaxSpreadPct:            filterDefault.MaxSpreadPct,
		},
	}
}

// Load reads path (a YAML file) into a Config, applying package defaults
// for anything unset, then layering "OPUS_"-prefixed environment
// variables on top (e.g. OPUS_EXCHANGE_API_KEY overrides exchange.api_key).
// It loads a .env file, if present, before reading env vars so secrets can
// live outside the shell environment without being committed to the
// config file itself.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	applyDefaults(v, defaults())

	v.SetConfigFile(path)
	v.SetEnvPrefix("OPUS")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(newDotToUnderscoreReplacer())

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

func applyDefaults(v *viper.Viper, d Config) {
	v.SetDefault("exchange.environment", d.Exchange.Environment)
	v.SetDefault("exchange.api_key", d.Exchange.APIKey)
	v.SetDefault("exchange.secret_key", d.Exchange.SecretKey)
	v.SetDefault("trading.enabled", d.Trading.Enabled)
	v.SetDefault("trading.symbols", d.Trading.Symbols)
	v.SetDefault("obi.depth_levels", d.OBI.DepthLevels)
	v.SetDefault("obi.imbalance_threshold", d.OBI.ImbalanceThreshold)
	v.SetDefault("obi.smoothing_period", d.OBI.SmoothingPeriod)
	v.SetDefault("risk.max_position_usd", d.Risk.MaxPositionUSD)
	v.SetDefault("risk.max_orders_per_minute", d.Risk.MaxOrdersPerMinute)
	v.SetDefault("risk.stop_loss_pct", d.Risk.StopLossPct)
	v.SetDefault("risk.take_profit_pct", d.Risk.TakeProfitPct)
	v.SetDefault("risk.max_daily_loss_usd", d.Risk.MaxDailyLossUSD)
	v.SetDefault("risk.min_order_interval_ms", d.Risk.MinOrderIntervalMs)
	v.SetDefault("risk.max_open_positions", d.Risk.MaxOpenPositions)
	v.SetDefault("filter.imbalance_threshold", d.Filter.ImbalanceThreshold)
	v.SetDefault("filter.high_conviction_threshold", d.Filter.HighConvictionThreshold)
	v.SetDefault("filter.confirmation_ticks", d.Filter.ConfirmationTicks)
	v.SetDefault("filter.high_conviction_ticks", d.Filter.HighConvictionTicks)
	v.SetDefault("filter.cooldown_seconds", d.Filter.CooldownSeconds)
	v.SetDefault("filter.max_spread_pct", d.Filter.MaxSpreadPct)
}

// RiskManagerConfig converts to internal/risk.Config; the hardcoded floors are
// applied by risk.New itself, not here.
func (c Config) RiskManagerConfig() risk.Config {
	return risk.Config{
		MaxPositionUSD:     c.Risk.MaxPositionUSD,
		MaxOpenPositions:   c.Risk.MaxOpenPositions,
		MaxOrdersPerMinute: c.Risk.MaxOrdersPerMinute,
		MinOrderIntervalMs: c.Risk.MinOrderIntervalMs,
		StopLossPct:        c.Risk.StopLossPct,
		TakeProfitPct:      c.Risk.TakeProfitPct,
		MaxDailyLossUSD:    c.Risk.MaxDailyLossUSD,
	}
}

// FilterManagerConfig converts to internal/filter.Config.
func (c Config) FilterManagerConfig() filter.Config {
	return filter.Config{
		ImbalanceThreshold:      c.Filter.ImbalanceThreshold,
		HighConvictionThreshold: c.Filter.HighConvictionThreshold,
		ConfirmationTicks:       c.Filter.ConfirmationTicks,
		HighConvictionTicks:     c.Filter.HighConvictionTicks,
		CooldownSeconds:         c.Filter.CooldownSeconds,
		MaxSpreadPct:            c.Filter.MaxSpreadPct,
	}
}

// OBIGeneratorConfig converts to internal/obi.Config.
func (c Config) OBIGeneratorConfig() obi.Config {
	return obi.Config{
		Threshold:       c.OBI.ImbalanceThreshold,
		DepthLevels:     c.OBI.DepthLevels,
		SmoothingPeriod: c.OBI.SmoothingPeriod,
	}
}

// EngineConfig converts to internal/engine.Config for symbol, using the
// engine package's own defaults for fields config.yaml does not expose
// (leverage, book capacity, raw-signal threshold).
func (c Config) EngineConfig(symbolText string) engine.Config {
	cfg := engine.DefaultConfig(symbolFrom(symbolText))
	cfg.DepthLevels = c.OBI.DepthLevels
	return cfg
}
