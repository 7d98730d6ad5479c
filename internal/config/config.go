// Package config provides configuration management for the trading engine.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Strategy StrategyConfig `mapstructure:"strategy"`
	Risk     RiskConfig     `mapstructure:"risk"`
	Signal   SignalConfig   `mapstructure:"signal"`
	Feed     FeedConfig     `mapstructure:"feed"`
	Paper    PaperConfig    `mapstructure:"paper"`
	Log      LogConfig      `mapstructure:"log"`
}

// StrategyConfig holds the instrument and indicator parameters.
type StrategyConfig struct {
	Symbol    string `mapstructure:"symbol"`
	Timeframe string `mapstructure:"timeframe"` // "1m", "5m", "15m", "1h"

	JawPeriod   int `mapstructure:"jaw_period"`
	JawShift    int `mapstructure:"jaw_shift"`
	TeethPeriod int `mapstructure:"teeth_period"`
	TeethShift  int `mapstructure:"teeth_shift"`
	LipsPeriod  int `mapstructure:"lips_period"`
	LipsShift   int `mapstructure:"lips_shift"`

	ATRPeriod       int `mapstructure:"atr_period"`
	ADXPeriod       int `mapstructure:"adx_period"`
	ADXSmoothPeriod int `mapstructure:"adx_smooth_period"`

	// Extra bars fetched beyond the indicator seed windows so the seed
	// average cannot bias the current value.
	HistoryMargin int `mapstructure:"history_margin"`
}

// RiskConfig holds position sizing parameters.
type RiskConfig struct {
	RiskPercent       float64 `mapstructure:"risk_percent"`
	RewardRatio       float64 `mapstructure:"reward_ratio"`
	ATRStopMultiplier float64 `mapstructure:"atr_stop_multiplier"`
	// FixedStopDollars switches off the ATR stop when > 0.
	FixedStopDollars    float64 `mapstructure:"fixed_stop_dollars"`
	MaxNotionalFraction float64 `mapstructure:"max_notional_fraction"`
	MaxDailyTrades      int     `mapstructure:"max_daily_trades"`
}

// SignalConfig holds the regime and breakout thresholds.
type SignalConfig struct {
	MinSleepingMinutes      int     `mapstructure:"min_sleeping_minutes"`
	MaxMouthOpeningMinutes  int     `mapstructure:"max_mouth_opening_minutes"`
	MaxLineSlopeDegrees     float64 `mapstructure:"max_line_slope_degrees"`
	MaxLineSpreadDollars    float64 `mapstructure:"max_line_spread_dollars"`
	DivergenceSlopeDegrees  float64 `mapstructure:"divergence_slope_degrees"`
	MinMeaningfulSlope      float64 `mapstructure:"min_meaningful_slope_degrees"`
	MinBreakoutSlopeDegrees float64 `mapstructure:"min_breakout_slope_degrees"`
	MinATRBreakoutDistance  float64 `mapstructure:"min_atr_breakout_distance_multiplier"`
	MaxBreakoutMinutes      int     `mapstructure:"max_breakout_window_minutes"`
	TrendConsistencyBars    int     `mapstructure:"trend_consistency_bars"`
	RequireTrendConsistency bool    `mapstructure:"require_trend_consistency"`
	StrictBreakoutTiming    bool    `mapstructure:"strict_breakout_timing"`
	SignalCooldownMinutes   int     `mapstructure:"signal_cooldown_minutes"`
	SlopeLookbackBars       int     `mapstructure:"slope_lookback_bars"`
	// MinADXStrength gates trade triggers on the custom ADX; zero disables.
	MinADXStrength float64 `mapstructure:"min_adx_strength"`
}

// FeedConfig holds the live candle feed settings.
type FeedConfig struct {
	URL           string        `mapstructure:"url"`
	PingInterval  time.Duration `mapstructure:"ping_interval"`
	RedialBackoff time.Duration `mapstructure:"redial_backoff"`
}

// PaperConfig holds the simulated broker settings.
type PaperConfig struct {
	InitialBalance  float64 `mapstructure:"initial_balance"`
	MinLot          float64 `mapstructure:"min_lot"`
	MaxLot          float64 `mapstructure:"max_lot"`
	LotStep         float64 `mapstructure:"lot_step"`
	MinStopDistance float64 `mapstructure:"min_stop_distance"`
	Digits          int     `mapstructure:"digits"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level    string `mapstructure:"level"`
	Console  bool   `mapstructure:"console"`
	File     bool   `mapstructure:"file"`
	FilePath string `mapstructure:"file_path"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/alligator-trader"
	}
	return filepath.Join(home, ".config", "alligator-trader")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config.toml: %w", err)
		}
		// Missing file is fine, run on defaults.
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("strategy.symbol", "BTCUSD")
	v.SetDefault("strategy.timeframe", "5m")
	v.SetDefault("strategy.jaw_period", 13)
	v.SetDefault("strategy.jaw_shift", 8)
	v.SetDefault("strategy.teeth_period", 8)
	v.SetDefault("strategy.teeth_shift", 5)
	v.SetDefault("strategy.lips_period", 5)
	v.SetDefault("strategy.lips_shift", 3)
	v.SetDefault("strategy.atr_period", 14)
	v.SetDefault("strategy.adx_period", 14)
	v.SetDefault("strategy.adx_smooth_period", 14)
	v.SetDefault("strategy.history_margin", 30)

	v.SetDefault("risk.risk_percent", 2.0)
	v.SetDefault("risk.reward_ratio", 2.0)
	v.SetDefault("risk.atr_stop_multiplier", 1.5)
	v.SetDefault("risk.fixed_stop_dollars", 0.0)
	v.SetDefault("risk.max_notional_fraction", 0.5)
	v.SetDefault("risk.max_daily_trades", 5)

	v.SetDefault("signal.min_sleeping_minutes", 30)
	v.SetDefault("signal.max_mouth_opening_minutes", 45)
	v.SetDefault("signal.max_line_slope_degrees", 10.0)
	v.SetDefault("signal.max_line_spread_dollars", 150.0)
	v.SetDefault("signal.divergence_slope_degrees", 15.0)
	v.SetDefault("signal.min_meaningful_slope_degrees", 5.0)
	v.SetDefault("signal.min_breakout_slope_degrees", 20.0)
	v.SetDefault("signal.min_atr_breakout_distance_multiplier", 0.5)
	v.SetDefault("signal.max_breakout_window_minutes", 60)
	v.SetDefault("signal.trend_consistency_bars", 5)
	v.SetDefault("signal.require_trend_consistency", true)
	v.SetDefault("signal.strict_breakout_timing", false)
	v.SetDefault("signal.signal_cooldown_minutes", 15)
	v.SetDefault("signal.slope_lookback_bars", 3)
	v.SetDefault("signal.min_adx_strength", 0.0)

	v.SetDefault("feed.url", "")
	v.SetDefault("feed.ping_interval", 20*time.Second)
	v.SetDefault("feed.redial_backoff", time.Second)

	v.SetDefault("paper.initial_balance", 10000.0)
	v.SetDefault("paper.min_lot", 0.01)
	v.SetDefault("paper.max_lot", 100.0)
	v.SetDefault("paper.lot_step", 0.01)
	v.SetDefault("paper.min_stop_distance", 10.0)
	v.SetDefault("paper.digits", 2)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.console", true)
	v.SetDefault("log.file", false)
	v.SetDefault("log.file_path", "")
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ALLIGATOR_SYMBOL"); v != "" {
		cfg.Strategy.Symbol = v
	}
	if v := os.Getenv("ALLIGATOR_FEED_URL"); v != "" {
		cfg.Feed.URL = v
	}
	if v := os.Getenv("ALLIGATOR_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

// Timeframes accepted by Validate, with their bar durations.
var timeframeDurations = map[string]time.Duration{
	"1m":  time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"30m": 30 * time.Minute,
	"1h":  time.Hour,
	"4h":  4 * time.Hour,
	"1d":  24 * time.Hour,
}

// BarDuration returns the duration of one bar of the configured timeframe.
func (c *Config) BarDuration() time.Duration {
	if d, ok := timeframeDurations[c.Strategy.Timeframe]; ok {
		return d
	}
	return 5 * time.Minute
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Strategy.Symbol == "" {
		return fmt.Errorf("strategy.symbol must be set")
	}
	if _, ok := timeframeDurations[c.Strategy.Timeframe]; !ok {
		return fmt.Errorf("invalid timeframe: %s", c.Strategy.Timeframe)
	}
	for name, p := range map[string]int{
		"jaw_period":        c.Strategy.JawPeriod,
		"teeth_period":      c.Strategy.TeethPeriod,
		"lips_period":       c.Strategy.LipsPeriod,
		"atr_period":        c.Strategy.ATRPeriod,
		"adx_period":        c.Strategy.ADXPeriod,
		"adx_smooth_period": c.Strategy.ADXSmoothPeriod,
	} {
		if p <= 0 {
			return fmt.Errorf("strategy.%s must be positive", name)
		}
	}
	if c.Risk.RiskPercent <= 0 || c.Risk.RiskPercent > 100 {
		return fmt.Errorf("risk.risk_percent must be in (0, 100]")
	}
	if c.Risk.RewardRatio <= 0 {
		return fmt.Errorf("risk.reward_ratio must be positive")
	}
	if c.Risk.ATRStopMultiplier <= 0 && c.Risk.FixedStopDollars <= 0 {
		return fmt.Errorf("one of risk.atr_stop_multiplier or risk.fixed_stop_dollars must be positive")
	}
	if c.Risk.MaxNotionalFraction <= 0 || c.Risk.MaxNotionalFraction > 1 {
		return fmt.Errorf("risk.max_notional_fraction must be in (0, 1]")
	}
	if c.Signal.MinSleepingMinutes < 0 || c.Signal.MaxMouthOpeningMinutes <= 0 {
		return fmt.Errorf("signal sleep/mouth windows must be positive")
	}
	if c.Signal.SlopeLookbackBars <= 0 {
		return fmt.Errorf("signal.slope_lookback_bars must be positive")
	}
	return nil
}
