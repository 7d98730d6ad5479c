package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load with no config file: %v", err)
	}

	if cfg.Strategy.JawPeriod != 13 || cfg.Strategy.JawShift != 8 {
		t.Errorf("jaw defaults = %d/%d, want 13/8", cfg.Strategy.JawPeriod, cfg.Strategy.JawShift)
	}
	if cfg.Strategy.TeethPeriod != 8 || cfg.Strategy.TeethShift != 5 {
		t.Errorf("teeth defaults = %d/%d, want 8/5", cfg.Strategy.TeethPeriod, cfg.Strategy.TeethShift)
	}
	if cfg.Strategy.LipsPeriod != 5 || cfg.Strategy.LipsShift != 3 {
		t.Errorf("lips defaults = %d/%d, want 5/3", cfg.Strategy.LipsPeriod, cfg.Strategy.LipsShift)
	}
	if cfg.Risk.RiskPercent != 2.0 {
		t.Errorf("risk percent default = %v, want 2.0", cfg.Risk.RiskPercent)
	}
	if cfg.Signal.MinSleepingMinutes != 30 {
		t.Errorf("min sleeping default = %d, want 30", cfg.Signal.MinSleepingMinutes)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	content := `
[strategy]
symbol = "ETHUSD"
timeframe = "15m"

[risk]
risk_percent = 1.5

[signal]
min_sleeping_minutes = 45
`
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Strategy.Symbol != "ETHUSD" {
		t.Errorf("symbol = %q, want ETHUSD", cfg.Strategy.Symbol)
	}
	if cfg.Strategy.Timeframe != "15m" {
		t.Errorf("timeframe = %q, want 15m", cfg.Strategy.Timeframe)
	}
	if cfg.Risk.RiskPercent != 1.5 {
		t.Errorf("risk percent = %v, want 1.5", cfg.Risk.RiskPercent)
	}
	if cfg.Signal.MinSleepingMinutes != 45 {
		t.Errorf("min sleeping = %d, want 45", cfg.Signal.MinSleepingMinutes)
	}
	// Unset sections keep their defaults.
	if cfg.Risk.RewardRatio != 2.0 {
		t.Errorf("reward ratio = %v, want default 2.0", cfg.Risk.RewardRatio)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ALLIGATOR_SYMBOL", "XAUUSD")
	t.Setenv("ALLIGATOR_LOG_LEVEL", "debug")

	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Strategy.Symbol != "XAUUSD" {
		t.Errorf("symbol = %q, want env override XAUUSD", cfg.Strategy.Symbol)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q, want debug", cfg.Log.Level)
	}
}

func TestValidateRejectsBadConfig(t *testing.T) {
	base := func() *Config {
		cfg, err := Load(t.TempDir())
		if err != nil {
			t.Fatal(err)
		}
		return cfg
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty symbol", func(c *Config) { c.Strategy.Symbol = "" }},
		{"bad timeframe", func(c *Config) { c.Strategy.Timeframe = "2m" }},
		{"zero jaw period", func(c *Config) { c.Strategy.JawPeriod = 0 }},
		{"negative risk", func(c *Config) { c.Risk.RiskPercent = -1 }},
		{"risk over 100", func(c *Config) { c.Risk.RiskPercent = 150 }},
		{"no stop source", func(c *Config) {
			c.Risk.ATRStopMultiplier = 0
			c.Risk.FixedStopDollars = 0
		}},
		{"notional fraction over 1", func(c *Config) { c.Risk.MaxNotionalFraction = 1.5 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("%s should fail validation", tc.name)
			}
		})
	}
}

func TestBarDuration(t *testing.T) {
	cfg := &Config{Strategy: StrategyConfig{Timeframe: "15m"}}
	if got := cfg.BarDuration(); got != 15*time.Minute {
		t.Errorf("BarDuration = %v, want 15m", got)
	}

	// Unknown timeframes fall back to the default.
	cfg.Strategy.Timeframe = "brr"
	if got := cfg.BarDuration(); got != 5*time.Minute {
		t.Errorf("fallback BarDuration = %v, want 5m", got)
	}
}
