// Package config defines the top-level configuration for the simulation
// engine and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by POLYSIM_* environment
// variables.
type Config struct {
	Backtest    BacktestConfig    `toml:"backtest"`
	Strategy    StrategyConfig    `toml:"strategy"`
	Risk        RiskConfig        `toml:"risk"`
	Tradability TradabilityConfig `toml:"tradability"`
	Database    DatabaseConfig    `toml:"database"`
	Redis       RedisConfig       `toml:"redis"`
	S3          S3Config          `toml:"s3"`
	Notify      NotifyConfig      `toml:"notify"`
	Report      ReportConfig      `toml:"report"`
	Mode        string            `toml:"mode"`
	LogLevel    string            `toml:"log_level"`
}

// BacktestConfig holds the replay engine parameters and the snapshot query
// window for a run.
type BacktestConfig struct {
	PositionSizeUSD      float64 `toml:"position_size_usd"`
	MaxConcurrent        int     `toml:"max_concurrent"`
	FeePct               float64 `toml:"fee_pct"`
	SpreadMultiplier     float64 `toml:"spread_multiplier"`
	DefaultMaxHoldHours  float64 `toml:"default_max_hold_hours"`
	ExitOnResolution     bool    `toml:"exit_on_resolution"`
	MinLiquidityUSD      float64 `toml:"min_liquidity_usd"`
	MinVolume24hUSD      float64 `toml:"min_volume_24h_usd"`
	LookbackHours        float64 `toml:"lookback_hours"`
	LookbackMaxSnapshots int     `toml:"lookback_max_snapshots"`
	RequireTradable      bool    `toml:"require_tradable"`

	// Snapshot selection: empty market_ids means all markets; since/until
	// bound the replayed time range.
	MarketIDs []string  `toml:"market_ids"`
	Since     timestamp `toml:"since"`
	Until     timestamp `toml:"until"`

	// Source selects where snapshots come from: "postgres" or "s3".
	Source string `toml:"source"`
	// ArchivePrefix is the S3 key prefix scanned when source = "s3".
	ArchivePrefix string `toml:"archive_prefix"`

	SaveResults    bool `toml:"save_results"`
	ArchiveResults bool `toml:"archive_results"`
}

// StrategyConfig selects the strategy for single runs and the set for
// sweeps, with per-strategy tuning.
type StrategyConfig struct {
	Name  string   `toml:"name"`
	Sweep []string `toml:"sweep"`

	Complement   ComplementConfig   `toml:"complement"`
	Anchoring    AnchoringConfig    `toml:"anchoring"`
	LowAttention LowAttentionConfig `toml:"low_attention"`
	Deadline     DeadlineConfig     `toml:"deadline"`
}

// ComplementConfig tunes the complement-pair mispricing strategy.
type ComplementConfig struct {
	MinEdgeCents float64 `toml:"min_edge_cents"`
	MaxEdgeCents float64 `toml:"max_edge_cents"`
	TargetPct    float64 `toml:"target_pct"`
}

// AnchoringConfig tunes the anchored-price mean-reversion strategy.
type AnchoringConfig struct {
	MinHistory      int     `toml:"min_history"`
	MinDeviation    float64 `toml:"min_deviation"`
	MaxDeviation    float64 `toml:"max_deviation"`
	VolumeSpikeMult float64 `toml:"volume_spike_mult"`
}

// LowAttentionConfig tunes the stale-quote strategy.
type LowAttentionConfig struct {
	MaxVolume24h float64 `toml:"max_volume_24h"`
	MinGap       float64 `toml:"min_gap"`
	MaxGap       float64 `toml:"max_gap"`
}

// DeadlineConfig tunes the resolution-convergence strategy.
type DeadlineConfig struct {
	MaxHoursToResolution float64 `toml:"max_hours_to_resolution"`
	MinPrice             float64 `toml:"min_price"`
	TargetPrice          float64 `toml:"target_price"`
}

// RiskConfig holds the pre-trade gate thresholds.
type RiskConfig struct {
	Enabled                bool     `toml:"enabled"`
	BankrollUSD            float64  `toml:"bankroll_usd"`
	BlacklistTerms         []string `toml:"blacklist_terms"`
	MinLiquidityUSD        float64  `toml:"min_liquidity_usd"`
	MinHoursToResolution   float64  `toml:"min_hours_to_resolution"`
	DailyLossLimitPct      float64  `toml:"daily_loss_limit_pct"`
	MaxConsecutiveLosses   int      `toml:"max_consecutive_losses"`
	MaxTotalExposureUSD    float64  `toml:"max_total_exposure_usd"`
	MaxPositionPctBankroll float64  `toml:"max_position_pct_bankroll"`
	MaxPositionUSD         float64  `toml:"max_position_usd"`
	MaxPctOfLiquidity      float64  `toml:"max_pct_of_liquidity"`
	MinTradeUSD            float64  `toml:"min_trade_usd"`
	KellyFactor            float64  `toml:"kelly_factor"`
}

// TradabilityConfig holds the book-quality gate thresholds.
type TradabilityConfig struct {
	MaxSpreadPct     float64 `toml:"max_spread_pct"`
	MinDepthUSD      float64 `toml:"min_depth_usd"`
	MaxSlippageCents float64 `toml:"max_slippage_cents"`
	ProbeOrderUSD    float64 `toml:"probe_order_usd"`
	DepthRangePct    float64 `toml:"depth_range_pct"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters for the live book cache.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for snapshot
// archives and run results.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// ReportConfig selects what the report mode renders. An empty RunID lists
// recent runs instead of one run's detail.
type ReportConfig struct {
	RunID string `toml:"run_id"`
	Limit int    `toml:"limit"`
}

// timestamp is a wrapper around time.Time that supports TOML string
// decoding of RFC 3339 values. The zero value means "unbounded".
type timestamp struct {
	time.Time
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse values like "2025-06-01T00:00:00Z".
func (t *timestamp) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := time.Parse(time.RFC3339, string(text))
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (t timestamp) MarshalText() ([]byte, error) {
	if t.IsZero() {
		return nil, nil
	}
	return []byte(t.Format(time.RFC3339)), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Backtest: BacktestConfig{
			PositionSizeUSD:      100,
			MaxConcurrent:        5,
			FeePct:               0.02,
			SpreadMultiplier:     1.0,
			DefaultMaxHoldHours:  48,
			ExitOnResolution:     true,
			LookbackHours:        24,
			LookbackMaxSnapshots: 100,
			Source:               "postgres",
			ArchivePrefix:        "snapshots/",
			SaveResults:          true,
		},
		Strategy: StrategyConfig{
			Name:  "complement",
			Sweep: []string{"complement", "anchoring", "low_attention", "deadline"},
			Complement: ComplementConfig{
				MinEdgeCents: 3,
				MaxEdgeCents: 10,
				TargetPct:    0.8,
			},
			Anchoring: AnchoringConfig{
				MinHistory:      6,
				MinDeviation:    0.05,
				MaxDeviation:    0.15,
				VolumeSpikeMult: 3,
			},
			LowAttention: LowAttentionConfig{
				MaxVolume24h: 500,
				MinGap:       0.04,
				MaxGap:       0.12,
			},
			Deadline: DeadlineConfig{
				MaxHoursToResolution: 48,
				MinPrice:             0.80,
				TargetPrice:          0.97,
			},
		},
		Risk: RiskConfig{
			Enabled:                false,
			BankrollUSD:            1000,
			MinLiquidityUSD:        1000,
			MinHoursToResolution:   6,
			DailyLossLimitPct:      0.05,
			MaxConsecutiveLosses:   4,
			MaxTotalExposureUSD:    500,
			MaxPositionPctBankroll: 0.05,
			MaxPositionUSD:         100,
			MaxPctOfLiquidity:      0.02,
			MinTradeUSD:            10,
			KellyFactor:            0.25,
		},
		Tradability: TradabilityConfig{
			MaxSpreadPct:     0.08,
			MinDepthUSD:      250,
			MaxSlippageCents: 3,
			ProbeOrderUSD:    250,
			DepthRangePct:    0.01,
		},
		Database: DatabaseConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "polysim",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "polysim-data",
			ForcePathStyle: true,
		},
		Notify: NotifyConfig{
			Events: []string{"backtest_completed", "run_failed"},
		},
		Report: ReportConfig{
			Limit: 20,
		},
		Mode:     "backtest",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"backtest": true,
	"sweep":    true,
	"check":    true,
	"report":   true,
	"import":   true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validSources enumerates the accepted snapshot sources.
var validSources = map[string]bool{
	"postgres": true,
	"s3":       true,
}

// Validate checks Config for obviously invalid or missing values and
// returns a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: backtest, sweep, check, report, import)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Backtest
	if c.Backtest.PositionSizeUSD <= 0 {
		errs = append(errs, "backtest: position_size_usd must be > 0")
	}
	if c.Backtest.MaxConcurrent < 1 {
		errs = append(errs, "backtest: max_concurrent must be >= 1")
	}
	if c.Backtest.FeePct < 0 || c.Backtest.FeePct >= 1 {
		errs = append(errs, fmt.Sprintf("backtest: fee_pct must be in [0,1), got %v", c.Backtest.FeePct))
	}
	if c.Backtest.SpreadMultiplier < 0 {
		errs = append(errs, "backtest: spread_multiplier must be >= 0")
	}
	if c.Backtest.LookbackHours <= 0 {
		errs = append(errs, "backtest: lookback_hours must be > 0")
	}
	if c.Backtest.LookbackMaxSnapshots < 1 {
		errs = append(errs, "backtest: lookback_max_snapshots must be >= 1")
	}
	if !validSources[strings.ToLower(c.Backtest.Source)] {
		errs = append(errs, fmt.Sprintf("backtest: unknown source %q (valid: postgres, s3)", c.Backtest.Source))
	}
	if !c.Backtest.Since.IsZero() && !c.Backtest.Until.IsZero() && c.Backtest.Until.Before(c.Backtest.Since.Time) {
		errs = append(errs, "backtest: until must not precede since")
	}

	// Strategy
	if c.Strategy.Name == "" {
		errs = append(errs, "strategy: name must not be empty")
	}
	if c.Mode == "sweep" && len(c.Strategy.Sweep) == 0 {
		errs = append(errs, "strategy: sweep must list at least one strategy for sweep mode")
	}

	// Risk
	if c.Risk.BankrollUSD <= 0 {
		errs = append(errs, "risk: bankroll_usd must be > 0")
	}
	if c.Risk.DailyLossLimitPct < 0 {
		errs = append(errs, "risk: daily_loss_limit_pct must be >= 0")
	}
	if c.Risk.MaxTotalExposureUSD < 0 || c.Risk.MaxPositionUSD < 0 || c.Risk.MinTradeUSD < 0 {
		errs = append(errs, "risk: caps must be >= 0")
	}
	if c.Risk.MaxPositionPctBankroll < 0 || c.Risk.MaxPositionPctBankroll > 1 {
		errs = append(errs, "risk: max_position_pct_bankroll must be in [0,1]")
	}
	if c.Risk.MaxPctOfLiquidity < 0 || c.Risk.MaxPctOfLiquidity > 1 {
		errs = append(errs, "risk: max_pct_of_liquidity must be in [0,1]")
	}
	if c.Risk.KellyFactor <= 0 || c.Risk.KellyFactor > 1 {
		errs = append(errs, "risk: kelly_factor must be in (0,1]")
	}

	// Tradability
	if c.Tradability.MaxSpreadPct <= 0 {
		errs = append(errs, "tradability: max_spread_pct must be > 0")
	}
	if c.Tradability.MinDepthUSD < 0 {
		errs = append(errs, "tradability: min_depth_usd must be >= 0")
	}
	if c.Tradability.MaxSlippageCents <= 0 {
		errs = append(errs, "tradability: max_slippage_cents must be > 0")
	}
	if c.Tradability.ProbeOrderUSD <= 0 {
		errs = append(errs, "tradability: probe_order_usd must be > 0")
	}
	if c.Tradability.DepthRangePct <= 0 || c.Tradability.DepthRangePct > 0.5 {
		errs = append(errs, "tradability: depth_range_pct must be in (0,0.5]")
	}

	// Database is required unless the run neither reads from nor writes to it.
	needsDB := c.Backtest.Source == "postgres" || c.Backtest.SaveResults || c.Mode == "report" || c.Mode == "import"
	if needsDB {
		if strings.TrimSpace(c.Database.DSN) == "" {
			if c.Database.Host == "" {
				errs = append(errs, "database: host must not be empty (or set database.dsn)")
			}
			if c.Database.Port <= 0 || c.Database.Port > 65535 {
				errs = append(errs, fmt.Sprintf("database: port must be 1-65535, got %d", c.Database.Port))
			}
			if c.Database.Database == "" {
				errs = append(errs, "database: database must not be empty")
			}
		}
		if c.Database.PoolMaxConns < 1 {
			errs = append(errs, "database: pool_max_conns must be >= 1")
		}
		if c.Database.PoolMinConns < 0 {
			errs = append(errs, "database: pool_min_conns must be >= 0")
		}
		if c.Database.PoolMinConns > c.Database.PoolMaxConns {
			errs = append(errs, "database: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Redis is needed only when the check mode reads live books.
	if c.Mode == "check" {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty for check mode")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// S3 is required when archives are read or written.
	if c.Backtest.Source == "s3" || c.Backtest.ArchiveResults || c.Mode == "import" {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
	}

	// Report
	if c.Mode == "report" && c.Report.Limit < 1 && c.Report.RunID == "" {
		errs = append(errs, "report: limit must be >= 1 when run_id is empty")
	}

	// Notify: both Telegram fields must be set together.
	tt := c.Notify.TelegramToken != ""
	tc := c.Notify.TelegramChatID != ""
	if tt != tc {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: invalid configuration:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
