package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies POLYSIM_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known POLYSIM_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e.
// not empty). This lets operators inject secrets at deploy time without
// touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Backtest ──
	setFloat64(&cfg.Backtest.PositionSizeUSD, "POLYSIM_BACKTEST_POSITION_SIZE_USD")
	setInt(&cfg.Backtest.MaxConcurrent, "POLYSIM_BACKTEST_MAX_CONCURRENT")
	setFloat64(&cfg.Backtest.FeePct, "POLYSIM_BACKTEST_FEE_PCT")
	setFloat64(&cfg.Backtest.SpreadMultiplier, "POLYSIM_BACKTEST_SPREAD_MULTIPLIER")
	setFloat64(&cfg.Backtest.DefaultMaxHoldHours, "POLYSIM_BACKTEST_DEFAULT_MAX_HOLD_HOURS")
	setBool(&cfg.Backtest.ExitOnResolution, "POLYSIM_BACKTEST_EXIT_ON_RESOLUTION")
	setFloat64(&cfg.Backtest.MinLiquidityUSD, "POLYSIM_BACKTEST_MIN_LIQUIDITY_USD")
	setFloat64(&cfg.Backtest.MinVolume24hUSD, "POLYSIM_BACKTEST_MIN_VOLUME_24H_USD")
	setFloat64(&cfg.Backtest.LookbackHours, "POLYSIM_BACKTEST_LOOKBACK_HOURS")
	setInt(&cfg.Backtest.LookbackMaxSnapshots, "POLYSIM_BACKTEST_LOOKBACK_MAX_SNAPSHOTS")
	setBool(&cfg.Backtest.RequireTradable, "POLYSIM_BACKTEST_REQUIRE_TRADABLE")
	setStringSlice(&cfg.Backtest.MarketIDs, "POLYSIM_BACKTEST_MARKET_IDS")
	setTimestamp(&cfg.Backtest.Since, "POLYSIM_BACKTEST_SINCE")
	setTimestamp(&cfg.Backtest.Until, "POLYSIM_BACKTEST_UNTIL")
	setStr(&cfg.Backtest.Source, "POLYSIM_BACKTEST_SOURCE")
	setStr(&cfg.Backtest.ArchivePrefix, "POLYSIM_BACKTEST_ARCHIVE_PREFIX")
	setBool(&cfg.Backtest.SaveResults, "POLYSIM_BACKTEST_SAVE_RESULTS")
	setBool(&cfg.Backtest.ArchiveResults, "POLYSIM_BACKTEST_ARCHIVE_RESULTS")

	// ── Strategy ──
	setStr(&cfg.Strategy.Name, "POLYSIM_STRATEGY_NAME")
	setStringSlice(&cfg.Strategy.Sweep, "POLYSIM_STRATEGY_SWEEP")

	// ── Risk ──
	setBool(&cfg.Risk.Enabled, "POLYSIM_RISK_ENABLED")
	setFloat64(&cfg.Risk.BankrollUSD, "POLYSIM_RISK_BANKROLL_USD")
	setStringSlice(&cfg.Risk.BlacklistTerms, "POLYSIM_RISK_BLACKLIST_TERMS")
	setFloat64(&cfg.Risk.MinLiquidityUSD, "POLYSIM_RISK_MIN_LIQUIDITY_USD")
	setFloat64(&cfg.Risk.MinHoursToResolution, "POLYSIM_RISK_MIN_HOURS_TO_RESOLUTION")
	setFloat64(&cfg.Risk.DailyLossLimitPct, "POLYSIM_RISK_DAILY_LOSS_LIMIT_PCT")
	setInt(&cfg.Risk.MaxConsecutiveLosses, "POLYSIM_RISK_MAX_CONSECUTIVE_LOSSES")
	setFloat64(&cfg.Risk.MaxTotalExposureUSD, "POLYSIM_RISK_MAX_TOTAL_EXPOSURE_USD")
	setFloat64(&cfg.Risk.MaxPositionPctBankroll, "POLYSIM_RISK_MAX_POSITION_PCT_BANKROLL")
	setFloat64(&cfg.Risk.MaxPositionUSD, "POLYSIM_RISK_MAX_POSITION_USD")
	setFloat64(&cfg.Risk.MaxPctOfLiquidity, "POLYSIM_RISK_MAX_PCT_OF_LIQUIDITY")
	setFloat64(&cfg.Risk.MinTradeUSD, "POLYSIM_RISK_MIN_TRADE_USD")
	setFloat64(&cfg.Risk.KellyFactor, "POLYSIM_RISK_KELLY_FACTOR")

	// ── Tradability ──
	setFloat64(&cfg.Tradability.MaxSpreadPct, "POLYSIM_TRADABILITY_MAX_SPREAD_PCT")
	setFloat64(&cfg.Tradability.MinDepthUSD, "POLYSIM_TRADABILITY_MIN_DEPTH_USD")
	setFloat64(&cfg.Tradability.MaxSlippageCents, "POLYSIM_TRADABILITY_MAX_SLIPPAGE_CENTS")
	setFloat64(&cfg.Tradability.ProbeOrderUSD, "POLYSIM_TRADABILITY_PROBE_ORDER_USD")
	setFloat64(&cfg.Tradability.DepthRangePct, "POLYSIM_TRADABILITY_DEPTH_RANGE_PCT")

	// ── Database ──
	setStr(&cfg.Database.DSN, "POLYSIM_DATABASE_DSN")
	setStr(&cfg.Database.Host, "POLYSIM_DATABASE_HOST")
	setInt(&cfg.Database.Port, "POLYSIM_DATABASE_PORT")
	setStr(&cfg.Database.Database, "POLYSIM_DATABASE_DATABASE")
	setStr(&cfg.Database.User, "POLYSIM_DATABASE_USER")
	setStr(&cfg.Database.Password, "POLYSIM_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "POLYSIM_DATABASE_SSL_MODE")
	setInt(&cfg.Database.PoolMaxConns, "POLYSIM_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "POLYSIM_DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "POLYSIM_DATABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "POLYSIM_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "POLYSIM_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "POLYSIM_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "POLYSIM_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "POLYSIM_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "POLYSIM_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "POLYSIM_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "POLYSIM_S3_REGION")
	setStr(&cfg.S3.Bucket, "POLYSIM_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "POLYSIM_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "POLYSIM_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "POLYSIM_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "POLYSIM_S3_FORCE_PATH_STYLE")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "POLYSIM_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "POLYSIM_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "POLYSIM_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "POLYSIM_NOTIFY_EVENTS")

	// ── Report ──
	setStr(&cfg.Report.RunID, "POLYSIM_REPORT_RUN_ID")
	setInt(&cfg.Report.Limit, "POLYSIM_REPORT_LIMIT")

	// ── Top-level ──
	setStr(&cfg.Mode, "POLYSIM_MODE")
	setStr(&cfg.LogLevel, "POLYSIM_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setTimestamp(dst *timestamp, key string) {
	if v := os.Getenv(key); v != "" {
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			dst.Time = ts
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
