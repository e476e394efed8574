package config

// RedactedConfig returns a shallow copy of cfg with sensitive fields
// replaced by the redaction placeholder "***". Use this when logging or
// printing the active configuration so secrets are never accidentally
// exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg // shallow copy of the top-level struct

	// Database
	out.Database = cfg.Database
	redact(&out.Database.DSN)
	redact(&out.Database.Password)

	// Redis
	out.Redis = cfg.Redis
	redact(&out.Redis.Password)

	// S3
	out.S3 = cfg.S3
	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)

	// Notify
	out.Notify = cfg.Notify
	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	// Copy slices so callers cannot mutate the original through the
	// redacted copy.
	if cfg.Notify.Events != nil {
		out.Notify.Events = make([]string, len(cfg.Notify.Events))
		copy(out.Notify.Events, cfg.Notify.Events)
	}
	if cfg.Backtest.MarketIDs != nil {
		out.Backtest.MarketIDs = make([]string, len(cfg.Backtest.MarketIDs))
		copy(out.Backtest.MarketIDs, cfg.Backtest.MarketIDs)
	}
	if cfg.Strategy.Sweep != nil {
		out.Strategy.Sweep = make([]string, len(cfg.Strategy.Sweep))
		copy(out.Strategy.Sweep, cfg.Strategy.Sweep)
	}
	if cfg.Risk.BlacklistTerms != nil {
		out.Risk.BlacklistTerms = make([]string, len(cfg.Risk.BlacklistTerms))
		copy(out.Risk.BlacklistTerms, cfg.Risk.BlacklistTerms)
	}

	return out
}

const redacted = "***"

// redact replaces a non-empty string with the redacted placeholder.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}
