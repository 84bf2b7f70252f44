package config

// RedactedConfig returns a shallow copy of cfg with sensitive fields replaced
// by the redaction placeholder "***". Use this when logging or printing the
// active configuration so secrets are never accidentally exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg // shallow copy of the top-level struct

	redact(&out.Kalshi.ApiKey)
	redact(&out.Kalshi.KeyPassword)

	redact(&out.Postgres.DSN)
	redact(&out.Postgres.Password)

	redact(&out.Redis.Password)

	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)

	redact(&out.Notify.DiscordWebhookURL)
	redact(&out.Notify.TelegramToken)

	// Copy slices so callers cannot mutate the original through the redacted
	// copy.
	if cfg.Filters.Keywords != nil {
		out.Filters.Keywords = make([]string, len(cfg.Filters.Keywords))
		copy(out.Filters.Keywords, cfg.Filters.Keywords)
	}
	if cfg.Notify.CapitalTiersUSD != nil {
		out.Notify.CapitalTiersUSD = make([]float64, len(cfg.Notify.CapitalTiersUSD))
		copy(out.Notify.CapitalTiersUSD, cfg.Notify.CapitalTiersUSD)
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
