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
// built-in defaults, applies ARBSCAN_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known ARBSCAN_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Matching ──
	setFloat64(&cfg.Matching.MinKeywordOverlap, "ARBSCAN_MATCHING_MIN_KEYWORD_OVERLAP")
	setFloat64(&cfg.Matching.GradeAMin, "ARBSCAN_MATCHING_GRADE_A_MIN")
	setFloat64(&cfg.Matching.GradeBMin, "ARBSCAN_MATCHING_GRADE_B_MIN")
	setFloat64(&cfg.Matching.GradeCMin, "ARBSCAN_MATCHING_GRADE_C_MIN")
	setDuration(&cfg.Matching.DateWindow, "ARBSCAN_MATCHING_DATE_WINDOW")
	setDuration(&cfg.Matching.EmbedTimeout, "ARBSCAN_MATCHING_EMBED_TIMEOUT")
	setInt(&cfg.Matching.EmbedConcurrency, "ARBSCAN_MATCHING_EMBED_CONCURRENCY")
	setFloat64(&cfg.Matching.InversePriceSumMin, "ARBSCAN_MATCHING_INVERSE_PRICE_SUM_MIN")
	setFloat64(&cfg.Matching.InversePriceSumMax, "ARBSCAN_MATCHING_INVERSE_PRICE_SUM_MAX")

	// ── Trading ──
	setFloat64(&cfg.Trading.PositionSizeUSD, "ARBSCAN_TRADING_POSITION_SIZE_USD")
	setFloat64(&cfg.Trading.MinSpreadPct, "ARBSCAN_TRADING_MIN_SPREAD_PCT")
	setFloat64(&cfg.Trading.PriceSanityMin, "ARBSCAN_TRADING_PRICE_SANITY_MIN")
	setFloat64(&cfg.Trading.PriceSanityMax, "ARBSCAN_TRADING_PRICE_SANITY_MAX")
	setFloat64(&cfg.Trading.ProfitThresholdPct, "ARBSCAN_TRADING_PROFIT_THRESHOLD_PCT")
	setFloat64(&cfg.Trading.NearMissMarginPct, "ARBSCAN_TRADING_NEAR_MISS_MARGIN_PCT")
	setFloat64(&cfg.Trading.VolatilityBufferPct, "ARBSCAN_TRADING_VOLATILITY_BUFFER_PCT")
	setFloat64(&cfg.Trading.MaxPlausibleProfitPct, "ARBSCAN_TRADING_MAX_PLAUSIBLE_PROFIT_PCT")

	// ── Filters ──
	setBool(&cfg.Filters.Enabled, "ARBSCAN_FILTERS_ENABLED")
	setStr(&cfg.Filters.Mode, "ARBSCAN_FILTERS_MODE")
	setStringSlice(&cfg.Filters.Keywords, "ARBSCAN_FILTERS_KEYWORDS")
	setStr(&cfg.Filters.Preset, "ARBSCAN_FILTERS_PRESET")

	// ── Kalshi ──
	setStr(&cfg.Kalshi.BaseURL, "ARBSCAN_KALSHI_BASE_URL")
	setStr(&cfg.Kalshi.ApiKey, "ARBSCAN_KALSHI_API_KEY")
	setStr(&cfg.Kalshi.RsaPrivateKeyPath, "ARBSCAN_KALSHI_RSA_PRIVATE_KEY_PATH")
	setStr(&cfg.Kalshi.EncryptedKeyPath, "ARBSCAN_KALSHI_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Kalshi.KeyPassword, "ARBSCAN_KALSHI_KEY_PASSWORD")
	setInt(&cfg.Kalshi.PageLimit, "ARBSCAN_KALSHI_PAGE_LIMIT")
	setInt(&cfg.Kalshi.MaxMarkets, "ARBSCAN_KALSHI_MAX_MARKETS")

	// ── Polymarket ──
	setStr(&cfg.Polymarket.GammaHost, "ARBSCAN_POLYMARKET_GAMMA_HOST")
	setStr(&cfg.Polymarket.WsHost, "ARBSCAN_POLYMARKET_WS_HOST")
	setInt(&cfg.Polymarket.PageLimit, "ARBSCAN_POLYMARKET_PAGE_LIMIT")
	setInt(&cfg.Polymarket.MaxMarkets, "ARBSCAN_POLYMARKET_MAX_MARKETS")

	// ── Polling ──
	setDuration(&cfg.Polling.Interval, "ARBSCAN_POLLING_INTERVAL")
	setInt(&cfg.Polling.MaxRetries, "ARBSCAN_POLLING_MAX_RETRIES")
	setDuration(&cfg.Polling.BackoffBase, "ARBSCAN_POLLING_BACKOFF_BASE")
	setDuration(&cfg.Polling.BackoffMax, "ARBSCAN_POLLING_BACKOFF_MAX")
	setFloat64(&cfg.Polling.RatePerSecond, "ARBSCAN_POLLING_RATE_PER_SECOND")
	setInt(&cfg.Polling.UnhealthyAfter, "ARBSCAN_POLLING_UNHEALTHY_AFTER")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "ARBSCAN_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "ARBSCAN_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "ARBSCAN_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "ARBSCAN_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "ARBSCAN_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "ARBSCAN_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "ARBSCAN_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "ARBSCAN_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "ARBSCAN_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "ARBSCAN_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "ARBSCAN_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ARBSCAN_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ARBSCAN_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "ARBSCAN_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "ARBSCAN_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "ARBSCAN_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "ARBSCAN_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "ARBSCAN_S3_REGION")
	setStr(&cfg.S3.Bucket, "ARBSCAN_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "ARBSCAN_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "ARBSCAN_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "ARBSCAN_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "ARBSCAN_S3_FORCE_PATH_STYLE")

	// ── Feed ──
	setBool(&cfg.Feed.Enabled, "ARBSCAN_FEED_ENABLED")
	setFloat64(&cfg.Feed.DriftThresholdPct, "ARBSCAN_FEED_DRIFT_THRESHOLD_PCT")
	setDuration(&cfg.Feed.ReconnectBackoff, "ARBSCAN_FEED_RECONNECT_BACKOFF")
	setInt(&cfg.Feed.MaxMonitored, "ARBSCAN_FEED_MAX_MONITORED")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "ARBSCAN_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "ARBSCAN_ARCHIVE_RETENTION_DAYS")
	setDuration(&cfg.Archive.Interval, "ARBSCAN_ARCHIVE_INTERVAL")

	// ── Notify ──
	setStr(&cfg.Notify.DiscordWebhookURL, "ARBSCAN_NOTIFY_DISCORD_WEBHOOK_URL")
	setStr(&cfg.Notify.TelegramToken, "ARBSCAN_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "ARBSCAN_NOTIFY_TELEGRAM_CHAT_ID")
	setBool(&cfg.Notify.Console, "ARBSCAN_NOTIFY_CONSOLE")
	setDuration(&cfg.Notify.AlertCooldown, "ARBSCAN_NOTIFY_ALERT_COOLDOWN")

	// ── Top-level ──
	setStr(&cfg.Mode, "ARBSCAN_MODE")
	setStr(&cfg.LogLevel, "ARBSCAN_LOG_LEVEL")
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

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
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
