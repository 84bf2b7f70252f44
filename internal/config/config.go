// Package config defines the top-level configuration for the arbitrage
// scanner and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by ARBSCAN_* environment variables.
type Config struct {
	Matching   MatchingConfig   `toml:"matching"`
	Trading    TradingConfig    `toml:"trading"`
	Fees       FeesConfig       `toml:"fees"`
	Filters    FiltersConfig    `toml:"filters"`
	Kalshi     KalshiConfig     `toml:"kalshi"`
	Polymarket PolymarketConfig `toml:"polymarket"`
	Polling    PollingConfig    `toml:"polling"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Feed       FeedConfig       `toml:"feed"`
	Archive    ArchiveConfig    `toml:"archive"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// MatchingConfig holds the text-matching thresholds.
type MatchingConfig struct {
	MinKeywordOverlap float64 `toml:"min_keyword_overlap"`
	// GradeAMin/GradeBMin/GradeCMin are the similarity floors of the grade
	// table; similarity below GradeCMin is a rejection.
	GradeAMin        float64  `toml:"grade_a_min"`
	GradeBMin        float64  `toml:"grade_b_min"`
	GradeCMin        float64  `toml:"grade_c_min"`
	DateWindow       duration `toml:"date_window"`
	EmbedTimeout     duration `toml:"embed_timeout"`
	EmbedConcurrency int      `toml:"embed_concurrency"`
	// InversePriceSumMin/Max bound the price-sum band for inverse detection.
	InversePriceSumMin float64 `toml:"inverse_price_sum_min"`
	InversePriceSumMax float64 `toml:"inverse_price_sum_max"`
}

// TradingConfig holds the economics of opportunity evaluation.
type TradingConfig struct {
	PositionSizeUSD       float64 `toml:"position_size_usd"`
	MinSpreadPct          float64 `toml:"min_spread_pct"`
	PriceSanityMin        float64 `toml:"price_sanity_min"`
	PriceSanityMax        float64 `toml:"price_sanity_max"`
	ProfitThresholdPct    float64 `toml:"profit_threshold_pct"`
	NearMissMarginPct     float64 `toml:"near_miss_margin_pct"`
	VolatilityBufferPct   float64 `toml:"volatility_buffer_pct"`
	MaxPlausibleProfitPct float64 `toml:"max_plausible_profit_pct"`
}

// VenueFees holds one venue's fee schedule.
type VenueFees struct {
	MakerFeePct     float64 `toml:"maker_fee_pct"`
	TakerFeePct     float64 `toml:"taker_fee_pct"`
	FixedCostUSD    float64 `toml:"fixed_cost_usd"`
	VariableCostUSD float64 `toml:"variable_cost_usd"`
}

// FeesConfig holds per-venue fee schedules.
type FeesConfig struct {
	Kalshi     VenueFees `toml:"kalshi"`
	Polymarket VenueFees `toml:"polymarket"`
}

// FiltersConfig narrows monitored events by keyword.
type FiltersConfig struct {
	Enabled bool `toml:"enabled"`
	// Mode is "include" or "exclude".
	Mode     string   `toml:"mode"`
	Keywords []string `toml:"keywords"`
	// Preset, when set, overrides Keywords with a named preset.
	Preset string `toml:"preset"`
}

// KalshiConfig holds Kalshi exchange API parameters.
type KalshiConfig struct {
	BaseURL           string `toml:"base_url"`
	ApiKey            string `toml:"api_key"`
	RsaPrivateKeyPath string `toml:"rsa_private_key_path"`
	// EncryptedKeyPath/KeyPassword point to an encrypted RSA key as an
	// alternative to a plaintext key file.
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
	PageLimit        int    `toml:"page_limit"`
	MaxMarkets       int    `toml:"max_markets"`
}

// PolymarketConfig holds Polymarket Gamma API parameters.
type PolymarketConfig struct {
	GammaHost  string `toml:"gamma_host"`
	WsHost     string `toml:"ws_host"`
	PageLimit  int    `toml:"page_limit"`
	MaxMarkets int    `toml:"max_markets"`
}

// PollingConfig holds venue polling cadence and retry behavior.
type PollingConfig struct {
	Interval    duration `toml:"interval"`
	MaxRetries  int      `toml:"max_retries"`
	BackoffBase duration `toml:"backoff_base"`
	BackoffMax  duration `toml:"backoff_max"`
	// RatePerSecond caps outbound requests per venue.
	RatePerSecond float64 `toml:"rate_per_second"`
	// UnhealthyAfter is the consecutive-failure count that marks a venue
	// down.
	UnhealthyAfter int `toml:"unhealthy_after"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
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

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// FeedConfig holds the price-drift websocket feed parameters.
type FeedConfig struct {
	Enabled bool `toml:"enabled"`
	// DriftThresholdPct is the price move that re-queues a monitored pair
	// for evaluation.
	DriftThresholdPct float64  `toml:"drift_threshold_pct"`
	ReconnectBackoff  duration `toml:"reconnect_backoff"`
	MaxMonitored      int      `toml:"max_monitored"`
}

// ArchiveConfig holds cold-storage retention parameters.
type ArchiveConfig struct {
	Enabled       bool     `toml:"enabled"`
	RetentionDays int      `toml:"retention_days"`
	Interval      duration `toml:"interval"`
}

// NotifyConfig holds notification channel credentials and alert shaping.
type NotifyConfig struct {
	DiscordWebhookURL string `toml:"discord_webhook_url"`
	TelegramToken     string `toml:"telegram_token"`
	TelegramChatID    string `toml:"telegram_chat_id"`
	Console           bool   `toml:"console"`
	// AlertCooldown suppresses repeat alerts for the same pair.
	AlertCooldown duration `toml:"alert_cooldown"`
	// CapitalTiersUSD are the position sizes quoted in alert messages so an
	// operator sees the dollar profit at their own bankroll.
	CapitalTiersUSD []float64 `toml:"capital_tiers_usd"`
}

// duration wraps time.Duration to support TOML string decoding (e.g. "5m",
// "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Matching: MatchingConfig{
			MinKeywordOverlap:  0.30,
			GradeAMin:          0.95,
			GradeBMin:          0.90,
			GradeCMin:          0.85,
			DateWindow:         duration{48 * time.Hour},
			EmbedTimeout:       duration{10 * time.Second},
			EmbedConcurrency:   8,
			InversePriceSumMin: 0.95,
			InversePriceSumMax: 1.05,
		},
		Trading: TradingConfig{
			PositionSizeUSD:       1000,
			MinSpreadPct:          2.0,
			PriceSanityMin:        0.05,
			PriceSanityMax:        0.95,
			ProfitThresholdPct:    3.0,
			NearMissMarginPct:     1.0,
			VolatilityBufferPct:   10.0,
			MaxPlausibleProfitPct: 50.0,
		},
		Fees: FeesConfig{
			Kalshi:     VenueFees{TakerFeePct: 0.7, VariableCostUSD: 1.0},
			Polymarket: VenueFees{VariableCostUSD: 2.0},
		},
		Filters: FiltersConfig{
			Enabled: false,
			Mode:    "include",
		},
		Kalshi: KalshiConfig{
			BaseURL:   "https://api.elections.kalshi.com/trade-api/v2",
			PageLimit: 200,
		},
		Polymarket: PolymarketConfig{
			GammaHost: "https://gamma-api.polymarket.com",
			WsHost:    "wss://ws-subscriptions-clob.polymarket.com",
			PageLimit: 200,
		},
		Polling: PollingConfig{
			Interval:       duration{60 * time.Second},
			MaxRetries:     3,
			BackoffBase:    duration{2 * time.Second},
			BackoffMax:     duration{60 * time.Second},
			RatePerSecond:  5,
			UnhealthyAfter: 5,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "arbscan",
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
			Bucket:         "arbscan-data",
			ForcePathStyle: true,
		},
		Feed: FeedConfig{
			Enabled:           false,
			DriftThresholdPct: 1.0,
			ReconnectBackoff:  duration{5 * time.Second},
			MaxMonitored:      50,
		},
		Archive: ArchiveConfig{
			Enabled:       false,
			RetentionDays: 90,
			Interval:      duration{24 * time.Hour},
		},
		Notify: NotifyConfig{
			Console:         true,
			AlertCooldown:   duration{15 * time.Minute},
			CapitalTiersUSD: []float64{500, 1000, 5000},
		},
		Mode:     "monitor",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"monitor": true,
	"scan":    true,
	"archive": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: monitor, scan, archive)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Matching
	m := c.Matching
	if m.MinKeywordOverlap < 0 || m.MinKeywordOverlap > 1 {
		errs = append(errs, fmt.Sprintf("matching: min_keyword_overlap must be in [0,1], got %.2f", m.MinKeywordOverlap))
	}
	if !(m.GradeAMin > m.GradeBMin && m.GradeBMin > m.GradeCMin) {
		errs = append(errs, "matching: grade floors must be strictly descending (grade_a_min > grade_b_min > grade_c_min)")
	}
	if m.GradeCMin <= 0 || m.GradeAMin > 1 {
		errs = append(errs, "matching: grade floors must be in (0,1]")
	}
	if m.InversePriceSumMin >= m.InversePriceSumMax {
		errs = append(errs, "matching: inverse_price_sum_min must be below inverse_price_sum_max")
	}
	if m.InversePriceSumMin > 1.0 || m.InversePriceSumMax < 1.0 {
		errs = append(errs, "matching: inverse price-sum band must contain 1.0")
	}
	if m.EmbedConcurrency < 1 {
		errs = append(errs, "matching: embed_concurrency must be >= 1")
	}

	// Trading
	tr := c.Trading
	if tr.PositionSizeUSD <= 0 {
		errs = append(errs, "trading: position_size_usd must be > 0")
	}
	if tr.PriceSanityMin < 0 || tr.PriceSanityMax > 1 || tr.PriceSanityMin >= tr.PriceSanityMax {
		errs = append(errs, fmt.Sprintf("trading: price sanity band [%.2f, %.2f] is invalid", tr.PriceSanityMin, tr.PriceSanityMax))
	}
	if tr.ProfitThresholdPct < 0 {
		errs = append(errs, "trading: profit_threshold_pct must be >= 0")
	}
	if tr.NearMissMarginPct < 0 {
		errs = append(errs, "trading: near_miss_margin_pct must be >= 0")
	}
	if tr.MaxPlausibleProfitPct <= tr.ProfitThresholdPct {
		errs = append(errs, "trading: max_plausible_profit_pct must exceed profit_threshold_pct")
	}

	// Filters
	if c.Filters.Enabled {
		mode := strings.ToLower(c.Filters.Mode)
		if mode != "include" && mode != "exclude" {
			errs = append(errs, fmt.Sprintf("filters: mode must be include or exclude, got %q", c.Filters.Mode))
		}
		if len(c.Filters.Keywords) == 0 && c.Filters.Preset == "" {
			errs = append(errs, "filters: enabled but no keywords or preset configured")
		}
	}

	// Venues
	if c.Kalshi.BaseURL == "" {
		errs = append(errs, "kalshi: base_url must not be empty")
	}
	if c.Kalshi.EncryptedKeyPath != "" && c.Kalshi.KeyPassword == "" {
		errs = append(errs, "kalshi: key_password is required when encrypted_key_path is set")
	}
	if c.Polymarket.GammaHost == "" {
		errs = append(errs, "polymarket: gamma_host must not be empty")
	}

	// Polling
	if c.Polling.Interval.Duration <= 0 {
		errs = append(errs, "polling: interval must be positive")
	}
	if c.Polling.RatePerSecond <= 0 {
		errs = append(errs, "polling: rate_per_second must be > 0")
	}
	if c.Polling.UnhealthyAfter < 1 {
		errs = append(errs, "polling: unhealthy_after must be >= 1")
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3 only matters when archiving is on.
	if c.Archive.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when archive is enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when archive is enabled")
		}
		if c.Archive.RetentionDays < 1 {
			errs = append(errs, "archive: retention_days must be >= 1")
		}
	}

	// Feed
	if c.Feed.Enabled {
		if c.Feed.DriftThresholdPct <= 0 {
			errs = append(errs, "feed: drift_threshold_pct must be > 0 when enabled")
		}
		if c.Feed.MaxMonitored < 1 {
			errs = append(errs, "feed: max_monitored must be >= 1")
		}
	}

	// Notify
	if c.Notify.TelegramToken != "" && c.Notify.TelegramChatID == "" {
		errs = append(errs, "notify: telegram_chat_id is required when telegram_token is set")
	}
	for _, tier := range c.Notify.CapitalTiersUSD {
		if tier <= 0 {
			errs = append(errs, "notify: capital_tiers_usd entries must be > 0")
			break
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
