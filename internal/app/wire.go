package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/oddslab/arbscan/internal/arb"
	s3blob "github.com/oddslab/arbscan/internal/blob/s3"
	"github.com/oddslab/arbscan/internal/cache/redis"
	"github.com/oddslab/arbscan/internal/config"
	"github.com/oddslab/arbscan/internal/crypto"
	"github.com/oddslab/arbscan/internal/domain"
	"github.com/oddslab/arbscan/internal/engine"
	"github.com/oddslab/arbscan/internal/feed"
	"github.com/oddslab/arbscan/internal/matching"
	"github.com/oddslab/arbscan/internal/matching/embed"
	"github.com/oddslab/arbscan/internal/notify"
	"github.com/oddslab/arbscan/internal/platform/kalshi"
	"github.com/oddslab/arbscan/internal/platform/polymarket"
	"github.com/oddslab/arbscan/internal/poller"
	"github.com/oddslab/arbscan/internal/store/postgres"
)

// Dependencies bundles everything the application modes need. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	KalshiPoller     *poller.Poller
	PolymarketPoller *poller.Poller
	Engine           *engine.Engine

	OpportunityStore domain.OpportunityStore
	RejectionStore   domain.RejectionStore

	SignalBus    domain.SignalBus
	AlertLimiter domain.AlertLimiter

	BlobWriter *s3blob.Writer
	BlobReader domain.BlobReader
	Archiver   domain.Archiver

	Notifier *notify.Notifier
	Monitor  *feed.Monitor
}

// needsPostgres returns true for modes that require a database connection.
func needsPostgres(mode string) bool {
	switch mode {
	case "monitor", "scan", "archive":
		return true
	default:
		return false
	}
}

// needsRedis returns true for modes that require the cache layer.
func needsRedis(mode string) bool {
	return mode == "monitor" || mode == "scan"
}

// needsS3 returns true when the configuration requires object storage.
func needsS3(cfg *config.Config) bool {
	return cfg.Mode == "archive" || (cfg.Mode == "monitor" && cfg.Archive.Enabled)
}

// Wire constructs all concrete dependency implementations from the given
// configuration, returning them with a cleanup function for shutdown.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Venue clients and pollers ---
	kalshiClient, err := buildKalshiClient(cfg)
	if err != nil {
		return nil, nil, err
	}
	gammaClient := polymarket.NewGammaClient(cfg.Polymarket.GammaHost,
		polymarket.WithPageLimit(cfg.Polymarket.PageLimit),
		polymarket.WithMaxMarkets(cfg.Polymarket.MaxMarkets),
	)

	pollerCfg := poller.Config{
		MaxRetries:     cfg.Polling.MaxRetries,
		BackoffBase:    cfg.Polling.BackoffBase.Duration,
		BackoffMax:     cfg.Polling.BackoffMax.Duration,
		RatePerSecond:  cfg.Polling.RatePerSecond,
		UnhealthyAfter: cfg.Polling.UnhealthyAfter,
	}
	deps.KalshiPoller = poller.New(kalshiClient, pollerCfg, logger)
	deps.PolymarketPoller = poller.New(gammaClient, pollerCfg, logger)

	// --- Matching engine ---
	calcCfg, err := calculatorConfig(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("wire: calculator: %w", err)
	}

	matcher := matching.NewMatcher(
		embed.NewHashingEmbedder(),
		embed.NewVectorCache(),
		matching.MatcherConfig{
			Rules:            gradeRules(cfg.Matching),
			DateWindow:       cfg.Matching.DateWindow.Duration,
			EmbedTimeout:     cfg.Matching.EmbedTimeout.Duration,
			EmbedConcurrency: cfg.Matching.EmbedConcurrency,
		},
		logger,
	)
	inverse := matching.NewInverseDetector(matching.InverseConfig{
		PriceSumMin: cfg.Matching.InversePriceSumMin,
		PriceSumMax: cfg.Matching.InversePriceSumMax,
	})
	deps.Engine = engine.New(matcher, inverse, arb.NewCalculator(calcCfg), engine.Config{
		MinKeywordOverlap: cfg.Matching.MinKeywordOverlap,
		Filter:            eventFilter(cfg.Filters),
	}, logger)

	// --- PostgreSQL ---
	if needsPostgres(cfg.Mode) {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.OpportunityStore = postgres.NewOpportunityStore(pool)
		deps.RejectionStore = postgres.NewRejectionStore(pool)
	}

	// --- Redis ---
	if needsRedis(cfg.Mode) {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.SignalBus = redis.NewSignalBus(redisClient)
		deps.AlertLimiter = redis.NewAlertLimiter(redisClient)
	}

	// --- S3 blob storage ---
	if needsS3(cfg) {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.BlobWriter = s3blob.NewWriter(s3Client)
		deps.BlobReader = s3blob.NewReader(s3Client)
		if deps.OpportunityStore != nil && deps.RejectionStore != nil {
			deps.Archiver = s3blob.NewArchiver(deps.BlobWriter, deps.OpportunityStore, deps.RejectionStore)
		}
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	if cfg.Notify.Console {
		senders = append(senders, notify.NewConsoleSender(os.Stdout, cfg.Notify.CapitalTiersUSD))
	}
	deps.Notifier = notify.NewNotifier(senders, logger)

	// --- Drift monitor ---
	if cfg.Mode == "monitor" && cfg.Feed.Enabled {
		deps.Monitor = feed.NewMonitor(feed.Config{
			WSURL:             cfg.Polymarket.WsHost,
			DriftThresholdPct: cfg.Feed.DriftThresholdPct,
			ReconnectBackoff:  cfg.Feed.ReconnectBackoff.Duration,
			MaxMonitored:      cfg.Feed.MaxMonitored,
		}, nil, logger)
	}

	return deps, cleanup, nil
}

func buildKalshiClient(cfg *config.Config) (*kalshi.Client, error) {
	client := kalshi.NewClient(cfg.Kalshi.BaseURL, cfg.Kalshi.ApiKey,
		kalshi.WithPageLimit(cfg.Kalshi.PageLimit),
		kalshi.WithMaxMarkets(cfg.Kalshi.MaxMarkets),
	)

	if cfg.Kalshi.ApiKey == "" {
		return client, nil
	}

	pemKey, err := crypto.LoadKeyPEM(crypto.KeyConfig{
		KeyPath:          cfg.Kalshi.RsaPrivateKeyPath,
		EncryptedKeyPath: cfg.Kalshi.EncryptedKeyPath,
		KeyPassword:      cfg.Kalshi.KeyPassword,
	})
	if err != nil {
		return nil, fmt.Errorf("wire: kalshi key: %w", err)
	}
	if err := client.SetRSAPrivateKey(pemKey); err != nil {
		return nil, fmt.Errorf("wire: kalshi key: %w", err)
	}
	return client, nil
}

// gradeRules builds the matcher grade table from config thresholds, falling
// back to the defaults when unset.
func gradeRules(m config.MatchingConfig) []matching.GradeRule {
	if m.GradeAMin == 0 && m.GradeBMin == 0 && m.GradeCMin == 0 {
		return nil
	}
	return []matching.GradeRule{
		{Grade: domain.GradeA, MinSimilarity: m.GradeAMin, RequireDates: true},
		{Grade: domain.GradeB, MinSimilarity: m.GradeBMin, RequireDates: true},
		{Grade: domain.GradeC, MinSimilarity: m.GradeCMin, RequireDates: false},
	}
}

// eventFilter resolves the configured filter, letting an explicit keyword
// list override a named preset.
func eventFilter(f config.FiltersConfig) matching.EventFilter {
	if !f.Enabled {
		return matching.EventFilter{}
	}
	if len(f.Keywords) == 0 && f.Preset != "" {
		if preset, ok := matching.Presets[f.Preset]; ok {
			return preset
		}
	}
	mode := matching.FilterInclude
	if f.Mode == string(matching.FilterExclude) {
		mode = matching.FilterExclude
	}
	return matching.EventFilter{
		Enabled:  true,
		Mode:     mode,
		Keywords: f.Keywords,
	}
}

func calculatorConfig(cfg *config.Config) (arb.Config, error) {
	c := arb.DefaultConfig()

	t := cfg.Trading
	if t.PositionSizeUSD > 0 {
		c.PositionSizeUSD = t.PositionSizeUSD
	}
	if t.MinSpreadPct > 0 {
		c.MinSpreadPct = t.MinSpreadPct
	}
	if t.PriceSanityMin > 0 {
		c.PriceSanityMin = t.PriceSanityMin
	}
	if t.PriceSanityMax > 0 {
		c.PriceSanityMax = t.PriceSanityMax
	}
	if t.ProfitThresholdPct > 0 {
		c.ProfitThresholdPct = t.ProfitThresholdPct
	}
	if t.NearMissMarginPct > 0 {
		c.NearMissMarginPct = t.NearMissMarginPct
	}
	if t.VolatilityBufferPct > 0 {
		c.VolatilityBufferPct = t.VolatilityBufferPct
	}
	if t.MaxPlausibleProfitPct > 0 {
		c.MaxPlausibleProfitPct = t.MaxPlausibleProfitPct
	}

	c.Fees[domain.VenueKalshi] = feeSchedule(cfg.Fees.Kalshi)
	c.Fees[domain.VenuePolymarket] = feeSchedule(cfg.Fees.Polymarket)

	if err := c.Validate(); err != nil {
		return arb.Config{}, err
	}
	return c, nil
}

func feeSchedule(v config.VenueFees) arb.FeeSchedule {
	return arb.FeeSchedule{
		MakerFeePct:     v.MakerFeePct,
		TakerFeePct:     v.TakerFeePct,
		FixedCostUSD:    v.FixedCostUSD,
		VariableCostUSD: v.VariableCostUSD,
	}
}
