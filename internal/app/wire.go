package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	s3blob "github.com/cwilliams712/polysim/internal/blob/s3"
	"github.com/cwilliams712/polysim/internal/cache/redis"
	"github.com/cwilliams712/polysim/internal/config"
	"github.com/cwilliams712/polysim/internal/domain"
	"github.com/cwilliams712/polysim/internal/notify"
	"github.com/cwilliams712/polysim/internal/store/postgres"
)

// Dependencies bundles the concrete implementations the application modes
// operate on. Fields are nil when the configured mode does not need them.
type Dependencies struct {
	// Snapshot and market inputs for replay, backed by Postgres or by the
	// S3 archive depending on backtest.source.
	SnapshotSource domain.SnapshotSource
	MarketSource   domain.MarketSource

	// Write-capable stores, only wired when Postgres is connected.
	SnapshotStore domain.SnapshotStore
	MarketStore   domain.MarketStore
	RunStore      domain.RunStore

	// BookCache serves the latest live snapshot per market for check mode.
	BookCache domain.BookCache

	// Blob storage and the archive views built on it.
	BlobReader      domain.BlobReader
	BlobWriter      domain.BlobWriter
	SnapshotArchive *s3blob.SnapshotArchive
	RunArchiver     *s3blob.RunArchiver

	Notifier *notify.Notifier
}

func needsPostgres(cfg *config.Config) bool {
	mode := strings.ToLower(cfg.Mode)
	if mode == "report" || mode == "import" {
		return true
	}
	if mode == "backtest" || mode == "sweep" {
		return cfg.Backtest.Source == "postgres" || cfg.Backtest.SaveResults
	}
	return false
}

func needsRedis(cfg *config.Config) bool {
	return strings.ToLower(cfg.Mode) == "check"
}

func needsS3(cfg *config.Config) bool {
	mode := strings.ToLower(cfg.Mode)
	if mode == "import" {
		return true
	}
	if mode == "backtest" || mode == "sweep" {
		return cfg.Backtest.Source == "s3" || cfg.Backtest.ArchiveResults
	}
	return false
}

// Wire constructs the dependency graph for the configured mode and returns
// it together with a cleanup function to be called on shutdown.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	if needsPostgres(cfg) {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Database.DSN,
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			Database: cfg.Database.Database,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			SSLMode:  cfg.Database.SSLMode,
			MaxConns: cfg.Database.PoolMaxConns,
			MinConns: cfg.Database.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Database.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		marketStore := postgres.NewMarketStore(pool)
		snapshotStore := postgres.NewSnapshotStore(pool)
		deps.MarketStore = marketStore
		deps.SnapshotStore = snapshotStore
		deps.RunStore = postgres.NewRunStore(pool)

		if cfg.Backtest.Source == "postgres" {
			deps.SnapshotSource = snapshotStore
			deps.MarketSource = marketStore
		}
	}

	// --- Redis ---
	if needsRedis(cfg) {
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

		deps.BookCache = redis.NewBookCache(redisClient)
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

		// Probe the bucket up front; archive errors mid-run are harder to
		// recover from than a failed wire.
		if err := s3Client.Health(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}

		deps.BlobReader = s3blob.NewReader(s3Client)
		deps.BlobWriter = s3blob.NewWriter(s3Client)
		deps.SnapshotArchive = s3blob.NewSnapshotArchive(deps.BlobReader, cfg.Backtest.ArchivePrefix)
		deps.RunArchiver = s3blob.NewRunArchiver(deps.BlobWriter)

		if cfg.Backtest.Source == "s3" {
			deps.SnapshotSource = deps.SnapshotArchive
			deps.MarketSource = deps.SnapshotArchive
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
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
