package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	s3blob "github.com/alanyoungcy/prizedraw/internal/blob/s3"
	"github.com/alanyoungcy/prizedraw/internal/cache/redis"
	"github.com/alanyoungcy/prizedraw/internal/config"
	"github.com/alanyoungcy/prizedraw/internal/crypto"
	"github.com/alanyoungcy/prizedraw/internal/domain"
	"github.com/alanyoungcy/prizedraw/internal/drawevent"
	"github.com/alanyoungcy/prizedraw/internal/entropy"
	"github.com/alanyoungcy/prizedraw/internal/notify"
	"github.com/alanyoungcy/prizedraw/internal/server/handler"
	"github.com/alanyoungcy/prizedraw/internal/store/memstore"
	"github.com/alanyoungcy/prizedraw/internal/store/mongo"
	"github.com/alanyoungcy/prizedraw/internal/store/postgres"
)

// memoryStreamLen bounds the in-process draw event stream when Redis is off.
const memoryStreamLen = 1000

// Dependencies bundles every collaborator the operating modes need. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Stores domain.Stores

	// Optional coordination. Locks and RateLimiter are nil without Redis.
	Locks       domain.LockManager
	RateLimiter domain.RateLimiter
	Bus         domain.EventBus

	Receipts domain.ReceiptStore
	Events   *drawevent.Publisher
	Entropy  *entropy.Ladder
	Notifier *notify.Dispatcher
	Alerter  *notify.Alerter

	// Checks are reported by GET /api/health.
	Checks map[string]handler.Pinger
}

// Wire constructs all concrete dependency implementations from cfg and
// returns them together with a cleanup function that should be called on
// shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	deps := &Dependencies{Checks: make(map[string]handler.Pinger)}

	// --- Document store ---
	switch strings.ToLower(cfg.Store.Driver) {
	case "postgres":
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
			return fail(fmt.Errorf("wire: postgres: %w", err))
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				return fail(fmt.Errorf("wire: postgres migrations: %w", err))
			}
		}
		deps.Stores = pgClient.Stores()
		deps.Checks["postgres"] = pgClient.Ping

	case "mongo":
		mongoClient, err := mongo.New(ctx, mongo.ClientConfig{
			URI:            cfg.Mongo.URI,
			Database:       cfg.Mongo.Database,
			ConnectTimeout: cfg.Mongo.ConnectTimeout.Duration,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: mongo: %w", err))
		}
		closers = append(closers, func() { _ = mongoClient.Close(context.Background()) })

		if err := mongoClient.EnsureIndexes(ctx); err != nil {
			return fail(fmt.Errorf("wire: mongo indexes: %w", err))
		}
		deps.Stores = mongoClient.Stores()
		deps.Checks["mongo"] = mongoClient.Ping

	default:
		logger.WarnContext(ctx, "wire: using in-memory store, state is lost on exit")
		deps.Stores = memstore.New().Stores()
	}

	// --- Redis ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.Locks = redis.NewLockManager(redisClient, logger)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.Bus = redis.NewEventBus(redisClient)
		deps.Checks["redis"] = redisClient.Ping
	} else {
		deps.Bus = drawevent.NewMemoryBus(memoryStreamLen)
	}
	deps.Events = drawevent.NewPublisher(deps.Bus, logger)

	// --- Receipts ---
	var receiptOpts []s3blob.ReceiptOption
	keyCfg := crypto.KeyConfig{
		Raw:      cfg.Receipts.SigningKey,
		KeyFile:  cfg.Receipts.SigningKeyFile,
		Password: cfg.Receipts.SigningKeyPassword,
	}
	if keyCfg.Configured() {
		key, err := crypto.LoadKey(keyCfg)
		if err != nil {
			return fail(fmt.Errorf("wire: receipt signing key: %w", err))
		}
		signer, err := crypto.NewReceiptSigner(key)
		if err != nil {
			return fail(fmt.Errorf("wire: receipt signer: %w", err))
		}
		logger.InfoContext(ctx, "wire: receipts are signed", slog.String("signer", signer.Address().Hex()))
		receiptOpts = append(receiptOpts, s3blob.WithSigner(signer))
	}
	if cfg.S3.Enabled {
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
			return fail(fmt.Errorf("wire: s3: %w", err))
		}
		deps.Receipts = s3blob.NewReceiptStore(s3blob.NewWriter(s3Client), s3blob.NewReader(s3Client), receiptOpts...)
		deps.Checks["s3"] = s3Client.Health
	} else {
		blob := s3blob.NewMemoryBlob()
		deps.Receipts = s3blob.NewReceiptStore(blob, blob, receiptOpts...)
	}

	// --- Entropy ladder ---
	var rungs []entropy.Rung
	if cfg.Entropy.ExplorerURL != "" {
		rungs = append(rungs, entropy.NewExplorerRung(cfg.Entropy.ExplorerURL, cfg.Entropy.ExplorerAPIKey))
	}
	if cfg.Entropy.RPCURL != "" {
		rpc, err := entropy.NewRPCRung(ctx, cfg.Entropy.RPCURL)
		if err != nil {
			// A dead RPC endpoint only removes one rung.
			logger.WarnContext(ctx, "wire: rpc entropy rung disabled",
				slog.String("error", err.Error()),
			)
		} else {
			closers = append(closers, rpc.Close)
			rungs = append(rungs, rpc)
		}
	}
	if cfg.Entropy.LatestBlockURL != "" {
		rungs = append(rungs, entropy.NewLatestBlockRung(cfg.Entropy.LatestBlockURL))
	}
	deps.Entropy = entropy.NewLadder(logger, cfg.Entropy.AttemptTimeout.Duration, rungs...)

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
	deps.Alerter = notify.NewAlerter(senders, cfg.Notify.Events, logger)
	deps.Notifier = notify.NewDispatcher(
		deps.Stores.Notifications,
		deps.Stores.EmailLogs,
		logger,
		notify.WithConcurrency(cfg.Engine.NotifyConcurrency),
		notify.WithSiteURL(cfg.Notify.SiteURL),
	)

	return deps, cleanup, nil
}
