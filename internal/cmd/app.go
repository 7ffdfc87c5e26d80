package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/mailcraft/mailcraft"
	"github.com/mailcraft/mailcraft/internal/store/postgres"
	"github.com/mailcraft/mailcraft/pkg/blob"
	"github.com/mailcraft/mailcraft/pkg/cache"
	"github.com/mailcraft/mailcraft/pkg/logger"
	"github.com/mailcraft/mailcraft/pkg/schedule"
	"github.com/mailcraft/mailcraft/pkg/sender"
	resendsender "github.com/mailcraft/mailcraft/pkg/sender/resend"
	smtpsender "github.com/mailcraft/mailcraft/pkg/sender/smtp"
	"github.com/mailcraft/mailcraft/pkg/template"
	"github.com/mailcraft/mailcraft/pkg/tracking"
	"github.com/mailcraft/mailcraft/pkg/view"
)

// app holds the wired subsystems shared by the commands.
type app struct {
	cfg    appConfig
	logger *slog.Logger
	pool   *pgxpool.Pool

	client    *mailcraft.Client
	engine    *schedule.Engine
	logs      *postgres.LogStore
	scheduled *postgres.ScheduledStore
	abtests   *postgres.ABTestStore
}

// newApp loads the stores and builds the client and scheduling engine from
// configuration.
func newApp(ctx context.Context, cfg appConfig) (*app, error) {
	log := logger.NewWithSentry(
		logger.Config{Level: cfg.Log.slogLevel()},
		logger.SentryConfig{DSN: cfg.Log.SentryDSN, Environment: cfg.Log.SentryEnvironment},
		logger.SendID, logger.ScheduleUUID,
	)

	pool, err := postgres.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	logStore := postgres.NewLogStore(pool)
	scheduledStore := postgres.NewScheduledStore(pool)
	abtestStore := postgres.NewABTestStore(pool)

	registry := sender.NewRegistry()
	if cfg.Resend.APIKey != "" {
		registry.Register("resend", resendsender.New(cfg.Resend))
	}
	if cfg.SMTP.Host != "" {
		registry.Register("smtp", smtpsender.New(cfg.SMTP))
	}
	failover := sender.NewFailover(registry, cfg.Mail.Providers.Order(), sender.WithLogger(log))

	source := templateSource(pool, cfg, log)
	rewriter := tracking.NewRewriter(logStore, cfg.Mail.Tracking, tracking.WithLogger(log))
	views := view.NewRenderer(os.DirFS("."), cfg.Views)

	opts := []mailcraft.ClientOption{
		mailcraft.WithClientLogger(log),
		mailcraft.WithLogStore(logStore),
		mailcraft.WithScheduleStore(scheduledStore),
		mailcraft.WithTemplates(source),
		mailcraft.WithViews(views),
		mailcraft.WithRewriter(rewriter),
		mailcraft.WithABTests(abtestStore),
	}
	opener, err := blobOpener(cfg)
	if err != nil {
		pool.Close()
		return nil, err
	}
	if opener != nil {
		opts = append(opts, mailcraft.WithBlobOpener(opener))
	}

	client, err := mailcraft.NewClient(cfg.Mail, failover, opts...)
	if err != nil {
		pool.Close()
		return nil, err
	}

	evaluator := schedule.NewEvaluator(
		schedule.WithExister(scheduledStore),
		schedule.WithEvaluatorLogger(log),
	)
	engine := schedule.NewEngine(scheduledStore, client, cfg.Mail.Schedule,
		schedule.WithEngineLogger(log),
		schedule.WithEvaluator(evaluator),
	)

	return &app{
		cfg:       cfg,
		logger:    log,
		pool:      pool,
		client:    client,
		engine:    engine,
		logs:      logStore,
		scheduled: scheduledStore,
		abtests:   abtestStore,
	}, nil
}

func (a *app) close() {
	a.pool.Close()
}

// templateSource wraps the database template store in a cache. Redis when
// configured, otherwise per-process memory.
func templateSource(pool *pgxpool.Pool, cfg appConfig, log *slog.Logger) template.Source {
	store := postgres.NewTemplateStore(pool)

	var c cache.Cache[*template.Version]
	if cfg.Cache.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.Cache.RedisURL)
		if err != nil {
			log.Warn("invalid redis url, using in-process template cache", slog.Any("error", err))
			c = cache.NewMemory[*template.Version]()
		} else {
			c = cache.NewRedis[*template.Version](redis.NewClient(redisOpts), nil)
		}
	} else {
		c = cache.NewMemory[*template.Version]()
	}

	return template.NewCachedSource(store, c, cfg.Cache.TemplateTTL)
}

// blobOpener builds the attachment disk registry from configuration.
// Returns nil when no disks are configured.
func blobOpener(cfg appConfig) (*blob.Registry, error) {
	if len(cfg.Storage.Disks) == 0 {
		return nil, nil
	}

	registry := blob.NewRegistry()
	for name, diskCfg := range cfg.Storage.Disks {
		disk, err := blob.NewS3Disk(diskCfg)
		if err != nil {
			return nil, fmt.Errorf("storage disk %s: %w", name, err)
		}
		registry.Register(name, disk)
	}
	return registry, nil
}
