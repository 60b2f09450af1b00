package app

import (
	"context"
	"fmt"
	"time"

	"github.com/juju/clock"

	"github.com/semmidev/phylaxctl/internal/adapter/api"
	"github.com/semmidev/phylaxctl/internal/adapter/compressor"
	"github.com/semmidev/phylaxctl/internal/adapter/draftstore"
	"github.com/semmidev/phylaxctl/internal/adapter/notify"
	"github.com/semmidev/phylaxctl/internal/adapter/storage"
	"github.com/semmidev/phylaxctl/internal/config"
	"github.com/semmidev/phylaxctl/internal/domain"
	"github.com/semmidev/phylaxctl/internal/infrastructure/logger"
	"github.com/semmidev/phylaxctl/internal/infrastructure/metrics"
	"github.com/semmidev/phylaxctl/internal/infrastructure/scheduler"
	"github.com/semmidev/phylaxctl/internal/usecase"
)

// App owns the adapters and use cases behind the console commands.
type App struct {
	config   *config.Config
	logger   *logger.Logger
	clock    clock.Clock
	client   *api.Client
	drafts   *draftstore.SQLiteStore
	notifier domain.Notifier
	preview  *scheduler.Preview

	catalog *usecase.Catalog
	backups *usecase.Backups
	cleanup *usecase.Cleanup
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	log, err := logger.New(cfg.App.LogLevel, cfg.App.LogFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	log.Debugf("Starting %s against %s", cfg.App.Name, cfg.API.BaseURL)

	client, err := api.New(api.Options{
		BaseURL:         cfg.API.BaseURL,
		Token:           cfg.API.Token,
		Timeout:         cfg.API.Timeout,
		CapabilitiesTTL: cfg.API.CapabilitiesTTL,
	})
	if err != nil {
		log.Close()
		return nil, fmt.Errorf("failed to initialize api client: %w", err)
	}

	drafts, err := draftstore.NewSQLite(cfg.Drafts.Path)
	if err != nil {
		log.Close()
		return nil, fmt.Errorf("failed to initialize draft store: %w", err)
	}

	downloads, err := storage.NewLocal(cfg.Downloads.Path)
	if err != nil {
		drafts.Close()
		log.Close()
		return nil, fmt.Errorf("failed to initialize downloads directory: %w", err)
	}

	var fetcher domain.ArtifactFetcher
	if cfg.Downloads.DirectS3 {
		s3, err := storage.NewS3(ctx, storage.S3Options{
			Region:    cfg.Downloads.Region,
			AccessKey: cfg.Downloads.AccessKey,
			SecretKey: cfg.Downloads.SecretKey,
			Endpoint:  cfg.Downloads.Endpoint,
		})
		if err != nil {
			drafts.Close()
			log.Close()
			return nil, fmt.Errorf("failed to initialize S3 fetcher: %w", err)
		}
		fetcher = s3
		log.Debugf("Direct S3 downloads enabled (region: %s)", cfg.Downloads.Region)
	}

	var notifier domain.Notifier
	if tg := cfg.Notifications.Telegram; tg.Enabled {
		bot, err := notify.NewTelegram(notify.TelegramOptions{BotToken: tg.BotToken, ChatID: tg.ChatID})
		if err != nil {
			// Notifications are best effort.
			log.Warnf("Telegram notifications disabled: %v", err)
		} else {
			notifier = bot
		}
	}

	clk := clock.WallClock
	return &App{
		config:   cfg,
		logger:   log,
		clock:    clk,
		client:   client,
		drafts:   drafts,
		notifier: notifier,
		preview:  scheduler.New(time.Local),
		catalog:  usecase.NewCatalog(client, log.Named("catalog")),
		backups: usecase.NewBackups(usecase.BackupsDeps{
			API:          client,
			Settings:     client,
			Downloads:    downloads,
			Fetcher:      fetcher,
			Decompressor: compressor.NewGzip(),
			Notifier:     notifier,
			Logger:       log.Named("backups"),
			Decompress:   cfg.Downloads.Decompress,
		}),
		cleanup: usecase.NewCleanup(downloads, clk, log.Named("cleanup"), cfg.Downloads.RetentionDays),
	}, nil
}

func (a *App) Logger() *logger.Logger              { return a.logger }
func (a *App) Catalog() *usecase.Catalog           { return a.catalog }
func (a *App) Backups() *usecase.Backups           { return a.backups }
func (a *App) Cleanup() *usecase.Cleanup           { return a.cleanup }
func (a *App) SchedulePreview() *scheduler.Preview { return a.preview }

func (a *App) flowConfig() usecase.FlowConfig {
	return usecase.FlowConfig{
		Clock:        a.clock,
		PollInterval: a.config.Verification.PollInterval,
		SuccessDelay: a.config.Verification.SuccessDelay,
		StatusTTL:    a.config.Verification.StatusTTL,
	}
}

func (a *App) flowDeps(onSuccess func(ctx context.Context)) usecase.FlowDeps {
	return usecase.FlowDeps{
		API:       a.client,
		Drafts:    a.drafts,
		Notifier:  a.notifier,
		Logger:    a.logger.Named("flow"),
		OnSuccess: onSuccess,
	}
}

// NewCreateFlow opens the add-connection form. onSuccess runs after a
// connection was created and verified.
func (a *App) NewCreateFlow(ctx context.Context, onSuccess func(ctx context.Context)) *usecase.ConnectionFlow {
	return usecase.NewCreateFlow(ctx, a.flowDeps(onSuccess), a.flowConfig())
}

func (a *App) NewEditFlow(ctx context.Context, connectionID string, onSuccess func(ctx context.Context)) (*usecase.ConnectionFlow, error) {
	return usecase.NewEditFlow(ctx, a.flowDeps(onSuccess), a.flowConfig(), connectionID)
}

// Settings loads the backup settings of a connection into a reconciler.
func (a *App) Settings(ctx context.Context, connectionID string) (*usecase.SettingsReconciler, error) {
	status := usecase.NewStatusBar(a.clock, a.config.Verification.StatusTTL)
	r := usecase.NewSettingsReconciler(a.client, connectionID, status, a.logger.Named("settings"))
	if err := r.Load(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

func (a *App) Shutdown() {
	if err := metrics.WriteTextfile(a.config.App.MetricsFile); err != nil {
		a.logger.Warnf("%v", err)
	}
	if err := a.drafts.Close(); err != nil {
		a.logger.Warnf("Failed to close draft store: %v", err)
	}
	a.logger.Close()
}
