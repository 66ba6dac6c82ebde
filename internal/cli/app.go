package cli

import (
	"context"
	"errors"
	"fmt"

	"fintrack/internal/aggregator"
	"fintrack/internal/amqp"
	"fintrack/internal/backend"
	"fintrack/internal/backup"
	"fintrack/internal/categories"
	"fintrack/internal/config"
	"fintrack/internal/events"
	"fintrack/internal/ledger"
	"fintrack/internal/log"
	"fintrack/internal/services"
	"fintrack/internal/worker"
)

// App is the wired set of components one command works with. Close releases
// them in reverse order of construction.
type App struct {
	Config     *config.Config
	Logger     *log.Logger
	Bus        *events.Bus
	Store      ledger.Store
	Categories *categories.Registry
	Ledger     *services.LedgerService
	Backups    *services.BackupService
	Summary    *aggregator.Aggregator
	AMQP       *amqp.Client // nil when AMQP_URL is unset

	forwarder *worker.Forwarder
	cleanup   []func() error
}

// Bootstrap opens the configured store, seeds the default categories on
// first start and builds the services and month aggregator on top of it.
// When AMQP is configured every committed change is forwarded to the broker.
// opts are applied to the aggregator after the configured cache settings.
func Bootstrap(ctx context.Context, cfg *config.Config, logger *log.Logger, opts ...aggregator.Option) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
		Bus:    events.NewBus(),
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(app.Bus, logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		return nil, err
	}
	app.Store = res.Store
	app.onClose(res.Cleanup)

	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without change notifications",
				log.FieldError, err)
		} else {
			app.AMQP = client
			app.onClose(client.Close)
			app.forwarder = worker.NewForwarder(client, cfg.ChangeBuffer, logger)
			app.forwarder.Start(ctx, app.Bus)
			app.onClose(func() error {
				app.forwarder.Stop()
				return nil
			})
			logger.Info("Forwarding ledger changes",
				"exchange", cfg.AMQPExchange,
				log.FieldRoutingKey, cfg.AMQPRoutingKey)
		}
	}

	app.Categories = categories.NewRegistry(app.Store, logger)
	if _, err := app.Categories.SeedDefaults(ctx); err != nil {
		return nil, errors.Join(err, app.Close())
	}

	app.Ledger = services.NewLedgerService(app.Store, app.Categories, logger)
	manager := backup.NewManager(backup.Config{
		PrimaryDir: cfg.DownloadsDir,
		PrivateDir: cfg.BackupDir(),
	}, app.Store, logger)
	app.Backups = services.NewBackupService(app.Store, manager, logger)

	app.Summary, err = aggregator.New(ctx, app.Store, app.Bus, append([]aggregator.Option{
		aggregator.WithCacheSize(cfg.ViewCacheSize),
		aggregator.WithCacheTTL(cfg.ViewCacheTTL),
		aggregator.WithLogger(logger),
	}, opts...)...)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("build month view: %w", err), app.Close())
	}
	app.onClose(func() error {
		app.Summary.Close()
		return nil
	})

	return app, nil
}

// Close is safe to call more than once.
func (a *App) Close() error {
	var errs []error
	for i := len(a.cleanup) - 1; i >= 0; i-- {
		if err := a.cleanup[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.cleanup = nil
	return errors.Join(errs...)
}

func (a *App) onClose(fn func() error) {
	if fn != nil {
		a.cleanup = append(a.cleanup, fn)
	}
}
