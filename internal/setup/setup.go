package setup

import (
	"context"
	"fmt"

	"github.com/modryx/warden/internal/alert"
	"github.com/modryx/warden/internal/correlator"
	"github.com/modryx/warden/internal/event"
	"github.com/modryx/warden/internal/feed"
	"github.com/modryx/warden/internal/platform"
	"github.com/modryx/warden/internal/rules"
	"github.com/modryx/warden/internal/setup/config"
	"github.com/modryx/warden/internal/store"
	"github.com/modryx/warden/internal/watcher"
	"go.uber.org/zap"
)

// App bundles all core services and their dependencies. Each service is
// an explicitly owned instance with start/stop methods; nothing lives in
// module-level globals.
type App struct {
	Config       *config.Config
	Logger       *zap.Logger
	StoreManager *store.Manager
	Store        *store.Store
	Platform     *platform.Client
	Feed         *feed.Client
	LocalSource  *watcher.ChannelSource
	Correlator   *correlator.Correlator
	Dispatcher   *alert.Dispatcher
	Processor    *rules.Processor
}

// InitializeApp bootstraps all application dependencies in order, so
// each component has what it needs when constructed.
func InitializeApp(ctx context.Context) (*App, error) {
	cfg, configDir, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := NewLogger(&cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	logger.Info("Loaded configuration", zap.String("configDir", configDir))

	storeManager := store.NewManager(&cfg.Redis, logger)

	st, err := store.New(storeManager, logger)
	if err != nil {
		return nil, err
	}

	platformClient := platform.NewClient(&cfg.Platform, cfg.Platform.AuthToken, logger)

	overlay := alert.NewOverlayChannel(&cfg.Alerts.Overlay, logger)

	corr := correlator.New(
		platformClient, st, nil,
		cfg.Correlator.TrackedGroups, cfg.Correlator.RefreshIntervalDuration(), logger,
	)

	fallback := alert.NewFallbackChannel(&cfg.Alerts.Fallback, platformClient, corr, logger)
	dispatcher := alert.NewDispatcher(&cfg.Alerts.Overlay, overlay, fallback, logger)
	corr.SetNotifier(dispatcher)

	processor := rules.NewProcessor(platformClient, st, st, dispatcher, logger)

	feedClient := feed.NewClient(&cfg.Feed, logger)
	feedClient.Subscribe(event.KindNotification, processor.HandleNotification)
	feedClient.Subscribe(event.KindWildcard, corr.HandleEvent)

	return &App{
		Config:       cfg,
		Logger:       logger,
		StoreManager: storeManager,
		Store:        st,
		Platform:     platformClient,
		Feed:         feedClient,
		LocalSource:  watcher.NewChannelSource(),
		Correlator:   corr,
		Dispatcher:   dispatcher,
		Processor:    processor,
	}, nil
}

// Start brings the long-running loops up: alert channels, the
// correlator, and finally the feed connection.
func (a *App) Start(ctx context.Context) error {
	a.Dispatcher.Start(ctx)
	a.Correlator.Start(ctx, a.LocalSource)

	return a.Feed.Connect(ctx, a.Config.Platform.AuthToken)
}

// Stop tears the services down in reverse order.
func (a *App) Stop() {
	a.Feed.Disconnect()
	a.Correlator.Stop()
	a.Dispatcher.Stop()
	a.StoreManager.Close()
	_ = a.Logger.Sync()
}
