package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/modryx/warden/internal/feed"
	"github.com/modryx/warden/internal/setup"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	app := &cli.Command{
		Name:  "warden",
		Usage: "Group moderation correlation and alerting engine",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Start the correlation and alerting engine",
				Action: func(ctx context.Context, _ *cli.Command) error {
					return runEngine(ctx)
				},
			},
		},
	}

	return app.Run(context.Background(), os.Args)
}

func runEngine(ctx context.Context) error {
	app, err := setup.InitializeApp(ctx)
	if err != nil {
		return err
	}
	defer app.Stop()

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Start(runCtx); err != nil {
		if errors.Is(err, feed.ErrAuth) {
			// A rejected token needs new credentials, not retries
			return err
		}

		// Transient connection failures keep retrying in the background
		app.Logger.Warn("Feed startup failed, reconnecting in background", zap.Error(err))
	}

	app.Logger.Info("Warden started",
		zap.Strings("trackedGroups", app.Config.Correlator.TrackedGroups))

	<-runCtx.Done()
	app.Logger.Info("Shutting down")

	return nil
}
