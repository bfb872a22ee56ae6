package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/advdv/bbody/bsrv"
)

// ServeCLI runs the bsrv application until interrupted.
type ServeCLI struct{}

func (s *ServeCLI) Run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := bsrv.NewApp[bsrv.BaseEnvironment](bsrv.Routing)
	if err := app.Err(); err != nil {
		return err
	}

	logger.Debug("starting service")
	return app.Start(ctx)
}
