package infrastructure

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Server is anything the App runs until shutdown: the HTTP and gRPC
// listeners, NATS subscribers and the sweep scheduler.
type Server interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

type App struct {
	servers []Server
	logger  *slog.Logger
}

func NewApp(servers []Server, logger *slog.Logger) *App {
	return &App{servers: servers, logger: logger}
}

// Run starts every server and blocks until ctx is cancelled or one of them
// fails, then stops them all.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, srv := range a.servers {
		g.Go(func() error {
			return srv.Start(ctx)
		})
	}

	<-ctx.Done()
	a.logger.Info("shutting down")

	stopCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	for _, srv := range a.servers {
		if err := srv.Stop(stopCtx); err != nil {
			a.logger.Warn("server stop failed", "error", err)
		}
	}

	return g.Wait()
}
