// Package server initializes and runs the share verification server. It
// opens the backing store, applies migrations, wires the services, and
// starts the HTTP endpoint with graceful shutdown on OS signals.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"sharegate/internal/logging"
	"sharegate/internal/server/api"
	"sharegate/internal/server/config"
	"sharegate/internal/server/repositories/repomanager"
	"sharegate/internal/server/services"
)

type App struct {
	config *config.Config
	logger logging.Logger
	server *api.Server
}

func NewApp(c *config.Config) (*App, error) {

	sl := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(sl)

	rm, db, err := repomanager.NewPostgresRepositoryManager(context.Background(), c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	sessionService := services.NewSessionService(db, rm, c)
	shareService := services.NewShareService(db, rm, sessionService, c)
	downloadService := services.NewDownloadService(db, rm, sessionService, c)
	quotaService := services.NewQuotaService(db, rm, c)
	uploadService := services.NewUploadService(db, rm, quotaService, downloadService, c)

	server := api.NewServer(c.EndpointAddrHTTP, logger, []byte(c.SecretKey),
		shareService, downloadService, uploadService, quotaService)

	return &App{config: c, logger: logger, server: server}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	app.logger.Info(ctx, "starting http server", "addr", app.config.EndpointAddrHTTP)

	if err := app.server.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()
}
