package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"StockSense/pkg/config"
	xhttp "StockSense/pkg/http"
	applogger "StockSense/pkg/logger"
	"StockSense/pkg/queue"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	httpServer *xhttp.Server
	queue      *queue.RedisQueue
}

// New creates an App. q may be nil when training runs in the request.
func New(cfg *config.Config, log *applogger.Logger, httpServer *xhttp.Server, q *queue.RedisQueue, jobs ...queue.Job) *App {
	if q != nil && len(jobs) > 0 {
		q.RegisterJobs(jobs)
	}
	return &App{cfg: cfg, log: log, httpServer: httpServer, queue: q}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts the queue workers and the HTTP server and shuts them down when ctx is done.
func (a *App) RunContext(ctx context.Context) error {
	if a.queue != nil {
		if err := a.queue.Start(); err != nil {
			return fmt.Errorf("start queue: %w", err)
		}
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	a.log.Info("stocksense started",
		applogger.String("env", a.cfg.Environment),
		applogger.Int("port", a.cfg.Server.Port),
		applogger.String("store", a.cfg.Store.Backend),
		applogger.String("data", a.cfg.Data.Source),
		applogger.Bool("queue", a.queue != nil),
	)

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	return a.shutdown()
}

// shutdown stops accepting requests first, then waits for in-flight training jobs.
func (a *App) shutdown() error {
	timeout := a.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var firstErr error
	if err := a.httpServer.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
		firstErr = err
	}
	if a.queue != nil {
		if err := a.queue.Stop(ctx); err != nil {
			a.log.Warn("queue stop error", applogger.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	a.log.Info("shutdown complete")
	return firstErr
}
