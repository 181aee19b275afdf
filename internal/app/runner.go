package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/dig"

	"courier-dispatch/internal/logx"
	"courier-dispatch/internal/service/tracking"
)

const shutdownTimeout = 15 * time.Second

// Runner runs the API server.
type Runner struct {
	runFn func(*dig.Container) error
}

// NewRunner returns a Runner for the API container.
func NewRunner() *Runner {
	return &Runner{runFn: run}
}

// MustRun starts the HTTP server using the provided DI container and blocks until shutdown.
func (r *Runner) MustRun(container *dig.Container) {
	err := r.runFn(container)
	if err == nil {
		return
	}
	logger := containerLogger(container)
	switch {
	case errors.Is(err, context.Canceled):
		logger.Info("shutdown requested, exiting")
	case errors.Is(err, context.DeadlineExceeded):
		logger.Warn("startup aborted: startup timeout exceeded")
	default:
		logger.Error("run error", logx.Err(err))
		panic(err)
	}
}

func containerLogger(container *dig.Container) logx.Logger {
	var logger logx.Logger = logx.Nop()
	_ = container.Invoke(func(l logx.Logger) { logger = l })
	return logger
}

type serveDeps struct {
	dig.In
	Ctx    context.Context
	Server *http.Server
	Pprof  pprofServer
	Logger logx.Logger
	Hub    *tracking.Hub
	Chain  *notifierChain
	DB     *dbHandle
}

func run(container *dig.Container) error {
	return container.Invoke(serve)
}

func serve(d serveDeps) error {
	errCh := make(chan error, 2)
	startServer(d.Server, d.Logger, errCh)
	if d.Pprof.Server != nil {
		startServer(d.Pprof.Server, d.Logger.With(logx.String("server", "pprof")), errCh)
	}

	var runErr error
	select {
	case <-d.Ctx.Done():
		d.Logger.Info("shutting down service-dispatch")
	case runErr = <-errCh:
		d.Logger.Error("server stopped", logx.Err(runErr))
	}

	gracefulShutdown(d.Server, d.Logger, shutdownTimeout)
	if d.Pprof.Server != nil {
		gracefulShutdown(d.Pprof.Server, d.Logger, shutdownTimeout)
	}
	closeResources(d.Hub, d.Chain, d.DB, d.Logger)
	return runErr
}

func startServer(server *http.Server, logger logx.Logger, errCh chan<- error) {
	go func() {
		logger.Info("listening", logx.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
}

func gracefulShutdown(srv *http.Server, logger logx.Logger, timeout time.Duration) {
	shCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shCtx); err != nil {
		logger.Warn("graceful shutdown error", logx.Err(err))
	}
}

func closeResources(hub *tracking.Hub, chain *notifierChain, db *dbHandle, logger logx.Logger) {
	if hub != nil {
		hub.Close()
	}
	if chain != nil {
		if err := chain.Close(); err != nil {
			logger.Error("notifier close error", logx.Err(err))
		}
	}
	db.Close()
	_ = logger.Sync()
}
