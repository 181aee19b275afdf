// Package app wires the dispatch service together with dig.
package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/dig"

	"courier-dispatch/internal/config"
	"courier-dispatch/internal/logx"
	"courier-dispatch/internal/metrics"
	"courier-dispatch/internal/service/courier"
	"courier-dispatch/internal/service/dispatch"
	"courier-dispatch/internal/service/tracking"
)

type dbConnectFunc func(ctx context.Context, logger logx.Logger, dsn string, retries int, delay time.Duration) (*pgxpool.Pool, error)

// ContainerBuilder is a dig container builder.
type ContainerBuilder struct {
	dbConnect  dbConnectFunc
	loadConfig func() (*config.Config, error)
	registerer prometheus.Registerer
	logFatalf  func(string, ...interface{})
}

// NewContainerBuilder returns a builder that reads the real configuration.
func NewContainerBuilder() *ContainerBuilder {
	return &ContainerBuilder{
		dbConnect:  connectDbWithRetry,
		loadConfig: config.Load,
		registerer: prometheus.DefaultRegisterer,
		logFatalf:  log.Fatalf,
	}
}

// WithDBConnect sets the database connection function
func (b *ContainerBuilder) WithDBConnect(fn dbConnectFunc) *ContainerBuilder {
	if fn != nil {
		b.dbConnect = fn
	}
	return b
}

// WithConfig makes the container use cfg instead of loading one.
func (b *ContainerBuilder) WithConfig(cfg *config.Config) *ContainerBuilder {
	if cfg != nil {
		b.loadConfig = func() (*config.Config, error) { return cfg, nil }
	}
	return b
}

// WithRegisterer sets where metrics are registered.
func (b *ContainerBuilder) WithRegisterer(reg prometheus.Registerer) *ContainerBuilder {
	if reg != nil {
		b.registerer = reg
	}
	return b
}

// WithLogFatalf sets the log.Fatalf function
func (b *ContainerBuilder) WithLogFatalf(fn func(string, ...interface{})) *ContainerBuilder {
	if fn != nil {
		b.logFatalf = fn
	}
	return b
}

// MustBuild builds the API container.
func (b *ContainerBuilder) MustBuild(ctx context.Context) *dig.Container {
	container, err := b.build(ctx, registerHTTP)
	if err != nil {
		b.logFatalf("failed to build container: %v", err)
	}
	return container
}

// MustBuildWorker builds the courier-event worker container.
func (b *ContainerBuilder) MustBuildWorker(ctx context.Context) *dig.Container {
	container, err := b.build(ctx, registerWorker)
	if err != nil {
		b.logFatalf("failed to build worker container: %v", err)
	}
	return container
}

func (b *ContainerBuilder) build(ctx context.Context, surface func(*dig.Container) error) (*dig.Container, error) {
	container := dig.New()

	if err := b.registerCore(container, ctx); err != nil {
		return nil, fmt.Errorf("core: %w", err)
	}
	if err := registerDb(container, b.dbConnect); err != nil {
		return nil, fmt.Errorf("DB: %w", err)
	}
	if err := registerStore(container); err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	if err := registerService(container); err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}
	if err := surface(container); err != nil {
		return nil, err
	}
	return container, nil
}

// MustBuildContainer builds the API container from the environment.
func MustBuildContainer(ctx context.Context) *dig.Container {
	return NewContainerBuilder().MustBuild(ctx)
}

// MustBuildWorkerContainer builds the worker container from the environment.
func MustBuildWorkerContainer(ctx context.Context) *dig.Container {
	return NewContainerBuilder().MustBuildWorker(ctx)
}

func provideAll(container *dig.Container, providers ...any) error {
	for _, provider := range providers {
		if err := container.Provide(provider); err != nil {
			return fmt.Errorf("provide %T: %w", provider, err)
		}
	}
	return nil
}

func (b *ContainerBuilder) registerCore(container *dig.Container, ctx context.Context) error {
	return provideAll(container,
		func() context.Context { return ctx },
		b.loadConfig,
		NewLogger,
		func() prometheus.Registerer { return b.registerer },
		provideDispatchMetrics,
		provideTrackingMetrics,
	)
}

func provideDispatchMetrics(reg prometheus.Registerer) (*metrics.Dispatch, error) {
	m := metrics.NewDispatch()
	return m, metrics.Register(reg, m.Collectors()...)
}

func provideTrackingMetrics(reg prometheus.Registerer) (*metrics.Tracking, error) {
	m := metrics.NewTracking()
	return m, metrics.Register(reg, m.Collectors()...)
}

func registerService(container *dig.Container) error {
	return provideAll(container,
		tracking.NewHub,
		provideNotifier,
		func(
			b *backends,
			hub *tracking.Hub,
			n *notifierChain,
			logger logx.Logger,
			m *metrics.Dispatch,
			cfg *config.Config,
		) *dispatch.Service {
			return dispatch.NewService(b.dispatch, hub, n.notifier, logger, m, cfg.Dispatch.OperationTimeout)
		},
		func(b *backends, hub *tracking.Hub, logger logx.Logger, cfg *config.Config) *courier.Service {
			return courier.NewService(b.couriers, b.dispatch, hub, logger, cfg.Dispatch.OperationTimeout)
		},
	)
}
