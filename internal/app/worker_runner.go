package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/dig"

	"courier-dispatch/internal/logx"
	"courier-dispatch/internal/service/tracking"
	"courier-dispatch/internal/transport/kafka"
)

// WorkerRunner runs the courier-event consumer.
type WorkerRunner struct {
	runFn func(*dig.Container) error
}

// NewWorkerRunner returns a new WorkerRunner
func NewWorkerRunner() *WorkerRunner {
	return &WorkerRunner{runFn: runWorker}
}

// MustRun consumes courier events until the container context is cancelled.
func (r *WorkerRunner) MustRun(container *dig.Container) {
	err := r.runFn(container)
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	panic(err)
}

type workerDeps struct {
	dig.In
	Ctx      context.Context
	DB       *dbHandle
	Logger   logx.Logger
	Consumer *kafka.Consumer
	Chain    *notifierChain
	Hub      *tracking.Hub
}

func runWorker(container *dig.Container) error {
	return container.Invoke(func(d workerDeps) error {
		return workerRun(d.Ctx, d.DB, d.Logger, d.Consumer, d.Chain, d.Hub)
	})
}

func workerRun(
	ctx context.Context,
	db *dbHandle,
	logger logx.Logger,
	consumer *kafka.Consumer,
	chain *notifierChain,
	hub *tracking.Hub,
) error {
	if consumer == nil {
		return fmt.Errorf("kafka consumer is nil: worker container misconfigured")
	}
	defer closeWorker(db, logger, consumer, chain, hub)

	logger.Info("service-dispatch-worker started")
	return consumer.Run(ctx)
}

func closeWorker(db *dbHandle, logger logx.Logger, consumer *kafka.Consumer, chain *notifierChain, hub *tracking.Hub) {
	if consumer != nil {
		if err := consumer.Close(); err != nil {
			logger.Error("kafka close error", logx.Err(err))
		}
	}
	closeResources(hub, chain, db, logger)
}
