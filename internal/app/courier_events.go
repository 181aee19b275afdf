package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/dig"

	"courier-dispatch/internal/config"
	"courier-dispatch/internal/logx"
	"courier-dispatch/internal/service/courier"
	"courier-dispatch/internal/service/courierapp"
	"courier-dispatch/internal/service/dispatch"
	"courier-dispatch/internal/transport/kafka"
)

var newConsumer = kafka.NewConsumer

func registerWorker(container *dig.Container) error {
	if err := provideAll(container,
		func(d *dispatch.Service, c *courier.Service, logger logx.Logger) *courierapp.Processor {
			return courierapp.NewProcessor(d, c, logger)
		},
		provideConsumer,
	); err != nil {
		return fmt.Errorf("worker: %w", err)
	}
	return nil
}

func provideConsumer(cfg *config.Config, logger logx.Logger, p *courierapp.Processor) (*kafka.Consumer, error) {
	k := cfg.Kafka
	return newConsumer(logger, k.Brokers, k.GroupID, k.CourierEventTopic, makeCourierEventHandler(p))
}

// makeCourierEventHandler marks rejected events permanent so the consumer commits past them.
func makeCourierEventHandler(p *courierapp.Processor) kafka.HandleFunc {
	return func(ctx context.Context, e courierapp.Event) error {
		err := p.Handle(ctx, e)
		if err != nil && errors.Is(err, courierapp.ErrRejected) {
			return kafka.Permanent(err)
		}
		return err
	}
}
