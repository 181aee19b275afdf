package app

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/dig"

	"courier-dispatch/internal/config"
	"courier-dispatch/internal/logx"
	"courier-dispatch/internal/metrics"
	"courier-dispatch/internal/notify"
	"courier-dispatch/internal/transport/kafka"
)

const (
	notifyQueueSize    = 1024
	notifyDeliveryTime = 10 * time.Second
	notifyDrainTimeout = 5 * time.Second
)

// notifierChain is the transition sink plus what must be drained and closed on exit.
type notifierChain struct {
	notifier notify.Notifier
	async    *notify.AsyncNotifier
	producer *kafka.Producer
}

// Close drains queued notices, then closes the producer.
func (n *notifierChain) Close() error {
	if n == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), notifyDrainTimeout)
	defer cancel()
	return errors.Join(n.async.Close(ctx), n.producer.Close())
}

type notifierIn struct {
	dig.In
	Cfg     *config.Config
	Logger  logx.Logger
	Reg     prometheus.Registerer
	Metrics *metrics.Dispatch
}

var newProducer = kafka.NewProducer

// provideNotifier always logs transitions. With brokers set it also publishes
// them to Kafka from a background queue so a slow broker never holds up a transition.
func provideNotifier(in notifierIn) (*notifierChain, error) {
	sinks := notify.FanOut{notify.NewLogNotifier(in.Logger)}
	chain := &notifierChain{}

	producer, err := newProducer(in.Cfg.Kafka.Brokers, in.Cfg.Kafka.NotifyTopic)
	if err != nil {
		return nil, err
	}
	if producer != nil {
		retries := metrics.NewKafkaPublishRetriesTotal()
		if err := metrics.Register(in.Reg, retries); err != nil {
			_ = producer.Close()
			return nil, err
		}
		k := in.Cfg.Kafka
		retrying := notify.NewRetryingNotifier(producer, in.Logger, retries, notify.RetryConfig{
			MaxAttempts: k.PublishAttempts,
			BaseDelay:   k.PublishBaseDelay,
			MaxDelay:    k.PublishMaxDelay,
		})
		var failures prometheus.Counter
		if in.Metrics != nil {
			failures = in.Metrics.NotifyFailures
		}
		chain.async = notify.NewAsyncNotifier(retrying, in.Logger, failures, notify.AsyncConfig{
			QueueSize: notifyQueueSize,
			Timeout:   notifyDeliveryTime,
		})
		sinks = append(sinks, chain.async)
		chain.producer = producer
		in.Logger.Info("kafka notifications enabled", logx.String("topic", k.NotifyTopic))
	}
	chain.notifier = sinks
	return chain, nil
}
