package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/IBM/sarama"

	"courier-dispatch/internal/domain"
)

var newSyncProducer = sarama.NewSyncProducer

// Producer publishes delivery transition notices keyed by request id.
type Producer struct {
	producer sarama.SyncProducer
	topic    string
}

// NewProducer creates a Producer. It returns nil when Kafka is not configured.
func NewProducer(brokers []string, topic string) (*Producer, error) {
	if len(brokers) == 0 || strings.TrimSpace(topic) == "" {
		return nil, nil
	}

	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Return.Successes = true
	cfg.Producer.Retry.Max = 0
	cfg.Producer.Timeout = 5 * time.Second
	cfg.Net.DialTimeout = 3 * time.Second
	cfg.Net.ReadTimeout = 5 * time.Second
	cfg.Net.WriteTimeout = 5 * time.Second

	p, err := newSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}
	return NewProducerFrom(p, topic), nil
}

// NewProducerFrom wraps an existing sarama.SyncProducer.
func NewProducerFrom(p sarama.SyncProducer, topic string) *Producer {
	return &Producer{producer: p, topic: topic}
}

// Notify publishes one notice. Ordering per request follows from the key.
func (p *Producer) Notify(ctx context.Context, n domain.TransitionNotice) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b, err := json.Marshal(FromNotice(n))
	if err != nil {
		return Permanent(fmt.Errorf("encode notice: %w", err))
	}
	_, _, err = p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(n.RequestID),
		Value: sarama.ByteEncoder(b),
	})
	if err != nil {
		return fmt.Errorf("publish notice %s: %w", n.RequestID, err)
	}
	return nil
}

// Close closes the underlying producer
func (p *Producer) Close() error {
	if p == nil {
		return nil
	}
	return p.producer.Close()
}
