package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"

	"github.com/1195214305/xhs-backend/config"
	"github.com/1195214305/xhs-backend/internal/domain/login/deps"
	"github.com/1195214305/xhs-backend/internal/domain/login/entities"
)

// ProduceRecorder receives Kafka produce measurements
type ProduceRecorder interface {
	RecordKafkaMessage(duration float64)
	RecordKafkaError(errorType string)
}

// EventProducer publishes login progress events to Kafka
type EventProducer struct {
	producer sarama.SyncProducer
	topic    string
	metrics  ProduceRecorder
	logger   zerolog.Logger
}

// NewEventProducer creates a Kafka producer for login events
func NewEventProducer(cfg *config.KafkaConfig, metrics ProduceRecorder, logger zerolog.Logger) (*EventProducer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("no kafka brokers specified")
	}
	if cfg.TopicLoginEvents == "" {
		return nil, errors.New("kafka topic is required")
	}

	saramaConfig := sarama.NewConfig()
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Retry.Max = 5
	saramaConfig.Producer.Retry.Backoff = 500 * time.Millisecond
	saramaConfig.Producer.Timeout = 10 * time.Second
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Version = sarama.V2_6_0_0
	saramaConfig.ClientID = "xhs-login-event-producer"

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		logger.Error().Err(err).Msg("failed to create login event producer")
		return nil, err
	}

	logger.Info().
		Strs("brokers", cfg.Brokers).
		Str("topic", cfg.TopicLoginEvents).
		Msg("Login event producer initialized")

	return NewEventProducerWith(producer, cfg.TopicLoginEvents, metrics, logger), nil
}

// NewEventProducerWith wraps an existing sarama producer
func NewEventProducerWith(producer sarama.SyncProducer, topic string, metrics ProduceRecorder, logger zerolog.Logger) *EventProducer {
	return &EventProducer{
		producer: producer,
		topic:    topic,
		metrics:  metrics,
		logger:   logger,
	}
}

// Emit publishes one progress event keyed by flow ID
func (p *EventProducer) Emit(_ context.Context, e entities.ProgressEvent) error {
	event := NewLoginEvent(e)

	bytes, err := json.Marshal(event)
	if err != nil {
		p.recordError("marshal_failed")
		return fmt.Errorf("failed to marshal login event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.FlowID),
		Value: sarama.ByteEncoder(bytes),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(event.Type)},
		},
	}

	start := time.Now()
	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		p.recordError("send_failed")
		p.logger.Error().Err(err).
			Str("topic", p.topic).
			Str("flow_id", event.FlowID).
			Str("step", event.Step).
			Msg("failed to send login event")
		return fmt.Errorf("failed to send login event: %w", err)
	}

	if p.metrics != nil {
		p.metrics.RecordKafkaMessage(time.Since(start).Seconds())
	}

	p.logger.Debug().
		Str("topic", p.topic).
		Str("type", event.Type).
		Str("flow_id", event.FlowID).
		Int32("partition", partition).
		Int64("offset", offset).
		Msg("Login event sent")

	return nil
}

// Close closes the Kafka producer
func (p *EventProducer) Close() error {
	if p.producer == nil {
		return nil
	}

	if err := p.producer.Close(); err != nil {
		p.logger.Error().Err(err).Msg("failed to close login event producer")
		return err
	}

	p.logger.Info().Msg("Login event producer closed")
	return nil
}

func (p *EventProducer) recordError(kind string) {
	if p.metrics != nil {
		p.metrics.RecordKafkaError(kind)
	}
}

var _ deps.ProgressSink = (*EventProducer)(nil)
