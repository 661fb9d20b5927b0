package kafka

import (
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"

	"github.com/baechuer/crm-platform/internal/platform/logger"
)

// Publisher is the narrow producer surface application services depend on.
type Publisher interface {
	Publish(topic, key string, value map[string]any) error
}

// Producer publishes JSON domain events keyed by entity identifier.
// One instance per service; pass it into constructors, never share globals.
type Producer struct {
	sp  sarama.SyncProducer
	log zerolog.Logger
}

func producerConfig(clientID string) *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.ClientID = clientID
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Return.Successes = true
	cfg.Version = sarama.V2_6_0_0
	return cfg
}

// NewProducer connects a synchronous producer to the broker.
func NewProducer(brokers []string, clientID string) (*Producer, error) {
	sp, err := sarama.NewSyncProducer(brokers, producerConfig(clientID))
	if err != nil {
		return nil, fmt.Errorf("create producer: %w", err)
	}
	return WrapProducer(sp), nil
}

// WrapProducer builds a Producer around an existing sarama producer.
// Tests use this with sarama/mocks.
func WrapProducer(sp sarama.SyncProducer) *Producer {
	return &Producer{
		sp:  sp,
		log: logger.Logger.With().Str("component", "producer").Logger(),
	}
}

// Publish sends one event and waits for the delivery report.
func (p *Producer) Publish(topic, key string, value map[string]any) error {
	body, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode event for %s: %w", topic, err)
	}

	partition, offset, err := p.sp.SendMessage(&sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(body),
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}

	p.log.Debug().
		Str("topic", topic).
		Int32("partition", partition).
		Int64("offset", offset).
		Str("key", key).
		Msg("event published")
	return nil
}

func (p *Producer) Close() error {
	return p.sp.Close()
}
