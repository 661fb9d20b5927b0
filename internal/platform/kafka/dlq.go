package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"

	"github.com/baechuer/crm-platform/internal/platform/logger"
)

// DLQEnvelope is the record written to "<topic>.dlq.<group>". It carries
// enough metadata to replay or triage the original message.
type DLQEnvelope struct {
	OriginalTopic     string         `json:"original_topic"`
	OriginalPartition int32          `json:"original_partition"`
	OriginalOffset    int64          `json:"original_offset"`
	OriginalPayload   map[string]any `json:"original_payload"`
	FailureReason     string         `json:"failure_reason"`
	RetryCount        int            `json:"retry_count"`
	FailedAt          string         `json:"failed_at"`
	ConsumerGroup     string         `json:"consumer_group"`
}

// DLQProducer emits failure envelopes to dead-letter sibling topics.
type DLQProducer struct {
	sp  sarama.SyncProducer
	log zerolog.Logger
	now func() time.Time
}

// NewDLQProducer connects a dedicated producer for dead-letter traffic.
func NewDLQProducer(brokers []string) (*DLQProducer, error) {
	sp, err := sarama.NewSyncProducer(brokers, producerConfig("dlq-producer"))
	if err != nil {
		return nil, fmt.Errorf("create dlq producer: %w", err)
	}
	return WrapDLQProducer(sp), nil
}

// WrapDLQProducer builds a DLQProducer around an existing sarama producer.
func WrapDLQProducer(sp sarama.SyncProducer) *DLQProducer {
	return &DLQProducer{
		sp:  sp,
		log: logger.Logger.With().Str("component", "dlq_producer").Logger(),
		now: time.Now,
	}
}

// Send routes one failed message to the consumer group's dead-letter topic.
// The key is the origin coordinates so replays land on a stable partition.
func (d *DLQProducer) Send(topic string, partition int32, offset int64, payload map[string]any, failureReason string, retryCount int, consumerGroup string) error {
	dlqTopic := fmt.Sprintf("%s.dlq.%s", topic, consumerGroup)

	envelope := DLQEnvelope{
		OriginalTopic:     topic,
		OriginalPartition: partition,
		OriginalOffset:    offset,
		OriginalPayload:   payload,
		FailureReason:     failureReason,
		RetryCount:        retryCount,
		FailedAt:          d.now().UTC().Format(time.RFC3339Nano),
		ConsumerGroup:     consumerGroup,
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("encode dlq envelope: %w", err)
	}

	key := fmt.Sprintf("%s:%d:%d", topic, partition, offset)
	_, _, err = d.sp.SendMessage(&sarama.ProducerMessage{
		Topic: dlqTopic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(body),
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", dlqTopic, err)
	}

	d.log.Warn().
		Str("dlq_topic", dlqTopic).
		Str("key", key).
		Int("retry_count", retryCount).
		Str("failure_reason", failureReason).
		Msg("message routed to DLQ")
	return nil
}

func (d *DLQProducer) Close() error {
	return d.sp.Close()
}
