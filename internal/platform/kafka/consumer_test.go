package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConsumer(cfg Config, sp sarama.SyncProducer) *Consumer {
	cfg.applyDefaults()
	dlq := WrapDLQProducer(sp)
	dlq.log = zerolog.Nop()
	dlq.now = func() time.Time { return time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC) }
	cfg.DLQ = dlq
	return &Consumer{
		cfg:     cfg,
		log:     zerolog.Nop(),
		stopped: make(chan struct{}),
	}
}

func testEvent() Event {
	return Event{
		Type:      "crm.customer.created",
		Topic:     "crm.customer.created",
		Partition: 2,
		Offset:    41,
		Payload: map[string]any{
			"customer_id":  "c-1",
			"event_type":   "crm.customer.created",
			MetaTopic:      "crm.customer.created",
			MetaPartition:  int32(2),
			MetaOffset:     int64(41),
		},
	}
}

func TestProcessWithRetrySuccessFirstAttempt(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	defer sp.Close()

	invocations := 0
	c := newTestConsumer(Config{
		GroupID: "audit-service-group",
		Handler: func(ctx context.Context, evt Event) error {
			invocations++
			return nil
		},
	}, sp)

	terminal := c.processWithRetry(context.Background(), testEvent())

	assert.True(t, terminal)
	assert.Equal(t, 1, invocations)
	assert.Equal(t, Counters{Processed: 1}, c.Counters())
}

func TestProcessWithRetryPermanentShortCircuits(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	defer sp.Close()
	sp.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		assert.Equal(t, "crm.customer.created.dlq.audit-service-group", msg.Topic)

		var env DLQEnvelope
		body, err := msg.Value.Encode()
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &env))
		assert.Equal(t, 0, env.RetryCount)
		assert.Contains(t, env.FailureReason, "missing customer_id")
		return nil
	})

	invocations := 0
	c := newTestConsumer(Config{
		GroupID:     "audit-service-group",
		MaxRetries:  3,
		BackoffBase: time.Hour, // a backoff sleep here would hang the test
		Handler: func(ctx context.Context, evt Event) error {
			invocations++
			return Permanent("missing customer_id", nil)
		},
	}, sp)

	terminal := c.processWithRetry(context.Background(), testEvent())

	assert.True(t, terminal)
	assert.Equal(t, 1, invocations, "permanent failures must not be retried")
	assert.Equal(t, Counters{Failed: 1, DLQ: 1}, c.Counters())
}

func TestProcessWithRetryExhaustionRoutesToDLQ(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	defer sp.Close()
	sp.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		var env DLQEnvelope
		body, err := msg.Value.Encode()
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &env))
		assert.Equal(t, 2, env.RetryCount)
		assert.Equal(t, "audit-service-group", env.ConsumerGroup)
		return nil
	})

	invocations := 0
	c := newTestConsumer(Config{
		GroupID:     "audit-service-group",
		MaxRetries:  2,
		BackoffBase: 10 * time.Millisecond,
		Handler: func(ctx context.Context, evt Event) error {
			invocations++
			return Retryable("db unavailable", errors.New("dial tcp: refused"))
		},
	}, sp)

	start := time.Now()
	terminal := c.processWithRetry(context.Background(), testEvent())
	elapsed := time.Since(start)

	assert.True(t, terminal)
	assert.Equal(t, 3, invocations, "initial attempt plus two retries")
	assert.Equal(t, Counters{Retried: 3, DLQ: 1}, c.Counters())
	// 10ms + 20ms of backoff between the three attempts
	assert.GreaterOrEqual(t, elapsed, 30*time.Millisecond)
}

func TestProcessWithRetrySucceedsAfterRetry(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	defer sp.Close()

	invocations := 0
	c := newTestConsumer(Config{
		GroupID:     "notification-service-group",
		MaxRetries:  3,
		BackoffBase: time.Millisecond,
		Handler: func(ctx context.Context, evt Event) error {
			invocations++
			if invocations == 1 {
				return Retryable("db unavailable", nil)
			}
			return nil
		},
	}, sp)

	terminal := c.processWithRetry(context.Background(), testEvent())

	assert.True(t, terminal)
	assert.Equal(t, 2, invocations)
	assert.Equal(t, Counters{Processed: 1, Retried: 1}, c.Counters())
}

func TestProcessWithRetryUnclassifiedErrorIsRetryable(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	defer sp.Close()
	sp.ExpectSendMessageAndSucceed()

	invocations := 0
	c := newTestConsumer(Config{
		GroupID:     "audit-service-group",
		MaxRetries:  1,
		BackoffBase: time.Millisecond,
		Handler: func(ctx context.Context, evt Event) error {
			invocations++
			return errors.New("panic adjacent")
		},
	}, sp)

	terminal := c.processWithRetry(context.Background(), testEvent())

	assert.True(t, terminal)
	assert.Equal(t, 2, invocations)
	assert.Equal(t, Counters{Retried: 2, DLQ: 1}, c.Counters())
}

func TestProcessWithRetryDLQPublishFailureIsNotTerminal(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	defer sp.Close()
	sp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	c := newTestConsumer(Config{
		GroupID:     "audit-service-group",
		MaxRetries:  1,
		BackoffBase: time.Millisecond,
		Handler: func(ctx context.Context, evt Event) error {
			return Permanent("bad payload", nil)
		},
	}, sp)

	terminal := c.processWithRetry(context.Background(), testEvent())

	assert.False(t, terminal, "offset must not advance when the DLQ write fails")
	assert.Equal(t, uint64(0), c.Counters().DLQ)
}

func TestProcessWithRetryCancelledDuringBackoff(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	defer sp.Close()

	ctx, cancel := context.WithCancel(context.Background())
	c := newTestConsumer(Config{
		GroupID:     "audit-service-group",
		MaxRetries:  3,
		BackoffBase: time.Hour,
		Handler: func(ctx context.Context, evt Event) error {
			cancel()
			return Retryable("db unavailable", nil)
		},
	}, sp)

	start := time.Now()
	terminal := c.processWithRetry(ctx, testEvent())

	assert.False(t, terminal)
	assert.Less(t, time.Since(start), time.Second, "cancellation must interrupt the backoff sleep")
}

func TestHandleMalformedRoutesRawBodyToDLQ(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	defer sp.Close()
	sp.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		var env DLQEnvelope
		body, err := msg.Value.Encode()
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &env))
		assert.Equal(t, "{not json", env.OriginalPayload["raw"])
		assert.Equal(t, 0, env.RetryCount)
		return nil
	})

	c := newTestConsumer(Config{GroupID: "audit-service-group"}, sp)

	msg := &sarama.ConsumerMessage{
		Topic:     "crm.customer.created",
		Partition: 0,
		Offset:    7,
		Value:     []byte("{not json"),
	}
	_, decodeErr := decodeEvent(msg)
	require.Error(t, decodeErr)

	terminal := c.handleMalformed(msg, decodeErr)

	assert.True(t, terminal)
	assert.Equal(t, Counters{Failed: 1, DLQ: 1}, c.Counters())
}

func TestBackoffDoublesAndCaps(t *testing.T) {
	c := &Consumer{cfg: Config{BackoffBase: 2 * time.Second, BackoffCap: 60 * time.Second}}

	assert.Equal(t, 2*time.Second, c.backoff(0))
	assert.Equal(t, 4*time.Second, c.backoff(1))
	assert.Equal(t, 32*time.Second, c.backoff(4))
	assert.Equal(t, 60*time.Second, c.backoff(5))
	assert.Equal(t, 60*time.Second, c.backoff(40), "shift overflow falls back to the cap")
}

func TestNewConsumerValidation(t *testing.T) {
	_, err := NewConsumer(Config{Topics: []string{"crm.customer.created"}})
	assert.Error(t, err)

	_, err = NewConsumer(Config{GroupID: "g", Topics: []string{"t"}})
	assert.Error(t, err, "handler is required")
}
