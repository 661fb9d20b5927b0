package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"

	"github.com/baechuer/crm-platform/internal/platform/logger"
)

const (
	defaultMaxRetries  = 3
	defaultBackoffBase = 2 * time.Second
	defaultBackoffCap  = 60 * time.Second
	defaultPollTimeout = time.Second

	metricsLogEvery = 100
)

// Handler processes one decoded event. It returns nil on success, or a
// *HandlerError classified Retryable/Permanent. Any other error is treated
// as retryable so nothing is dropped.
type Handler func(ctx context.Context, evt Event) error

// Config describes one consumer group worker.
type Config struct {
	Brokers []string
	GroupID string
	Topics  []string
	Handler Handler
	DLQ     *DLQProducer

	MaxRetries  int           // defaults to 3
	BackoffBase time.Duration // defaults to 2s
	BackoffCap  time.Duration // defaults to 60s
}

func (c *Config) applyDefaults() {
	if c.MaxRetries <= 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = defaultBackoffBase
	}
	if c.BackoffCap <= 0 {
		c.BackoffCap = defaultBackoffCap
	}
}

// Counters is a point-in-time snapshot of the runtime's counters.
type Counters struct {
	Processed uint64
	Retried   uint64
	Failed    uint64
	DLQ       uint64
}

// Consumer runs one consumer group worker: poll, decode, invoke the handler
// under the retry/DLQ policy, and commit offsets only on terminal outcomes.
// Within a partition, handler invocations are strictly sequential.
type Consumer struct {
	cfg   Config
	group sarama.ConsumerGroup
	log   zerolog.Logger

	processed atomic.Uint64
	retried   atomic.Uint64
	failed    atomic.Uint64
	dlqCount  atomic.Uint64

	stopOnce sync.Once
	stopped  chan struct{}
}

// NewConsumer subscribes a fresh consumer group session. Auto-commit is
// disabled; offsets advance only after a terminal outcome.
func NewConsumer(cfg Config) (*Consumer, error) {
	cfg.applyDefaults()
	if cfg.GroupID == "" || len(cfg.Topics) == 0 {
		return nil, errors.New("consumer requires a group id and at least one topic")
	}
	if cfg.Handler == nil {
		return nil, errors.New("consumer requires a handler")
	}
	if cfg.DLQ == nil {
		return nil, errors.New("consumer requires a DLQ producer")
	}

	sc := sarama.NewConfig()
	sc.ClientID = cfg.GroupID
	sc.Version = sarama.V2_6_0_0
	sc.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	sc.Consumer.Offsets.AutoCommit.Enable = false
	sc.Consumer.MaxWaitTime = defaultPollTimeout

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, sc)
	if err != nil {
		return nil, fmt.Errorf("create consumer group %s: %w", cfg.GroupID, err)
	}

	return &Consumer{
		cfg:     cfg,
		group:   group,
		log:     logger.Logger.With().Str("component", "consumer").Str("consumer_group", cfg.GroupID).Logger(),
		stopped: make(chan struct{}),
	}, nil
}

// Run blocks until ctx is cancelled or Stop is called, rejoining the group
// after rebalances.
func (c *Consumer) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-c.stopped:
			cancel()
		case <-ctx.Done():
		}
	}()

	c.log.Info().
		Strs("topics", c.cfg.Topics).
		Int("max_retries", c.cfg.MaxRetries).
		Dur("backoff_base", c.cfg.BackoffBase).
		Dur("backoff_cap", c.cfg.BackoffCap).
		Msg("consumer starting")

	h := &groupHandler{c: c}
	for {
		if err := c.group.Consume(ctx, c.cfg.Topics, h); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) || ctx.Err() != nil {
				break
			}
			c.log.Error().Err(err).Msg("consume session failed")
			return err
		}
		if ctx.Err() != nil {
			break
		}
	}

	c.logMetrics("consumer stopping")
	return nil
}

// Stop terminates the run loop. Safe to call more than once; in-flight
// backoff sleeps are interrupted.
func (c *Consumer) Stop() error {
	var err error
	c.stopOnce.Do(func() {
		close(c.stopped)
		err = c.group.Close()
	})
	return err
}

// Counters reports processed/retried/failed/dlq totals.
func (c *Consumer) Counters() Counters {
	return Counters{
		Processed: c.processed.Load(),
		Retried:   c.retried.Load(),
		Failed:    c.failed.Load(),
		DLQ:       c.dlqCount.Load(),
	}
}

func (c *Consumer) logMetrics(msg string) {
	n := c.Counters()
	c.log.Info().
		Uint64("messages_processed_total", n.Processed).
		Uint64("messages_retried_total", n.Retried).
		Uint64("messages_failed_total", n.Failed).
		Uint64("messages_dlq_total", n.DLQ).
		Msg(msg)
}

// processWithRetry drives one message to a terminal outcome. It returns true
// when the offset may be committed: the handler succeeded, or the message was
// durably recorded in the DLQ. A false return leaves the message uncommitted
// for redelivery.
func (c *Consumer) processWithRetry(ctx context.Context, evt Event) bool {
	log := c.log.With().
		Str("topic", evt.Topic).
		Int32("partition", evt.Partition).
		Int64("offset", evt.Offset).
		Str("event_type", evt.Type).
		Logger()

	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		err := c.cfg.Handler(ctx, evt)
		if err == nil {
			processed := c.processed.Add(1)
			messagesProcessedTotal.WithLabelValues(c.cfg.GroupID).Inc()
			log.Info().Int("attempt", attempt).Msg("message processed")
			if processed%metricsLogEvery == 0 {
				c.logMetrics("consumer metrics update")
			}
			return true
		}

		if KindOf(err) == KindPermanent {
			c.failed.Add(1)
			messagesFailedTotal.WithLabelValues(c.cfg.GroupID).Inc()
			log.Error().Err(err).Msg("permanent failure, routing to DLQ")
			return c.routeToDLQ(evt, err.Error(), 0, log)
		}

		c.retried.Add(1)
		messagesRetriedTotal.WithLabelValues(c.cfg.GroupID).Inc()

		if attempt == c.cfg.MaxRetries {
			log.Error().Err(err).Int("retry_count", c.cfg.MaxRetries).Msg("retries exhausted, routing to DLQ")
			return c.routeToDLQ(evt, err.Error(), c.cfg.MaxRetries, log)
		}

		backoff := c.backoff(attempt)
		log.Warn().Err(err).
			Int("retry_attempt", attempt+1).
			Dur("backoff", backoff).
			Msg("retryable failure, backing off")

		select {
		case <-ctx.Done():
			return false
		case <-time.After(backoff):
		}
	}
	return false
}

func (c *Consumer) backoff(attempt int) time.Duration {
	d := c.cfg.BackoffBase << uint(attempt)
	if d > c.cfg.BackoffCap || d <= 0 {
		d = c.cfg.BackoffCap
	}
	return d
}

// routeToDLQ returns true only when the DLQ write was acknowledged; otherwise
// the message stays uncommitted and will be reprocessed.
func (c *Consumer) routeToDLQ(evt Event, reason string, retryCount int, log zerolog.Logger) bool {
	if err := c.cfg.DLQ.Send(evt.Topic, evt.Partition, evt.Offset, evt.Payload, reason, retryCount, c.cfg.GroupID); err != nil {
		log.Error().Err(err).Msg("DLQ publish failed, leaving message uncommitted")
		return false
	}
	c.dlqCount.Add(1)
	messagesDLQTotal.WithLabelValues(c.cfg.GroupID).Inc()
	return true
}

// handleMalformed deals with records whose body is not valid JSON: they are
// permanent by definition and carry the raw body into the DLQ envelope.
func (c *Consumer) handleMalformed(msg *sarama.ConsumerMessage, decodeErr error) bool {
	c.failed.Add(1)
	messagesFailedTotal.WithLabelValues(c.cfg.GroupID).Inc()

	log := c.log.With().
		Str("topic", msg.Topic).
		Int32("partition", msg.Partition).
		Int64("offset", msg.Offset).
		Logger()
	log.Error().Err(decodeErr).Msg("malformed payload, routing to DLQ")

	payload := map[string]any{
		"raw":         string(msg.Value),
		MetaTopic:     msg.Topic,
		MetaPartition: msg.Partition,
		MetaOffset:    msg.Offset,
	}
	return c.routeToDLQ(Event{Topic: msg.Topic, Partition: msg.Partition, Offset: msg.Offset, Payload: payload}, decodeErr.Error(), 0, log)
}

// groupHandler adapts the runtime onto sarama's consumer group callbacks.
type groupHandler struct {
	c *Consumer
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error {
	h.c.log.Info().Msg("consumer group session setup")
	return nil
}

func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	h.c.log.Info().Msg("consumer group session cleanup")
	return nil
}

// ConsumeClaim processes a partition claim sequentially. Offsets are marked
// and committed synchronously, only after a terminal outcome; a non-terminal
// message holds the partition.
func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	c := h.c
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}

			start := time.Now()
			evt, err := decodeEvent(msg)

			var terminal bool
			if err != nil {
				terminal = c.handleMalformed(msg, err)
			} else {
				terminal = c.processWithRetry(session.Context(), evt)
			}
			processingDuration.WithLabelValues(c.cfg.GroupID, msg.Topic).Observe(time.Since(start).Seconds())

			if !terminal {
				// Uncommitted message: end the session so the partition is
				// redelivered from the last committed offset.
				return nil
			}
			session.MarkMessage(msg, "")
			session.Commit()

		case <-session.Context().Done():
			return nil
		}
	}
}
