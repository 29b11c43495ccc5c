package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/fevermarket/catalog-sync/internal/metrics"
	"github.com/fevermarket/catalog-sync/pkg/logger"
)

// EventBusConfig configures the sync-completion Kafka topic (SPEC_FULL.md
// DOMAIN STACK: sarama is repurposed here as a completion fan-out, never on the
// read path, so the HTTP/cache/store path never blocks on Kafka).
type EventBusConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// completionMessage is the wire shape published to the sync-events topic.
type completionMessage struct {
	MonthsTouched []string  `json:"months_touched"`
	Inserted      int       `json:"inserted"`
	Updated       int       `json:"updated"`
	PublishedAt   time.Time `json:"published_at"`
}

// KafkaCompletionPublisher publishes SyncCompletion records to Kafka after
// every successful sync_once. Modeled on the teacher's
// KafkaNotificationProducer: a sarama.SyncProducer with Return.Successes/Errors
// enabled and a hash partitioner, trimmed to the one message shape this
// pipeline needs.
type KafkaCompletionPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

// NewKafkaCompletionPublisher dials the producer. A nil *KafkaCompletionPublisher
// is never returned; callers that want the event bus disabled should pass a
// nil CompletionPublisher to NewPipeline instead of constructing one.
func NewKafkaCompletionPublisher(cfg EventBusConfig) (*KafkaCompletionPublisher, error) {
	saramaCfg := sarama.NewConfig()
	saramaCfg.Producer.Return.Successes = true
	saramaCfg.Producer.Return.Errors = true
	saramaCfg.Producer.RequiredAcks = sarama.WaitForLocal
	saramaCfg.Producer.Compression = sarama.CompressionSnappy
	saramaCfg.Producer.Retry.Max = 3
	saramaCfg.Producer.Partitioner = sarama.NewHashPartitioner

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("sync: create kafka producer: %w", err)
	}
	return &KafkaCompletionPublisher{producer: producer, topic: cfg.Topic}, nil
}

// PublishSyncCompletion implements CompletionPublisher.
func (p *KafkaCompletionPublisher) PublishSyncCompletion(ctx context.Context, completion SyncCompletion) error {
	payload, err := json.Marshal(completionMessage{
		MonthsTouched: completion.MonthsTouched,
		Inserted:      completion.Inserted,
		Updated:       completion.Updated,
		PublishedAt:   time.Now(),
	})
	if err != nil {
		return fmt.Errorf("sync: marshal completion: %w", err)
	}

	key := "catalog-sync"
	if len(completion.MonthsTouched) > 0 {
		key = completion.MonthsTouched[0]
	}

	_, _, err = p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(payload),
	})
	if err != nil {
		return fmt.Errorf("sync: publish completion: %w", err)
	}
	return nil
}

// Close releases the producer's connections.
func (p *KafkaCompletionPublisher) Close() error {
	return p.producer.Close()
}

// CompletionMetricsConsumer is a metrics-only consumer of the sync-events
// topic: it never feeds back into the cache or store, it only keeps
// Component J's invalidation counter honest against what was actually
// published, independent of the in-process Invalidate call the pipeline
// already made synchronously.
type CompletionMetricsConsumer struct {
	group   sarama.ConsumerGroup
	topic   string
	metrics *metrics.Collectors
	log     *logger.Logger
}

// NewCompletionMetricsConsumer joins the consumer group for cfg.Topic.
func NewCompletionMetricsConsumer(cfg EventBusConfig, m *metrics.Collectors, log *logger.Logger) (*CompletionMetricsConsumer, error) {
	saramaCfg := sarama.NewConfig()
	saramaCfg.Consumer.Return.Errors = true
	saramaCfg.Consumer.Offsets.Initial = sarama.OffsetNewest

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("sync: create kafka consumer group: %w", err)
	}
	return &CompletionMetricsConsumer{group: group, topic: cfg.Topic, metrics: m, log: log}, nil
}

// Run consumes until ctx is cancelled. It is meant to run in its own
// goroutine alongside the scheduler; a transient rebalance or broker error
// just restarts the claim loop, matching the teacher's runWorker retry shape.
func (c *CompletionMetricsConsumer) Run(ctx context.Context) {
	go func() {
		for err := range c.group.Errors() {
			c.log.WithError(err).Warn("completion consumer group error")
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			if err := c.group.Consume(ctx, []string{c.topic}, c); err != nil {
				if ctx.Err() != nil {
					return
				}
				c.log.WithError(err).Warn("completion consumer claim failed, retrying")
				time.Sleep(time.Second)
			}
		}
	}
}

// Close leaves the consumer group.
func (c *CompletionMetricsConsumer) Close() error {
	return c.group.Close()
}

// Setup implements sarama.ConsumerGroupHandler.
func (c *CompletionMetricsConsumer) Setup(sarama.ConsumerGroupSession) error { return nil }

// Cleanup implements sarama.ConsumerGroupHandler.
func (c *CompletionMetricsConsumer) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim implements sarama.ConsumerGroupHandler.
func (c *CompletionMetricsConsumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			var decoded completionMessage
			if err := json.Unmarshal(msg.Value, &decoded); err != nil {
				c.log.WithError(err).Warn("dropping unreadable completion message")
				session.MarkMessage(msg, "")
				continue
			}
			c.metrics.Invalidations.Add(float64(len(decoded.MonthsTouched)))
			session.MarkMessage(msg, "")
		case <-session.Context().Done():
			return nil
		}
	}
}
