package kafka

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/arklim/social-login-auth/internal/infra/config"
)

const clientID = "social-login-auth"

// Producer sends events asynchronously. Delivery is best effort: failed messages
// are logged and counted, never retried beyond sarama's own retries.
type Producer struct {
	async    sarama.AsyncProducer
	logger   *zap.Logger
	prefix   string
	failures atomic.Int64
	drained  sync.WaitGroup
	closing  sync.Once
	closeErr error
}

// NewProducer dials the brokers and starts the delivery-error drain.
func NewProducer(cfg config.KafkaSettings, logger *zap.Logger) (*Producer, error) {
	async, err := sarama.NewAsyncProducer(cfg.Brokers, producerConfig())
	if err != nil {
		return nil, fmt.Errorf("create kafka producer for %v: %w", cfg.Brokers, err)
	}

	p := newProducer(async, cfg, logger)
	p.logger.Info("kafka producer ready",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic_prefix", p.prefix),
	)
	return p, nil
}

// producerConfig favours latency over durability: auth events are advisory and
// the leader ack is enough.
func producerConfig() *sarama.Config {
	c := sarama.NewConfig()
	c.Version = sarama.V3_5_0_0
	c.ClientID = clientID

	c.Producer.RequiredAcks = sarama.WaitForLocal
	c.Producer.Compression = sarama.CompressionSnappy
	// Keyed by user id so one user's events stay ordered on a partition.
	c.Producer.Partitioner = sarama.NewHashPartitioner
	c.Producer.Flush.Frequency = 100 * time.Millisecond
	c.Producer.Flush.Messages = 100
	c.Producer.Retry.Max = 3
	c.Producer.Return.Successes = false
	c.Producer.Return.Errors = true

	c.Metadata.Retry.Max = 3
	c.Metadata.Retry.Backoff = 250 * time.Millisecond
	return c
}

func newProducer(async sarama.AsyncProducer, cfg config.KafkaSettings, logger *zap.Logger) *Producer {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Producer{
		async:  async,
		logger: logger.Named("kafka"),
		prefix: strings.Trim(strings.TrimSpace(cfg.TopicPrefix), "."),
	}
	p.drained.Add(1)
	go p.drain()
	return p
}

// drain runs until sarama closes the error channel during Close.
func (p *Producer) drain() {
	defer p.drained.Done()
	for perr := range p.async.Errors() {
		if perr == nil {
			continue
		}
		p.failures.Add(1)
		fields := []zap.Field{zap.Error(perr.Err)}
		if perr.Msg != nil {
			fields = append(fields, zap.String("topic", perr.Msg.Topic))
		}
		p.logger.Error("kafka delivery failed", fields...)
	}
}

// Send hands the message to sarama, giving up when ctx ends first.
func (p *Producer) Send(ctx context.Context, message *sarama.ProducerMessage) error {
	if message.Timestamp.IsZero() {
		message.Timestamp = time.Now().UTC()
	}
	select {
	case p.async.Input() <- message:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("enqueue kafka message for %s: %w", message.Topic, ctx.Err())
	}
}

// Failures counts messages sarama gave up on.
func (p *Producer) Failures() int64 {
	return p.failures.Load()
}

// Close flushes buffered messages and waits for the error drain. Safe to call twice.
func (p *Producer) Close() error {
	p.closing.Do(func() {
		if err := p.async.Close(); err != nil {
			p.closeErr = fmt.Errorf("close kafka producer: %w", err)
		}
		p.drained.Wait()
		p.logger.Info("kafka producer closed", zap.Int64("failed_deliveries", p.Failures()))
	})
	return p.closeErr
}

// TopicName maps an event type onto the prefixed topic, e.g. "prod" + "auth.user.registered"
// becomes "prod.auth.user.registered".
func (p *Producer) TopicName(eventType string) string {
	if p.prefix == "" || strings.HasPrefix(eventType, p.prefix+".") {
		return eventType
	}
	return p.prefix + "." + eventType
}
