// Package kafka carries JSON events over segmentio/kafka-go. The consumer
// retries a failing handler with backoff and commits a message only once the
// handler accepts it.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/pkg/resilience"
)

// ContentTypeHeader tags the encoding of a message value.
const ContentTypeHeader = "content-type"

// MessageHandler processes one message. A returned error leaves the message
// uncommitted.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ConsumerStats counts messages since start.
type ConsumerStats struct {
	Processed int64
	Failed    int64
}

type Consumer struct {
	reader  messageReader
	handler MessageHandler
	retry   resilience.RetryConfig
	logger  *slog.Logger

	processed atomic.Int64
	failed    atomic.Int64
	mu        sync.Mutex
	lastErr   error
}

// NewConsumer joins the configured group suffixed by instance, so that every
// replica sees every message, and starts from the newest offset.
func NewConsumer(cfg config.KafkaConfig, topic, instance string, handler MessageHandler) *Consumer {
	group := cfg.ConsumerGroup
	if instance != "" {
		group += "-" + instance
	}
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     group,
		MinBytes:    1,
		MaxBytes:    1e6,
		MaxWait:     500 * time.Millisecond,
		StartOffset: kafka.LastOffset,
	})
	c := newConsumer(r, handler)
	c.logger = c.logger.With("topic", topic, "group", group)
	return c
}

func newConsumer(r messageReader, handler MessageHandler) *Consumer {
	return &Consumer{
		reader:  r,
		handler: handler,
		retry:   resilience.RetryConfig{MaxAttempts: 3, InitialDelay: time.Second, MaxDelay: 30 * time.Second},
		logger:  slog.Default().With("component", "kafka-consumer"),
	}
}

// Start consumes until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started")
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping", "reason", ctx.Err())
				return nil
			}
			c.setErr(fmt.Errorf("fetching: %w", err))
			c.logger.Error("fetch failed", "error", err)
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return nil
			}
			continue
		}
		c.process(ctx, msg)
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) {
	log := c.logger.With("partition", msg.Partition, "offset", msg.Offset, "key", string(msg.Key))
	log.Debug("message received")

	err := resilience.Retry(ctx, "handle message", c.retry, func(ctx context.Context, _ int) error {
		return c.handler(ctx, msg.Key, msg.Value)
	})
	if err != nil {
		c.failed.Add(1)
		c.setErr(err)
		log.Error("message left uncommitted", "error", err)
		return
	}
	c.processed.Add(1)
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		c.setErr(fmt.Errorf("committing: %w", err))
		log.Error("commit failed", "error", err)
		return
	}
	c.setErr(nil)
}

func (c *Consumer) setErr(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
}

// LastError is the outcome of the most recent fetch, handle or commit; nil
// once a message went through.
func (c *Consumer) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Consumer) Stats() ConsumerStats {
	return ConsumerStats{Processed: c.processed.Load(), Failed: c.failed.Load()}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

// DecodeJSON unmarshals a message value into T.
func DecodeJSON[T any](value []byte) (T, error) {
	var result T
	if err := json.Unmarshal(value, &result); err != nil {
		return result, fmt.Errorf("decoding kafka message: %w", err)
	}
	return result, nil
}
