// Package consumer ingests security events from Kafka. Platform producers
// (request validation, the file-encryption service, the authentication flow,
// audit middleware) publish events to a topic; this consumer decodes and
// hands them to the engine.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"cad-sentinel/internal/monitor"
	"cad-sentinel/internal/schema"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// Config holds Kafka consumer settings.
type Config struct {
	Enabled  bool          `yaml:"enabled"`
	Brokers  []string      `yaml:"brokers"`
	Topic    string        `yaml:"topic"`
	GroupID  string        `yaml:"group_id"`
	MinBytes int           `yaml:"min_bytes"`
	MaxBytes int           `yaml:"max_bytes"`
	MaxWait  time.Duration `yaml:"max_wait"`
}

// DefaultConfig returns the default consumer configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:  false,
		Brokers:  []string{"localhost:9092"},
		Topic:    "security-events",
		GroupID:  "cad-sentinel",
		MinBytes: 1,
		MaxBytes: 10 << 20,
		MaxWait:  500 * time.Millisecond,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if len(c.Brokers) == 0 {
		return fmt.Errorf("consumer: at least one broker is required")
	}
	if c.Topic == "" {
		return fmt.Errorf("consumer: topic is required")
	}
	if c.GroupID == "" {
		return fmt.Errorf("consumer: group id is required")
	}
	return nil
}

// EventLogger is the slice of the engine the consumer needs.
type EventLogger interface {
	LogEvent(ctx context.Context, event *schema.SecurityEvent) (uuid.UUID, error)
}

// Consumer reads security events from a Kafka topic and feeds the engine.
type Consumer struct {
	reader *kafka.Reader
	engine EventLogger
	logger *slog.Logger

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New creates a new Consumer.
func New(cfg Config, engine EventLogger, logger *slog.Logger) (*Consumer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: cfg.MinBytes,
		MaxBytes: cfg.MaxBytes,
		MaxWait:  cfg.MaxWait,
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			logger.Error(fmt.Sprintf("kafka: "+msg, args...))
		}),
	})

	return &Consumer{
		reader: reader,
		engine: engine,
		logger: logger,
	}, nil
}

// Start launches the consume loop in the background.
func (c *Consumer) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.consumeLoop(ctx)
	}()
	c.logger.Info("event consumer started", "topic", c.reader.Config().Topic)
}

// Stop stops the consumer and closes the reader.
func (c *Consumer) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	return c.reader.Close()
}

func (c *Consumer) consumeLoop(ctx context.Context) {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			c.logger.Error("failed to fetch message", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
				continue
			}
		}

		if !c.processMessage(ctx, msg) {
			continue
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("failed to commit offset",
				"offset", msg.Offset,
				"error", err,
			)
		}
	}
}

// processMessage hands one payload to the engine and reports whether its
// offset should be committed. Poison messages must not stall the partition:
// malformed payloads and events the engine rejects as invalid are committed
// and skipped, since redelivery would fail identically. Only store failures
// leave the offset uncommitted for retry.
func (c *Consumer) processMessage(ctx context.Context, msg kafka.Message) bool {
	event, err := decodeEvent(msg.Value)
	if err != nil {
		c.logger.Warn("skipping malformed event payload",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err,
		)
		return true
	}

	if _, err := c.engine.LogEvent(ctx, event); err != nil {
		if errors.Is(err, monitor.ErrValidation) {
			c.logger.Warn("skipping invalid event",
				"event_type", event.EventType,
				"offset", msg.Offset,
				"error", err,
			)
			return true
		}
		c.logger.Error("failed to log consumed event",
			"event_type", event.EventType,
			"offset", msg.Offset,
			"error", err,
		)
		return false
	}
	return true
}

// decodeEvent parses one message payload into a security event.
func decodeEvent(payload []byte) (*schema.SecurityEvent, error) {
	var event schema.SecurityEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	if event.EventType == "" {
		return nil, fmt.Errorf("decode event: missing event_type")
	}
	return &event, nil
}
