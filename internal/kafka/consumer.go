// Package kafka consumes catalog change events published by the product
// import jobs. Its only job here is cache invalidation; the search
// service never produces catalog events itself.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/meatwise/search-service/internal/config"
	"github.com/meatwise/search-service/internal/models"
	"github.com/meatwise/search-service/internal/resilience"
)

type MessageHandler func(ctx context.Context, event *models.ProductChangeEvent) error

type Consumer struct {
	reader     *kafka.Reader
	dlqWriter  *kafka.Writer
	handler    MessageHandler
	cfg        config.KafkaConfig
	logger     *zap.Logger
	wg         sync.WaitGroup
	cancelFunc context.CancelFunc
}

func NewConsumer(cfg config.KafkaConfig, handler MessageHandler, logger *zap.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.TopicChanges,
		GroupID:        cfg.ConsumerGroup,
		MinBytes:       1e3,  // 1KB
		MaxBytes:       10e6, // 10MB
		MaxWait:        500 * time.Millisecond,
		CommitInterval: cfg.CommitInterval,
		StartOffset:    kafka.LastOffset,
	})

	dlqWriter := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers...),
		Topic:    cfg.TopicDLQ,
		Balancer: &kafka.Hash{},
	}

	logger.Info("kafka consumer created",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic", cfg.TopicChanges),
		zap.String("group", cfg.ConsumerGroup),
	)

	return &Consumer{
		reader:    reader,
		dlqWriter: dlqWriter,
		handler:   handler,
		cfg:       cfg,
		logger:    logger,
	}
}

func (c *Consumer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancelFunc = cancel

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.consumeLoop(ctx)
	}()

	c.logger.Info("kafka consumer started")
	return nil
}

func (c *Consumer) consumeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("kafka consumer shutting down")
			return
		default:
		}

		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("fetching kafka message", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		c.processMessage(ctx, msg)
	}
}

func (c *Consumer) processMessage(ctx context.Context, msg kafka.Message) {
	var event models.ProductChangeEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		c.logger.Error("unmarshaling kafka message",
			zap.Error(err),
			zap.Int64("offset", msg.Offset),
			zap.Int("partition", msg.Partition),
		)
		c.sendToDLQ(ctx, msg, fmt.Sprintf("unmarshal error: %v", err))
		c.commitMessage(ctx, msg)
		return
	}

	retryCfg := resilience.RetryConfig{
		MaxAttempts: c.cfg.MaxRetries,
		InitialWait: 100 * time.Millisecond,
		MaxWait:     5 * time.Second,
		Multiplier:  2,
	}
	err := resilience.Retry(ctx, retryCfg, func() error {
		if err := c.handler(ctx, &event); err != nil {
			c.logger.Warn("handler error, retrying",
				zap.Error(err),
				zap.String("code", event.Code),
			)
			return err
		}
		return nil
	})
	if err != nil {
		c.logger.Error("handler exhausted retries, sending to DLQ",
			zap.Error(err),
			zap.String("code", event.Code),
		)
		c.sendToDLQ(ctx, msg, fmt.Sprintf("handler error: %v", err))
	}

	c.commitMessage(ctx, msg)
}

func (c *Consumer) sendToDLQ(ctx context.Context, msg kafka.Message, reason string) {
	dlqMsg := kafka.Message{
		Key:   msg.Key,
		Value: msg.Value,
		Headers: append(msg.Headers, kafka.Header{
			Key:   "dlq-reason",
			Value: []byte(reason),
		}),
	}
	if err := c.dlqWriter.WriteMessages(ctx, dlqMsg); err != nil {
		c.logger.Error("writing to DLQ", zap.Error(err))
	}
}

func (c *Consumer) commitMessage(ctx context.Context, msg kafka.Message) {
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		c.logger.Error("committing kafka message", zap.Error(err))
	}
}

// HealthCheck reports reader liveness for the readiness probe.
func (c *Consumer) HealthCheck(ctx context.Context) error {
	stats := c.reader.Stats()
	if stats.ClientID == "" && stats.Topic == "" {
		return fmt.Errorf("kafka reader not initialized")
	}
	return nil
}

func (c *Consumer) Stop() {
	if c.cancelFunc != nil {
		c.cancelFunc()
	}
	c.wg.Wait()
	if err := c.reader.Close(); err != nil {
		c.logger.Error("closing kafka reader", zap.Error(err))
	}
	if err := c.dlqWriter.Close(); err != nil {
		c.logger.Error("closing DLQ writer", zap.Error(err))
	}
}
