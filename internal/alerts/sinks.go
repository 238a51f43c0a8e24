package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"velowind/internal/metrics"
	"velowind/internal/models"

	"github.com/go-redis/redis/v8"
)

// streamMaxLen bounds the warnings stream
const streamMaxLen = 500

// StreamPublisher publishes warnings to a Redis stream under the "data" field
type StreamPublisher struct {
	client *redis.Client
	stream string
}

// NewStreamPublisher creates a publisher for stream
func NewStreamPublisher(client *redis.Client, stream string) *StreamPublisher {
	return &StreamPublisher{client: client, stream: stream}
}

// Publish is a Callback
func (p *StreamPublisher) Publish(ctx context.Context, warning models.WindWarning) error {
	data, err := json.Marshal(warning)
	if err != nil {
		return fmt.Errorf("failed to serialize warning: %w", err)
	}

	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]interface{}{"data": string(data)},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to publish warning to %s: %w", p.stream, err)
	}
	return nil
}

// Consumer defaults
const (
	defaultBlock      = 5 * time.Second
	defaultRetryEvery = time.Minute
	defaultMinIdle    = time.Minute
	readErrorBackoff  = time.Second
	pendingBatch      = 100
)

// StreamConsumer reads warnings published by a StreamPublisher through a
// consumer group, so several archivers can share one stream. The consumer
// name must be stable across restarts for its pending entries to be retried.
type StreamConsumer struct {
	client   *redis.Client
	stream   string
	group    string
	consumer string
	logger   *slog.Logger

	block      time.Duration
	retryEvery time.Duration
	minIdle    time.Duration
}

// NewStreamConsumer creates a consumer named consumer in group
func NewStreamConsumer(client *redis.Client, stream, group, consumer string, logger *slog.Logger) *StreamConsumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamConsumer{
		client:     client,
		stream:     stream,
		group:      group,
		consumer:   consumer,
		logger:     logger,
		block:      defaultBlock,
		retryEvery: defaultRetryEvery,
		minIdle:    defaultMinIdle,
	}
}

// Run hands every warning to handle until ctx is done. Messages are
// acknowledged only when handle succeeds; undecodable messages are
// acknowledged and dropped. Unacknowledged messages, including those left
// idle by other consumers of the group, are retried at startup and then
// every retryEvery.
func (c *StreamConsumer) Run(ctx context.Context, handle Callback) error {
	err := c.client.XGroupCreateMkStream(ctx, c.stream, c.group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group %s: %w", c.group, err)
	}

	c.retryPending(ctx, handle)
	lastRetry := time.Now()

	for {
		if time.Since(lastRetry) >= c.retryEvery {
			c.retryPending(ctx, handle)
			lastRetry = time.Now()
		}

		streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.group,
			Consumer: c.consumer,
			Streams:  []string{c.stream, ">"},
			Count:    10,
			Block:    c.block,
		}).Result()

		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			c.logger.Error("failed to read warnings stream", "stream", c.stream, "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(readErrorBackoff):
			}
			continue
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				c.process(ctx, msg, handle)
			}
		}
	}
}

// process acks msg when handle succeeds or when msg cannot be decoded
func (c *StreamConsumer) process(ctx context.Context, msg redis.XMessage, handle Callback) {
	warning, err := DecodeStreamMessage(msg.Values)
	if err != nil {
		c.logger.Warn("dropping malformed warning", "id", msg.ID, "error", err)
		metrics.RecordStreamMessage("dropped")
		c.ack(msg.ID)
		return
	}

	if err := handle(ctx, warning); err != nil {
		c.logger.Error("failed to handle warning", "id", msg.ID, "col", warning.ColID, "error", err)
		metrics.RecordStreamMessage("failed")
		return
	}
	metrics.RecordStreamMessage("acked")
	c.ack(msg.ID)
}

func (c *StreamConsumer) retryPending(ctx context.Context, handle Callback) {
	c.claimIdle(ctx)
	c.drainPending(ctx, handle)
}

// claimIdle takes over entries other consumers left unacknowledged for at
// least minIdle
func (c *StreamConsumer) claimIdle(ctx context.Context) {
	pending, err := c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: c.stream,
		Group:  c.group,
		Start:  "-",
		End:    "+",
		Count:  pendingBatch,
	}).Result()
	if err != nil {
		c.logger.Warn("failed to list pending warnings", "stream", c.stream, "error", err)
		return
	}

	var ids []string
	for _, p := range pending {
		if p.Consumer != c.consumer && p.Idle >= c.minIdle {
			ids = append(ids, p.ID)
		}
	}
	if len(ids) == 0 {
		return
	}

	err = c.client.XClaimJustID(ctx, &redis.XClaimArgs{
		Stream:   c.stream,
		Group:    c.group,
		Consumer: c.consumer,
		MinIdle:  c.minIdle,
		Messages: ids,
	}).Err()
	if err != nil {
		c.logger.Warn("failed to claim idle warnings", "stream", c.stream, "error", err)
		return
	}
	c.logger.Info("claimed idle warnings", "stream", c.stream, "count", len(ids))
}

// drainPending replays this consumer's unacknowledged entries once each
func (c *StreamConsumer) drainPending(ctx context.Context, handle Callback) {
	lastID := "0"
	for ctx.Err() == nil {
		streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.group,
			Consumer: c.consumer,
			Streams:  []string{c.stream, lastID},
			Count:    pendingBatch,
			Block:    -1,
		}).Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
				c.logger.Warn("failed to read pending warnings", "stream", c.stream, "error", err)
			}
			return
		}

		var read int
		for _, stream := range streams {
			for _, msg := range stream.Messages {
				read++
				lastID = msg.ID
				c.process(ctx, msg, handle)
			}
		}
		if read == 0 {
			return
		}
	}
}

func (c *StreamConsumer) ack(id string) {
	if err := c.client.XAck(context.Background(), c.stream, c.group, id).Err(); err != nil {
		c.logger.Warn("failed to ack warning", "id", id, "error", err)
	}
}

// DecodeStreamMessage reverses StreamPublisher.Publish
func DecodeStreamMessage(values map[string]interface{}) (models.WindWarning, error) {
	var warning models.WindWarning

	raw, ok := values["data"].(string)
	if !ok {
		return warning, errors.New("message has no data field")
	}
	if err := json.Unmarshal([]byte(raw), &warning); err != nil {
		return warning, fmt.Errorf("failed to decode warning: %w", err)
	}
	return warning, nil
}

// WarningStore persists issued warnings
type WarningStore interface {
	StoreWarning(ctx context.Context, warning models.WindWarning) error
}

// ArchiveCallback adapts a WarningStore into a Callback
func ArchiveCallback(store WarningStore) Callback {
	return func(ctx context.Context, warning models.WindWarning) error {
		if err := store.StoreWarning(ctx, warning); err != nil {
			return fmt.Errorf("failed to archive warning: %w", err)
		}
		return nil
	}
}
