package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"eurobank-ledger/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// StreamClient is the subset of the Redis client used by the publisher and
// the subscriber.
type StreamClient interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
	XGroupCreateMkStream(ctx context.Context, stream, group, start string) *redis.StatusCmd
	XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd
	XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd
	XAutoClaim(ctx context.Context, a *redis.XAutoClaimArgs) *redis.XAutoClaimCmd
}

type Publisher struct {
	client StreamClient
	stream string
}

func NewPublisher(client StreamClient, stream string) *Publisher {
	return &Publisher{client: client, stream: stream}
}

// Publish appends one event to the publisher's stream.
func (p *Publisher) Publish(ctx context.Context, eventType, correlationID string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	event := Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          payload,
	}

	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{
			"event": string(eventJSON),
		},
	}

	id, err := p.client.XAdd(ctx, args).Result()
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	logger.Log.WithFields(logrus.Fields{
		"stream":         p.stream,
		"type":           eventType,
		"message_id":     id,
		"correlation_id": correlationID,
	}).Debug("Event published")
	return nil
}
