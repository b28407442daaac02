package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"eurobank-ledger/logger"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

type Handler func(ctx context.Context, event Event) error

// ErrMalformedMessage marks a stream entry that cannot be decoded. Such
// entries are acknowledged and dropped.
var ErrMalformedMessage = errors.New("malformed stream message")

type Subscriber struct {
	client        StreamClient
	group         string
	consumer      string
	stream        string
	handler       Handler
	batchSize     int64
	blockDuration time.Duration
	claimInterval time.Duration
}

type SubscriberConfig struct {
	Group         string
	Consumer      string
	Stream        string
	Handler       Handler
	BatchSize     int64
	BlockDuration time.Duration
	// ClaimInterval is how often pending entries are retried. An entry is
	// reclaimed once it has been idle for at least this long.
	ClaimInterval time.Duration
}

func NewSubscriber(client StreamClient, config SubscriberConfig) *Subscriber {
	if config.BatchSize == 0 {
		config.BatchSize = 10
	}
	if config.BlockDuration == 0 {
		config.BlockDuration = 5 * time.Second
	}
	if config.ClaimInterval == 0 {
		config.ClaimInterval = 30 * time.Second
	}

	return &Subscriber{
		client:        client,
		group:         config.Group,
		consumer:      config.Consumer,
		stream:        config.Stream,
		handler:       config.Handler,
		batchSize:     config.BatchSize,
		blockDuration: config.BlockDuration,
		claimInterval: config.ClaimInterval,
	}
}

// Start consumes the stream until ctx is cancelled. Entries left pending by
// a previous run of this consumer are replayed first. Entries whose handler
// fails stay pending and are reclaimed every ClaimInterval, together with
// entries abandoned by other consumers of the group.
func (s *Subscriber) Start(ctx context.Context) error {
	err := s.client.XGroupCreateMkStream(ctx, s.stream, s.group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	log := logger.Log.WithFields(logrus.Fields{"stream": s.stream, "group": s.group, "consumer": s.consumer})
	log.Info("Subscriber started")

	if n, err := s.replayPending(ctx); err != nil {
		log.WithError(err).Warn("Failed to replay pending messages")
	} else if n > 0 {
		log.WithField("acked", n).Info("Replayed pending messages")
	}
	lastClaim := time.Now()

	for {
		select {
		case <-ctx.Done():
			log.Info("Subscriber stopping")
			return ctx.Err()
		default:
		}

		if time.Since(lastClaim) >= s.claimInterval {
			if n, err := s.claimIdle(ctx); err != nil && ctx.Err() == nil {
				log.WithError(err).Warn("Failed to reclaim idle messages")
			} else if n > 0 {
				log.WithField("acked", n).Info("Reclaimed idle messages")
			}
			lastClaim = time.Now()
		}

		if _, err := s.readMessages(ctx, ">"); err != nil {
			if ctx.Err() != nil {
				continue
			}
			log.WithError(err).Error("Error reading messages")
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
			}
		}
	}
}

// replayPending walks this consumer's pending entries from the start of the
// stream, one batch at a time, until none are left past the cursor. Entries
// that fail again stay pending and are skipped.
func (s *Subscriber) replayPending(ctx context.Context) (int, error) {
	acked := 0
	cursor := "0"
	for {
		messages, err := s.read(ctx, cursor)
		if err != nil {
			return acked, err
		}
		if len(messages) == 0 {
			return acked, nil
		}
		acked += s.handle(ctx, messages)
		cursor = messages[len(messages)-1].ID
	}
}

// claimIdle takes over every pending entry of the group idle for at least
// claimInterval and processes it.
func (s *Subscriber) claimIdle(ctx context.Context) (int, error) {
	acked := 0
	start := "0-0"
	for {
		messages, next, err := s.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   s.stream,
			Group:    s.group,
			Consumer: s.consumer,
			MinIdle:  s.claimInterval,
			Start:    start,
			Count:    s.batchSize,
		}).Result()
		if err != nil {
			return acked, fmt.Errorf("failed to claim idle messages: %w", err)
		}
		acked += s.handle(ctx, messages)
		if next == "" || next == "0-0" {
			return acked, nil
		}
		start = next
	}
}

// readMessages reads one batch starting at id and returns how many entries
// were acknowledged.
func (s *Subscriber) readMessages(ctx context.Context, id string) (int, error) {
	messages, err := s.read(ctx, id)
	if err != nil {
		return 0, err
	}
	return s.handle(ctx, messages), nil
}

func (s *Subscriber) read(ctx context.Context, id string) ([]redis.XMessage, error) {
	streams, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    s.group,
		Consumer: s.consumer,
		Streams:  []string{s.stream, id},
		Count:    s.batchSize,
		Block:    s.blockDuration,
	}).Result()

	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read from stream: %w", err)
	}

	var messages []redis.XMessage
	for _, stream := range streams {
		messages = append(messages, stream.Messages...)
	}
	return messages, nil
}

// handle processes messages in order and acknowledges the ones that were
// handled or are malformed.
func (s *Subscriber) handle(ctx context.Context, messages []redis.XMessage) int {
	acked := 0
	for _, message := range messages {
		log := logger.Log.WithField("message_id", message.ID)
		if err := s.processMessage(ctx, message); err != nil {
			if !errors.Is(err, ErrMalformedMessage) {
				log.WithError(err).Warn("Failed to process message, leaving it pending")
				continue
			}
			log.WithError(err).Error("Dropping malformed message")
		}

		if err := s.client.XAck(ctx, s.stream, s.group, message.ID).Err(); err != nil {
			log.WithError(err).Error("Failed to ACK message")
			continue
		}
		acked++
	}
	return acked
}

func (s *Subscriber) processMessage(ctx context.Context, message redis.XMessage) error {
	eventData, ok := message.Values["event"].(string)
	if !ok {
		return fmt.Errorf("%w: missing event field", ErrMalformedMessage)
	}

	var event Event
	if err := json.Unmarshal([]byte(eventData), &event); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	return s.handler(ctx, event)
}
