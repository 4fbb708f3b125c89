package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Delivery is one notification read back from a Redis stream.
type Delivery struct {
	ID           string
	Type         string
	Key          string
	Notification UserNotification
}

type Handler func(ctx context.Context, d Delivery) error

// Subscriber reads notifications from a Redis stream through a consumer group.
// Entries whose handler fails are left un-ACKed so the group can redeliver them.
type Subscriber struct {
	client        *redis.Client
	group         string
	consumer      string
	stream        string
	handler       Handler
	batchSize     int64
	blockDuration time.Duration
	log           logrus.FieldLogger
}

type SubscriberConfig struct {
	Group         string
	Consumer      string
	Stream        string
	Handler       Handler
	BatchSize     int64
	BlockDuration time.Duration
}

func NewSubscriber(client *redis.Client, config SubscriberConfig, log logrus.FieldLogger) *Subscriber {
	if config.BatchSize == 0 {
		config.BatchSize = 10
	}
	if config.BlockDuration == 0 {
		config.BlockDuration = 5 * time.Second
	}

	return &Subscriber{
		client:        client,
		group:         config.Group,
		consumer:      config.Consumer,
		stream:        config.Stream,
		handler:       config.Handler,
		batchSize:     config.BatchSize,
		blockDuration: config.BlockDuration,
		log:           log.WithFields(logrus.Fields{"stream": config.Stream, "group": config.Group}),
	}
}

// Start blocks reading the stream until ctx is cancelled.
func (s *Subscriber) Start(ctx context.Context) error {
	err := s.client.XGroupCreateMkStream(ctx, s.stream, s.group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	s.log.WithField("consumer", s.consumer).Info("subscriber started")

	for {
		select {
		case <-ctx.Done():
			s.log.Info("subscriber stopping")
			return ctx.Err()
		default:
			if _, err := s.Poll(ctx); err != nil {
				if ctx.Err() != nil {
					continue
				}
				s.log.WithError(err).Warn("error reading stream")
				time.Sleep(time.Second)
			}
		}
	}
}

// Poll reads and handles at most one batch and reports how many entries were ACKed.
func (s *Subscriber) Poll(ctx context.Context) (int, error) {
	streams, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    s.group,
		Consumer: s.consumer,
		Streams:  []string{s.stream, ">"},
		Count:    s.batchSize,
		Block:    s.blockDuration,
	}).Result()

	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read from stream: %w", err)
	}

	acked := 0
	for _, stream := range streams {
		for _, message := range stream.Messages {
			if err := s.processMessage(ctx, message); err != nil {
				s.log.WithError(err).WithField("entry_id", message.ID).Warn("failed to process entry")
				continue
			}

			if err := s.client.XAck(ctx, s.stream, s.group, message.ID).Err(); err != nil {
				s.log.WithError(err).WithField("entry_id", message.ID).Warn("failed to ACK entry")
				continue
			}
			acked++
		}
	}

	return acked, nil
}

func (s *Subscriber) processMessage(ctx context.Context, message redis.XMessage) error {
	payload, ok := message.Values[fieldMessage].(string)
	if !ok {
		return fmt.Errorf("invalid message format")
	}

	d := Delivery{ID: message.ID}
	d.Type, _ = message.Values[fieldType].(string)
	d.Key, _ = message.Values[fieldKey].(string)
	if err := json.Unmarshal([]byte(payload), &d.Notification); err != nil {
		return fmt.Errorf("failed to unmarshal notification: %w", err)
	}

	return s.handler(ctx, d)
}
