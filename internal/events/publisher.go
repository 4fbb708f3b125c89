package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Stream entry fields written by RedisStreamPublisher.
const (
	fieldType    = "type"
	fieldKey     = "key"
	fieldMessage = "message"
)

// RedisStreamPublisher appends notifications to a Redis stream named after the topic.
type RedisStreamPublisher struct {
	client *redis.Client
	stream string
	log    logrus.FieldLogger
}

func NewRedisStreamPublisher(client *redis.Client, stream string, log logrus.FieldLogger) *RedisStreamPublisher {
	return &RedisStreamPublisher{client: client, stream: stream, log: log}
}

func (p *RedisStreamPublisher) Publish(ctx context.Context, eventType, key string, n UserNotification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{
			fieldType:    eventType,
			fieldKey:     key,
			fieldMessage: payload,
		},
	}

	id, err := p.client.XAdd(ctx, args).Result()
	if err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}

	p.log.WithFields(logrus.Fields{
		"stream":   p.stream,
		"type":     eventType,
		"entry_id": id,
	}).Debug("notification published")
	return nil
}
