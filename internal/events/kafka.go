package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// MessageWriter is the part of *kafka.Writer used by KafkaPublisher.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaWriter returns an asynchronous writer for topic. WriteMessages
// returns once a message is queued; delivery failures are reported to the
// completion callback and logged.
func NewKafkaWriter(brokers []string, topic string, log logrus.FieldLogger) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		Async:                  true,
		BatchTimeout:           50 * time.Millisecond,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				log.WithError(err).WithField("count", len(messages)).Error("kafka delivery failed")
			}
		},
	}
}

// KafkaPublisher sends notifications as Kafka messages keyed by user id.
type KafkaPublisher struct {
	writer MessageWriter
	log    logrus.FieldLogger
}

func NewKafkaPublisher(writer MessageWriter, log logrus.FieldLogger) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, log: log}
}

func (p *KafkaPublisher) Publish(ctx context.Context, eventType, key string, n UserNotification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	msg := kafka.Message{
		Key:     []byte(key),
		Value:   payload,
		Headers: []kafka.Header{{Key: fieldType, Value: []byte(eventType)}},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}

	p.log.WithFields(logrus.Fields{"type": eventType, "key": key}).Debug("notification queued")
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
