package events

import (
	"context"

	"github.com/sirupsen/logrus"
)

// LogNotifier only logs notifications. Used when no broker is configured.
type LogNotifier struct {
	log logrus.FieldLogger
}

func NewLogNotifier(log logrus.FieldLogger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (p *LogNotifier) Publish(_ context.Context, eventType, key string, n UserNotification) error {
	p.log.WithFields(logrus.Fields{
		"type":    eventType,
		"key":     key,
		"email":   n.Email,
		"message": n.Message,
	}).Info("notification (no broker configured)")
	return nil
}
