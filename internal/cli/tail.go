package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/apiauth/user-service/internal/events"
	sharedredis "github.com/apiauth/user-service/internal/redis"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func NewTailCmd() *cobra.Command {
	var group, consumer string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Follow user notifications published to the Redis stream",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.RedisAddr == "" {
				return fmt.Errorf("tail requires REDIS_ADDR")
			}
			log, err := newLogger(cfg.LogLevel)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			rdb, err := sharedredis.NewClient(ctx, sharedredis.Options{
				Addr:     cfg.RedisAddr,
				Password: cfg.RedisPassword,
				DB:       cfg.RedisDB,
			})
			if err != nil {
				return err
			}
			defer rdb.Close()

			subscriber := events.NewSubscriber(rdb.Client, events.SubscriberConfig{
				Group:    group,
				Consumer: consumer,
				Stream:   cfg.Topic,
				Handler:  logDelivery(log),
			}, log)
			if err := subscriber.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().String("redis-addr", "", "redis address (overrides REDIS_ADDR)")
	cmd.Flags().StringVar(&group, "group", "user-service-tail", "consumer group name")
	cmd.Flags().StringVar(&consumer, "consumer", defaultConsumerName(), "consumer name within the group")
	return cmd
}

func logDelivery(log logrus.FieldLogger) events.Handler {
	return func(_ context.Context, d events.Delivery) error {
		log.WithFields(logrus.Fields{
			"entry_id":  d.ID,
			"type":      d.Type,
			"user_id":   d.Key,
			"firstName": d.Notification.FirstName,
			"lastName":  d.Notification.LastName,
			"email":     d.Notification.Email,
		}).Info(d.Notification.Message)
		return nil
	}
}

func defaultConsumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "tail-1"
	}
	return host
}
