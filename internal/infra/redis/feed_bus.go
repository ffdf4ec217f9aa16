package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"dailyquiz-service/internal/app"
	"dailyquiz-service/internal/domain"
	"dailyquiz-service/internal/logger"
	"github.com/redis/go-redis/v9"
)

const attemptsChannel = "dailyquiz:attempts"

// FeedBus fans "attempt recorded" events out to every server process through
// Redis pub/sub, so each process can refresh its own websocket subscribers.
// Delivery is at most once; a missed event only delays a refresh.
type FeedBus struct {
	client *redis.Client
	log    *logger.Logger
}

var _ app.EventBus = (*FeedBus)(nil)

func NewFeedBus(client *redis.Client, log *logger.Logger) *FeedBus {
	return &FeedBus{client: client, log: log.With("component", "feed_bus")}
}

func (b *FeedBus) AttemptRecorded(ctx context.Context, event domain.AttemptEvent) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, attemptsChannel, raw).Err()
}

// Listen blocks until ctx is done, calling handle for every event published
// by any process, this one included.
func (b *FeedBus) Listen(ctx context.Context, handle func(domain.AttemptEvent)) error {
	sub := b.client.Subscribe(ctx, attemptsChannel)
	defer sub.Close()

	// wait for the subscription to be confirmed before consuming
	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("subscribe %s: %w", attemptsChannel, err)
	}

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			var event domain.AttemptEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				b.log.Warn("dropping malformed attempt event", "error", err)
				continue
			}
			handle(event)
		}
	}
}
