package redis

import (
	"context"
	"encoding/json"

	"bridgebites-service/internal/app"
	"github.com/redis/go-redis/v9"
)

const feedChannel = "feed:events"

// FeedNotifier fans out feed insert events over Redis pub/sub so every
// instance sees inserts made by any other. Pub/sub gives at-least-once,
// unordered delivery, which is enough because consumers respond with a full
// refetch.
type FeedNotifier struct {
	client *redis.Client
}

var _ app.FeedNotifier = (*FeedNotifier)(nil)

func NewFeedNotifier(client *redis.Client) *FeedNotifier {
	return &FeedNotifier{client: client}
}

func (n *FeedNotifier) Publish(ctx context.Context, event app.FeedEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return n.client.Publish(ctx, feedChannel, data).Err()
}

func (n *FeedNotifier) Subscribe(ctx context.Context) (<-chan app.FeedEvent, func(), error) {
	sub := n.client.Subscribe(ctx, feedChannel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, err
	}

	events := make(chan app.FeedEvent, 8)
	go func() {
		defer close(events)
		for msg := range sub.Channel() {
			var event app.FeedEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				continue
			}
			select {
			case events <- event:
			default:
				// Consumers refetch on any event; dropping under pressure
				// loses nothing.
			}
		}
	}()

	cancel := func() {
		_ = sub.Close()
	}
	return events, cancel, nil
}
