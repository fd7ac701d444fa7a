package memory

import (
	"context"
	"sync"

	"bridgebites-service/internal/app"
)

// FeedNotifier is an in-process broadcast of feed insert events, used when
// no Redis is configured. Delivery is at-least-once toward each subscriber;
// a full buffer drops the oldest event since consumers refetch anyway.
type FeedNotifier struct {
	mu          sync.Mutex
	subscribers map[chan app.FeedEvent]struct{}
}

func NewFeedNotifier() *FeedNotifier {
	return &FeedNotifier{subscribers: make(map[chan app.FeedEvent]struct{})}
}

func (n *FeedNotifier) Publish(_ context.Context, event app.FeedEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	for ch := range n.subscribers {
		select {
		case ch <- event:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- event
		}
	}
	return nil
}

func (n *FeedNotifier) Subscribe(_ context.Context) (<-chan app.FeedEvent, func(), error) {
	ch := make(chan app.FeedEvent, 8)
	n.mu.Lock()
	n.subscribers[ch] = struct{}{}
	n.mu.Unlock()

	cancel := func() {
		n.mu.Lock()
		if _, ok := n.subscribers[ch]; ok {
			delete(n.subscribers, ch)
			close(ch)
		}
		n.mu.Unlock()
	}
	return ch, cancel, nil
}
