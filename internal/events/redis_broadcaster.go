package events

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

// redisBroadcaster publishes updates on a Redis pub/sub channel so every
// connected console instance sees mutations from its peers. Disconnected
// subscribers get nothing; recovering clients re-fetch the snapshot.
type redisBroadcaster struct {
	client  *redis.Client
	channel string
}

// NewRedisBroadcaster creates a broadcaster over the given channel.
func NewRedisBroadcaster(client *redis.Client, channel string) Broadcaster {
	return &redisBroadcaster{client: client, channel: channel}
}

func (b *redisBroadcaster) Publish(ctx context.Context, update TicketUpdate) error {
	payload, err := json.Marshal(update)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel, payload).Err()
}

// multiBroadcaster forwards each update to every wrapped broadcaster.
type multiBroadcaster struct {
	targets []Broadcaster
}

// NewMultiBroadcaster composes broadcasters; a failing target does not stop
// the others, and the first error is reported for logging.
func NewMultiBroadcaster(targets ...Broadcaster) Broadcaster {
	return &multiBroadcaster{targets: targets}
}

func (b *multiBroadcaster) Publish(ctx context.Context, update TicketUpdate) error {
	var firstErr error
	for _, target := range b.targets {
		if err := target.Publish(ctx, update); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
