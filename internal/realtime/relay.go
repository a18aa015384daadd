package realtime

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/bidfinderz-backend/pkg/logger"
)

type roomSubscriber interface {
	Subscribe(ctx context.Context, patterns ...string) (*goredis.PubSub, error)
	RoomPattern() string
}

// Relay bridges redis room channels into the local hub. Every gateway
// instance runs one; whichever process produced an event, all watchers see it.
type Relay struct {
	redis roomSubscriber
	hub   *Hub
	logg  *logger.Logger
}

func NewRelay(redis roomSubscriber, hub *Hub, logg *logger.Logger) (*Relay, error) {
	if redis == nil {
		return nil, fmt.Errorf("redis client required")
	}
	if hub == nil {
		return nil, fmt.Errorf("hub required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Relay{redis: redis, hub: hub, logg: logg}, nil
}

// Run consumes room messages until the context is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	sub, err := r.redis.Subscribe(ctx, r.redis.RoomPattern())
	if err != nil {
		return fmt.Errorf("subscribe rooms: %w", err)
	}
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			r.logg.Info(ctx, "room relay stopped")
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("room subscription closed")
			}
			auctionID, err := auctionIDFromChannel(msg.Channel)
			if err != nil {
				r.logg.Warn(r.logg.WithField(ctx, "channel", msg.Channel), "unroutable room message")
				continue
			}
			r.hub.BroadcastRoom(auctionID, []byte(msg.Payload))
		}
	}
}

// auctionIDFromChannel extracts the auction UUID from "bf:auction:{id}".
func auctionIDFromChannel(channel string) (uuid.UUID, error) {
	idx := strings.LastIndex(channel, ":")
	if idx < 0 || idx == len(channel)-1 {
		return uuid.Nil, fmt.Errorf("malformed channel %q", channel)
	}
	return uuid.Parse(channel[idx+1:])
}
