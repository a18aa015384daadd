package broadcast

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"github.com/angelmondragon/bidfinderz-backend/pkg/logger"
)

type channelPublisher interface {
	Publish(ctx context.Context, channel string, payload any) error
	RoomChannel(auctionID string) string
}

// Publisher pushes auction room events onto the per-auction redis channel.
// Every gateway instance subscribed to the room pattern relays them to its
// local websocket clients, so fanout works across replicas.
type Publisher struct {
	redis channelPublisher
	logg  *logger.Logger
}

func NewPublisher(redis channelPublisher, logg *logger.Logger) (*Publisher, error) {
	if redis == nil {
		return nil, errors.New("redis client required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	return &Publisher{redis: redis, logg: logg}, nil
}

// Publish serializes the event and sends it to the auction's room channel.
// Delivery is best-effort; the auction state in the database stays the source
// of truth and failures are only logged.
func (p *Publisher) Publish(ctx context.Context, auctionID uuid.UUID, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	channel := p.redis.RoomChannel(auctionID.String())
	if err := p.redis.Publish(ctx, channel, payload); err != nil {
		logCtx := p.logg.WithAuctionID(ctx, auctionID.String())
		p.logg.Warn(p.logg.WithField(logCtx, "channel", channel), "room broadcast failed")
		return err
	}
	return nil
}
