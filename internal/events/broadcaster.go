package events

import (
	"context"
	"encoding/json"
	"fmt"
)

// Publisher is what the negotiation engine needs from the event layer.
type Publisher interface {
	PublishGameStart(ctx context.Context, evt GameStartEvent) error
	PublishOffer(ctx context.Context, evt OfferEvent) error
}

// Broadcaster encodes events as JSON and publishes them on a Bus.
type Broadcaster struct {
	bus Bus
}

// NewBroadcaster creates a Broadcaster on top of bus.
func NewBroadcaster(bus Bus) *Broadcaster {
	return &Broadcaster{bus: bus}
}

func (b *Broadcaster) PublishGameStart(ctx context.Context, evt GameStartEvent) error {
	return b.publish(ctx, GameStartChannel(evt.BidID), evt)
}

// PublishOffer sends evt to the party named by evt.UserID.
func (b *Broadcaster) PublishOffer(ctx context.Context, evt OfferEvent) error {
	return b.publish(ctx, OffersChannel(evt.UserID), evt)
}

func (b *Broadcaster) publish(ctx context.Context, channel string, evt interface{}) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to encode event for %s: %w", channel, err)
	}
	if err := b.bus.Publish(ctx, channel, payload); err != nil {
		return fmt.Errorf("failed to publish on %s: %w", channel, err)
	}
	return nil
}
