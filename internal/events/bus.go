package events

import (
	"context"
	"errors"

	"greendrake/negotiation/internal/models"
	"greendrake/negotiation/internal/utils"
)

// ErrBusClosed is returned by operations on a closed bus.
var ErrBusClosed = errors.New("event bus closed")

// Message is one payload received on a channel.
type Message struct {
	Channel string
	Payload []byte
}

// Subscription delivers messages for the channels it was opened with until
// Close is called. The channel returned by Messages is closed afterwards.
type Subscription interface {
	Messages() <-chan Message
	Close() error
}

// Bus is a publish/subscribe transport for JSON payloads.
type Bus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channels ...string) (Subscription, error)
}

// GameStartChannel carries the tie-break outcome of one negotiation.
func GameStartChannel(negotiationID utils.SixID) string {
	return "game-start:" + negotiationID.String()
}

// OffersChannel carries every offer addressed to one party.
func OffersChannel(partyID utils.SixID) string {
	return "offers:" + partyID.String()
}

// GameStartEvent is published when a game request is accepted.
type GameStartEvent struct {
	Result      string        `json:"result"`
	WonBy       utils.SixID   `json:"wonBy"`
	LostBy      utils.SixID   `json:"lostBy"`
	Head        utils.SixID   `json:"head"`
	Tail        utils.SixID   `json:"tail"`
	BidID       utils.SixID   `json:"bidId"`
	WinnerOffer *models.Offer `json:"winnerOffer"`
	LoserOffer  *models.Offer `json:"loserOffer"`
}

// OfferEvent is published to the addressee of every new offer.
type OfferEvent struct {
	Offer         models.Offer     `json:"offer"`
	OfferType     models.OfferType `json:"offerType"`
	CanAccept     *utils.SixID     `json:"canAccept"`
	CanAcceptGame *utils.SixID     `json:"canAcceptGame"`
	VariantID     utils.SixID      `json:"variantId"`
	ProductID     utils.SixID      `json:"productId"`
	BidID         utils.SixID      `json:"bidId"`
	UserID        utils.SixID      `json:"userId"`
}
