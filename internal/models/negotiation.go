package models

import (
	"time"

	"greendrake/negotiation/internal/utils"
)

// NegotiationStatus is the lifecycle state of a negotiation record.
// It only ever moves new -> inProgress -> closed.
type NegotiationStatus string

const (
	StatusNew        NegotiationStatus = "new"
	StatusInProgress NegotiationStatus = "inProgress"
	StatusClosed     NegotiationStatus = "closed"
)

// rank orders statuses for the monotonic transition check.
func (s NegotiationStatus) rank() int {
	switch s {
	case StatusNew:
		return 0
	case StatusInProgress:
		return 1
	case StatusClosed:
		return 2
	default:
		return -1
	}
}

// CanMoveTo reports whether a transition from s to next keeps the status monotonic.
func (s NegotiationStatus) CanMoveTo(next NegotiationStatus) bool {
	if s == StatusClosed {
		return false
	}
	return next.rank() >= s.rank() && next.rank() >= 0
}

// OfferType is the action recorded by an Offer.
type OfferType string

const (
	OfferCounter      OfferType = "counterOffer"
	OfferAccepted     OfferType = "acceptedOffer"
	OfferRejected     OfferType = "rejectOffer"
	OfferGameRequest  OfferType = "gameRequest"
	OfferRejectedGame OfferType = "rejectedGame"
	OfferAcceptedGame OfferType = "acceptedGame"
	OfferMessage      OfferType = "message"
)

// ParseOfferType maps a wire value to an OfferType. Unknown values are
// treated as plain messages.
func ParseOfferType(s string) OfferType {
	switch t := OfferType(s); t {
	case OfferCounter, OfferAccepted, OfferRejected, OfferGameRequest, OfferRejectedGame, OfferAcceptedGame:
		return t
	default:
		return OfferMessage
	}
}

// AcceptAction records how a negotiation reached its accepted price.
type AcceptAction string

const (
	AcceptByUserAction AcceptAction = "user_action"
	AcceptByGame       AcceptAction = "game"
)

// Offer is one immutable action appended to a negotiation.
type Offer struct {
	ID         utils.SixID `bson:"_id" json:"id"`
	Amount     *Money      `bson:"amount,omitempty" json:"amount,omitempty"`
	Type       OfferType   `bson:"type" json:"type"`
	Text       string      `bson:"text,omitempty" json:"text,omitempty"`
	CreatedBy  utils.SixID `bson:"createdBy" json:"createdBy"`
	CreatedFor utils.SixID `bson:"createdFor" json:"createdFor"`
	CreatedAt  time.Time   `bson:"createdAt" json:"createdAt"`
}

// AcceptedOffer is the offer a negotiation closed on, plus the window the
// buyer has to complete the purchase.
type AcceptedOffer struct {
	Offer     `bson:",inline"`
	ValidTill time.Time `bson:"validTill" json:"validTill"`
}

// IsValidAt reports whether the accepted price can still be used at t.
func (a *AcceptedOffer) IsValidAt(t time.Time) bool {
	return a != nil && !t.After(a.ValidTill)
}

// Negotiation is the persisted aggregate for one buyer/variant price negotiation.
// Stored in the `negotiations` collection.
type Negotiation struct {
	ID        utils.SixID       `bson:"_id" json:"id"`
	ProductID utils.SixID       `bson:"productId" json:"productId"`
	VariantID utils.SixID       `bson:"variantId" json:"variantId"`
	CreatedBy utils.SixID       `bson:"createdBy" json:"createdBy"` // buyer, initiated the negotiation
	SoldBy    utils.SixID       `bson:"soldBy" json:"soldBy"`       // seller
	Status    NegotiationStatus `bson:"status" json:"status"`
	Offers    []Offer           `bson:"offers" json:"offers"`

	ActiveOffer *Offer `bson:"activeOffer" json:"activeOffer"`
	BuyerOffer  *Offer `bson:"buyerOffer" json:"buyerOffer"`
	SellerOffer *Offer `bson:"sellerOffer" json:"sellerOffer"`

	AcceptedOffer *AcceptedOffer `bson:"acceptedOffer" json:"acceptedOffer"`
	AcceptedBy    *utils.SixID   `bson:"acceptedBy" json:"acceptedBy"`
	AcceptAction  *AcceptAction  `bson:"acceptAction" json:"acceptAction"`
	CanAccept     *utils.SixID   `bson:"canAccept" json:"canAccept"`

	GameCanAccept  *utils.SixID `bson:"gameCanAccept" json:"gameCanAccept"`
	ActiveGame     *Offer       `bson:"activeGame" json:"activeGame"`
	AcceptedGame   *Offer       `bson:"acceptedGame" json:"acceptedGame"`
	GameAcceptedBy *utils.SixID `bson:"gameAcceptedBy" json:"gameAcceptedBy"`
	GameAcceptedAt *time.Time   `bson:"gameAcceptedAt" json:"gameAcceptedAt"`
	WonBy          *utils.SixID `bson:"wonBy" json:"wonBy"`
	LostBy         *utils.SixID `bson:"lostBy" json:"lostBy"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// GenID assigns a fresh random id.
func (n *Negotiation) GenID() {
	n.ID = utils.NewSixID()
}

// IsParticipant reports whether party is the buyer or the seller.
func (n *Negotiation) IsParticipant(party utils.SixID) bool {
	return party == n.CreatedBy || party == n.SoldBy
}

// Counterparty returns the other participant.
func (n *Negotiation) Counterparty(party utils.SixID) utils.SixID {
	if party == n.CreatedBy {
		return n.SoldBy
	}
	return n.CreatedBy
}

// LastOfferOfType returns the most recent offer of type t, or nil.
func (n *Negotiation) LastOfferOfType(t OfferType) *Offer {
	for i := len(n.Offers) - 1; i >= 0; i-- {
		if n.Offers[i].Type == t {
			o := n.Offers[i]
			return &o
		}
	}
	return nil
}
