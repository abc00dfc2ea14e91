package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"greendrake/negotiation/internal/events"
	"greendrake/negotiation/internal/models"
	"greendrake/negotiation/internal/utils"
)

// DefaultAcceptedOfferTTL is how long an accepted price stays usable.
const DefaultAcceptedOfferTTL = 24 * time.Hour

// MessageGateway delivers text messages to a party's phone.
type MessageGateway interface {
	SendMessage(ctx context.Context, partyID utils.SixID, text, explicitPhone string) error
}

// INegotiationService is the negotiation engine.
type INegotiationService interface {
	CreateNegotiation(ctx context.Context, in CreateNegotiationInput) (*models.Negotiation, error)
	SubmitAction(ctx context.Context, in ActionInput) (*OfferResult, error)
	FindNegotiation(ctx context.Context, id, party utils.SixID) (*models.Negotiation, error)
	GetActiveNegotiation(ctx context.Context, buyer, productID, variantID utils.SixID) (*ActiveNegotiation, error)
	ListNegotiations(ctx context.Context, party utils.SixID, filter NegotiationFilter, first *int, after string) (*NegotiationPage, error)
}

// NegotiationDeps is everything the engine talks to. It is built once at
// startup and shared by all requests.
type NegotiationDeps struct {
	Store         NegotiationStore
	Carts         ICartService
	Notifications INotificationService
	Messages      MessageGateway
	Events        events.Publisher
	Directory     IDirectoryService
	Resolver      CoinResolver
	Runner        SideEffectRunner
	Logger        zerolog.Logger

	// Clock defaults to time.Now in UTC.
	Clock            func() time.Time
	AcceptedOfferTTL time.Duration
	ProductBaseURL   string
}

// ActionInput is one submitted negotiation action.
type ActionInput struct {
	NegotiationID utils.SixID
	ActingParty   *utils.SixID
	// TargetParty defaults to the counterparty of ActingParty.
	TargetParty *utils.SixID
	Type        models.OfferType
	Amount      *models.Money
	Text        string
}

// OfferResult is the appended offer and the party expected to act next,
// nil once the negotiation is closed.
type OfferResult struct {
	Offer     models.Offer `json:"offer"`
	CanAccept *utils.SixID `json:"canAccept"`
}

// CreateNegotiationInput opens a negotiation with the buyer's first offer.
type CreateNegotiationInput struct {
	Buyer     utils.SixID
	Seller    utils.SixID
	ProductID utils.SixID
	VariantID utils.SixID
	Amount    models.Money
	Text      string
}

// ActiveNegotiation is the buyer's latest negotiation on a variant.
type ActiveNegotiation struct {
	NegotiationID utils.SixID           `json:"bidId"`
	Offer         *models.AcceptedOffer `json:"offer"`
	IsValid       bool                  `json:"isValid"`
}

type negotiationService struct {
	deps   NegotiationDeps
	logger zerolog.Logger
}

// NewNegotiationService creates the engine. Store and Resolver are required.
func NewNegotiationService(deps NegotiationDeps) INegotiationService {
	if deps.Clock == nil {
		deps.Clock = func() time.Time { return time.Now().UTC() }
	}
	if deps.AcceptedOfferTTL <= 0 {
		deps.AcceptedOfferTTL = DefaultAcceptedOfferTTL
	}
	if deps.Runner == nil {
		deps.Runner = InlineRunner{Logger: deps.Logger}
	}
	return &negotiationService{
		deps:   deps,
		logger: deps.Logger.With().Str("service", "negotiation").Logger(),
	}
}

// CreateNegotiation stores a new record whose first offer is the buyer's
// opening counter-offer. The seller is expected to act next.
func (s *negotiationService) CreateNegotiation(ctx context.Context, in CreateNegotiationInput) (*models.Negotiation, error) {
	switch {
	case in.Buyer.IsZero():
		return nil, fmt.Errorf("%w: buyer is required", ErrUnauthorized)
	case in.Seller.IsZero() || in.ProductID.IsZero() || in.VariantID.IsZero():
		return nil, fmt.Errorf("%w: seller, product and variant are required", ErrValidation)
	case in.Buyer == in.Seller:
		return nil, fmt.Errorf("%w: cannot negotiate with yourself", ErrValidation)
	case in.Amount.Amount <= 0:
		return nil, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}

	now := s.deps.Clock()
	amount := normalizeMoney(in.Amount)
	opening := models.Offer{
		ID:         utils.NewSixID(),
		Amount:     &amount,
		Type:       models.OfferCounter,
		Text:       strings.TrimSpace(in.Text),
		CreatedBy:  in.Buyer,
		CreatedFor: in.Seller,
		CreatedAt:  now,
	}
	n := &models.Negotiation{
		ProductID:   in.ProductID,
		VariantID:   in.VariantID,
		CreatedBy:   in.Buyer,
		SoldBy:      in.Seller,
		Status:      models.StatusNew,
		Offers:      []models.Offer{opening},
		ActiveOffer: &opening,
		BuyerOffer:  &opening,
		CanAccept:   in.Seller.Ptr(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.deps.Store.Insert(ctx, n); err != nil {
		return nil, err
	}

	s.deps.Runner.Run(ctx, s.sideEffects(n, n, opening, effectPlan{}))
	return n, nil
}

// effectPlan carries what the post-commit steps need beyond the records.
type effectPlan struct {
	cartAmount *float64
	message    func(product *models.Product) string
	gameStart  *events.GameStartEvent
}

// SubmitAction validates an action against the current record, persists it
// under an optimistic guard and then runs the side effects in order.
func (s *negotiationService) SubmitAction(ctx context.Context, in ActionInput) (*OfferResult, error) {
	if in.NegotiationID.IsZero() {
		return nil, fmt.Errorf("%w: negotiationId is required", ErrValidation)
	}
	if in.ActingParty == nil || in.ActingParty.IsZero() {
		return nil, fmt.Errorf("%w: acting party is not resolved", ErrUnauthorized)
	}
	actor := *in.ActingParty

	current, err := s.deps.Store.FindByID(ctx, in.NegotiationID)
	if err != nil {
		return nil, err
	}
	if !current.IsParticipant(actor) {
		return nil, fmt.Errorf("%w: not a participant of negotiation %s", ErrUnauthorized, current.ID)
	}
	if current.Status == models.StatusClosed {
		return nil, fmt.Errorf("%w: negotiation %s is closed", ErrConflict, current.ID)
	}
	target := current.Counterparty(actor)
	if in.TargetParty != nil && !in.TargetParty.IsZero() && *in.TargetParty != target {
		return nil, fmt.Errorf("%w: targetParty must be the counterparty", ErrValidation)
	}

	now := s.deps.Clock()
	offer := models.Offer{
		ID:         utils.NewSixID(),
		Type:       models.ParseOfferType(string(in.Type)),
		Text:       strings.TrimSpace(in.Text),
		CreatedBy:  actor,
		CreatedFor: target,
		CreatedAt:  now,
	}
	// Only counter-offers carry a price.
	if in.Amount != nil && offer.Type == models.OfferCounter {
		amount := normalizeMoney(*in.Amount)
		offer.Amount = &amount
	}

	next := *current
	next.Offers = append(append([]models.Offer(nil), current.Offers...), offer)
	next.UpdatedAt = now

	plan, err := s.apply(current, &next, offer, actor, target, now)
	if err != nil {
		return nil, err
	}
	if !current.Status.CanMoveTo(next.Status) {
		return nil, fmt.Errorf("%w: status cannot move from %s to %s", ErrConflict, current.Status, next.Status)
	}

	guard := NegotiationGuard{ID: current.ID, Status: current.Status, OfferCount: len(current.Offers)}
	applied, err := s.deps.Store.ApplyUpdate(ctx, guard, &next, offer)
	if err != nil {
		if errors.Is(err, ErrUnknown) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrUnknown, err)
	}
	if !applied {
		return nil, fmt.Errorf("%w: negotiation %s changed concurrently", ErrConflict, current.ID)
	}

	s.logger.Info().
		Str("negotiation_id", current.ID.String()).
		Str("offer_type", string(offer.Type)).
		Str("actor", actor.String()).
		Str("status", string(next.Status)).
		Msg("offer recorded")

	s.deps.Runner.Run(ctx, s.sideEffects(current, &next, offer, plan))

	result := &OfferResult{Offer: offer}
	if next.Status != models.StatusClosed {
		result.CanAccept = target.Ptr()
	}
	return result, nil
}

// apply computes next from current for one action. It returns the side
// effect plan or a validation error; nothing is written here.
func (s *negotiationService) apply(current, next *models.Negotiation, offer models.Offer, actor, target utils.SixID, now time.Time) (effectPlan, error) {
	var plan effectPlan
	offerPtr := &offer

	switch offer.Type {
	case models.OfferCounter:
		if offer.Amount == nil || offer.Amount.Amount <= 0 {
			return plan, fmt.Errorf("%w: counterOffer needs a positive amount", ErrValidation)
		}
		next.ActiveOffer = offerPtr
		if actor == current.CreatedBy {
			next.BuyerOffer = offerPtr
		} else {
			next.SellerOffer = offerPtr
		}
		next.Status = models.StatusInProgress
		next.CanAccept = target.Ptr()

	case models.OfferAccepted:
		if !utils.Equal(current.CanAccept, actor.Ptr()) {
			return plan, fmt.Errorf("%w: no offer is awaiting your acceptance", ErrConflict)
		}
		active := current.ActiveOffer
		if active == nil || active.Amount == nil {
			return plan, fmt.Errorf("%w: there is no priced offer to accept", ErrValidation)
		}
		if active.Type != models.OfferCounter || active.CreatedFor != actor {
			return plan, fmt.Errorf("%w: the active offer is not a price addressed to you", ErrConflict)
		}
		next.AcceptedOffer = &models.AcceptedOffer{Offer: *active, ValidTill: now.Add(s.deps.AcceptedOfferTTL)}
		next.AcceptedBy = actor.Ptr()
		next.AcceptAction = acceptActionPtr(models.AcceptByUserAction)
		closeTracks(next)

		amount := active.Amount.Amount
		plan.cartAmount = &amount
		plan.message = func(p *models.Product) string {
			recipient, sender := messageRoles(current, actor)
			purchase := ""
			if recipient == "buyer" {
				purchase = " Please purchase before it expires."
			}
			return fmt.Sprintf(`Dear %s, your offer of PKR %s for "%s" has been accepted by the %s.%s View product: %s. Thanks`,
				recipient, active.Amount.String(), p.DisplaySlug(), sender, purchase, s.productLink(p))
		}

	case models.OfferRejected:
		closeTracks(next)
		rejected := current.ActiveOffer
		plan.message = func(p *models.Product) string {
			var amount *models.Money
			if rejected != nil {
				amount = rejected.Amount
			}
			recipient, sender := messageRoles(current, actor)
			return fmt.Sprintf(`Dear %s, your offer of PKR %s for "%s" has been rejected by the %s View product: %s. Thanks`,
				recipient, amount.String(), p.DisplaySlug(), sender, s.productLink(p))
		}

	case models.OfferGameRequest:
		if _, ok := ParseCoinSide(offer.Text); !ok {
			return plan, fmt.Errorf("%w: gameRequest text must be head or tail", ErrValidation)
		}
		if current.BuyerOffer == nil || current.SellerOffer == nil {
			return plan, fmt.Errorf("%w: both parties need an offer before a game", ErrValidation)
		}
		if current.GameCanAccept != nil {
			return plan, fmt.Errorf("%w: a game request is already pending", ErrConflict)
		}
		next.GameCanAccept = target.Ptr()
		next.ActiveOffer = offerPtr
		next.ActiveGame = offerPtr
		next.Status = models.StatusInProgress

	case models.OfferRejectedGame:
		if !utils.Equal(current.GameCanAccept, actor.Ptr()) {
			return plan, fmt.Errorf("%w: no game request is awaiting your answer", ErrConflict)
		}
		next.GameCanAccept = nil
		next.ActiveGame = nil

	case models.OfferAcceptedGame:
		if !utils.Equal(current.GameCanAccept, actor.Ptr()) {
			return plan, fmt.Errorf("%w: no game request is awaiting your answer", ErrConflict)
		}
		request := current.ActiveGame
		if request == nil {
			request = current.LastOfferOfType(models.OfferGameRequest)
		}
		if request == nil {
			return plan, fmt.Errorf("%w: no pending game request", ErrConflict)
		}
		if current.BuyerOffer == nil || current.SellerOffer == nil {
			return plan, fmt.Errorf("%w: both parties need an offer before a game", ErrConflict)
		}
		outcome, err := s.resolveGame(current, request, actor)
		if err != nil {
			return plan, err
		}

		next.AcceptedGame = offerPtr
		next.GameAcceptedBy = actor.Ptr()
		gameAt := now
		next.GameAcceptedAt = &gameAt
		next.WonBy = outcome.WonBy.Ptr()
		next.LostBy = outcome.LostBy.Ptr()
		next.AcceptedOffer = &models.AcceptedOffer{Offer: *outcome.WinnerOffer, ValidTill: now.Add(s.deps.AcceptedOfferTTL)}
		next.AcceptedBy = actor.Ptr()
		next.AcceptAction = acceptActionPtr(models.AcceptByGame)
		closeTracks(next)

		if outcome.WinnerOffer.Amount != nil {
			amount := outcome.WinnerOffer.Amount.Amount
			plan.cartAmount = &amount
		}
		plan.gameStart = outcome

	default:
		next.Status = models.StatusInProgress
	}
	return plan, nil
}

// resolveGame draws the tie-break. The proposer's call fixes who holds head;
// the accepting party holds the other side.
func (s *negotiationService) resolveGame(current *models.Negotiation, request *models.Offer, actor utils.SixID) (*events.GameStartEvent, error) {
	call, ok := ParseCoinSide(request.Text)
	if !ok {
		return nil, fmt.Errorf("%w: game request has no head/tail call", ErrConflict)
	}
	proposer := request.CreatedBy
	if proposer == actor {
		proposer = current.Counterparty(actor)
	}
	holder := map[CoinSide]utils.SixID{call: proposer, call.Other(): actor}

	drawn := s.deps.Resolver.Draw()
	winner := holder[drawn]
	loser := holder[drawn.Other()]

	winnerOffer, loserOffer := current.SellerOffer, current.BuyerOffer
	if winner == current.CreatedBy {
		winnerOffer, loserOffer = current.BuyerOffer, current.SellerOffer
	}
	return &events.GameStartEvent{
		Result:      string(drawn),
		WonBy:       winner,
		LostBy:      loser,
		Head:        holder[Head],
		Tail:        holder[Tail],
		BidID:       current.ID,
		WinnerOffer: winnerOffer,
		LoserOffer:  loserOffer,
	}, nil
}

// closeTracks ends both offer tracks.
func closeTracks(n *models.Negotiation) {
	n.Status = models.StatusClosed
	n.CanAccept = nil
	n.GameCanAccept = nil
	n.ActiveGame = nil
}

// sideEffects lists the post-commit steps in their fixed order:
// cart sync, notification, message, broadcast.
func (s *negotiationService) sideEffects(current, next *models.Negotiation, offer models.Offer, plan effectPlan) []SideEffect {
	var product *models.Product
	loadProduct := func(ctx context.Context) *models.Product {
		if product != nil {
			return product
		}
		product = &models.Product{ID: current.ProductID}
		if s.deps.Directory != nil {
			if p, err := s.deps.Directory.FindProduct(ctx, current.ProductID); err == nil {
				product = p
			} else {
				s.logger.Debug().Err(err).Str("product_id", current.ProductID.String()).Msg("product lookup failed")
			}
		}
		return product
	}

	var steps []SideEffect
	if plan.cartAmount != nil && s.deps.Carts != nil {
		amount := *plan.cartAmount
		steps = append(steps, SideEffect{Name: "cart", Fn: func(ctx context.Context) error {
			return s.deps.Carts.SyncCartPrice(ctx, current.CreatedBy, current.VariantID, amount)
		}})
	}
	if s.deps.Notifications != nil {
		steps = append(steps, SideEffect{Name: "notification", Fn: func(ctx context.Context) error {
			text := notificationText(offer, current.ActiveOffer, loadProduct(ctx).DisplayTitle())
			url := "/en/chat?bidId=" + current.ID.String()
			return s.deps.Notifications.Notify(ctx, offer.CreatedBy, offer.CreatedFor, text, models.NotificationKindOffer, url)
		}})
	}
	if plan.message != nil && s.deps.Messages != nil {
		steps = append(steps, SideEffect{Name: "message", Fn: func(ctx context.Context) error {
			return s.deps.Messages.SendMessage(ctx, offer.CreatedFor, plan.message(loadProduct(ctx)), "")
		}})
	}
	if s.deps.Events != nil {
		steps = append(steps, SideEffect{Name: "broadcast", Fn: func(ctx context.Context) error {
			if plan.gameStart != nil {
				if err := s.deps.Events.PublishGameStart(ctx, *plan.gameStart); err != nil {
					s.logger.Warn().Err(err).Msg("game start broadcast failed")
				}
			}
			return s.deps.Events.PublishOffer(ctx, events.OfferEvent{
				Offer:         offer,
				OfferType:     offer.Type,
				CanAccept:     next.CanAccept,
				CanAcceptGame: next.GameCanAccept,
				VariantID:     current.VariantID,
				ProductID:     current.ProductID,
				BidID:         current.ID,
				UserID:        offer.CreatedFor,
			})
		}})
	}
	return steps
}

func (s *negotiationService) productLink(p *models.Product) string {
	return strings.TrimRight(s.deps.ProductBaseURL, "/") + "/" + p.DisplaySlug()
}

func notificationText(offer models.Offer, previousActive *models.Offer, title string) string {
	switch offer.Type {
	case models.OfferCounter:
		return fmt.Sprintf("Placed a new offer of %s on %s", offer.Amount.String(), title)
	case models.OfferAccepted:
		var amount *models.Money
		if previousActive != nil {
			amount = previousActive.Amount
		}
		return fmt.Sprintf("Accepted your offer of %s on %s", amount.String(), title)
	case models.OfferRejected:
		return fmt.Sprintf("Rejected your offer on %s", title)
	case models.OfferGameRequest:
		return fmt.Sprintf("Sent you a game request on %s", title)
	case models.OfferRejectedGame:
		return fmt.Sprintf("Rejected your game request on %s", title)
	case models.OfferAcceptedGame:
		return fmt.Sprintf("Accepted your game request on %s", title)
	default:
		return fmt.Sprintf("Sent you a new message on %s", title)
	}
}

// messageRoles names the addressee and the acting party of a text message.
func messageRoles(n *models.Negotiation, actor utils.SixID) (recipient, sender string) {
	if actor == n.CreatedBy {
		return "seller", "buyer"
	}
	return "buyer", "seller"
}

func normalizeMoney(m models.Money) models.Money {
	if m.CurrencyCode == "" {
		m.CurrencyCode = models.DefaultCurrencyCode
	}
	return m
}

func acceptActionPtr(a models.AcceptAction) *models.AcceptAction {
	return &a
}

// FindNegotiation returns a record the party takes part in.
func (s *negotiationService) FindNegotiation(ctx context.Context, id, party utils.SixID) (*models.Negotiation, error) {
	if id.IsZero() {
		return nil, fmt.Errorf("%w: negotiationId is required", ErrValidation)
	}
	n, err := s.deps.Store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !n.IsParticipant(party) {
		// Hide records the caller has no part in.
		return nil, fmt.Errorf("%w: negotiation %s", ErrNotFound, id)
	}
	return n, nil
}

// GetActiveNegotiation returns the buyer's latest negotiation on a variant.
// A negotiation whose accepted offer has expired yields nil.
func (s *negotiationService) GetActiveNegotiation(ctx context.Context, buyer, productID, variantID utils.SixID) (*ActiveNegotiation, error) {
	if productID.IsZero() || variantID.IsZero() {
		return nil, fmt.Errorf("%w: productId and variantId are required", ErrValidation)
	}
	n, err := s.deps.Store.FindLatest(ctx, buyer, productID, variantID)
	if err != nil || n == nil {
		return nil, err
	}
	if n.AcceptedOffer == nil {
		return &ActiveNegotiation{NegotiationID: n.ID}, nil
	}
	if !n.AcceptedOffer.IsValidAt(s.deps.Clock()) {
		return nil, nil
	}
	return &ActiveNegotiation{NegotiationID: n.ID, Offer: n.AcceptedOffer, IsValid: true}, nil
}

// ListNegotiations pages through the negotiations the party takes part in.
func (s *negotiationService) ListNegotiations(ctx context.Context, party utils.SixID, filter NegotiationFilter, first *int, after string) (*NegotiationPage, error) {
	if party.IsZero() {
		return nil, fmt.Errorf("%w: caller is not resolved", ErrUnauthorized)
	}
	limit, err := normalizePageSize(first)
	if err != nil {
		return nil, err
	}
	cursor, err := DecodeCursor(after)
	if err != nil {
		return nil, err
	}
	filter.ParticipantID = party.Ptr()

	items, total, err := s.deps.Store.List(ctx, filter, cursor, limit+1)
	if err != nil {
		return nil, err
	}
	return buildPage(items, limit, total, cursor), nil
}
