package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"greendrake/negotiation/internal/db"
	"greendrake/negotiation/internal/models"
	"greendrake/negotiation/internal/utils"
)

// ICartService keeps a party's pending cart in line with negotiated prices.
type ICartService interface {
	// SyncCartPrice rewrites the price of the first cart line when it holds
	// variantID. A missing cart or a different variant is not an error.
	SyncCartPrice(ctx context.Context, partyID, variantID utils.SixID, amount float64) error
	FindByAccount(ctx context.Context, partyID utils.SixID) (*models.Cart, error)
}

type cartService struct {
	db     *mongo.Database
	logger zerolog.Logger
}

// NewCartService creates a new CartService.
func NewCartService(database *mongo.Database, logger zerolog.Logger) ICartService {
	return &cartService{
		db:     database,
		logger: logger.With().Str("service", "cart").Logger(),
	}
}

func (s *cartService) FindByAccount(ctx context.Context, partyID utils.SixID) (*models.Cart, error) {
	var cart models.Cart
	err := s.db.Collection(db.CartsCollection).FindOne(ctx, bson.M{"accountId": partyID}).Decode(&cart)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: no cart for account %s", ErrNotFound, partyID)
		}
		return nil, fmt.Errorf("%w: failed to load cart for %s: %v", ErrDownstream, partyID, err)
	}
	return &cart, nil
}

func (s *cartService) SyncCartPrice(ctx context.Context, partyID, variantID utils.SixID, amount float64) error {
	cart, err := s.FindByAccount(ctx, partyID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		s.logger.Error().Err(err).Str("party_id", partyID.String()).Msg("cart lookup failed")
		return err
	}
	// Only the first line is considered.
	if len(cart.Items) == 0 || cart.Items[0].VariantID != variantID {
		return nil
	}

	update := bson.M{"$set": bson.M{
		"items.0.price.amount":    amount,
		"items.0.subtotal.amount": amount,
	}}
	if _, err := s.db.Collection(db.CartsCollection).UpdateByID(ctx, cart.ID, update); err != nil {
		s.logger.Error().Err(err).Str("cart_id", cart.ID.String()).Msg("cart price update failed")
		return fmt.Errorf("%w: failed to update cart %s: %v", ErrDownstream, cart.ID, err)
	}
	s.logger.Info().
		Str("cart_id", cart.ID.String()).
		Str("variant_id", variantID.String()).
		Float64("amount", amount).
		Msg("cart price synced")
	return nil
}
