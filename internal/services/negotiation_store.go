package services

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"greendrake/negotiation/internal/db"
	"greendrake/negotiation/internal/models"
	"greendrake/negotiation/internal/utils"
)

// NegotiationGuard is the state an update was computed from. The update only
// applies while the stored record still has this status and offer count.
type NegotiationGuard struct {
	ID         utils.SixID
	Status     models.NegotiationStatus
	OfferCount int
}

// NegotiationStore is the document store contract of the negotiation engine.
type NegotiationStore interface {
	FindByID(ctx context.Context, id utils.SixID) (*models.Negotiation, error)
	Insert(ctx context.Context, n *models.Negotiation) error
	// ApplyUpdate appends offer and writes the track fields of next. It
	// reports false when the guard no longer matches.
	ApplyUpdate(ctx context.Context, guard NegotiationGuard, next *models.Negotiation, offer models.Offer) (bool, error)
	FindLatest(ctx context.Context, buyer, productID, variantID utils.SixID) (*models.Negotiation, error)
	// List returns up to limit records after the cursor plus the total
	// matching the filter.
	List(ctx context.Context, filter NegotiationFilter, after *PageCursor, limit int) ([]models.Negotiation, int64, error)
}

type mongoNegotiationStore struct {
	coll *mongo.Collection
}

// NewMongoNegotiationStore returns the store backed by the negotiations collection.
func NewMongoNegotiationStore(database *mongo.Database) NegotiationStore {
	return &mongoNegotiationStore{coll: database.Collection(db.NegotiationsCollection)}
}

func (s *mongoNegotiationStore) FindByID(ctx context.Context, id utils.SixID) (*models.Negotiation, error) {
	var n models.Negotiation
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&n); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: negotiation %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("%w: failed to load negotiation %s: %v", ErrUnknown, id, err)
	}
	return &n, nil
}

func (s *mongoNegotiationStore) Insert(ctx context.Context, n *models.Negotiation) error {
	if err := db.InsertOne(ctx, s.coll, n); err != nil {
		return fmt.Errorf("%w: failed to insert negotiation: %v", ErrUnknown, err)
	}
	return nil
}

func (s *mongoNegotiationStore) ApplyUpdate(ctx context.Context, guard NegotiationGuard, next *models.Negotiation, offer models.Offer) (bool, error) {
	filter := bson.M{
		"_id":    guard.ID,
		"status": guard.Status,
		"offers": bson.M{"$size": guard.OfferCount},
	}
	update := bson.M{
		"$push": bson.M{"offers": offer},
		"$set": bson.M{
			"status":         next.Status,
			"activeOffer":    next.ActiveOffer,
			"buyerOffer":     next.BuyerOffer,
			"sellerOffer":    next.SellerOffer,
			"acceptedOffer":  next.AcceptedOffer,
			"acceptedBy":     next.AcceptedBy,
			"acceptAction":   next.AcceptAction,
			"canAccept":      next.CanAccept,
			"gameCanAccept":  next.GameCanAccept,
			"activeGame":     next.ActiveGame,
			"acceptedGame":   next.AcceptedGame,
			"gameAcceptedBy": next.GameAcceptedBy,
			"gameAcceptedAt": next.GameAcceptedAt,
			"wonBy":          next.WonBy,
			"lostBy":         next.LostBy,
			"updatedAt":      next.UpdatedAt,
		},
	}
	res, err := s.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("%w: failed to update negotiation %s: %v", ErrUnknown, guard.ID, err)
	}
	return res.ModifiedCount == 1, nil
}

func (s *mongoNegotiationStore) FindLatest(ctx context.Context, buyer, productID, variantID utils.SixID) (*models.Negotiation, error) {
	filter := bson.M{"createdBy": buyer, "productId": productID, "variantId": variantID}
	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	var n models.Negotiation
	if err := s.coll.FindOne(ctx, filter, opts).Decode(&n); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: failed to load latest negotiation: %v", ErrUnknown, err)
	}
	return &n, nil
}

func (s *mongoNegotiationStore) List(ctx context.Context, filter NegotiationFilter, after *PageCursor, limit int) ([]models.Negotiation, int64, error) {
	query := filterToBSON(filter)
	total, err := s.coll.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: failed to count negotiations: %v", ErrUnknown, err)
	}

	if after != nil {
		query = bson.M{"$and": bson.A{query, bson.M{"$or": bson.A{
			bson.M{"updatedAt": bson.M{"$lt": after.UpdatedAt}},
			bson.M{"updatedAt": after.UpdatedAt, "_id": bson.M{"$lt": after.ID}},
		}}}}
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "updatedAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))
	cursor, err := s.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: failed to list negotiations: %v", ErrUnknown, err)
	}
	defer cursor.Close(ctx)

	var items []models.Negotiation
	if err := cursor.All(ctx, &items); err != nil {
		return nil, 0, fmt.Errorf("%w: failed to decode negotiations: %v", ErrUnknown, err)
	}
	return items, total, nil
}

func filterToBSON(f NegotiationFilter) bson.M {
	query := bson.M{}
	if f.SellerID != nil {
		query["soldBy"] = *f.SellerID
	}
	if f.BuyerID != nil {
		query["createdBy"] = *f.BuyerID
	}
	if f.ParticipantID != nil {
		query["$or"] = bson.A{
			bson.M{"createdBy": *f.ParticipantID},
			bson.M{"soldBy": *f.ParticipantID},
		}
	}
	if f.ProductID != nil {
		query["productId"] = *f.ProductID
	}
	if f.VariantID != nil {
		query["variantId"] = *f.VariantID
	}
	if f.Status != "" {
		query["status"] = f.Status
	}
	return query
}
