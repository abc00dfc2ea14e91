package services

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"greendrake/negotiation/internal/db"
	"greendrake/negotiation/internal/models"
	"greendrake/negotiation/internal/utils"
)

// IDirectoryService reads the account and catalog records owned by other
// parts of the marketplace.
type IDirectoryService interface {
	FindAccount(ctx context.Context, partyID utils.SixID) (*models.Account, error)
	FindProduct(ctx context.Context, id utils.SixID) (*models.Product, error)
}

type directoryService struct {
	db *mongo.Database
}

// NewDirectoryService creates a new DirectoryService.
func NewDirectoryService(database *mongo.Database) IDirectoryService {
	return &directoryService{db: database}
}

// FindAccount looks up the account owned by a party. Party ids are user ids.
func (s *directoryService) FindAccount(ctx context.Context, partyID utils.SixID) (*models.Account, error) {
	var account models.Account
	if err := s.findOne(ctx, db.AccountsCollection, bson.M{"userId": partyID}, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

func (s *directoryService) FindProduct(ctx context.Context, id utils.SixID) (*models.Product, error) {
	var product models.Product
	if err := s.findOne(ctx, db.ProductsCollection, bson.M{"_id": id}, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

func (s *directoryService) findOne(ctx context.Context, collection string, filter bson.M, out interface{}) error {
	err := s.db.Collection(collection).FindOne(ctx, filter).Decode(out)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return fmt.Errorf("%w: no document in %s", ErrNotFound, collection)
		}
		return fmt.Errorf("%w: failed to query %s: %v", ErrDownstream, collection, err)
	}
	return nil
}
