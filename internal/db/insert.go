package db

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
)

// IDGenerator is a document that can mint a fresh _id for itself.
type IDGenerator interface {
	GenID()
}

// InsertOne inserts doc, drawing a new id before every attempt so that an
// _id collision is retried through Try.
func InsertOne(ctx context.Context, coll *mongo.Collection, doc IDGenerator) error {
	return Try(func() error {
		doc.GenID()
		_, err := coll.InsertOne(ctx, doc)
		return err
	})
}
