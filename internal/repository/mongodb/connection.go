// Package mongodb stores users and products as documents, one collection each.
package mongodb

import (
	"context"
	"fmt"

	"github.com/dom/yumyum-storefront/internal/repository"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Collections names the collections used by the repositories.
type Collections struct {
	Users    string
	Products string
}

// NewConnection connects to uri and verifies the server is reachable.
func NewConnection(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	return client, nil
}

// EnsureIndexes creates the unique indexes on encrypted email and phone.
// Creating an index that already exists is a no-op.
func EnsureIndexes(ctx context.Context, db *mongo.Database, names Collections) error {
	_, err := db.Collection(names.Users).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_email"),
		},
		{
			Keys:    bson.D{{Key: "phone", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_phone"),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create user indexes: %w", err)
	}

	_, err = db.Collection(names.Products).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "name", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create product indexes: %w", err)
	}
	return nil
}

func NewRepositories(client *mongo.Client, db *mongo.Database, names Collections) *repository.Repositories {
	return &repository.Repositories{
		User:    NewUserRepository(db.Collection(names.Users)),
		Product: NewProductRepository(db.Collection(names.Products)),
		Close:   client.Disconnect,
	}
}
