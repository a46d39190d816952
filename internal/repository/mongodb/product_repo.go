package mongodb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dom/yumyum-storefront/internal/domain"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"gorm.io/datatypes"
)

type productDocument struct {
	ID          string    `bson:"_id"`
	Name        string    `bson:"name"`
	Description string    `bson:"description"`
	Price       int64     `bson:"price"`
	ImageURL    string    `bson:"image_url"`
	Tags        []string  `bson:"tags"`
	CreatedAt   time.Time `bson:"created_at"`
}

func toProductDocument(p *domain.Product) (productDocument, error) {
	tags := []string{}
	if len(p.Tags) > 0 {
		if err := json.Unmarshal(p.Tags, &tags); err != nil {
			return productDocument{}, fmt.Errorf("invalid product tags: %w", err)
		}
	}
	return productDocument{
		ID:          p.ID.String(),
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		ImageURL:    p.ImageURL,
		Tags:        tags,
		CreatedAt:   p.CreatedAt,
	}, nil
}

func (d productDocument) toDomain() (*domain.Product, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid product id %q: %w", d.ID, err)
	}
	if d.Tags == nil {
		d.Tags = []string{}
	}
	tags, err := json.Marshal(d.Tags)
	if err != nil {
		return nil, err
	}
	return &domain.Product{
		ID:          id,
		Name:        d.Name,
		Description: d.Description,
		Price:       d.Price,
		ImageURL:    d.ImageURL,
		Tags:        datatypes.JSON(tags),
		CreatedAt:   d.CreatedAt,
	}, nil
}

type productRepository struct {
	coll *mongo.Collection
}

func NewProductRepository(coll *mongo.Collection) *productRepository {
	return &productRepository{coll: coll}
}

func (r *productRepository) Upsert(ctx context.Context, product *domain.Product) error {
	doc, err := toProductDocument(product)
	if err != nil {
		return err
	}

	_, err = r.coll.ReplaceOne(ctx,
		bson.D{{Key: "_id", Value: doc.ID}},
		doc,
		options.Replace().SetUpsert(true),
	)
	return err
}

func (r *productRepository) GetAll(ctx context.Context) ([]*domain.Product, error) {
	cursor, err := r.coll.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, err
	}

	var docs []productDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	products := make([]*domain.Product, 0, len(docs))
	for _, doc := range docs {
		p, err := doc.toDomain()
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, nil
}

func (r *productRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	var doc productDocument
	err := r.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id.String()}}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrProductNotFound
		}
		return nil, err
	}
	return doc.toDomain()
}
