package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dom/yumyum-storefront/internal/domain"
	"github.com/dom/yumyum-storefront/internal/repository"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type ProductService struct {
	productRepo repository.ProductRepository
}

func NewProductService(productRepo repository.ProductRepository) *ProductService {
	return &ProductService{productRepo: productRepo}
}

func (s *ProductService) GetAllProducts(ctx context.Context) ([]*domain.Product, error) {
	products, err := s.productRepo.GetAll(ctx)
	if err != nil {
		return nil, domain.Dependency("products.get_all", err)
	}
	return products, nil
}

func (s *ProductService) GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			return nil, err
		}
		return nil, domain.Dependency("products.get_by_id", err)
	}
	return product, nil
}

// EnsureCatalog stores the default menu when the catalog is empty.
// It returns the number of products inserted.
func (s *ProductService) EnsureCatalog(ctx context.Context) (int, error) {
	existing, err := s.productRepo.GetAll(ctx)
	if err != nil {
		return 0, domain.Dependency("products.get_all", err)
	}
	if len(existing) > 0 {
		return 0, nil
	}

	catalog := DefaultCatalog()
	for _, p := range catalog {
		if err := s.productRepo.Upsert(ctx, p); err != nil {
			return 0, domain.Dependency("products.upsert", err)
		}
	}
	return len(catalog), nil
}

// DefaultCatalog is the menu a fresh store starts with. IDs are fixed so
// seeding is idempotent across drivers.
func DefaultCatalog() []*domain.Product {
	now := time.Now().UTC()
	item := func(id, name, description string, price int64, image string, tags ...string) *domain.Product {
		tagsJSON, _ := json.Marshal(tags)
		return &domain.Product{
			ID:          uuid.MustParse(id),
			Name:        name,
			Description: description,
			Price:       price,
			ImageURL:    image,
			Tags:        datatypes.JSON(tagsJSON),
			CreatedAt:   now,
		}
	}

	return []*domain.Product{
		item("7b0c3c1e-5a55-4f0e-9a57-6a3f1b0c0001", "Margherita Pizza", "Tomato, mozzarella, basil", 1099, "/img/margherita.jpg", "pizza", "vegetarian"),
		item("7b0c3c1e-5a55-4f0e-9a57-6a3f1b0c0002", "Pepperoni Pizza", "Tomato, mozzarella, pepperoni", 1299, "/img/pepperoni.jpg", "pizza"),
		item("7b0c3c1e-5a55-4f0e-9a57-6a3f1b0c0003", "Caesar Salad", "Romaine, parmesan, croutons", 849, "/img/caesar.jpg", "salad"),
		item("7b0c3c1e-5a55-4f0e-9a57-6a3f1b0c0004", "Falafel Wrap", "Falafel, hummus, pickled vegetables", 799, "/img/falafel.jpg", "wrap", "vegan"),
	}
}
