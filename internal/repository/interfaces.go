package repository

import (
	"context"

	"github.com/dom/yumyum-storefront/internal/domain"
	"github.com/google/uuid"
)

// UserRepository stores users keyed by their encrypted email and phone.
// Lookups return domain.ErrUserNotFound when nothing matches; Create returns
// domain.ErrAlreadyRegistered when the email or phone ciphertext is taken.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, encryptedEmail string) (*domain.User, error)
	GetByPhone(ctx context.Context, encryptedPhone string) (*domain.User, error)
	Count(ctx context.Context) (int64, error)
}

type ProductRepository interface {
	Upsert(ctx context.Context, product *domain.Product) error
	GetAll(ctx context.Context) ([]*domain.Product, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
}

type Repositories struct {
	User    UserRepository
	Product ProductRepository

	// Close releases the underlying connection.
	Close func(ctx context.Context) error
}
