// Package memory provides process-local repositories for development and
// tests. They enforce the same uniqueness rules as the database-backed stores.
package memory

import (
	"context"

	"github.com/dom/yumyum-storefront/internal/repository"
)

func NewRepositories() *repository.Repositories {
	return &repository.Repositories{
		User:    NewUserRepository(),
		Product: NewProductRepository(),
		Close:   func(context.Context) error { return nil },
	}
}
