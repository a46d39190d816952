package service

import (
	"fmt"
	"log/slog"

	"github.com/dom/yumyum-storefront/internal/auth"
	"github.com/dom/yumyum-storefront/internal/config"
	"github.com/dom/yumyum-storefront/internal/crypto"
	"github.com/dom/yumyum-storefront/internal/repository"
)

type Services struct {
	Auth      *AuthService
	Product   *ProductService
	Tokens    *auth.TokenIssuer
	Encryptor *crypto.FieldEncryptor
}

// NewServices builds the key material from cfg once and shares it with every
// service that needs it.
func NewServices(repos *repository.Repositories, cfg *config.Config, log *slog.Logger) (*Services, error) {
	hasher, err := crypto.NewPasswordHasher(cfg.PasswordHasher, cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("password hasher: %w", err)
	}

	encryptor, err := crypto.NewFieldEncryptor(cfg.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("field encryptor: %w", err)
	}

	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenValidity())

	return &Services{
		Auth:      NewAuthService(repos.User, hasher, encryptor, tokens, log),
		Product:   NewProductService(repos.Product),
		Tokens:    tokens,
		Encryptor: encryptor,
	}, nil
}
