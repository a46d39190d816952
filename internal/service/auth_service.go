package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dom/yumyum-storefront/internal/domain"
	"github.com/dom/yumyum-storefront/internal/repository"
	"github.com/google/uuid"
)

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(storedHash, password string) (bool, error)
}

type FieldEncryptor interface {
	Encrypt(plaintext string) (string, error)
}

type TokenIssuer interface {
	Issue(user *domain.User) (string, time.Time, error)
}

type AuthService struct {
	userRepo  repository.UserRepository
	hasher    PasswordHasher
	encryptor FieldEncryptor
	tokens    TokenIssuer
	log       *slog.Logger
	now       func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

func NewAuthService(userRepo repository.UserRepository, hasher PasswordHasher, encryptor FieldEncryptor, tokens TokenIssuer, log *slog.Logger) *AuthService {
	return &AuthService{
		userRepo:  userRepo,
		hasher:    hasher,
		encryptor: encryptor,
		tokens:    tokens,
		log:       log.With("component", "auth"),
		now:       time.Now,
	}
}

type RegisterInput struct {
	FirstName string `validate:"required,max=100"`
	LastName  string `validate:"required,max=100"`
	Email     string `validate:"required,email,max=254"`
	Phone     string `validate:"required,e164"`
	Password  string `validate:"required,min=6,maxbytes=72"`
}

type LoginInput struct {
	Email    string `validate:"required,email,max=254"`
	Password string `validate:"required,maxbytes=72"`
}

type AuthResult struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
}

// Register creates a user and issues a session token. It returns a
// *domain.ValidationError, domain.ErrAlreadyRegistered or a
// *domain.DependencyError; nothing is persisted on any of them.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	input.FirstName = strings.TrimSpace(input.FirstName)
	input.LastName = strings.TrimSpace(input.LastName)
	input.Email = NormalizeEmail(input.Email)
	input.Phone = NormalizePhone(input.Phone)

	if err := validateInput(input); err != nil {
		return nil, err
	}

	email, err := s.encryptor.Encrypt(input.Email)
	if err != nil {
		return nil, domain.Dependency("encrypt email", err)
	}
	phone, err := s.encryptor.Encrypt(input.Phone)
	if err != nil {
		return nil, domain.Dependency("encrypt phone", err)
	}

	// The store's unique indexes are authoritative; this check only gives
	// the common case a clean rejection before any hashing work.
	if err := s.ensureAbsent(ctx, "users.get_by_email", func() (*domain.User, error) {
		return s.userRepo.GetByEmail(ctx, email)
	}); err != nil {
		return nil, err
	}
	if err := s.ensureAbsent(ctx, "users.get_by_phone", func() (*domain.User, error) {
		return s.userRepo.GetByPhone(ctx, phone)
	}); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, domain.Dependency("hash password", err)
	}

	user := &domain.User{
		ID:           uuid.New(),
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Email:        email,
		Phone:        phone,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	}

	// Sign before persisting so a signing failure leaves no user behind.
	result, err := s.issue(user)
	if err != nil {
		return nil, err
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrAlreadyRegistered) {
			s.log.InfoContext(ctx, "registration rejected", "reason", "conflict on create")
			return nil, domain.ErrAlreadyRegistered
		}
		return nil, domain.Dependency("users.create", err)
	}

	s.log.InfoContext(ctx, "user registered", "user_id", user.ID)

	return result, nil
}

// Login verifies credentials and issues a session token. An unknown email and
// a wrong password both yield domain.ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	input.Email = NormalizeEmail(input.Email)

	if err := validateInput(input); err != nil {
		return nil, err
	}

	email, err := s.encryptor.Encrypt(input.Email)
	if err != nil {
		return nil, domain.Dependency("encrypt email", err)
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.Dependency("users.get_by_email", err)
		}
		// Spend the same hashing time as a real verification.
		_, _ = s.hasher.Verify(s.dummyPasswordHash(), input.Password)
		s.log.InfoContext(ctx, "login rejected")
		return nil, domain.ErrInvalidCredentials
	}

	ok, err := s.hasher.Verify(user.PasswordHash, input.Password)
	if err != nil {
		return nil, domain.Dependency("verify password", err)
	}
	if !ok {
		s.log.InfoContext(ctx, "login rejected")
		return nil, domain.ErrInvalidCredentials
	}

	s.log.InfoContext(ctx, "user logged in", "user_id", user.ID)

	return s.issue(user)
}

func (s *AuthService) GetUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, err
		}
		return nil, domain.Dependency("users.get_by_id", err)
	}
	return user, nil
}

func (s *AuthService) ensureAbsent(ctx context.Context, op string, lookup func() (*domain.User, error)) error {
	_, err := lookup()
	switch {
	case err == nil:
		s.log.InfoContext(ctx, "registration rejected", "reason", "already registered")
		return domain.ErrAlreadyRegistered
	case errors.Is(err, domain.ErrUserNotFound):
		return nil
	default:
		return domain.Dependency(op, err)
	}
}

func (s *AuthService) issue(user *domain.User) (*AuthResult, error) {
	token, expiresAt, err := s.tokens.Issue(user)
	if err != nil {
		return nil, domain.Dependency("issue token", err)
	}
	return &AuthResult{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

func (s *AuthService) dummyPasswordHash() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.Hash("not-a-real-password")
	})
	return s.dummyHash
}

// NormalizeEmail trims and lower-cases an address so that the deterministic
// ciphertext is stable across spellings.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizePhone keeps a leading '+' and the digits, dropping separators.
func NormalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)

	var b strings.Builder
	for i, r := range phone {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		case r == ' ', r == '-', r == '.', r == '(', r == ')':
		default:
			// Keep anything unexpected so validation rejects it.
			b.WriteRune(r)
		}
	}
	return b.String()
}
