package memory

import (
	"context"
	"sync"

	"github.com/dom/yumyum-storefront/internal/domain"
	"github.com/google/uuid"
)

type userRepository struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]*domain.User
	byEmail map[string]uuid.UUID
	byPhone map[string]uuid.UUID
}

func NewUserRepository() *userRepository {
	return &userRepository{
		byID:    make(map[uuid.UUID]*domain.User),
		byEmail: make(map[string]uuid.UUID),
		byPhone: make(map[string]uuid.UUID),
	}
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[user.ID]; ok {
		return domain.ErrAlreadyRegistered
	}
	if _, ok := r.byEmail[user.Email]; ok {
		return domain.ErrAlreadyRegistered
	}
	if _, ok := r.byPhone[user.Phone]; ok {
		return domain.ErrAlreadyRegistered
	}

	stored := *user
	r.byID[user.ID] = &stored
	r.byEmail[user.Email] = user.ID
	r.byPhone[user.Phone] = user.ID
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.copyOf(id)
}

func (r *userRepository) GetByEmail(ctx context.Context, encryptedEmail string) (*domain.User, error) {
	return r.lookup(ctx, r.byEmail, encryptedEmail)
}

func (r *userRepository) GetByPhone(ctx context.Context, encryptedPhone string) (*domain.User, error) {
	return r.lookup(ctx, r.byPhone, encryptedPhone)
}

func (r *userRepository) Count(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.byID)), nil
}

func (r *userRepository) lookup(ctx context.Context, index map[string]uuid.UUID, key string) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := index[key]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return r.copyOf(id)
}

// copyOf must be called with r.mu held.
func (r *userRepository) copyOf(id uuid.UUID) (*domain.User, error) {
	user, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	out := *user
	return &out, nil
}
