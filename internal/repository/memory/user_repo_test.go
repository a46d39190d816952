package memory_test

import (
	"context"
	"sync"
	"testing"

	"github.com/dom/yumyum-storefront/internal/domain"
	"github.com/dom/yumyum-storefront/internal/repository/memory"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUser(email, phone string) *domain.User {
	return &domain.User{
		ID:           uuid.New(),
		FirstName:    "Alice",
		LastName:     "Liddell",
		Email:        email,
		Phone:        phone,
		PasswordHash: "hashedpassword",
	}
}

func TestUserRepository_Create(t *testing.T) {
	repo := memory.NewUserRepository()
	ctx := context.Background()

	tests := []struct {
		name    string
		user    *domain.User
		wantErr error
	}{
		{name: "successful creation", user: newUser("enc-email-1", "enc-phone-1")},
		{name: "duplicate email", user: newUser("enc-email-1", "enc-phone-2"), wantErr: domain.ErrAlreadyRegistered},
		{name: "duplicate phone", user: newUser("enc-email-2", "enc-phone-1"), wantErr: domain.ErrAlreadyRegistered},
		{name: "distinct user", user: newUser("enc-email-3", "enc-phone-3")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := repo.Create(ctx, tt.user)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestUserRepository_Lookups(t *testing.T) {
	repo := memory.NewUserRepository()
	ctx := context.Background()

	user := newUser("enc-email", "enc-phone")
	require.NoError(t, repo.Create(ctx, user))

	got, err := repo.GetByEmail(ctx, "enc-email")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	got, err = repo.GetByPhone(ctx, "enc-phone")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	got, err = repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.FirstName)

	_, err = repo.GetByEmail(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
	_, err = repo.GetByPhone(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
	_, err = repo.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestUserRepository_ReturnsCopies(t *testing.T) {
	repo := memory.NewUserRepository()
	ctx := context.Background()

	user := newUser("enc-email", "enc-phone")
	require.NoError(t, repo.Create(ctx, user))
	user.FirstName = "Mallory"

	got, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	got.LastName = "Changed"

	again, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", again.FirstName)
	assert.Equal(t, "Liddell", again.LastName)
}

func TestUserRepository_ConcurrentDuplicateCreate(t *testing.T) {
	repo := memory.NewUserRepository()
	ctx := context.Background()

	const workers = 16
	var wg sync.WaitGroup
	errs := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- repo.Create(ctx, newUser("same-email", uuid.NewString()))
		}()
	}
	wg.Wait()
	close(errs)

	var created int
	for err := range errs {
		if err == nil {
			created++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrAlreadyRegistered)
	}
	assert.Equal(t, 1, created)
}

func TestUserRepository_CanceledContext(t *testing.T) {
	repo := memory.NewUserRepository()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := repo.Create(ctx, newUser("e", "p"))
	assert.ErrorIs(t, err, context.Canceled)
}
