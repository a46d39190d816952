package mongodb_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dom/yumyum-storefront/internal/domain"
	"github.com/dom/yumyum-storefront/internal/repository/mongodb"
	"github.com/dom/yumyum-storefront/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUser(email, phone string) *domain.User {
	return &domain.User{
		ID:           uuid.New(),
		FirstName:    "Test",
		LastName:     "User",
		Email:        email,
		Phone:        phone,
		PasswordHash: "hashedpassword",
		CreatedAt:    time.Now().UTC().Truncate(time.Millisecond),
	}
}

func TestUserRepository(t *testing.T) {
	tm := testutil.NewTestMongo(t)
	repos := mongodb.NewRepositories(tm.Client, tm.DB, tm.Collections)
	repo := repos.User
	ctx := context.Background()

	user := newUser("enc-email-1", "enc-phone-1")
	require.NoError(t, repo.Create(ctx, user))

	t.Run("duplicates are rejected by the unique indexes", func(t *testing.T) {
		tests := []struct {
			name string
			user *domain.User
		}{
			{name: "same email", user: newUser("enc-email-1", "enc-phone-2")},
			{name: "same phone", user: newUser("enc-email-2", "enc-phone-1")},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				assert.ErrorIs(t, repo.Create(ctx, tt.user), domain.ErrAlreadyRegistered)
			})
		}

		count, err := repo.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})

	t.Run("lookups", func(t *testing.T) {
		byID, err := repo.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, user.ID, byID.ID)
		assert.True(t, user.CreatedAt.Equal(byID.CreatedAt))

		byEmail, err := repo.GetByEmail(ctx, "enc-email-1")
		require.NoError(t, err)
		assert.Equal(t, user.ID, byEmail.ID)

		byPhone, err := repo.GetByPhone(ctx, "enc-phone-1")
		require.NoError(t, err)
		assert.Equal(t, user.ID, byPhone.ID)

		_, err = repo.GetByEmail(ctx, "nobody")
		assert.ErrorIs(t, err, domain.ErrUserNotFound)

		_, err = repo.GetByID(ctx, uuid.New())
		assert.ErrorIs(t, err, domain.ErrUserNotFound)
	})
}

func TestUserRepository_ConcurrentCreate(t *testing.T) {
	tm := testutil.NewTestMongo(t)
	repo := mongodb.NewUserRepository(tm.DB.Collection(tm.Collections.Users))
	ctx := context.Background()

	const (
		rounds   = 3
		attempts = 6
	)

	for round := 0; round < rounds; round++ {
		tm.Truncate(t)

		errs := make([]error, attempts)
		var wg sync.WaitGroup
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs[i] = repo.Create(ctx, newUser("race-email", "race-phone"))
			}(i)
		}
		wg.Wait()

		successes := 0
		for _, err := range errs {
			if err == nil {
				successes++
				continue
			}
			assert.ErrorIs(t, err, domain.ErrAlreadyRegistered)
		}
		assert.Equal(t, 1, successes, "round %d", round)

		count, err := repo.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count, "round %d", round)
	}
}

func TestProductRepository(t *testing.T) {
	tm := testutil.NewTestMongo(t)
	repo := mongodb.NewProductRepository(tm.DB.Collection(tm.Collections.Products))
	ctx := context.Background()

	udon := testutil.NewProductBuilder().
		WithName("Udon").
		WithTags([]string{"noodles"}).
		Build(t, repo)
	testutil.NewProductBuilder().WithName("Gyoza").Build(t, repo)

	products, err := repo.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "Gyoza", products[0].Name)
	assert.Equal(t, "Udon", products[1].Name)

	testutil.NewProductBuilder().WithID(udon.ID).WithName("Udon").WithPrice(999).Build(t, repo)

	got, err := repo.GetByID(ctx, udon.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(999), got.Price)
	assert.JSONEq(t, `["test"]`, string(got.Tags))

	_, err = repo.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}
