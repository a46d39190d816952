package service_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dom/yumyum-storefront/internal/auth"
	"github.com/dom/yumyum-storefront/internal/crypto"
	"github.com/dom/yumyum-storefront/internal/domain"
	"github.com/dom/yumyum-storefront/internal/repository"
	"github.com/dom/yumyum-storefront/internal/repository/memory"
	"github.com/dom/yumyum-storefront/internal/service"
	"github.com/dom/yumyum-storefront/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var fixedNow = time.Date(2026, 10, 16, 9, 30, 15, 0, time.UTC)

type authFixture struct {
	service   *service.AuthService
	users     repository.UserRepository
	hasher    *crypto.PasswordHasher
	encryptor *crypto.FieldEncryptor
	tokens    *auth.TokenIssuer
	logs      *testutil.LogBuffer
}

func newAuthFixture(t *testing.T, users repository.UserRepository) *authFixture {
	t.Helper()

	if users == nil {
		users = memory.NewUserRepository()
	}

	hasher, err := crypto.NewPasswordHasher("bcrypt", bcrypt.MinCost)
	require.NoError(t, err)

	encryptor, err := crypto.NewFieldEncryptor(testutil.TestEncryptionKey)
	require.NoError(t, err)

	tokens := auth.NewTokenIssuer("test-jwt-secret", time.Hour).
		WithClock(func() time.Time { return fixedNow })

	log, logs := testutil.NewTestLogger()

	return &authFixture{
		service:   service.NewAuthService(users, hasher, encryptor, tokens, log),
		users:     users,
		hasher:    hasher,
		encryptor: encryptor,
		tokens:    tokens,
		logs:      logs,
	}
}

func aliceInput() service.RegisterInput {
	return service.RegisterInput{
		FirstName: "Alice",
		LastName:  "Smith",
		Email:     "alice@example.com",
		Phone:     "+15551234567",
		Password:  "Secr3t!",
	}
}

func TestAuthService_Register(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t, nil)

	result, err := f.service.Register(ctx, aliceInput())
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.NotEmpty(t, result.Token)
	assert.Equal(t, fixedNow.Add(time.Hour), result.ExpiresAt)
	assert.Equal(t, "Alice", result.User.FirstName)

	stored, err := f.users.GetByID(ctx, result.User.ID)
	require.NoError(t, err)

	t.Run("email and phone are stored encrypted", func(t *testing.T) {
		assert.NotEqual(t, "alice@example.com", stored.Email)
		assert.NotEqual(t, "+15551234567", stored.Phone)

		wantEmail, err := f.encryptor.Encrypt("alice@example.com")
		require.NoError(t, err)
		assert.Equal(t, wantEmail, stored.Email)

		email, err := f.encryptor.Decrypt(stored.Email)
		require.NoError(t, err)
		assert.Equal(t, "alice@example.com", email)
	})

	t.Run("password is stored hashed", func(t *testing.T) {
		assert.NotEqual(t, "Secr3t!", stored.PasswordHash)

		ok, err := f.hasher.Verify(stored.PasswordHash, "Secr3t!")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("token names the user", func(t *testing.T) {
		claims, err := f.tokens.Parse(result.Token)
		require.NoError(t, err)
		assert.Equal(t, "Alice", claims.Name)
		assert.Equal(t, result.User.ID.String(), claims.Subject)
		assert.Equal(t, fixedNow, claims.IssuedAt.Time.UTC())
		assert.Equal(t, fixedNow.Add(time.Hour), claims.ExpiresAt.Time.UTC())
	})

	t.Run("nothing secret is logged", func(t *testing.T) {
		logs := f.logs.String()
		assert.Contains(t, logs, "user registered")
		assert.NotContains(t, logs, "Secr3t!")
		assert.NotContains(t, logs, "alice@example.com")
		assert.NotContains(t, logs, "+15551234567")
	})
}

func TestAuthService_RegisterRejections(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		input      func() service.RegisterInput
		wantErr    error
		wantFields []string
	}{
		{
			name: "email already registered with different spelling",
			input: func() service.RegisterInput {
				in := aliceInput()
				in.Email = "  ALICE@Example.com"
				in.Phone = "+15550000000"
				return in
			},
			wantErr: domain.ErrAlreadyRegistered,
		},
		{
			name: "phone already registered with separators",
			input: func() service.RegisterInput {
				in := aliceInput()
				in.Email = "other@example.com"
				in.Phone = "+1 (555) 123-4567"
				return in
			},
			wantErr: domain.ErrAlreadyRegistered,
		},
		{
			name: "all fields missing",
			input: func() service.RegisterInput {
				return service.RegisterInput{}
			},
			wantFields: []string{"firstName", "lastName", "email", "phone", "password"},
		},
		{
			name: "malformed email and phone",
			input: func() service.RegisterInput {
				in := aliceInput()
				in.Email = "alice-at-example"
				in.Phone = "555-CALL-NOW"
				return in
			},
			wantFields: []string{"email", "phone"},
		},
		{
			name: "password too short",
			input: func() service.RegisterInput {
				in := aliceInput()
				in.Email = "short@example.com"
				in.Phone = "+15557654321"
				in.Password = "abc"
				return in
			},
			wantFields: []string{"password"},
		},
		{
			name: "password longer than 72 bytes but not 72 characters",
			input: func() service.RegisterInput {
				in := aliceInput()
				in.Email = "accent@example.com"
				in.Phone = "+15552223333"
				in.Password = strings.Repeat("é", 40)
				return in
			},
			wantFields: []string{"password"},
		},
		{
			name: "blank names",
			input: func() service.RegisterInput {
				in := aliceInput()
				in.FirstName = "   "
				in.LastName = "\t"
				return in
			},
			wantFields: []string{"firstName", "lastName"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAuthFixture(t, nil)
			_, err := f.service.Register(ctx, aliceInput())
			require.NoError(t, err)

			result, err := f.service.Register(ctx, tt.input())
			require.Error(t, err)
			assert.Nil(t, result)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			if tt.wantFields != nil {
				var validationErr *domain.ValidationError
				require.ErrorAs(t, err, &validationErr)
				for _, field := range tt.wantFields {
					assert.Contains(t, validationErr.Fields, field)
				}
				assert.Len(t, validationErr.Fields, len(tt.wantFields))
			}

			count, err := f.users.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(1), count, "a rejected registration must not create a user")
		})
	}
}

func TestAuthService_RegisterConcurrent(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t, nil)

	const attempts = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.service.Register(ctx, aliceInput())

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, domain.ErrAlreadyRegistered):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, attempts-1, conflicts)

	count, err := f.users.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

// racingUsers reports every lookup as a miss, so only Create can catch the
// duplicate.
type racingUsers struct {
	repository.UserRepository
}

func (r racingUsers) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return nil, domain.ErrUserNotFound
}

func (r racingUsers) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	return nil, domain.ErrUserNotFound
}

func TestAuthService_RegisterLosesRaceOnCreate(t *testing.T) {
	ctx := context.Background()
	users := memory.NewUserRepository()
	f := newAuthFixture(t, racingUsers{users})

	_, err := f.service.Register(ctx, aliceInput())
	require.NoError(t, err)

	_, err = f.service.Register(ctx, aliceInput())
	assert.ErrorIs(t, err, domain.ErrAlreadyRegistered)

	count, err := users.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestAuthService_Login(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t, nil)

	registered, err := f.service.Register(ctx, aliceInput())
	require.NoError(t, err)

	tests := []struct {
		name    string
		input   service.LoginInput
		wantErr error
	}{
		{
			name:  "correct credentials",
			input: service.LoginInput{Email: "alice@example.com", Password: "Secr3t!"},
		},
		{
			name:  "email spelled differently",
			input: service.LoginInput{Email: " Alice@EXAMPLE.com ", Password: "Secr3t!"},
		},
		{
			name:    "wrong password",
			input:   service.LoginInput{Email: "alice@example.com", Password: "secr3t!"},
			wantErr: domain.ErrInvalidCredentials,
		},
		{
			name:    "unknown email",
			input:   service.LoginInput{Email: "mallory@example.com", Password: "Secr3t!"},
			wantErr: domain.ErrInvalidCredentials,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := f.service.Login(ctx, tt.input)

			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				assert.Nil(t, result)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, registered.User.ID, result.User.ID)
			assert.Equal(t, fixedNow.Add(time.Hour), result.ExpiresAt)

			claims, err := f.tokens.Parse(result.Token)
			require.NoError(t, err)
			assert.Equal(t, "Alice", claims.Name)
		})
	}
}

func TestAuthService_PasswordAtByteLimit(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t, nil)

	in := aliceInput()
	in.Password = strings.Repeat("é", 36)

	_, err := f.service.Register(ctx, in)
	require.NoError(t, err)

	_, err = f.service.Login(ctx, service.LoginInput{Email: in.Email, Password: in.Password})
	require.NoError(t, err)

	_, err = f.service.Login(ctx, service.LoginInput{Email: in.Email, Password: strings.Repeat("é", 40)})
	var validationErr *domain.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "must be at most 72 bytes", validationErr.Fields["password"])
}

func TestAuthService_LoginValidation(t *testing.T) {
	f := newAuthFixture(t, nil)

	_, err := f.service.Login(context.Background(), service.LoginInput{Email: "nope"})

	var validationErr *domain.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, validationErr.Fields, "email")
	assert.Contains(t, validationErr.Fields, "password")
}

// brokenUsers fails every call as an unreachable store would.
type brokenUsers struct{}

var errStoreDown = errors.New("connection refused")

func (brokenUsers) Create(context.Context, *domain.User) error { return errStoreDown }
func (brokenUsers) GetByID(context.Context, uuid.UUID) (*domain.User, error) {
	return nil, errStoreDown
}
func (brokenUsers) GetByEmail(context.Context, string) (*domain.User, error) {
	return nil, errStoreDown
}
func (brokenUsers) GetByPhone(context.Context, string) (*domain.User, error) {
	return nil, errStoreDown
}
func (brokenUsers) Count(context.Context) (int64, error) { return 0, errStoreDown }

type brokenTokens struct{}

func (brokenTokens) Issue(*domain.User) (string, time.Time, error) {
	return "", time.Time{}, errors.New("signing failed")
}

func TestAuthService_DependencyFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("store unavailable on register", func(t *testing.T) {
		f := newAuthFixture(t, brokenUsers{})

		_, err := f.service.Register(ctx, aliceInput())

		var depErr *domain.DependencyError
		require.ErrorAs(t, err, &depErr)
		assert.ErrorIs(t, err, errStoreDown)
		assert.NotErrorIs(t, err, domain.ErrAlreadyRegistered)
	})

	t.Run("store unavailable on login", func(t *testing.T) {
		f := newAuthFixture(t, brokenUsers{})

		_, err := f.service.Login(ctx, service.LoginInput{Email: "alice@example.com", Password: "Secr3t!"})

		var depErr *domain.DependencyError
		require.ErrorAs(t, err, &depErr)
		assert.NotErrorIs(t, err, domain.ErrInvalidCredentials)
	})

	t.Run("token signing fails", func(t *testing.T) {
		base := newAuthFixture(t, nil)
		log, _ := testutil.NewTestLogger()
		svc := service.NewAuthService(base.users, base.hasher, base.encryptor, brokenTokens{}, log)

		_, err := svc.Register(ctx, aliceInput())

		var depErr *domain.DependencyError
		require.ErrorAs(t, err, &depErr)
		assert.Equal(t, "issue token", depErr.Op)

		count, err := base.users.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(0), count, "no user may be stored when signing fails")
	})

	t.Run("stored hash is corrupt", func(t *testing.T) {
		f := newAuthFixture(t, nil)
		user, _ := testutil.NewUserBuilder().
			WithEmail("corrupt@example.com").
			Build(t, f.users, f.encryptor)
		user.PasswordHash = "not-a-hash"
		corrupt := memory.NewUserRepository()
		require.NoError(t, corrupt.Create(ctx, user))

		svc := newAuthFixture(t, corrupt).service
		_, err := svc.Login(ctx, service.LoginInput{Email: "corrupt@example.com", Password: "testpassword123"})

		var depErr *domain.DependencyError
		require.ErrorAs(t, err, &depErr)
	})
}

func TestAuthService_GetUserByID(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t, nil)

	registered, err := f.service.Register(ctx, aliceInput())
	require.NoError(t, err)

	user, err := f.service.GetUserByID(ctx, registered.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", user.FirstName)

	_, err = f.service.GetUserByID(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "+15551234567", want: "+15551234567"},
		{in: " +1 (555) 123-4567 ", want: "+15551234567"},
		{in: "+1.555.123.4567", want: "+15551234567"},
		{in: "1+555", want: "1+555"},
		{in: "555-CALL", want: "555CALL"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, service.NormalizePhone(tt.in))
		})
	}
}
