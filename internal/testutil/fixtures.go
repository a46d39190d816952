package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/dom/yumyum-storefront/internal/domain"
	"github.com/dom/yumyum-storefront/internal/repository"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
)

// Encryptor is the part of the field encryptor fixtures need.
type Encryptor interface {
	Encrypt(plaintext string) (string, error)
}

// UserBuilder creates test users with a builder pattern
type UserBuilder struct {
	firstName string
	lastName  string
	email     string
	phone     string
	password  string
}

// NewUserBuilder creates a new UserBuilder with unique email and phone
func NewUserBuilder() *UserBuilder {
	suffix := uuid.New()
	return &UserBuilder{
		firstName: "Test",
		lastName:  "User",
		email:     fmt.Sprintf("user_%s@example.com", suffix.String()[:8]),
		phone:     fmt.Sprintf("+1555%07d", suffix.ID()%10000000),
		password:  "testpassword123",
	}
}

func (b *UserBuilder) WithName(first, last string) *UserBuilder {
	b.firstName = first
	b.lastName = last
	return b
}

func (b *UserBuilder) WithEmail(email string) *UserBuilder {
	b.email = email
	return b
}

func (b *UserBuilder) WithPhone(phone string) *UserBuilder {
	b.phone = phone
	return b
}

func (b *UserBuilder) WithPassword(password string) *UserBuilder {
	b.password = password
	return b
}

func (b *UserBuilder) Email() string    { return b.email }
func (b *UserBuilder) Phone() string    { return b.phone }
func (b *UserBuilder) Password() string { return b.password }

// Build stores the user directly through repo, encrypting email and phone the
// way registration does, and returns it with the raw password
func (b *UserBuilder) Build(t *testing.T, repo repository.UserRepository, enc Encryptor) (*domain.User, string) {
	t.Helper()

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(b.password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	email, err := enc.Encrypt(b.email)
	if err != nil {
		t.Fatalf("failed to encrypt email: %v", err)
	}
	phone, err := enc.Encrypt(b.phone)
	if err != nil {
		t.Fatalf("failed to encrypt phone: %v", err)
	}

	user := &domain.User{
		ID:           uuid.New(),
		FirstName:    b.firstName,
		LastName:     b.lastName,
		Email:        email,
		Phone:        phone,
		PasswordHash: string(hashedPassword),
		CreatedAt:    time.Now().UTC().Truncate(time.Microsecond),
	}

	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	return user, b.password
}

// AuthResponse matches the API auth response
type AuthResponse struct {
	User struct {
		ID        string `json:"id"`
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
	} `json:"user"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// registerJSON is the JSON body of an API registration request.
func (b *UserBuilder) registerJSON() []byte {
	body, _ := json.Marshal(map[string]string{
		"firstName": b.firstName,
		"lastName":  b.lastName,
		"email":     b.email,
		"phone":     b.phone,
		"password":  b.password,
	})
	return body
}

// BuildAndAuthenticate registers the user via the API and returns the
// response body and the session cookie
func (b *UserBuilder) BuildAndAuthenticate(t *testing.T, ts *TestServer) (*AuthResponse, *http.Cookie) {
	t.Helper()

	resp, err := http.Post(ts.APIURL("/auth/register"), "application/json", bytes.NewBuffer(b.registerJSON()))
	if err != nil {
		t.Fatalf("failed to register user: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status code: %d", resp.StatusCode)
	}

	var authResp AuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&authResp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	cookie := SessionCookie(resp, ts.Config.SessionCookieName)
	if cookie == nil {
		t.Fatalf("registration response carried no %s cookie", ts.Config.SessionCookieName)
	}

	return &authResp, cookie
}

// SessionCookie returns the named cookie set by resp, or nil.
func SessionCookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// ProductBuilder creates test products with a builder pattern
type ProductBuilder struct {
	product *domain.Product
}

// NewProductBuilder creates a new ProductBuilder with default values
func NewProductBuilder() *ProductBuilder {
	return &ProductBuilder{
		product: &domain.Product{
			ID:          uuid.New(),
			Name:        fmt.Sprintf("Product %s", uuid.New().String()[:8]),
			Description: "A test product",
			Price:       499,
			ImageURL:    "/img/test.png",
			Tags:        datatypes.JSON(`["test"]`),
			CreatedAt:   time.Now().UTC().Truncate(time.Microsecond),
		},
	}
}

func (b *ProductBuilder) WithID(id uuid.UUID) *ProductBuilder {
	b.product.ID = id
	return b
}

func (b *ProductBuilder) WithName(name string) *ProductBuilder {
	b.product.Name = name
	return b
}

func (b *ProductBuilder) WithPrice(cents int64) *ProductBuilder {
	b.product.Price = cents
	return b
}

func (b *ProductBuilder) WithTags(tags []string) *ProductBuilder {
	tagsJSON, _ := json.Marshal(tags)
	b.product.Tags = datatypes.JSON(tagsJSON)
	return b
}

// Build upserts the product through repo
func (b *ProductBuilder) Build(t *testing.T, repo repository.ProductRepository) *domain.Product {
	t.Helper()

	if err := repo.Upsert(context.Background(), b.product); err != nil {
		t.Fatalf("failed to create product: %v", err)
	}

	return b.product
}

// CreateAuthenticatedRequest creates an HTTP request carrying token as a
// Bearer credential
func CreateAuthenticatedRequest(t *testing.T, method, url string, body interface{}, token string) *http.Request {
	t.Helper()

	var reqBody *bytes.Buffer
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonBody)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return req
}
