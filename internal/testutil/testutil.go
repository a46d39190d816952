package testutil

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/dom/yumyum-storefront/internal/api"
	"github.com/dom/yumyum-storefront/internal/config"
	"github.com/dom/yumyum-storefront/internal/logging"
	"github.com/dom/yumyum-storefront/internal/repository"
	"github.com/dom/yumyum-storefront/internal/repository/memory"
	"github.com/dom/yumyum-storefront/internal/repository/mongodb"
	repoPostgres "github.com/dom/yumyum-storefront/internal/repository/postgres"
	"github.com/dom/yumyum-storefront/internal/service"
	"github.com/testcontainers/testcontainers-go"
	tcMongo "github.com/testcontainers/testcontainers-go/modules/mongodb"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"golang.org/x/crypto/bcrypt"
	gormPostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestDB manages a testcontainers PostgreSQL instance
type TestDB struct {
	Container testcontainers.Container
	DB        *gorm.DB
	DSN       string
}

// NewTestDB creates a new PostgreSQL testcontainer, applies the migrations
// and returns a connection
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	ctx := context.Background()

	container, err := tcPostgres.Run(ctx,
		"postgres:15-alpine",
		tcPostgres.WithDatabase("test_yumyum"),
		tcPostgres.WithUsername("test"),
		tcPostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	testDB := &TestDB{Container: container}
	t.Cleanup(func() {
		testDB.Cleanup()
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	db, err := gorm.Open(gormPostgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to connect to database: %v", err)
	}

	if err := repoPostgres.Migrate(ctx, db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	testDB.DB = db
	testDB.DSN = dsn

	return testDB
}

// Cleanup terminates the container
func (tdb *TestDB) Cleanup() {
	if tdb.Container != nil {
		ctx := context.Background()
		tdb.Container.Terminate(ctx)
	}
}

// Truncate clears all tables for test isolation
func (tdb *TestDB) Truncate(t *testing.T) {
	t.Helper()

	for _, table := range []string{"users", "products"} {
		if err := tdb.DB.Exec(fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)).Error; err != nil {
			t.Logf("warning: failed to truncate %s: %v", table, err)
		}
	}
}

// TestMongo manages a testcontainers MongoDB instance
type TestMongo struct {
	Container   testcontainers.Container
	Client      *mongo.Client
	DB          *mongo.Database
	Collections mongodb.Collections
}

// NewTestMongo starts a MongoDB testcontainer with the user indexes in place
func NewTestMongo(t *testing.T) *TestMongo {
	t.Helper()

	ctx := context.Background()

	container, err := tcMongo.Run(ctx, "mongo:7")
	if err != nil {
		t.Fatalf("failed to start mongo container: %v", err)
	}

	tm := &TestMongo{
		Container:   container,
		Collections: mongodb.Collections{Users: "users", Products: "products"},
	}
	t.Cleanup(func() {
		tm.Cleanup()
	})

	uri, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	client, err := mongodb.NewConnection(ctx, uri)
	if err != nil {
		t.Fatalf("failed to connect to mongo: %v", err)
	}
	tm.Client = client
	tm.DB = client.Database("test_yumyum")

	if err := mongodb.EnsureIndexes(ctx, tm.DB, tm.Collections); err != nil {
		t.Fatalf("failed to create indexes: %v", err)
	}

	return tm
}

// Cleanup disconnects and terminates the container
func (tm *TestMongo) Cleanup() {
	ctx := context.Background()
	if tm.Client != nil {
		tm.Client.Disconnect(ctx)
	}
	if tm.Container != nil {
		tm.Container.Terminate(ctx)
	}
}

// Truncate empties both collections, keeping their indexes
func (tm *TestMongo) Truncate(t *testing.T) {
	t.Helper()

	ctx := context.Background()
	for _, name := range []string{tm.Collections.Users, tm.Collections.Products} {
		if _, err := tm.DB.Collection(name).DeleteMany(ctx, map[string]interface{}{}); err != nil {
			t.Logf("warning: failed to clear %s: %v", name, err)
		}
	}
}

// TestEncryptionKey is 32 bytes of fixed key material.
var TestEncryptionKey = []byte("0123456789abcdef0123456789abcdef")

// TestConfig returns a configuration suitable for testing
func TestConfig() *config.Config {
	return &config.Config{
		Port:                 "0", // Random port
		Environment:          "test",
		LogLevel:             "debug",
		CORSAllowedOrigins:   []string{"http://localhost:3000"},
		DatabaseDriver:       config.DriverMemory,
		JWTSecret:            "test-jwt-secret-key-for-testing-only",
		TokenValidityMinutes: 60,
		SessionCookieName:    "yumyum_session",
		EncryptionKey:        TestEncryptionKey,
		PasswordHasher:       config.HasherBcrypt,
		BcryptCost:           bcrypt.MinCost,
	}
}

// LogBuffer collects log output and is safe for concurrent writers.
type LogBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *LogBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *LogBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// NewTestLogger returns a debug-level logger writing into the returned buffer.
func NewTestLogger() (*slog.Logger, *LogBuffer) {
	buf := &LogBuffer{}
	return logging.New(buf, "test", "debug"), buf
}

// TestServer holds all components for integration testing
type TestServer struct {
	Server   *httptest.Server
	Repos    *repository.Repositories
	Services *service.Services
	Config   *config.Config
	Logs     *LogBuffer
}

// NewTestServer creates a complete test server backed by the in-memory store
func NewTestServer(t *testing.T) *TestServer {
	t.Helper()
	return newTestServer(t, memory.NewRepositories())
}

// NewPostgresTestServer creates a complete test server backed by a
// PostgreSQL testcontainer
func NewPostgresTestServer(t *testing.T) *TestServer {
	t.Helper()

	testDB := NewTestDB(t)
	cfg := TestConfig()
	cfg.DatabaseDriver = config.DriverPostgres

	return newTestServerWithConfig(t, repoPostgres.NewRepositories(testDB.DB), cfg)
}

func newTestServer(t *testing.T, repos *repository.Repositories) *TestServer {
	return newTestServerWithConfig(t, repos, TestConfig())
}

func newTestServerWithConfig(t *testing.T, repos *repository.Repositories, cfg *config.Config) *TestServer {
	t.Helper()

	log, logs := NewTestLogger()

	services, err := service.NewServices(repos, cfg, log)
	if err != nil {
		t.Fatalf("failed to build services: %v", err)
	}

	if _, err := services.Product.EnsureCatalog(context.Background()); err != nil {
		t.Fatalf("failed to seed catalog: %v", err)
	}

	router := api.NewRouter(services, cfg, log)
	server := httptest.NewServer(router)

	ts := &TestServer{
		Server:   server,
		Repos:    repos,
		Services: services,
		Config:   cfg,
		Logs:     logs,
	}

	t.Cleanup(func() {
		server.Close()
	})

	return ts
}

// Client returns an HTTP client with its own cookie jar that does not follow
// redirects, so tests can assert on 303 responses.
func (ts *TestServer) Client(t *testing.T) *http.Client {
	t.Helper()

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("failed to create cookie jar: %v", err)
	}

	return &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// URL returns the full URL for a storefront path
func (ts *TestServer) URL(path string) string {
	return ts.Server.URL + path
}

// APIURL returns the full API URL for a given path
func (ts *TestServer) APIURL(path string) string {
	return fmt.Sprintf("%s/api/v1%s", ts.Server.URL, path)
}
