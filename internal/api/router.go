package api

import (
	"log/slog"
	"net/http"

	"github.com/dom/yumyum-storefront/internal/api/handlers"
	"github.com/dom/yumyum-storefront/internal/api/middleware"
	"github.com/dom/yumyum-storefront/internal/config"
	"github.com/dom/yumyum-storefront/internal/service"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func NewRouter(services *service.Services, cfg *config.Config, log *slog.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.RequestLogger(log))
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.Session(services.Tokens, cfg.SessionCookieName, log))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	cookie := handlers.CookieSettings{Name: cfg.SessionCookieName, Secure: cfg.CookieSecure}
	authHandler := handlers.NewAuthHandler(services.Auth, cookie, log)
	webAuthHandler := authHandler.RedirectTo("/")
	productHandler := handlers.NewProductHandler(services.Product, log)

	// Storefront routes
	r.Get("/", productHandler.Index)
	r.Get("/login", webAuthHandler.LoginForm)
	r.Post("/login", webAuthHandler.Login)
	r.Get("/register", webAuthHandler.RegisterForm)
	r.Post("/register", webAuthHandler.Register)
	r.Post("/logout", webAuthHandler.Logout)
	r.With(middleware.RequireSession).Get("/me", authHandler.Me)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/logout", authHandler.Logout)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireSession)
				r.Get("/me", authHandler.Me)
			})
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", productHandler.GetAll)
			r.Get("/{id}", productHandler.Get)
		})
	})

	return r
}
