package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/dom/yumyum-storefront/internal/api/middleware"
	"github.com/dom/yumyum-storefront/internal/domain"
	"github.com/dom/yumyum-storefront/internal/service"
)

// CookieSettings controls the session cookie.
type CookieSettings struct {
	Name   string
	Secure bool
}

type AuthHandler struct {
	authService *service.AuthService
	cookie      CookieSettings
	log         *slog.Logger
	redirectTo  string
}

func NewAuthHandler(authService *service.AuthService, cookie CookieSettings, log *slog.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, cookie: cookie, log: log}
}

// RedirectTo returns a copy of h that answers successful login, registration
// and logout with a 303 to path instead of a JSON body.
func (h *AuthHandler) RedirectTo(path string) *AuthHandler {
	cp := *h
	cp.redirectTo = path
	return &cp
}

type RegisterRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Password  string `json:"password"`
}

func (req *RegisterRequest) fromForm(get func(string) string) {
	req.FirstName = get("firstName")
	req.LastName = get("lastName")
	req.Email = get("email")
	req.Phone = get("phone")
	req.Password = get("password")
}

// echo never includes the password.
func (req *RegisterRequest) echo() map[string]string {
	return map[string]string{
		"firstName": req.FirstName,
		"lastName":  req.LastName,
		"email":     req.Email,
		"phone":     req.Phone,
	}
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (req *LoginRequest) fromForm(get func(string) string) {
	req.Email = get("email")
	req.Password = get("password")
}

func (req *LoginRequest) echo() map[string]string {
	return map[string]string{"email": req.Email}
}

type UserResponse struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type AuthResponse struct {
	User      UserResponse `json:"user"`
	ExpiresAt time.Time    `json:"expiresAt"`
}

// FormResponse describes the fields a form expects.
type FormResponse struct {
	Form   string   `json:"form"`
	Action string   `json:"action"`
	Fields []string `json:"fields"`
}

func (h *AuthHandler) LoginForm(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, FormResponse{
		Form:   "login",
		Action: r.URL.Path,
		Fields: []string{"email", "password"},
	})
}

func (h *AuthHandler) RegisterForm(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, FormResponse{
		Form:   "register",
		Action: r.URL.Path,
		Fields: []string{"firstName", "lastName", "email", "phone", "password"},
	})
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return
	}

	result, err := h.authService.Register(r.Context(), service.RegisterInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
		Password:  req.Password,
	})
	if err != nil {
		h.reject(w, r, "auth.Register", err, req.echo())
		return
	}

	h.signIn(w, r, result)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return
	}

	result, err := h.authService.Login(r.Context(), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.reject(w, r, "auth.Login", err, req.echo())
		return
	}

	h.signIn(w, r, result)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.cookie.Secure,
		MaxAge:   -1,
	})

	if h.redirectTo != "" {
		http.Redirect(w, r, h.redirectTo, http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	user, err := h.authService.GetUserByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		h.log.ErrorContext(r.Context(), "[auth.Me] failed to load user", "error", err)
		writeError(w, http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (h *AuthHandler) signIn(w http.ResponseWriter, r *http.Request, result *service.AuthResult) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    result.Token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.cookie.Secure,
		Expires:  result.ExpiresAt,
	})

	if h.redirectTo != "" {
		http.Redirect(w, r, h.redirectTo, http.StatusSeeOther)
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{
		User:      toUserResponse(result.User),
		ExpiresAt: result.ExpiresAt,
	})
}

// reject maps auth errors to a form re-display. Authentication failures get
// one generic message whatever the cause.
func (h *AuthHandler) reject(w http.ResponseWriter, r *http.Request, op string, err error, form map[string]string) {
	var validationErr *domain.ValidationError

	switch {
	case errors.As(err, &validationErr):
		writeError(w, http.StatusBadRequest, ErrorResponse{
			Error:  "Please correct the highlighted fields",
			Fields: validationErr.Fields,
			Form:   form,
		})
	case errors.Is(err, domain.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, ErrorResponse{
			Error: "Invalid email or password",
			Form:  form,
		})
	case errors.Is(err, domain.ErrAlreadyRegistered):
		writeError(w, http.StatusConflict, ErrorResponse{
			Error: "A user with this email or phone is already registered",
			Form:  form,
		})
	default:
		h.log.ErrorContext(r.Context(), "["+op+"] request failed", "error", err)
		writeError(w, http.StatusInternalServerError, ErrorResponse{
			Error: "Something went wrong, please try again",
			Form:  form,
		})
	}
}

func toUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:        u.ID.String(),
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}
