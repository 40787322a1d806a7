package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"finance-tracker/internal/auth"
	"finance-tracker/internal/ledger"
	"finance-tracker/internal/metrics"
	"finance-tracker/internal/models"
	"finance-tracker/internal/notify"
	"finance-tracker/internal/session"

	"github.com/go-chi/chi/v5"
)

// Context key type to avoid collisions.
type contextKey string

const (
	// UserContextKey is the context key for the authenticated user.
	UserContextKey contextKey = "user"
	// SessionCookieName is the name of the session cookie.
	SessionCookieName = "session"
)

// App holds the services the handlers depend on. It is built once at
// startup and shared by every request.
type App struct {
	Credentials *auth.Credentials
	Sessions    *session.Manager
	Ledger      *ledger.Service
	Notifier    notify.Sender
	Logger      *slog.Logger
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	app          App
	logger       *slog.Logger
	templateDir  string
	secureCookie bool
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(app App, templateDir string, secureCookie bool) *Handlers {
	logger := app.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		app:          app,
		logger:       logger.With("component", "http"),
		templateDir:  templateDir,
		secureCookie: secureCookie,
	}
}

// Routes mounts the application routes on r. authLimit wraps the
// unauthenticated form endpoints; pass nil to disable rate limiting.
func (h *Handlers) Routes(r chi.Router, authLimit func(http.Handler) http.Handler) {
	r.Get("/healthz", h.Health)
	r.Get("/guide", h.Guide)

	r.Group(func(r chi.Router) {
		if authLimit != nil {
			r.Use(authLimit)
		}
		r.Get("/login", h.LoginForm)
		r.Post("/login", h.Login)
		r.Get("/register", h.RegisterForm)
		r.Post("/register", h.Register)
		r.Get("/reset-password", h.ResetPasswordForm)
		r.Post("/reset-password", h.ResetPassword)
		r.Post("/send-otp", h.SendOTP)
	})

	r.Group(func(r chi.Router) {
		r.Use(h.AuthMiddleware)
		r.Get("/", h.Index)
		r.Get("/stats", h.Statistics)
		r.Get("/logout", h.Logout)
		r.Post("/add", h.AddTransaction)
		r.Post("/remove/{id}", h.RemoveTransaction)
	})
}

// GetUserFromContext retrieves the authenticated user from request context.
func GetUserFromContext(r *http.Request) *models.User {
	if user, ok := r.Context().Value(UserContextKey).(*models.User); ok {
		return user
	}
	return nil
}

// AuthMiddleware wraps handlers to require authentication.
// Anonymous clients are redirected to the login page.
func (h *Handlers) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(SessionCookieName)
		if err != nil || cookie.Value == "" {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}

		sess, renewed, err := h.app.Sessions.Resolve(r.Context(), cookie.Value)
		if err != nil {
			if !errors.Is(err, session.ErrUnauthenticated) {
				h.logger.ErrorContext(r.Context(), "resolve session", "error", err)
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}
			// Invalid or expired session, clear the cookie
			h.clearSessionCookie(w)
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}

		user, err := h.app.Credentials.User(r.Context(), sess.UserID)
		if err != nil {
			if !errors.Is(err, auth.ErrNotFound) {
				h.logger.ErrorContext(r.Context(), "load session user", "error", err)
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}
			h.clearSessionCookie(w)
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}

		if renewed {
			h.setSessionCookie(w, sess.Token)
		}

		ctx := context.WithValue(r.Context(), UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// LoginViewModel holds data for the login page.
type LoginViewModel struct {
	Error    string
	Username string
}

// LoginForm renders the login page.
func (h *Handlers) LoginForm(w http.ResponseWriter, r *http.Request) {
	// If already logged in, go straight to the ledger
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		if _, _, err := h.app.Sessions.Resolve(r.Context(), cookie.Value); err == nil {
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}
	}
	h.render(w, r, http.StatusOK, "login.html", LoginViewModel{})
}

// Login handles the login form submission.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.render(w, r, http.StatusBadRequest, "login.html", LoginViewModel{Error: "Invalid form submission"})
		return
	}

	username := strings.TrimSpace(r.FormValue("username"))
	password := r.FormValue("password")

	user, err := h.app.Credentials.Authenticate(r.Context(), username, password)
	if err != nil {
		if !errors.Is(err, auth.ErrAuthFailure) {
			h.logger.ErrorContext(r.Context(), "authenticate", "error", err)
			h.render(w, r, http.StatusInternalServerError, "login.html",
				LoginViewModel{Error: "An error occurred. Please try again.", Username: username})
			return
		}
		metrics.RecordAuth("login", "failure")
		h.render(w, r, http.StatusOK, "login.html",
			LoginViewModel{Error: "Invalid username or password", Username: username})
		return
	}

	sess, err := h.app.Sessions.Login(r.Context(), user.ID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "create session", "error", err)
		h.render(w, r, http.StatusInternalServerError, "login.html",
			LoginViewModel{Error: "An error occurred. Please try again.", Username: username})
		return
	}

	metrics.RecordAuth("login", "success")
	h.logger.InfoContext(r.Context(), "successful login",
		"username", user.Username,
		"client_ip", r.RemoteAddr)

	h.setSessionCookie(w, sess.Token)
	http.Redirect(w, r, "/", http.StatusFound)
}

// Logout handles user logout.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		if err := h.app.Sessions.Logout(r.Context(), cookie.Value); err != nil {
			h.logger.ErrorContext(r.Context(), "delete session", "error", err)
		}
	}
	h.clearSessionCookie(w)
	http.Redirect(w, r, "/login", http.StatusFound)
}

// RegisterViewModel holds data for the registration page.
type RegisterViewModel struct {
	Error    string
	Username string
	Email    string
}

// RegisterForm renders the registration page.
func (h *Handlers) RegisterForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "register.html", RegisterViewModel{})
}

// Register handles the registration form submission.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.render(w, r, http.StatusBadRequest, "register.html", RegisterViewModel{Error: "Invalid form submission"})
		return
	}

	vm := RegisterViewModel{
		Username: strings.TrimSpace(r.FormValue("username")),
		Email:    strings.TrimSpace(r.FormValue("email")),
	}

	_, err := h.app.Credentials.Register(r.Context(), vm.Username, r.FormValue("password"), vm.Email)
	switch {
	case err == nil:
		metrics.RecordAuth("register", "success")
		http.Redirect(w, r, "/login", http.StatusFound)
	case errors.Is(err, auth.ErrMissingCredentials):
		vm.Error = "Username and password are required"
		h.render(w, r, http.StatusBadRequest, "register.html", vm)
	case errors.Is(err, auth.ErrDuplicateIdentity):
		metrics.RecordAuth("register", "duplicate")
		vm.Error = "Username already exists. Please choose a different one."
		h.render(w, r, http.StatusOK, "register.html", vm)
	default:
		h.logger.ErrorContext(r.Context(), "register", "error", err)
		vm.Error = "An error occurred. Please try again."
		h.render(w, r, http.StatusInternalServerError, "register.html", vm)
	}
}

// ResetPasswordViewModel holds data for the password reset page.
type ResetPasswordViewModel struct {
	Error    string
	Username string
}

// ResetPasswordForm renders the password reset page.
func (h *Handlers) ResetPasswordForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "reset_password.html", ResetPasswordViewModel{})
}

// ResetPassword replaces a user's password. Knowing the username is enough.
func (h *Handlers) ResetPassword(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.render(w, r, http.StatusBadRequest, "reset_password.html", ResetPasswordViewModel{Error: "Invalid form submission"})
		return
	}

	vm := ResetPasswordViewModel{Username: strings.TrimSpace(r.FormValue("username"))}

	err := h.app.Credentials.ResetPassword(r.Context(), vm.Username, r.FormValue("new_password"))
	switch {
	case err == nil:
		metrics.RecordAuth("reset_password", "success")
		h.logger.WarnContext(r.Context(), "password reset", "username", vm.Username, "client_ip", r.RemoteAddr)
		http.Redirect(w, r, "/login", http.StatusFound)
	case errors.Is(err, auth.ErrMissingCredentials):
		vm.Error = "Username and new password are required"
		h.render(w, r, http.StatusBadRequest, "reset_password.html", vm)
	case errors.Is(err, auth.ErrNotFound):
		metrics.RecordAuth("reset_password", "not_found")
		vm.Error = "User not found"
		h.render(w, r, http.StatusOK, "reset_password.html", vm)
	default:
		h.logger.ErrorContext(r.Context(), "reset password", "error", err)
		vm.Error = "An error occurred. Please try again."
		h.render(w, r, http.StatusInternalServerError, "reset_password.html", vm)
	}
}

// Guide renders the static help page.
func (h *Handlers) Guide(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "guide.html", nil)
}

// Health reports liveness.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok"))
}

func (h *Handlers) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.app.Sessions.Duration().Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handlers) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}
