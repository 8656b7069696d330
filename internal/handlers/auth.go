package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tsbernar/proxy-auth/internal/services"
	"github.com/tsbernar/proxy-auth/internal/session"
)

const (
	msgInvalidCredentials = "Invalid username or password"
	msgLoggedIn           = "You were logged in"
	msgLoggedOut          = "You were logged out"

	// AuthUserHeader carries the authenticated username back to the proxy.
	AuthUserHeader = "X-Auth-User"
)

// AuthHandler serves the login flow and the forward-auth check.
type AuthHandler struct {
	userService *services.UserService
	sessions    *session.Codec
	logger      *slog.Logger
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(userService *services.UserService, sessions *session.Codec, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		sessions:    sessions,
		logger:      logger,
	}
}

// AuthRouter registers the login, logout and gatekeeper routes.
func AuthRouter(r chi.Router, userService *services.UserService, sessions *session.Codec, logger *slog.Logger) {
	handler := NewAuthHandler(userService, sessions, logger)

	r.Get("/login", handler.LoginForm)
	r.Post("/login", handler.Login)
	r.Get("/logout", handler.Logout)
	r.Get("/auth", handler.Check)
}

// RequireLogin redirects anonymous requests to the login page and remembers
// where they were going. The guarded handler is not invoked for them.
func RequireLogin(sessions *session.Codec, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := session.FromContext(r.Context())
			if sess.Authenticated() {
				next.ServeHTTP(w, r)
				return
			}

			logger.InfoContext(r.Context(), "user not logged in", "path", r.URL.Path)
			if r.Method == http.MethodGet || r.Method == http.MethodHead {
				sess.NextURL = r.URL.RequestURI()
			}
			redirect(w, r, sessions, logger, sess, loginPath)
		})
	}
}

func (h *AuthHandler) LoginForm(w http.ResponseWriter, r *http.Request) {
	renderPage(w, r, h.sessions, h.logger, http.StatusOK, "login", pageData{Title: "Log in"})
}

// Login verifies the submitted credentials and establishes the session.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeText(w, http.StatusBadRequest, "invalid form")
		return
	}
	username := r.PostForm.Get("username")
	password := r.PostForm.Get("password")
	sess := session.FromContext(r.Context())

	user, err := h.userService.Authenticate(r.Context(), username, password)
	if err != nil {
		if !errors.Is(err, services.ErrInvalidCredentials) {
			h.logger.ErrorContext(r.Context(), "authenticate", "username", username, "err", err)
			writeText(w, http.StatusInternalServerError, "internal error")
			return
		}
		h.logger.InfoContext(r.Context(), "login failed", "username", username)
		sess.AddFlash(session.FlashError, msgInvalidCredentials)
		renderPage(w, r, h.sessions, h.logger, http.StatusOK, "login", pageData{Title: "Log in"})
		return
	}

	sess.Login(user)
	sess.AddFlash(session.FlashSuccess, msgLoggedIn)
	h.logger.InfoContext(r.Context(), "login succeeded", "username", user.Username, "admin", user.IsAdmin)

	redirect(w, r, h.sessions, h.logger, sess, safeNext(sess.PopNextURL()))
}

// Logout clears the session identity. It is safe to call when anonymous.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	if sess.Authenticated() {
		h.logger.InfoContext(r.Context(), "logout", "username", sess.Username)
	}
	sess.Logout()
	sess.AddFlash(session.FlashSuccess, msgLoggedOut)
	redirect(w, r, h.sessions, h.logger, sess, loginPath)
}

// Check is the forward-auth endpoint. It only inspects the session cookie and
// never touches the database or redirects.
func (h *AuthHandler) Check(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	if !sess.Authenticated() {
		h.logger.InfoContext(r.Context(), "user not logged in", "uri", r.Header.Get("X-Original-URI"))
		writeText(w, http.StatusUnauthorized, "not authorized")
		return
	}
	h.logger.DebugContext(r.Context(), "user authorized", "username", sess.Username, "uri", r.Header.Get("X-Original-URI"))
	w.Header().Set(AuthUserHeader, sess.Username)
	writeText(w, http.StatusOK, "authorized")
}
