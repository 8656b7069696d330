package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/tsbernar/proxy-auth/internal/services"
	"github.com/tsbernar/proxy-auth/internal/session"
	"github.com/tsbernar/proxy-auth/internal/store"
)

const (
	formFieldUsername = "username"
	formFieldPassword = "password"
	formFieldIsAdmin  = "is_admin"
	checkboxOn        = "1"
)

// AdminHandler serves the account management screens.
type AdminHandler struct {
	userService *services.UserService
	sessions    *session.Codec
	logger      *slog.Logger
}

func NewAdminHandler(userService *services.UserService, sessions *session.Codec, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		userService: userService,
		sessions:    sessions,
		logger:      logger,
	}
}

// AdminRouter registers the admin routes. Every route sits behind
// requireLogin; mutations additionally require the admin flag.
func AdminRouter(
	r chi.Router,
	userService *services.UserService,
	sessions *session.Codec,
	logger *slog.Logger,
	requireLogin func(http.Handler) http.Handler,
) {
	handler := NewAdminHandler(userService, sessions, logger)

	r.Group(func(r chi.Router) {
		r.Use(requireLogin)
		r.Get("/", handler.Index)
		r.With(RequireAdmin).Post("/add-user", handler.AddUser)
		r.With(RequireAdmin).Post("/delete-user/{userID}", handler.DeleteUser)
	})
}

// RequireAdmin answers a bare 401 when the session lacks the admin flag.
// It only proves authorization; authentication is RequireLogin's job.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !session.FromContext(r.Context()).IsAdmin {
			writeText(w, http.StatusUnauthorized, "not authorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Index lists every account.
func (h *AdminHandler) Index(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.List(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list users", "err", err)
		writeText(w, http.StatusInternalServerError, "internal error")
		return
	}
	renderPage(w, r, h.sessions, h.logger, http.StatusOK, "admin", pageData{Title: "Users", Users: users})
}

func (h *AdminHandler) AddUser(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	if err := r.ParseForm(); err != nil {
		writeText(w, http.StatusBadRequest, "invalid form")
		return
	}
	username := r.PostForm.Get(formFieldUsername)
	password := r.PostForm.Get(formFieldPassword)
	isAdmin := r.PostForm.Get(formFieldIsAdmin) == checkboxOn

	ctx := services.WithActor(r.Context(), sess.Username)
	user, err := h.userService.Create(ctx, username, password, isAdmin)
	switch {
	case err == nil:
		h.logger.InfoContext(ctx, "user added", "username", user.Username, "admin", user.IsAdmin, "by", sess.Username)
		sess.AddFlash(session.FlashSuccess, fmt.Sprintf("User %s added successfully", user.Username))
	case errors.Is(err, store.ErrDuplicateUsername):
		sess.AddFlash(session.FlashError, fmt.Sprintf("User %s already exists", strings.TrimSpace(username)))
	case errors.Is(err, services.ErrInvalidInput):
		sess.AddFlash(session.FlashError, "Username and password are required")
	default:
		h.logger.ErrorContext(ctx, "add user", "username", username, "err", err)
		sess.AddFlash(session.FlashError, "Internal error, user not added")
	}
	redirect(w, r, h.sessions, h.logger, sess, adminPath)
}

func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	rawID := chi.URLParam(r, "userID")

	id, err := strconv.Atoi(rawID)
	if err != nil || id < 1 {
		sess.AddFlash(session.FlashError, fmt.Sprintf("User with id %s not found", rawID))
		redirect(w, r, h.sessions, h.logger, sess, adminPath)
		return
	}

	ctx := services.WithActor(r.Context(), sess.Username)
	user, err := h.userService.Delete(ctx, id)
	switch {
	case err == nil:
		h.logger.InfoContext(ctx, "user deleted", "username", user.Username, "by", sess.Username)
		sess.AddFlash(session.FlashSuccess, fmt.Sprintf("User %s deleted successfully", user.Username))
	case errors.Is(err, store.ErrNotFound):
		sess.AddFlash(session.FlashError, fmt.Sprintf("User with id %d not found", id))
	default:
		h.logger.ErrorContext(ctx, "delete user", "id", id, "err", err)
		sess.AddFlash(session.FlashError, "Internal error, user not deleted")
	}
	redirect(w, r, h.sessions, h.logger, sess, adminPath)
}
