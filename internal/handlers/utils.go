package handlers

import (
	"bytes"
	"embed"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tsbernar/proxy-auth/internal/session"
	"github.com/tsbernar/proxy-auth/types"
)

const (
	loginPath = "/login"
	adminPath = "/admin/"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = map[string]*template.Template{
	"login": parsePage("login.html"),
	"admin": parsePage("admin.html"),
}

func parsePage(name string) *template.Template {
	return template.Must(template.ParseFS(templateFS, "templates/layout.html", "templates/"+name))
}

type pageData struct {
	Title   string
	Session *session.Session
	Flashes []session.Flash
	Users   []types.User
}

// renderPage pops pending flashes, persists the session and writes the page.
// The page is rendered into a buffer first so template errors become a 500.
func renderPage(w http.ResponseWriter, r *http.Request, codec *session.Codec, logger *slog.Logger, status int, page string, data pageData) {
	sess := session.FromContext(r.Context())
	data.Session = sess
	data.Flashes = sess.PopFlashes()

	var buf bytes.Buffer
	if err := pages[page].ExecuteTemplate(&buf, "layout", data); err != nil {
		logger.ErrorContext(r.Context(), "render page", "page", page, "err", err)
		writeText(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !saveSession(w, r, codec, logger, sess) {
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// redirect persists the session and sends a 303 to target.
func redirect(w http.ResponseWriter, r *http.Request, codec *session.Codec, logger *slog.Logger, sess *session.Session, target string) {
	if !saveSession(w, r, codec, logger, sess) {
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func saveSession(w http.ResponseWriter, r *http.Request, codec *session.Codec, logger *slog.Logger, sess *session.Session) bool {
	if err := codec.Save(w, sess); err != nil {
		logger.ErrorContext(r.Context(), "save session", "err", err)
		writeText(w, http.StatusInternalServerError, "internal error")
		return false
	}
	return true
}

func writeText(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(message))
}

// safeNext only follows same-host absolute paths.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return adminPath
	}
	return next
}

// Healthz reports liveness.
func Healthz(w http.ResponseWriter, r *http.Request) {
	writeText(w, http.StatusOK, "ok")
}

// Home sends authenticated visitors to the account list.
func Home(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, adminPath, http.StatusFound)
}
