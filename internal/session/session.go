// Package session implements the browser session carried entirely in a
// signed cookie: identity fields, a post-login redirect target and pending
// flash messages.
package session

import (
	"context"

	"github.com/tsbernar/proxy-auth/types"
)

const (
	FlashSuccess = "success"
	FlashError   = "error"
)

// Flash is a one-shot notice shown on the next rendered page.
type Flash struct {
	Category string `json:"c"`
	Message  string `json:"m"`
}

// Session is the decoded cookie state. Identity reflects the user row at
// login time and is not re-validated against the store afterwards.
type Session struct {
	UserID   int     `json:"uid,omitempty"`
	Username string  `json:"usr,omitempty"`
	IsAdmin  bool    `json:"adm,omitempty"`
	NextURL  string  `json:"next,omitempty"`
	Flashes  []Flash `json:"fl,omitempty"`
}

// Authenticated reports whether the session carries a logged-in identity.
func (s *Session) Authenticated() bool {
	return s != nil && s.UserID > 0
}

// Login replaces the identity with user's.
func (s *Session) Login(user types.User) {
	s.UserID = user.ID
	s.Username = user.Username
	s.IsAdmin = user.IsAdmin
}

// Logout clears identity and any stashed redirect target.
func (s *Session) Logout() {
	s.UserID = 0
	s.Username = ""
	s.IsAdmin = false
	s.NextURL = ""
}

// maxFlashes keeps the cookie under browser size limits.
const maxFlashes = 5

// AddFlash queues a notice, dropping the oldest beyond maxFlashes.
func (s *Session) AddFlash(category, message string) {
	s.Flashes = append(s.Flashes, Flash{Category: category, Message: message})
	if n := len(s.Flashes); n > maxFlashes {
		s.Flashes = append([]Flash(nil), s.Flashes[n-maxFlashes:]...)
	}
}

// PopFlashes returns and clears the pending flashes.
func (s *Session) PopFlashes() []Flash {
	flashes := s.Flashes
	s.Flashes = nil
	return flashes
}

// PopNextURL returns and clears the stashed redirect target.
func (s *Session) PopNextURL() string {
	next := s.NextURL
	s.NextURL = ""
	return next
}

// Empty reports whether there is nothing worth persisting.
func (s *Session) Empty() bool {
	return !s.Authenticated() && s.NextURL == "" && len(s.Flashes) == 0
}

type contextKey struct{}

// NewContext returns ctx carrying s.
func NewContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the request session, or a fresh anonymous one.
func FromContext(ctx context.Context) *Session {
	if s, ok := ctx.Value(contextKey{}).(*Session); ok && s != nil {
		return s
	}
	return &Session{}
}
