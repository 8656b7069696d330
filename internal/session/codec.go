package session

import (
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	issuer       = "proxy-auth"
	clockLeeway  = 30 * time.Second
	signingAlgHS = "HS256"
)

// Options control the session cookie attributes.
type Options struct {
	CookieName string
	MaxAge     time.Duration
	Secure     bool
}

// Codec serializes sessions into HS256-signed cookies and back.
type Codec struct {
	secret []byte
	opts   Options
	now    func() time.Time
}

type claims struct {
	Session
	jwt.RegisteredClaims
}

func NewCodec(secret string, opts Options) *Codec {
	return &Codec{secret: []byte(secret), opts: opts, now: time.Now}
}

// CookieName returns the configured cookie name.
func (c *Codec) CookieName() string {
	return c.opts.CookieName
}

// Encode signs s into a compact token.
func (c *Codec) Encode(s *Session) (string, error) {
	now := c.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Session: *s,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.opts.MaxAge)),
		},
	})
	return token.SignedString(c.secret)
}

// Decode verifies the signature, issuer and expiry of token.
func (c *Codec) Decode(token string) (*Session, error) {
	var cl claims
	parsed, err := jwt.ParseWithClaims(token, &cl, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{signingAlgHS}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockLeeway),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, errors.New("invalid session token")
	}
	s := cl.Session
	return &s, nil
}

// Load returns the request's session. Missing, tampered or expired cookies
// yield an empty session.
func (c *Codec) Load(r *http.Request) *Session {
	cookie, err := r.Cookie(c.opts.CookieName)
	if err != nil || cookie.Value == "" {
		return &Session{}
	}
	s, err := c.Decode(cookie.Value)
	if err != nil {
		return &Session{}
	}
	return s
}

// Save writes s as the session cookie, or expires the cookie when s is empty.
// It must run before the response header is written.
func (c *Codec) Save(w http.ResponseWriter, s *Session) error {
	if s == nil || s.Empty() {
		http.SetCookie(w, c.cookie("", -1))
		return nil
	}
	token, err := c.Encode(s)
	if err != nil {
		return err
	}
	http.SetCookie(w, c.cookie(token, int(c.opts.MaxAge.Seconds())))
	return nil
}

// Middleware decodes the session cookie into the request context.
func (c *Codec) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), c.Load(r))))
	})
}

func (c *Codec) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     c.opts.CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}
