package services

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tsbernar/proxy-auth/internal/store"
	"github.com/tsbernar/proxy-auth/types"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials covers both unknown usernames and wrong passwords.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrInvalidInput is returned when a username or password is blank.
	ErrInvalidInput = errors.New("username and password are required")
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	List(ctx context.Context) ([]types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Delete(ctx context.Context, id int) error
}

// UserService encapsulates account use-cases: hashing, credential checks and
// the audit trail.
type UserService struct {
	repo      UserRepository
	events    EventPublisher
	channel   string
	hashCost  int
	dummyHash []byte
	logger    *slog.Logger
}

// Option configures a UserService.
type Option func(*UserService)

// WithEvents publishes audit events to channel.
func WithEvents(pub EventPublisher, channel string) Option {
	return func(s *UserService) {
		s.events = pub
		s.channel = channel
	}
}

// WithHashCost overrides the bcrypt cost.
func WithHashCost(cost int) Option {
	return func(s *UserService) {
		s.hashCost = cost
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *UserService) {
		s.logger = logger
	}
}

func NewUserService(repo UserRepository, opts ...Option) *UserService {
	s := &UserService{
		repo:     repo,
		hashCost: bcrypt.DefaultCost,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	// Compared against when the username is unknown, so both failure paths
	// cost one bcrypt comparison.
	s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("proxy-auth-dummy"), s.hashCost)
	return s
}

func (s *UserService) GetByID(ctx context.Context, id int) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *UserService) GetByUsername(ctx context.Context, username string) (types.User, error) {
	return s.repo.GetByUsername(ctx, strings.TrimSpace(username))
}

func (s *UserService) List(ctx context.Context) ([]types.User, error) {
	return s.repo.List(ctx)
}

// Create hashes password and stores a new account.
func (s *UserService) Create(ctx context.Context, username, password string, isAdmin bool) (types.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return types.User{}, ErrInvalidInput
	}

	hashed, err := bcrypt.GenerateFromPassword(passwordKey(password), s.hashCost)
	if err != nil {
		return types.User{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.repo.Create(ctx, types.User{
		Username:     username,
		PasswordHash: string(hashed),
		IsAdmin:      isAdmin,
	})
	if err != nil {
		return types.User{}, err
	}

	s.publish(ctx, EventUserCreated, user)
	return user, nil
}

// Delete removes the account with id and returns the removed row.
func (s *UserService) Delete(ctx context.Context, id int) (types.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return types.User{}, err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return types.User{}, err
	}

	s.publish(ctx, EventUserDeleted, user)
	return user, nil
}

// Authenticate checks a username/password pair. Unknown users and wrong
// passwords both yield ErrInvalidCredentials.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (types.User, error) {
	username = strings.TrimSpace(username)

	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return types.User{}, err
		}
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, passwordKey(password))
		s.publish(ctx, EventLoginFailed, types.User{Username: username})
		return types.User{}, ErrInvalidCredentials
	}

	if !VerifyPassword(user.PasswordHash, password) {
		s.publish(ctx, EventLoginFailed, types.User{Username: username})
		return types.User{}, ErrInvalidCredentials
	}

	s.publish(ctx, EventLogin, user)
	return user, nil
}

// VerifyPassword reports whether plaintext matches the stored bcrypt hash.
func VerifyPassword(storedHash, plaintext string) bool {
	return bcrypt.CompareHashAndPassword([]byte(storedHash), passwordKey(plaintext)) == nil
}

// bcrypt only accepts 72 bytes of input.
const bcryptMaxInput = 72

// passwordKey returns the bytes fed to bcrypt. Longer passwords are reduced to
// the base64 of their SHA-256 digest so every byte still counts.
func passwordKey(plaintext string) []byte {
	if len(plaintext) <= bcryptMaxInput {
		return []byte(plaintext)
	}
	sum := sha256.Sum256([]byte(plaintext))
	key := make([]byte, base64.StdEncoding.EncodedLen(len(sum)))
	base64.StdEncoding.Encode(key, sum[:])
	return key
}
