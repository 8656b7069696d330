// Package cli holds the interactive account bootstrap used by the add-user
// command.
package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/tsbernar/proxy-auth/internal/store"
	"github.com/tsbernar/proxy-auth/types"
)

// UserCreator is the part of services.UserService the bootstrap needs.
type UserCreator interface {
	GetByUsername(ctx context.Context, username string) (types.User, error)
	Create(ctx context.Context, username, password string, isAdmin bool) (types.User, error)
}

// AddUser asks for a username, the admin flag and a password, then creates the
// account. Empty or taken usernames are asked for again.
func AddUser(ctx context.Context, p *Prompter, users UserCreator) (types.User, error) {
	username, err := promptUsername(ctx, p, users)
	if err != nil {
		return types.User{}, err
	}

	isAdmin, err := p.YesNo("is admin")
	if err != nil {
		return types.User{}, err
	}

	var password []byte
	for len(password) == 0 {
		password, err = p.Password("Password: ")
		if err != nil {
			return types.User{}, err
		}
		if len(password) == 0 {
			fmt.Fprintln(p.out, "password is required")
		}
	}
	defer wipe(password)

	user, err := users.Create(ctx, username, string(password), isAdmin)
	if err != nil {
		return types.User{}, fmt.Errorf("create user %s: %w", username, err)
	}
	return user, nil
}

func promptUsername(ctx context.Context, p *Prompter, users UserCreator) (string, error) {
	for {
		username, err := p.Text("username:")
		if err != nil {
			return "", err
		}
		if username == "" {
			fmt.Fprintln(p.out, "username is required")
			continue
		}

		_, err = users.GetByUsername(ctx, username)
		switch {
		case err == nil:
			fmt.Fprintln(p.out, "user name already exists")
		case errors.Is(err, store.ErrNotFound):
			return username, nil
		default:
			return "", fmt.Errorf("look up %s: %w", username, err)
		}
	}
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
