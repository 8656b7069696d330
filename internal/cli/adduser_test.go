package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsbernar/proxy-auth/internal/store"
	"github.com/tsbernar/proxy-auth/types"
)

type fakeUsers struct {
	existing  map[string]bool
	created   []types.User
	lookupErr error
}

func (f *fakeUsers) GetByUsername(_ context.Context, username string) (types.User, error) {
	if f.lookupErr != nil {
		return types.User{}, f.lookupErr
	}
	if f.existing[username] {
		return types.User{Username: username}, nil
	}
	return types.User{}, store.ErrNotFound
}

func (f *fakeUsers) Create(_ context.Context, username, password string, isAdmin bool) (types.User, error) {
	user := types.User{ID: len(f.created) + 1, Username: username, PasswordHash: "hash:" + password, IsAdmin: isAdmin}
	f.created = append(f.created, user)
	return user, nil
}

func TestAddUser_RepromptsUntilValid(t *testing.T) {
	users := &fakeUsers{existing: map[string]bool{"bob": true}}
	var out bytes.Buffer
	p := NewPrompter(strings.NewReader("\nbob\ncarol\nmaybe\nY\n\npw456\n"), &out)

	user, err := AddUser(context.Background(), p, users)
	require.NoError(t, err)

	assert.Equal(t, "carol", user.Username)
	assert.True(t, user.IsAdmin)
	require.Len(t, users.created, 1)
	assert.Equal(t, "hash:pw456", users.created[0].PasswordHash)

	transcript := out.String()
	assert.Contains(t, transcript, "username is required")
	assert.Contains(t, transcript, "user name already exists")
	assert.Contains(t, transcript, "Must input 'y' or 'n'")
	assert.Contains(t, transcript, "password is required")
}

func TestAddUser_NonAdmin(t *testing.T) {
	users := &fakeUsers{}
	p := NewPrompter(strings.NewReader("alice\nn\npw123"), io.Discard)

	user, err := AddUser(context.Background(), p, users)
	require.NoError(t, err)
	assert.False(t, user.IsAdmin)
	assert.Equal(t, "hash:pw123", users.created[0].PasswordHash)
}

func TestAddUser_EOFStops(t *testing.T) {
	users := &fakeUsers{}
	p := NewPrompter(strings.NewReader("alice\n"), io.Discard)

	_, err := AddUser(context.Background(), p, users)
	require.ErrorIs(t, err, io.EOF)
	assert.Empty(t, users.created)
}

func TestAddUser_LookupError(t *testing.T) {
	boom := errors.New("db down")
	users := &fakeUsers{lookupErr: boom}
	p := NewPrompter(strings.NewReader("alice\n"), io.Discard)

	_, err := AddUser(context.Background(), p, users)
	require.ErrorIs(t, err, boom)
}
