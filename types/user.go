package types

import "time"

// User represents an account allowed to authenticate through the gatekeeper.
type User struct {
	// ID is the unique identifier of the user, assigned by the store.
	ID int `json:"id" db:"id"`

	// Username is the unique login name. It cannot be changed after creation.
	Username string `json:"username" db:"username"`

	// PasswordHash stores the bcrypt hash of the user's password.
	// This field is never exposed in exports or logs.
	PasswordHash string `json:"-" db:"password_hash"`

	// IsAdmin grants access to the account management actions.
	IsAdmin bool `json:"is_admin" db:"is_admin"`

	// CreatedAt is the timestamp when the account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
