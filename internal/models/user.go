package models

import "time"

// User represents a registered user account.
type User struct {
	// ID is assigned by the database.
	ID int64 `json:"id"`

	// Name is the display name of the user.
	Name string `json:"name"`

	// Email is the user's login email (unique among live accounts).
	Email string `json:"email"`

	// PasswordHash is the bcrypt hash of the user's password.
	// Never serialized.
	PasswordHash string `json:"-"`

	// CreatedOn is when the account was created.
	CreatedOn time.Time `json:"created_on"`

	// Deleted marks an account whose personal data has been cleared.
	// The row is kept so that ledger history referencing the user stays
	// consistent.
	Deleted bool `json:"-"`
}
