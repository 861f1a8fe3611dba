package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Group represents a shared ledger for a set of members.
type Group struct {
	// ID is assigned by the database, monotonically increasing.
	ID int64 `json:"id"`

	// Name is the display name of the group (e.g., "Roommates").
	Name string `json:"name"`

	// InviteCode is the shareable join token. Nil when invitations are
	// disabled. Unique across all groups when present.
	InviteCode *string `json:"invite_code,omitempty"`

	// Overwrite is a client-side policy toggle: whether device edits may
	// overwrite concurrent edits. The server only stores it.
	Overwrite bool `json:"overwrite"`

	// CreatedOn is when the group was created.
	CreatedOn time.Time `json:"created_on"`

	// Version increments on every update, for optimistic concurrency.
	Version int32 `json:"version"`
}

// GroupMember is the membership row joining a User to a Group.
// It is created with a zero balance on join and may only be deleted
// while the balance is zero.
type GroupMember struct {
	GroupID int64 `json:"group_id"`
	UserID  int64 `json:"user_id"`

	// Balance is the member's running balance within the group.
	// Positive means the group owes the member; negative means the member
	// owes the group. Balances of a group always sum to zero.
	Balance decimal.Decimal `json:"balance"`
}
