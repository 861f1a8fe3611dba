// Package storage provides abstractions for persistent ledger storage.
package storage

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitsync/internal/models"
)

// Isolation selects the transaction isolation level.
type Isolation int

const (
	// ReadCommitted is the store default.
	ReadCommitted Isolation = iota

	// RepeatableRead gives every read in the transaction one consistent
	// snapshot. A concurrent write to a row this transaction read makes
	// Commit (or a later statement) fail with ErrSerialization.
	RepeatableRead
)

// TxOptions configures a transaction.
type TxOptions struct {
	Isolation Isolation
	ReadOnly  bool
}

// Store is the transactional ledger storage abstraction.
// This keeps the service layer independent of the storage backend; the
// production implementation is Postgres (internal/storage/postgres), and
// tests substitute in-memory fakes.
type Store interface {
	// Begin opens a transaction. The caller must Commit or Rollback it.
	Begin(ctx context.Context, opts TxOptions) (Tx, error)

	// Close releases the underlying connection pool.
	Close()
}

// Tx is one storage transaction. Methods return storage sentinel errors
// (ErrNotFound, ErrDuplicate, ErrCapacity, ErrSerialization) for conditions
// the service layer maps to domain errors; everything else is an
// infrastructure failure.
type Tx interface {
	// Commit commits. Under RepeatableRead it returns ErrSerialization if
	// a concurrent transaction modified a row this one read.
	Commit(ctx context.Context) error

	// Rollback aborts. Safe to call after Commit (no-op).
	Rollback(ctx context.Context) error

	// Groups.

	InsertGroup(ctx context.Context, name string) (*models.Group, error)
	GetGroup(ctx context.Context, groupID int64) (*models.Group, error)
	GetGroupByInviteCode(ctx context.Context, code string) (*models.Group, error)

	// LockGroup reads the group row under an exclusive row lock
	// (pessimistic). Concurrent LockGroup calls for the same group
	// serialize; other groups are unaffected.
	LockGroup(ctx context.Context, groupID int64) (*models.Group, error)

	// UpdateGroupName atomically updates and returns the group.
	// ErrNotFound if the group was deleted concurrently.
	UpdateGroupName(ctx context.Context, groupID int64, name string) (*models.Group, error)

	// SetInviteCode sets (or clears, when code is nil) the invite code.
	// ErrDuplicate if another group already holds the code.
	SetInviteCode(ctx context.Context, groupID int64, code *string) error

	SetOverwrite(ctx context.Context, groupID int64, overwrite bool) error
	DeleteGroup(ctx context.Context, groupID int64) error

	// Members.

	// InsertMember adds a membership row with zero balance.
	// ErrDuplicate if already a member, ErrCapacity if the group is at its
	// storage-enforced member cap.
	InsertMember(ctx context.Context, groupID, userID int64) error

	GetMember(ctx context.Context, groupID, userID int64) (*models.GroupMember, error)
	IsMember(ctx context.Context, groupID, userID int64) (bool, error)
	DeleteMember(ctx context.Context, groupID, userID int64) error
	CountMembers(ctx context.Context, groupID int64) (int, error)
	GroupMembers(ctx context.Context, groupID int64) ([]*models.GroupMember, error)
	MembershipsByUser(ctx context.Context, userID int64) ([]*models.GroupMember, error)

	// DeleteSettledMembershipsByUser deletes, in one set-based statement,
	// every membership of the user whose balance is exactly zero, and
	// returns the number of rows deleted. A balance changing concurrently
	// is caught by the predicate, not by a separate read.
	DeleteSettledMembershipsByUser(ctx context.Context, userID int64) (int64, error)

	// AdjustBalance adds delta to the member's balance.
	// ErrNotFound if the membership row is absent.
	AdjustBalance(ctx context.Context, groupID, userID int64, delta decimal.Decimal) error

	// Ledger content.

	InsertTransaction(ctx context.Context, txn *models.Transaction) error
	GetTransaction(ctx context.Context, groupID, id int64) (*models.Transaction, error)
	UpdateTransaction(ctx context.Context, txn *models.Transaction) error
	DeleteTransaction(ctx context.Context, groupID, id int64) error

	InsertTransfer(ctx context.Context, tr *models.Transfer) error
	GetTransfer(ctx context.Context, groupID, id int64) (*models.Transfer, error)
	UpdateTransfer(ctx context.Context, tr *models.Transfer) error
	DeleteTransfer(ctx context.Context, groupID, id int64) error

	// InsertTombstone records a deletion and returns the deletion order id.
	InsertTombstone(ctx context.Context, contentID int64, kind models.ContentKind, groupID int64) (int64, error)

	// Sync queries.

	// RemovedContent returns refs for every tombstone in the group whose
	// deletion order id is greater than watermark, or whose content id is
	// one the client reports holding (knownIDs).
	RemovedContent(ctx context.Context, groupID, watermark int64, knownIDs []int64) ([]models.RemovedRef, error)

	TransactionIDsAfter(ctx context.Context, groupID, watermark int64) ([]int64, error)
	TransferIDsAfter(ctx context.Context, groupID, watermark int64) ([]int64, error)

	// StreamTransactions invokes fn once per transaction, in id order,
	// reading from a server-side cursor without materializing the set.
	// A non-nil error from fn aborts the stream and is returned.
	// ids must be non-empty; the caller special-cases emptiness.
	StreamTransactions(ctx context.Context, groupID int64, ids []int64, fn func(*models.Transaction) error) error
	StreamTransfers(ctx context.Context, groupID int64, ids []int64, fn func(*models.Transfer) error) error

	// Users.

	InsertUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)

	// AnonymizeUser clears the user's personal fields and marks the row
	// deleted. The row itself is kept for referential integrity.
	AnonymizeUser(ctx context.Context, userID int64) error

	// GroupsByUser returns the groups the user belongs to.
	GroupsByUser(ctx context.Context, userID int64) ([]*models.Group, error)

	// MembersOfGroups returns all membership rows of the given groups.
	MembersOfGroups(ctx context.Context, groupIDs []int64) ([]*models.GroupMember, error)
}
