// Package session tracks active per-device sessions in a document store and
// enforces the per-user session cap.
//
// Sessions live entirely outside the relational ledger: every operation is
// scoped to one user and needs no cross-user coordination. Natural expiry is
// the store's job (key TTL); the code here only creates, refreshes, queries
// and deletes records.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/mmynk/splitsync/internal/models"
)

var (
	// ErrNotFound means no session matches the identifier.
	ErrNotFound = errors.New("session: not found")

	// ErrInvalidOperation means the caller tried to invalidate their own
	// current session through the per-device endpoint. Logout is the only
	// valid way out of the current session, since it has extra side
	// effects (cookie clearing) this path does not perform.
	ErrInvalidOperation = errors.New("session: cannot invalidate current session")
)

// Store is the document-store abstraction for session records.
// The production implementation is Redis; tests substitute fakes.
type Store interface {
	// Create inserts a session record expiring after ttl.
	Create(ctx context.Context, rec *models.SessionRecord, ttl time.Duration) error

	// Get retrieves a session by id. ErrNotFound if absent or expired.
	Get(ctx context.Context, sessionID string) (*models.SessionRecord, error)

	// GetByDeviceID retrieves a session by its device token.
	GetByDeviceID(ctx context.Context, deviceID string) (*models.SessionRecord, error)

	// Touch pushes the session's expiry to now+ttl (rolling expiry) and
	// updates rec.Expires.
	Touch(ctx context.Context, rec *models.SessionRecord, ttl time.Duration) error

	// Delete removes one session. Deleting an absent session is a no-op.
	Delete(ctx context.Context, sessionID string) error

	// Count returns the number of live sessions of the user.
	Count(ctx context.Context, userID int64) (int64, error)

	// FirstExpiring returns the user's soonest-to-expire session other
	// than excludeSessionID, or nil if there is none.
	FirstExpiring(ctx context.Context, userID int64, excludeSessionID string) (*models.SessionRecord, error)

	// List returns the user's live sessions.
	List(ctx context.Context, userID int64) ([]*models.SessionRecord, error)

	// DeleteAllExcept removes every session of the user except
	// keepSessionID.
	DeleteAllExcept(ctx context.Context, userID int64, keepSessionID string) error

	// Close releases the store connection.
	Close() error
}
