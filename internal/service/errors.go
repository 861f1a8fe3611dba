package service

import "errors"

// Domain errors returned by the service layer. Handlers map these to
// user-facing responses; anything else is an infrastructure failure that is
// logged and surfaced opaquely.
var (
	// ErrNotFound means the referenced group, membership or content item
	// does not exist (or an invite code matched nothing).
	ErrNotFound = errors.New("not found")

	// ErrAccessDenied means the caller is not a member of the group.
	ErrAccessDenied = errors.New("access denied")

	// ErrSettlementRequired means a non-zero balance blocks leaving or
	// account deletion.
	ErrSettlementRequired = errors.New("settle up before leaving")

	// ErrAlreadyMember means the user already belongs to the group.
	ErrAlreadyMember = errors.New("already a member of this group")

	// ErrGroupFull means the group reached its member capacity.
	ErrGroupFull = errors.New("group is full")

	// ErrConcurrentModification means a concurrent write invalidated
	// the operation's snapshot. The caller must retry; the server never
	// retries on its own because the caller's intent may have lapsed.
	ErrConcurrentModification = errors.New("concurrent modification, please retry")

	// ErrAllocationFailed means invite code generation exhausted its
	// retries without finding a free code.
	ErrAllocationFailed = errors.New("invite code generation failed")

	// ErrInvalidContent means a transaction or transfer failed balance
	// validation (shares not summing, non-member participant, bad amount).
	ErrInvalidContent = errors.New("invalid ledger content")
)
