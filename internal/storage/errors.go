package storage

import "errors"

// Sentinel errors returned by Store implementations. The service layer maps
// these onto user-facing domain errors; anything not matching one of them is
// an infrastructure failure and is surfaced opaquely.
var (
	// ErrNotFound means the referenced row does not exist.
	ErrNotFound = errors.New("storage: not found")

	// ErrDuplicate means an insert or update violated a uniqueness
	// constraint.
	ErrDuplicate = errors.New("storage: duplicate key")

	// ErrCapacity means an insert violated a storage-enforced cardinality
	// cap (group member limit).
	ErrCapacity = errors.New("storage: capacity exceeded")

	// ErrSerialization means a snapshot-isolated transaction conflicted
	// with a concurrent writer. The whole operation may be retried.
	ErrSerialization = errors.New("storage: serialization failure")

	// ErrForeignKey means a referenced row disappeared mid-operation.
	ErrForeignKey = errors.New("storage: referenced row missing")
)
