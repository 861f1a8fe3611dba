// Package service implements the group ledger operations: membership,
// invite codes, ledger content mutation and device sync.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mmynk/splitsync/internal/models"
	"github.com/mmynk/splitsync/internal/storage"
)

// GroupService owns group membership: create, rename, join, leave and the
// account-deletion membership sweep, together with their balance invariants.
type GroupService struct {
	store storage.Store
}

// NewGroupService creates a new GroupService with the given storage backend.
func NewGroupService(store storage.Store) *GroupService {
	return &GroupService{store: store}
}

// GroupsOverview is the caller's bootstrap view: their groups and every
// membership row of those groups, read from one snapshot.
type GroupsOverview struct {
	Groups  []*models.Group       `json:"groups"`
	Members []*models.GroupMember `json:"members"`
}

// Create inserts a new group and makes the creator its first member, in one
// transaction. There is no expected user-facing failure here.
func (s *GroupService) Create(ctx context.Context, name string, creatorID int64) (*models.Group, error) {
	tx, err := s.store.Begin(ctx, storage.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	group, err := tx.InsertGroup(ctx, name)
	if err != nil {
		return nil, err
	}
	if err := tx.InsertMember(ctx, group.ID, creatorID); err != nil {
		return nil, fmt.Errorf("failed to add creator: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	slog.Info("Group created", "group_id", group.ID, "creator_id", creatorID)
	return group, nil
}

// Rename updates the group name. Name-only updates commute, so no version
// check is needed; a concurrently deleted group surfaces as ErrNotFound.
func (s *GroupService) Rename(ctx context.Context, groupID int64, name string, requesterID int64) (*models.Group, error) {
	tx, err := s.store.Begin(ctx, storage.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := requireMember(ctx, tx, groupID, requesterID); err != nil {
		return nil, err
	}
	group, err := tx.UpdateGroupName(ctx, groupID, name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return group, nil
}

// SetOverwrite stores the group's overwrite policy flag.
func (s *GroupService) SetOverwrite(ctx context.Context, groupID int64, overwrite bool, requesterID int64) error {
	tx, err := s.store.Begin(ctx, storage.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := requireMember(ctx, tx, groupID, requesterID); err != nil {
		return err
	}
	if err := tx.SetOverwrite(ctx, groupID, overwrite); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	return tx.Commit(ctx)
}

// Leave removes the caller from the group, which requires a settled balance.
//
// The transaction runs under REPEATABLE READ rather than a group lock: the
// balance is read and compared against zero within one snapshot, and a
// concurrent balance change makes the commit fail with a serialization
// conflict instead of silently deleting a debtor. Locking the group row here
// would serialize every unrelated edit in the group just to protect this
// rare path. The conflict is surfaced as ErrConcurrentModification and never
// retried server-side, since a changed balance may invalidate the caller's
// intent to leave at all.
func (s *GroupService) Leave(ctx context.Context, groupID, memberID int64) error {
	tx, err := s.store.Begin(ctx, storage.TxOptions{Isolation: storage.RepeatableRead})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	member, err := tx.GetMember(ctx, groupID, memberID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	if !member.Balance.IsZero() {
		return ErrSettlementRequired
	}

	if err := tx.DeleteMember(ctx, groupID, memberID); err != nil {
		return mapConflict(err)
	}

	// A group without members is invisible to everyone; reclaim it.
	count, err := tx.CountMembers(ctx, groupID)
	if err != nil {
		return err
	}
	if count == 0 {
		slog.Info("Group has no members left, deleting", "group_id", groupID)
		if err := tx.DeleteGroup(ctx, groupID); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return mapConflict(err)
	}

	slog.Info("Member left group", "group_id", groupID, "user_id", memberID)
	return nil
}

// Join adds the user to the group behind the invite code and returns the
// joined group.
//
// Unlike Leave, Join locks the group row: a join is a pure insert racing
// only against the storage-enforced member cap, so serializing joins per
// group (while leaving other groups fully parallel) is the cheapest way to
// keep the cap exact.
func (s *GroupService) Join(ctx context.Context, inviteCode string, userID int64) (*models.Group, error) {
	tx, err := s.store.Begin(ctx, storage.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	group, err := tx.GetGroupByInviteCode(ctx, inviteCode)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	// Re-read under lock; the group may have been deleted in between.
	group, err = tx.LockGroup(ctx, group.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if err := tx.InsertMember(ctx, group.ID, userID); err != nil {
		switch {
		case errors.Is(err, storage.ErrDuplicate):
			return nil, ErrAlreadyMember
		case errors.Is(err, storage.ErrCapacity):
			return nil, ErrGroupFull
		}
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	slog.Info("Member joined group", "group_id", group.ID, "user_id", userID)
	return group, nil
}

// DeleteUserMemberships removes every membership of the user, requiring all
// balances to be settled. Standalone entry point; the account-deletion flow
// uses RemoveAllMemberships inside its own transaction.
func (s *GroupService) DeleteUserMemberships(ctx context.Context, userID int64) error {
	tx, err := s.store.Begin(ctx, storage.TxOptions{Isolation: storage.RepeatableRead})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := s.RemoveAllMemberships(ctx, tx, userID); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return mapConflict(err)
	}
	return nil
}

// RemoveAllMemberships deletes the user's membership rows within the
// caller's transaction (which must be REPEATABLE READ).
//
// The delete is one set-based statement with a balance = 0 predicate, not a
// read-then-delete loop: a balance changing between snapshot and delete is
// caught by the predicate shrinking the affected-row count, which aborts
// with ErrSettlementRequired.
func (s *GroupService) RemoveAllMemberships(ctx context.Context, tx storage.Tx, userID int64) error {
	memberships, err := tx.MembershipsByUser(ctx, userID)
	if err != nil {
		return err
	}
	if len(memberships) == 0 {
		return nil
	}

	deleted, err := tx.DeleteSettledMembershipsByUser(ctx, userID)
	if err != nil {
		return mapConflict(err)
	}
	if deleted != int64(len(memberships)) {
		return ErrSettlementRequired
	}
	return nil
}

// GroupsAndMembers returns the caller's groups and their member rows from a
// single read-only snapshot.
func (s *GroupService) GroupsAndMembers(ctx context.Context, userID int64) (*GroupsOverview, error) {
	tx, err := s.store.Begin(ctx, storage.TxOptions{
		Isolation: storage.RepeatableRead,
		ReadOnly:  true,
	})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	groups, err := tx.GroupsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	groupIDs := make([]int64, len(groups))
	for i, group := range groups {
		groupIDs[i] = group.ID
	}
	members, err := tx.MembersOfGroups(ctx, groupIDs)
	if err != nil {
		return nil, err
	}

	return &GroupsOverview{Groups: groups, Members: members}, nil
}

// requireMember fails with ErrAccessDenied unless the user is currently a
// member of the group.
func requireMember(ctx context.Context, tx storage.Tx, groupID, userID int64) error {
	ok, err := tx.IsMember(ctx, groupID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: user %d, group %d", ErrAccessDenied, userID, groupID)
	}
	return nil
}

// mapConflict surfaces a storage serialization failure as the retryable
// domain error and passes everything else through.
func mapConflict(err error) error {
	if errors.Is(err, storage.ErrSerialization) {
		return ErrConcurrentModification
	}
	return err
}
