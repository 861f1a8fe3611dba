package postgres

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitsync/internal/models"
	"github.com/mmynk/splitsync/internal/storage"
)

func scanMember(row rowScanner) (*models.GroupMember, error) {
	member := &models.GroupMember{}
	var balance string
	if err := row.Scan(&member.GroupID, &member.UserID, &balance); err != nil {
		return nil, mapError(err)
	}
	// Balances travel as text to keep the arithmetic exact end to end.
	parsed, err := decimal.NewFromString(balance)
	if err != nil {
		return nil, fmt.Errorf("failed to parse balance %q: %w", balance, err)
	}
	member.Balance = parsed
	return member, nil
}

// InsertMember adds a membership row with zero balance.
// storage.ErrDuplicate if the user is already a member, storage.ErrCapacity
// if the capacity trigger fired.
func (t *Tx) InsertMember(ctx context.Context, groupID, userID int64) error {
	_, err := t.tx.Exec(ctx,
		"INSERT INTO group_members (group_id, user_id) VALUES ($1, $2)",
		groupID, userID,
	)
	return mapError(err)
}

// GetMember retrieves a membership row.
func (t *Tx) GetMember(ctx context.Context, groupID, userID int64) (*models.GroupMember, error) {
	row := t.tx.QueryRow(ctx,
		"SELECT group_id, user_id, balance::text FROM group_members WHERE group_id = $1 AND user_id = $2",
		groupID, userID,
	)
	return scanMember(row)
}

// IsMember reports whether the user belongs to the group.
func (t *Tx) IsMember(ctx context.Context, groupID, userID int64) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM group_members WHERE group_id = $1 AND user_id = $2)",
		groupID, userID,
	).Scan(&exists)
	if err != nil {
		return false, mapError(err)
	}
	return exists, nil
}

// DeleteMember removes a membership row.
func (t *Tx) DeleteMember(ctx context.Context, groupID, userID int64) error {
	tag, err := t.tx.Exec(ctx,
		"DELETE FROM group_members WHERE group_id = $1 AND user_id = $2",
		groupID, userID,
	)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// CountMembers returns the group's current member count.
func (t *Tx) CountMembers(ctx context.Context, groupID int64) (int, error) {
	var count int
	err := t.tx.QueryRow(ctx,
		"SELECT count(*) FROM group_members WHERE group_id = $1",
		groupID,
	).Scan(&count)
	if err != nil {
		return 0, mapError(err)
	}
	return count, nil
}

// GroupMembers returns all membership rows of a group.
func (t *Tx) GroupMembers(ctx context.Context, groupID int64) ([]*models.GroupMember, error) {
	return t.queryMembers(ctx,
		"SELECT group_id, user_id, balance::text FROM group_members WHERE group_id = $1 ORDER BY user_id",
		groupID,
	)
}

// MembershipsByUser returns all membership rows of a user.
func (t *Tx) MembershipsByUser(ctx context.Context, userID int64) ([]*models.GroupMember, error) {
	return t.queryMembers(ctx,
		"SELECT group_id, user_id, balance::text FROM group_members WHERE user_id = $1 ORDER BY group_id",
		userID,
	)
}

// MembersOfGroups returns the membership rows of all given groups.
func (t *Tx) MembersOfGroups(ctx context.Context, groupIDs []int64) ([]*models.GroupMember, error) {
	if len(groupIDs) == 0 {
		return nil, nil
	}
	return t.queryMembers(ctx,
		"SELECT group_id, user_id, balance::text FROM group_members WHERE group_id = ANY($1) ORDER BY group_id, user_id",
		groupIDs,
	)
}

func (t *Tx) queryMembers(ctx context.Context, query string, args ...any) ([]*models.GroupMember, error) {
	rows, err := t.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var members []*models.GroupMember
	for rows.Next() {
		member, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, member)
	}
	return members, mapError(rows.Err())
}

// DeleteSettledMembershipsByUser deletes every membership of the user whose
// balance is exactly zero, in one statement. The predicate re-checks the
// balance at delete time, so a concurrent balance change shrinks the count
// instead of deleting a debtor.
func (t *Tx) DeleteSettledMembershipsByUser(ctx context.Context, userID int64) (int64, error) {
	tag, err := t.tx.Exec(ctx,
		"DELETE FROM group_members WHERE user_id = $1 AND balance = 0",
		userID,
	)
	if err != nil {
		return 0, mapError(err)
	}
	return tag.RowsAffected(), nil
}

// AdjustBalance adds delta to the member's balance.
func (t *Tx) AdjustBalance(ctx context.Context, groupID, userID int64, delta decimal.Decimal) error {
	tag, err := t.tx.Exec(ctx,
		"UPDATE group_members SET balance = balance + $3::numeric WHERE group_id = $1 AND user_id = $2",
		groupID, userID, delta.String(),
	)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}
