package postgres

import (
	"context"
	"fmt"

	"github.com/mmynk/splitsync/internal/models"
	"github.com/mmynk/splitsync/internal/storage"
)

const groupColumns = "id, name, invite_code, overwrite, created_on, version"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGroup(row rowScanner) (*models.Group, error) {
	group := &models.Group{}
	err := row.Scan(&group.ID, &group.Name, &group.InviteCode,
		&group.Overwrite, &group.CreatedOn, &group.Version)
	if err != nil {
		return nil, mapError(err)
	}
	return group, nil
}

// InsertGroup creates a group row and returns it with its assigned id.
func (t *Tx) InsertGroup(ctx context.Context, name string) (*models.Group, error) {
	row := t.tx.QueryRow(ctx,
		"INSERT INTO groups (name) VALUES ($1) RETURNING "+groupColumns,
		name,
	)
	group, err := scanGroup(row)
	if err != nil {
		return nil, fmt.Errorf("failed to insert group: %w", err)
	}
	return group, nil
}

// GetGroup retrieves a group by id.
func (t *Tx) GetGroup(ctx context.Context, groupID int64) (*models.Group, error) {
	row := t.tx.QueryRow(ctx,
		"SELECT "+groupColumns+" FROM groups WHERE id = $1",
		groupID,
	)
	return scanGroup(row)
}

// GetGroupByInviteCode retrieves a group by its invite code.
func (t *Tx) GetGroupByInviteCode(ctx context.Context, code string) (*models.Group, error) {
	row := t.tx.QueryRow(ctx,
		"SELECT "+groupColumns+" FROM groups WHERE invite_code = $1",
		code,
	)
	return scanGroup(row)
}

// LockGroup reads the group row under FOR UPDATE. Joins to the same group
// serialize on this lock; joins to other groups proceed in parallel.
func (t *Tx) LockGroup(ctx context.Context, groupID int64) (*models.Group, error) {
	row := t.tx.QueryRow(ctx,
		"SELECT "+groupColumns+" FROM groups WHERE id = $1 FOR UPDATE",
		groupID,
	)
	return scanGroup(row)
}

// UpdateGroupName updates the name and bumps the version in one statement.
// storage.ErrNotFound if the group no longer exists.
func (t *Tx) UpdateGroupName(ctx context.Context, groupID int64, name string) (*models.Group, error) {
	row := t.tx.QueryRow(ctx,
		"UPDATE groups SET name = $2, version = version + 1 WHERE id = $1 RETURNING "+groupColumns,
		groupID, name,
	)
	return scanGroup(row)
}

// SetInviteCode sets or clears (code == nil) the group's invite code.
func (t *Tx) SetInviteCode(ctx context.Context, groupID int64, code *string) error {
	tag, err := t.tx.Exec(ctx,
		"UPDATE groups SET invite_code = $2, version = version + 1 WHERE id = $1",
		groupID, code,
	)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// SetOverwrite stores the overwrite policy flag.
func (t *Tx) SetOverwrite(ctx context.Context, groupID int64, overwrite bool) error {
	tag, err := t.tx.Exec(ctx,
		"UPDATE groups SET overwrite = $2, version = version + 1 WHERE id = $1",
		groupID, overwrite,
	)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeleteGroup removes the group row. Content and tombstones cascade.
func (t *Tx) DeleteGroup(ctx context.Context, groupID int64) error {
	_, err := t.tx.Exec(ctx, "DELETE FROM groups WHERE id = $1", groupID)
	if err != nil {
		return fmt.Errorf("failed to delete group: %w", mapError(err))
	}
	return nil
}
