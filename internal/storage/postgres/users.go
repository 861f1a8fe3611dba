package postgres

import (
	"context"

	"github.com/mmynk/splitsync/internal/models"
	"github.com/mmynk/splitsync/internal/storage"
)

const userColumns = "id, name, COALESCE(email, ''), password_hash, created_on, deleted"

func scanUser(row rowScanner) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(&user.ID, &user.Name, &user.Email,
		&user.PasswordHash, &user.CreatedOn, &user.Deleted)
	if err != nil {
		return nil, mapError(err)
	}
	return user, nil
}

// InsertUser persists a new user and fills in the assigned id.
// storage.ErrDuplicate if the email is taken by a live account.
func (t *Tx) InsertUser(ctx context.Context, user *models.User) error {
	row := t.tx.QueryRow(ctx,
		`INSERT INTO users (name, email, password_hash)
		 VALUES ($1, $2, $3) RETURNING id, created_on`,
		user.Name, user.Email, user.PasswordHash,
	)
	if err := row.Scan(&user.ID, &user.CreatedOn); err != nil {
		return mapError(err)
	}
	return nil
}

// GetUserByEmail retrieves a live user by login email.
func (t *Tx) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	row := t.tx.QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE email = $1 AND NOT deleted",
		email,
	)
	return scanUser(row)
}

// GetUserByID retrieves a user by id.
func (t *Tx) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	row := t.tx.QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = $1",
		id,
	)
	return scanUser(row)
}

// AnonymizeUser clears personal data and marks the account deleted. The row
// stays so ledger content referencing the user keeps a valid target.
func (t *Tx) AnonymizeUser(ctx context.Context, userID int64) error {
	tag, err := t.tx.Exec(ctx,
		"UPDATE users SET name = '', email = NULL, password_hash = '', deleted = TRUE WHERE id = $1",
		userID,
	)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GroupsByUser returns the groups the user is currently a member of.
func (t *Tx) GroupsByUser(ctx context.Context, userID int64) ([]*models.Group, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT g.id, g.name, g.invite_code, g.overwrite, g.created_on, g.version
		 FROM groups g JOIN group_members gm ON gm.group_id = g.id
		 WHERE gm.user_id = $1 ORDER BY g.id`,
		userID,
	)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var groups []*models.Group
	for rows.Next() {
		group, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, group)
	}
	return groups, mapError(rows.Err())
}
