package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitsync/internal/models"
	"github.com/mmynk/splitsync/internal/storage"
)

const (
	transactionColumns = "id, group_id, description, payer_id, amount::text, shares, date_time, created_by, created_on, modified_on"
	transferColumns    = "id, group_id, sender_id, receiver_id, amount::text, date_time, created_by, created_on, modified_on"
)

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	txn := &models.Transaction{}
	var amount string
	var shares []byte
	err := row.Scan(&txn.ID, &txn.GroupID, &txn.Description, &txn.PayerID,
		&amount, &shares, &txn.DateTime, &txn.CreatedByID, &txn.CreatedOn, &txn.ModifiedOn)
	if err != nil {
		return nil, mapError(err)
	}
	txn.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("failed to parse amount %q: %w", amount, err)
	}
	if err := json.Unmarshal(shares, &txn.Shares); err != nil {
		return nil, fmt.Errorf("failed to decode shares: %w", err)
	}
	return txn, nil
}

func scanTransfer(row rowScanner) (*models.Transfer, error) {
	tr := &models.Transfer{}
	var amount string
	err := row.Scan(&tr.ID, &tr.GroupID, &tr.SenderID, &tr.ReceiverID,
		&amount, &tr.DateTime, &tr.CreatedByID, &tr.CreatedOn, &tr.ModifiedOn)
	if err != nil {
		return nil, mapError(err)
	}
	tr.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("failed to parse amount %q: %w", amount, err)
	}
	return tr, nil
}

// InsertTransaction persists a transaction and fills in the assigned id and
// mutation timestamps.
func (t *Tx) InsertTransaction(ctx context.Context, txn *models.Transaction) error {
	shares, err := json.Marshal(txn.Shares)
	if err != nil {
		return fmt.Errorf("failed to encode shares: %w", err)
	}
	row := t.tx.QueryRow(ctx,
		`INSERT INTO transactions (group_id, description, payer_id, amount, shares, date_time, created_by)
		 VALUES ($1, $2, $3, $4::numeric, $5, $6, $7)
		 RETURNING id, created_on, modified_on`,
		txn.GroupID, txn.Description, txn.PayerID, txn.Amount.String(), shares, txn.DateTime, txn.CreatedByID,
	)
	if err := row.Scan(&txn.ID, &txn.CreatedOn, &txn.ModifiedOn); err != nil {
		return mapError(err)
	}
	return nil
}

// GetTransaction retrieves a transaction scoped to a group.
func (t *Tx) GetTransaction(ctx context.Context, groupID, id int64) (*models.Transaction, error) {
	row := t.tx.QueryRow(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE group_id = $1 AND id = $2",
		groupID, id,
	)
	return scanTransaction(row)
}

// UpdateTransaction rewrites the mutable fields and refreshes modified_on.
func (t *Tx) UpdateTransaction(ctx context.Context, txn *models.Transaction) error {
	shares, err := json.Marshal(txn.Shares)
	if err != nil {
		return fmt.Errorf("failed to encode shares: %w", err)
	}
	tag, err := t.tx.Exec(ctx,
		`UPDATE transactions
		 SET description = $3, payer_id = $4, amount = $5::numeric, shares = $6, date_time = $7, modified_on = now()
		 WHERE group_id = $1 AND id = $2`,
		txn.GroupID, txn.ID, txn.Description, txn.PayerID, txn.Amount.String(), shares, txn.DateTime,
	)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeleteTransaction removes the live row. The caller records the tombstone.
func (t *Tx) DeleteTransaction(ctx context.Context, groupID, id int64) error {
	tag, err := t.tx.Exec(ctx,
		"DELETE FROM transactions WHERE group_id = $1 AND id = $2",
		groupID, id,
	)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// InsertTransfer persists a transfer and fills in the assigned id and
// mutation timestamps.
func (t *Tx) InsertTransfer(ctx context.Context, tr *models.Transfer) error {
	row := t.tx.QueryRow(ctx,
		`INSERT INTO transfers (group_id, sender_id, receiver_id, amount, date_time, created_by)
		 VALUES ($1, $2, $3, $4::numeric, $5, $6)
		 RETURNING id, created_on, modified_on`,
		tr.GroupID, tr.SenderID, tr.ReceiverID, tr.Amount.String(), tr.DateTime, tr.CreatedByID,
	)
	if err := row.Scan(&tr.ID, &tr.CreatedOn, &tr.ModifiedOn); err != nil {
		return mapError(err)
	}
	return nil
}

// GetTransfer retrieves a transfer scoped to a group.
func (t *Tx) GetTransfer(ctx context.Context, groupID, id int64) (*models.Transfer, error) {
	row := t.tx.QueryRow(ctx,
		"SELECT "+transferColumns+" FROM transfers WHERE group_id = $1 AND id = $2",
		groupID, id,
	)
	return scanTransfer(row)
}

// UpdateTransfer rewrites the mutable fields and refreshes modified_on.
func (t *Tx) UpdateTransfer(ctx context.Context, tr *models.Transfer) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE transfers
		 SET sender_id = $3, receiver_id = $4, amount = $5::numeric, date_time = $6, modified_on = now()
		 WHERE group_id = $1 AND id = $2`,
		tr.GroupID, tr.ID, tr.SenderID, tr.ReceiverID, tr.Amount.String(), tr.DateTime,
	)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeleteTransfer removes the live row. The caller records the tombstone.
func (t *Tx) DeleteTransfer(ctx context.Context, groupID, id int64) error {
	tag, err := t.tx.Exec(ctx,
		"DELETE FROM transfers WHERE group_id = $1 AND id = $2",
		groupID, id,
	)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// InsertTombstone records a deletion and returns its deletion order id,
// drawn from the same sequence as content ids.
func (t *Tx) InsertTombstone(ctx context.Context, contentID int64, kind models.ContentKind, groupID int64) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx,
		"INSERT INTO tombstones (content_id, kind, group_id) VALUES ($1, $2, $3) RETURNING id",
		contentID, string(kind), groupID,
	).Scan(&id)
	if err != nil {
		return 0, mapError(err)
	}
	return id, nil
}
