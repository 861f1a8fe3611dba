package postgres

import (
	"context"

	"github.com/mmynk/splitsync/internal/models"
)

// RemovedContent returns one ref per distinct (content_id, kind) tombstone
// in the group that the client either has not synced past (deletion order id
// beyond the watermark) or explicitly reports holding (knownIDs). The second
// arm covers content the client cached before its watermark but which has
// been deleted since.
func (t *Tx) RemovedContent(ctx context.Context, groupID, watermark int64, knownIDs []int64) ([]models.RemovedRef, error) {
	if knownIDs == nil {
		knownIDs = []int64{}
	}
	rows, err := t.tx.Query(ctx,
		`SELECT DISTINCT content_id, kind FROM tombstones
		 WHERE group_id = $1 AND (id > $2 OR content_id = ANY($3))
		 ORDER BY content_id, kind`,
		groupID, watermark, knownIDs,
	)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var removed []models.RemovedRef
	for rows.Next() {
		var ref models.RemovedRef
		var kind string
		if err := rows.Scan(&ref.ContentID, &kind); err != nil {
			return nil, mapError(err)
		}
		ref.Kind = models.ContentKind(kind)
		removed = append(removed, ref)
	}
	return removed, mapError(rows.Err())
}

// TransactionIDsAfter returns ids of live transactions beyond the watermark.
func (t *Tx) TransactionIDsAfter(ctx context.Context, groupID, watermark int64) ([]int64, error) {
	return t.queryIDs(ctx,
		"SELECT id FROM transactions WHERE group_id = $1 AND id > $2 ORDER BY id",
		groupID, watermark,
	)
}

// TransferIDsAfter returns ids of live transfers beyond the watermark.
func (t *Tx) TransferIDsAfter(ctx context.Context, groupID, watermark int64) ([]int64, error) {
	return t.queryIDs(ctx,
		"SELECT id FROM transfers WHERE group_id = $1 AND id > $2 ORDER BY id",
		groupID, watermark,
	)
}

func (t *Tx) queryIDs(ctx context.Context, query string, args ...any) ([]int64, error) {
	rows, err := t.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, mapError(err)
		}
		ids = append(ids, id)
	}
	return ids, mapError(rows.Err())
}

// StreamTransactions walks a cursor over the selected transactions in id
// order, invoking fn per row. Rows are scanned one at a time; the result set
// is never materialized.
func (t *Tx) StreamTransactions(ctx context.Context, groupID int64, ids []int64, fn func(*models.Transaction) error) error {
	rows, err := t.tx.Query(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE group_id = $1 AND id = ANY($2) ORDER BY id",
		groupID, ids,
	)
	if err != nil {
		return mapError(err)
	}
	defer rows.Close()

	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return err
		}
		if err := fn(txn); err != nil {
			return err
		}
	}
	return mapError(rows.Err())
}

// StreamTransfers walks a cursor over the selected transfers in id order,
// invoking fn per row.
func (t *Tx) StreamTransfers(ctx context.Context, groupID int64, ids []int64, fn func(*models.Transfer) error) error {
	rows, err := t.tx.Query(ctx,
		"SELECT "+transferColumns+" FROM transfers WHERE group_id = $1 AND id = ANY($2) ORDER BY id",
		groupID, ids,
	)
	if err != nil {
		return mapError(err)
	}
	defer rows.Close()

	for rows.Next() {
		tr, err := scanTransfer(rows)
		if err != nil {
			return err
		}
		if err := fn(tr); err != nil {
			return err
		}
	}
	return mapError(rows.Err())
}
