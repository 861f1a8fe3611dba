package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/mmynk/splitsync/internal/models"
	"github.com/mmynk/splitsync/internal/storage"
)

// SyncService computes the incremental delta a device needs: content created
// past its watermark plus refs for content it holds that has been deleted.
type SyncService struct {
	store storage.Store
}

// NewSyncService creates a new SyncService with the given storage backend.
func NewSyncService(store storage.Store) *SyncService {
	return &SyncService{store: store}
}

// StreamDelta writes the delta for the group as one JSON document:
//
//	{"removed":[...],"transactions":[...],"transfers":[...]}
//
// The document is produced progressively so the client can start consuming
// before the server finishes, and the server never buffers the content
// arrays. "removed" is always emitted first, so the client can apply the
// delta in one delete-then-insert pass.
//
// Everything is read inside a single REPEATABLE READ read-only transaction:
// the delta reflects one consistent point in time. Writers committing while
// a sync is in flight are picked up by the device's next sync.
//
// If writing fails after partial output, the error is returned as-is; the
// caller must abort the output stream rather than closing the document,
// so the client sees a truncated response and retries the sync.
func (s *SyncService) StreamDelta(ctx context.Context, groupID, watermark int64, knownIDs []int64, requesterID int64, w io.Writer) error {
	tx, err := s.store.Begin(ctx, storage.TxOptions{
		Isolation: storage.RepeatableRead,
		ReadOnly:  true,
	})
	if err != nil {
		return err
	}
	// Read-only: rolling back is the only way out, including on success.
	defer tx.Rollback(ctx)

	if err := requireMember(ctx, tx, groupID, requesterID); err != nil {
		return err
	}

	removed, err := tx.RemovedContent(ctx, groupID, watermark, knownIDs)
	if err != nil {
		return err
	}
	if removed == nil {
		removed = []models.RemovedRef{}
	}

	// Collect per-kind id lists up front (bounded: ids only). Kinds with an
	// empty list are skipped entirely below; handing an empty list to the
	// store would produce an empty result indistinguishable from "no
	// changes", so the emptiness is special-cased here instead.
	txnIDs, err := tx.TransactionIDsAfter(ctx, groupID, watermark)
	if err != nil {
		return err
	}
	trIDs, err := tx.TransferIDsAfter(ctx, groupID, watermark)
	if err != nil {
		return err
	}

	// The removed set is bounded by the tombstone retention window, safe to
	// materialize in one write.
	removedJSON, err := json.Marshal(removed)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, `{"removed":%s,"transactions":[`, removedJSON); err != nil {
		return err
	}

	if len(txnIDs) > 0 {
		first := true
		err = tx.StreamTransactions(ctx, groupID, txnIDs, func(txn *models.Transaction) error {
			return writeElement(w, txn, &first)
		})
		if err != nil {
			return err
		}
	}

	if _, err := io.WriteString(w, `],"transfers":[`); err != nil {
		return err
	}

	if len(trIDs) > 0 {
		first := true
		err = tx.StreamTransfers(ctx, groupID, trIDs, func(tr *models.Transfer) error {
			return writeElement(w, tr, &first)
		})
		if err != nil {
			return err
		}
	}

	if _, err := io.WriteString(w, `]}`); err != nil {
		return err
	}

	slog.Debug("Sync delta streamed",
		"group_id", groupID,
		"watermark", watermark,
		"removed", len(removed),
		"transactions", len(txnIDs),
		"transfers", len(trIDs),
	)
	return nil
}

// writeElement marshals one array element, prefixing a comma for all but
// the first.
func writeElement(w io.Writer, v any, first *bool) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if !*first {
		if _, err := w.Write([]byte{','}); err != nil {
			return err
		}
	}
	*first = false
	_, err = w.Write(data)
	return err
}
