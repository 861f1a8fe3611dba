package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mmynk/splitsync/internal/ledger"
	"github.com/mmynk/splitsync/internal/models"
	"github.com/mmynk/splitsync/internal/storage"
)

// ContentService mutates ledger content (transactions and transfers) and
// keeps member balances closed: every mutation applies a delta set that sums
// to zero within the same transaction that writes the content row.
//
// All mutations run under REPEATABLE READ, the same isolation discipline as
// GroupService.Leave. That is what makes Leave's conflict detection sound:
// a balance change committed here while a leave is in flight turns the leave
// commit into a serialization failure instead of a wrong deletion.
type ContentService struct {
	store storage.Store
}

// NewContentService creates a new ContentService with the given storage
// backend.
func NewContentService(store storage.Store) *ContentService {
	return &ContentService{store: store}
}

// AddTransaction validates and persists a pooled expense, adjusting member
// balances.
func (s *ContentService) AddTransaction(ctx context.Context, txn *models.Transaction, requesterID int64) error {
	deltas, err := ledger.TransactionDeltas(txn.PayerID, txn.Amount, txn.Shares)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidContent, err)
	}

	return s.mutate(ctx, txn.GroupID, requesterID, func(tx storage.Tx) error {
		txn.CreatedByID = requesterID
		if err := tx.InsertTransaction(ctx, txn); err != nil {
			return err
		}
		return applyDeltas(ctx, tx, txn.GroupID, deltas)
	})
}

// UpdateTransaction replaces a transaction's content, rolling the old deltas
// out and the new ones in within one transaction.
func (s *ContentService) UpdateTransaction(ctx context.Context, txn *models.Transaction, requesterID int64) error {
	newDeltas, err := ledger.TransactionDeltas(txn.PayerID, txn.Amount, txn.Shares)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidContent, err)
	}

	return s.mutate(ctx, txn.GroupID, requesterID, func(tx storage.Tx) error {
		old, err := tx.GetTransaction(ctx, txn.GroupID, txn.ID)
		if err != nil {
			return err
		}
		oldDeltas, err := ledger.TransactionDeltas(old.PayerID, old.Amount, old.Shares)
		if err != nil {
			return fmt.Errorf("stored transaction %d is unbalanced: %w", old.ID, err)
		}
		if err := tx.UpdateTransaction(ctx, txn); err != nil {
			return err
		}
		return applyDeltas(ctx, tx, txn.GroupID, oldDeltas.Negated().Merge(newDeltas))
	})
}

// DeleteTransaction removes a transaction, reverses its balance effects and
// records a tombstone so synced devices discard it.
func (s *ContentService) DeleteTransaction(ctx context.Context, groupID, id, requesterID int64) error {
	return s.mutate(ctx, groupID, requesterID, func(tx storage.Tx) error {
		old, err := tx.GetTransaction(ctx, groupID, id)
		if err != nil {
			return err
		}
		deltas, err := ledger.TransactionDeltas(old.PayerID, old.Amount, old.Shares)
		if err != nil {
			return fmt.Errorf("stored transaction %d is unbalanced: %w", old.ID, err)
		}
		if err := tx.DeleteTransaction(ctx, groupID, id); err != nil {
			return err
		}
		if _, err := tx.InsertTombstone(ctx, id, models.KindTransaction, groupID); err != nil {
			return err
		}
		return applyDeltas(ctx, tx, groupID, deltas.Negated())
	})
}

// AddTransfer validates and persists a settlement payment, adjusting both
// balances.
func (s *ContentService) AddTransfer(ctx context.Context, tr *models.Transfer, requesterID int64) error {
	deltas, err := ledger.TransferDeltas(tr.SenderID, tr.ReceiverID, tr.Amount)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidContent, err)
	}

	return s.mutate(ctx, tr.GroupID, requesterID, func(tx storage.Tx) error {
		tr.CreatedByID = requesterID
		if err := tx.InsertTransfer(ctx, tr); err != nil {
			return err
		}
		return applyDeltas(ctx, tx, tr.GroupID, deltas)
	})
}

// UpdateTransfer replaces a transfer's content, swapping its balance effects
// in one transaction.
func (s *ContentService) UpdateTransfer(ctx context.Context, tr *models.Transfer, requesterID int64) error {
	newDeltas, err := ledger.TransferDeltas(tr.SenderID, tr.ReceiverID, tr.Amount)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidContent, err)
	}

	return s.mutate(ctx, tr.GroupID, requesterID, func(tx storage.Tx) error {
		old, err := tx.GetTransfer(ctx, tr.GroupID, tr.ID)
		if err != nil {
			return err
		}
		oldDeltas, err := ledger.TransferDeltas(old.SenderID, old.ReceiverID, old.Amount)
		if err != nil {
			return fmt.Errorf("stored transfer %d is invalid: %w", old.ID, err)
		}
		if err := tx.UpdateTransfer(ctx, tr); err != nil {
			return err
		}
		return applyDeltas(ctx, tx, tr.GroupID, oldDeltas.Negated().Merge(newDeltas))
	})
}

// DeleteTransfer removes a transfer, reverses its balance effects and
// records a tombstone.
func (s *ContentService) DeleteTransfer(ctx context.Context, groupID, id, requesterID int64) error {
	return s.mutate(ctx, groupID, requesterID, func(tx storage.Tx) error {
		old, err := tx.GetTransfer(ctx, groupID, id)
		if err != nil {
			return err
		}
		deltas, err := ledger.TransferDeltas(old.SenderID, old.ReceiverID, old.Amount)
		if err != nil {
			return fmt.Errorf("stored transfer %d is invalid: %w", old.ID, err)
		}
		if err := tx.DeleteTransfer(ctx, groupID, id); err != nil {
			return err
		}
		if _, err := tx.InsertTombstone(ctx, id, models.KindTransfer, groupID); err != nil {
			return err
		}
		return applyDeltas(ctx, tx, groupID, deltas.Negated())
	})
}

// mutate runs fn in a REPEATABLE READ transaction after checking that the
// requester is a member, and maps storage failures to domain errors.
func (s *ContentService) mutate(ctx context.Context, groupID, requesterID int64, fn func(storage.Tx) error) error {
	tx, err := s.store.Begin(ctx, storage.TxOptions{Isolation: storage.RepeatableRead})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := requireMember(ctx, tx, groupID, requesterID); err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			return ErrNotFound
		case errors.Is(err, storage.ErrSerialization):
			return ErrConcurrentModification
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return mapConflict(err)
	}
	return nil
}

// applyDeltas adjusts member balances, skipping zero deltas. A delta for a
// user without a membership row means the content references a non-member.
func applyDeltas(ctx context.Context, tx storage.Tx, groupID int64, deltas ledger.Deltas) error {
	for userID, delta := range deltas {
		if delta.IsZero() {
			continue
		}
		if err := tx.AdjustBalance(ctx, groupID, userID, delta); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("%w: user %d is not a member", ErrInvalidContent, userID)
			}
			return err
		}
	}
	slog.Debug("Balances adjusted", "group_id", groupID, "members", len(deltas))
	return nil
}
