// Package ledger implements the balance arithmetic of the group ledger.
//
// All functions are pure and operate on exact decimals. Every delta set
// produced here sums to zero, which is what keeps the per-group invariant
// "sum of member balances == 0" unreachable from the outside: storage only
// ever applies closed delta sets.
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitsync/internal/models"
)

var (
	// ErrInvalidAmount means the amount is zero or negative.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrUnbalancedShares means the shares do not sum to the amount.
	ErrUnbalancedShares = errors.New("shares must sum to the amount")

	// ErrDuplicateShare means a member appears twice in the share list.
	ErrDuplicateShare = errors.New("duplicate member in shares")

	// ErrNegativeShare means a share is negative.
	ErrNegativeShare = errors.New("share must not be negative")

	// ErrSelfTransfer means sender and receiver are the same member.
	ErrSelfTransfer = errors.New("cannot transfer to self")
)

// Deltas maps member ids to balance changes.
type Deltas map[int64]decimal.Decimal

// Sum returns the total of all deltas. Zero for every set produced by this
// package.
func (d Deltas) Sum() decimal.Decimal {
	sum := decimal.Zero
	for _, v := range d {
		sum = sum.Add(v)
	}
	return sum
}

// Negated returns the inverse delta set, used to roll a content item back
// out of the balances on update or delete.
func (d Deltas) Negated() Deltas {
	out := make(Deltas, len(d))
	for id, v := range d {
		out[id] = v.Neg()
	}
	return out
}

// Merge combines two delta sets member-wise.
func (d Deltas) Merge(other Deltas) Deltas {
	out := make(Deltas, len(d)+len(other))
	for id, v := range d {
		out[id] = v
	}
	for id, v := range other {
		out[id] = out[id].Add(v)
	}
	return out
}

// TransactionDeltas computes the balance changes for a pooled expense.
// The payer fronted the whole amount, so their balance rises by everything
// the other sharers owe; every other sharer's balance drops by their share.
// The payer may or may not appear in the share list.
func TransactionDeltas(payerID int64, amount decimal.Decimal, shares []models.Share) (Deltas, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if len(shares) == 0 {
		return nil, fmt.Errorf("%w: no shares", ErrUnbalancedShares)
	}

	total := decimal.Zero
	seen := make(map[int64]bool, len(shares))
	for _, share := range shares {
		if seen[share.UserID] {
			return nil, fmt.Errorf("%w: member %d", ErrDuplicateShare, share.UserID)
		}
		seen[share.UserID] = true
		if share.Amount.IsNegative() {
			return nil, fmt.Errorf("%w: member %d", ErrNegativeShare, share.UserID)
		}
		total = total.Add(share.Amount)
	}
	if !total.Equal(amount) {
		return nil, fmt.Errorf("%w: shares %s, amount %s", ErrUnbalancedShares, total, amount)
	}

	deltas := make(Deltas, len(shares)+1)
	deltas[payerID] = amount
	for _, share := range shares {
		deltas[share.UserID] = deltas[share.UserID].Sub(share.Amount)
	}
	return deltas, nil
}

// TransferDeltas computes the balance changes for a direct settlement:
// the sender hands money to the receiver, so the sender's balance rises
// (debt repaid) and the receiver's drops (credit consumed).
func TransferDeltas(senderID, receiverID int64, amount decimal.Decimal) (Deltas, error) {
	if senderID == receiverID {
		return nil, ErrSelfTransfer
	}
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	return Deltas{
		senderID:   amount,
		receiverID: amount.Neg(),
	}, nil
}
