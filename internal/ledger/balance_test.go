package ledger

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitsync/internal/models"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestTransactionDeltas(t *testing.T) {
	tests := []struct {
		name    string
		payerID int64
		amount  string
		shares  []models.Share
		want    map[int64]string
		wantErr error
	}{
		{
			name:    "payer included in shares",
			payerID: 1,
			amount:  "30.00",
			shares: []models.Share{
				{UserID: 1, Amount: dec("10.00")},
				{UserID: 2, Amount: dec("20.00")},
			},
			want: map[int64]string{1: "20.00", 2: "-20.00"},
		},
		{
			name:    "payer not in shares",
			payerID: 3,
			amount:  "10.00",
			shares: []models.Share{
				{UserID: 1, Amount: dec("4.00")},
				{UserID: 2, Amount: dec("6.00")},
			},
			want: map[int64]string{1: "-4.00", 2: "-6.00", 3: "10.00"},
		},
		{
			name:    "payer covers everything themselves",
			payerID: 1,
			amount:  "5.00",
			shares:  []models.Share{{UserID: 1, Amount: dec("5.00")}},
			want:    map[int64]string{1: "0"},
		},
		{
			name:    "zero share allowed",
			payerID: 1,
			amount:  "8.00",
			shares: []models.Share{
				{UserID: 1, Amount: dec("0")},
				{UserID: 2, Amount: dec("8.00")},
			},
			want: map[int64]string{1: "8.00", 2: "-8.00"},
		},
		{
			name:    "zero amount",
			payerID: 1,
			amount:  "0",
			shares:  []models.Share{{UserID: 1, Amount: dec("0")}},
			wantErr: ErrInvalidAmount,
		},
		{
			name:    "negative amount",
			payerID: 1,
			amount:  "-5.00",
			shares:  []models.Share{{UserID: 1, Amount: dec("-5.00")}},
			wantErr: ErrInvalidAmount,
		},
		{
			name:    "no shares",
			payerID: 1,
			amount:  "5.00",
			wantErr: ErrUnbalancedShares,
		},
		{
			name:    "shares do not sum to amount",
			payerID: 1,
			amount:  "10.00",
			shares: []models.Share{
				{UserID: 1, Amount: dec("3.00")},
				{UserID: 2, Amount: dec("3.00")},
			},
			wantErr: ErrUnbalancedShares,
		},
		{
			name:    "duplicate member",
			payerID: 1,
			amount:  "10.00",
			shares: []models.Share{
				{UserID: 2, Amount: dec("5.00")},
				{UserID: 2, Amount: dec("5.00")},
			},
			wantErr: ErrDuplicateShare,
		},
		{
			name:    "negative share",
			payerID: 1,
			amount:  "10.00",
			shares: []models.Share{
				{UserID: 1, Amount: dec("15.00")},
				{UserID: 2, Amount: dec("-5.00")},
			},
			wantErr: ErrNegativeShare,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TransactionDeltas(tt.payerID, dec(tt.amount), tt.shares)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("TransactionDeltas failed: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d deltas, got %d: %v", len(tt.want), len(got), got)
			}
			for id, want := range tt.want {
				if !got[id].Equal(dec(want)) {
					t.Errorf("member %d: expected %s, got %s", id, want, got[id])
				}
			}
			if !got.Sum().IsZero() {
				t.Errorf("delta set not closed, sum %s", got.Sum())
			}
		})
	}
}

func TestTransferDeltas(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		got, err := TransferDeltas(1, 2, dec("7.50"))
		if err != nil {
			t.Fatalf("TransferDeltas failed: %v", err)
		}
		if !got[1].Equal(dec("7.50")) || !got[2].Equal(dec("-7.50")) {
			t.Errorf("unexpected deltas: %v", got)
		}
		if !got.Sum().IsZero() {
			t.Errorf("delta set not closed, sum %s", got.Sum())
		}
	})

	t.Run("self transfer", func(t *testing.T) {
		if _, err := TransferDeltas(1, 1, dec("5.00")); !errors.Is(err, ErrSelfTransfer) {
			t.Errorf("expected ErrSelfTransfer, got %v", err)
		}
	})

	t.Run("non-positive amount", func(t *testing.T) {
		for _, amount := range []string{"0", "-1.00"} {
			if _, err := TransferDeltas(1, 2, dec(amount)); !errors.Is(err, ErrInvalidAmount) {
				t.Errorf("amount %s: expected ErrInvalidAmount, got %v", amount, err)
			}
		}
	})
}

func TestDeltasNegatedMerge(t *testing.T) {
	d := Deltas{1: dec("10.00"), 2: dec("-10.00")}

	neg := d.Negated()
	if !neg[1].Equal(dec("-10.00")) || !neg[2].Equal(dec("10.00")) {
		t.Errorf("unexpected negation: %v", neg)
	}

	// Rolling a delta set out and back in cancels exactly.
	merged := d.Merge(d.Negated())
	for id, v := range merged {
		if !v.IsZero() {
			t.Errorf("member %d: expected zero after cancel, got %s", id, v)
		}
	}

	other := Deltas{2: dec("3.00"), 3: dec("-3.00")}
	combined := d.Merge(other)
	if !combined[2].Equal(dec("-7.00")) {
		t.Errorf("member 2: expected -7.00, got %s", combined[2])
	}
	if !combined.Sum().IsZero() {
		t.Errorf("merged set not closed, sum %s", combined.Sum())
	}
}
