package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ContentKind discriminates the concrete ledger content types.
// Transactions and transfers draw ids from the same sequence but live in
// separate tables, so (id, kind) is the real identity of a content item.
type ContentKind string

const (
	KindTransaction ContentKind = "transaction"
	KindTransfer    ContentKind = "transfer"
)

// Share is one member's portion of a transaction.
type Share struct {
	UserID int64           `json:"user_id"`
	Amount decimal.Decimal `json:"amount"`
}

// Transaction is a pooled expense: one member paid, several members share.
// The share amounts must sum to Amount exactly.
type Transaction struct {
	ID          int64           `json:"id"`
	GroupID     int64           `json:"group_id"`
	Description string          `json:"description"`
	PayerID     int64           `json:"payer_id"`
	Amount      decimal.Decimal `json:"amount"`
	Shares      []Share         `json:"shares"`
	DateTime    time.Time       `json:"date_time"`
	CreatedByID int64           `json:"created_by"`
	CreatedOn   time.Time       `json:"created_on"`
	ModifiedOn  time.Time       `json:"modified_on"`
}

// Transfer is a direct settlement payment from one member to another.
type Transfer struct {
	ID          int64           `json:"id"`
	GroupID     int64           `json:"group_id"`
	SenderID    int64           `json:"sender_id"`
	ReceiverID  int64           `json:"receiver_id"`
	Amount      decimal.Decimal `json:"amount"`
	DateTime    time.Time       `json:"date_time"`
	CreatedByID int64           `json:"created_by"`
	CreatedOn   time.Time       `json:"created_on"`
	ModifiedOn  time.Time       `json:"modified_on"`
}

// Tombstone records that a content item was deleted. The row id doubles as
// the deletion order: devices compare it against their sync watermark, so a
// deletion is visible to exactly the devices that have not synced past it.
type Tombstone struct {
	ID        int64       `json:"id"`
	ContentID int64       `json:"content_id"`
	Kind      ContentKind `json:"kind"`
	GroupID   int64       `json:"group_id"`
	DeletedOn time.Time   `json:"deleted_on"`
}

// RemovedRef identifies one deleted content item in a sync delta.
type RemovedRef struct {
	ContentID int64       `json:"id"`
	Kind      ContentKind `json:"kind"`
}
