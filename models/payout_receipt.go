package models

import (
	"time"
)

const (
	ReceiptKindCollect = "collect"
	ReceiptKindPayout  = "payout"

	ReceiptPending   = "pending"
	ReceiptConfirmed = "confirmed"
	ReceiptFailed    = "failed"
)

// PayoutReceipt records one transfer accepted by the custody service. The
// primary key is the idempotency key sent with the request, so a retried
// transfer lands on the same row.
type PayoutReceipt struct {
	ID          string     `gorm:"primaryKey;type:uuid;not null" json:"id"`
	Kind        string     `gorm:"type:varchar(16);not null;index" json:"kind"`
	Ref         string     `gorm:"type:varchar(64);index" json:"ref"` // e.g. match/12/settle
	Account     string     `gorm:"type:varchar(128);not null;index" json:"account"`
	Amount      uint64     `gorm:"not null" json:"amount"`
	Memo        string     `json:"memo,omitempty"`
	Status      string     `gorm:"type:varchar(16);not null;index" json:"status"`
	ExternalRef string     `gorm:"type:varchar(128)" json:"external_ref,omitempty"` // custody-side transaction id
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`

	Timestamps
}
