// Package domain defines the core persistence models for the application.
// This file holds the append-only wallet ledger.
package domain

import "time"

// Ledger entry reasons. The reason is a coarse audit label; the metadata
// column carries the structured details of the originating operation.
const (
	LedgerReasonUploadUsage = "UPLOAD_USAGE"
	LedgerReasonTopup       = "TOPUP"
	LedgerReasonAdjustment  = "ADJUSTMENT"
)

// WalletLedgerEntry is an immutable record of one wallet balance change.
// AmountCents is signed: debits are negative, credits positive. The unique
// (user_id, external_ref) index makes retried debits and replayed top-up
// confirmations safe: the second attempt hits the index instead of moving
// the balance again.
type WalletLedgerEntry struct {
	ID          string    `json:"id"           gorm:"type:char(36);primaryKey"`
	UserID      string    `json:"user_id"      gorm:"type:char(36);not null;index;uniqueIndex:ux_ledger_user_ref,priority:1"`
	AmountCents int64     `json:"amount_cents" gorm:"not null"`
	Reason      string    `json:"reason"       gorm:"type:varchar(32);not null"`
	ExternalRef string    `json:"external_ref" gorm:"type:varchar(255);not null;uniqueIndex:ux_ledger_user_ref,priority:2"`
	Metadata    string    `json:"metadata,omitempty" gorm:"type:text"` // JSON blob
	CreatedAt   time.Time `json:"created_at"`
}

// TableName returns the database table name for WalletLedgerEntry.
func (WalletLedgerEntry) TableName() string { return "wallet_ledger_entries" }
