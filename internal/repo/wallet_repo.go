// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the wallet primitives: the atomic
// conditional balance decrement, its mirror credit, and the append-only
// ledger with per-reference idempotency.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-lora-backend/internal/domain"
)

// ErrDuplicateRef indicates that a ledger entry already exists for the given
// (user_id, external_ref) pair. Callers treat it as "already applied".
var ErrDuplicateRef = errors.New("duplicate external ref")

// DecrementBalance performs the atomic conditional debit:
// "decrement balance by amount where balance >= amount". It returns false
// (and no error) when the balance is insufficient; that is a normal
// negative result, not an exception.
func DecrementBalance(ctx context.Context, db *gorm.DB, userID string, amountCents int64) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ? AND wallet_balance_cents >= ?", userID, amountCents).
		Update("wallet_balance_cents", gorm.Expr("wallet_balance_cents - ?", amountCents))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// IncrementBalance adds amountCents to the user's balance.
func IncrementBalance(ctx context.Context, db *gorm.DB, userID string, amountCents int64) error {
	res := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", userID).
		Update("wallet_balance_cents", gorm.Expr("wallet_balance_cents + ?", amountCents))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// AppendLedgerEntry inserts one immutable ledger row. A unique violation on
// (user_id, external_ref) is mapped to ErrDuplicateRef so callers can treat
// a replayed reference as already-applied instead of a failure.
func AppendLedgerEntry(ctx context.Context, db *gorm.DB, userID string, amountCents int64, reason, externalRef, metadata string) (*domain.WalletLedgerEntry, error) {
	e := &domain.WalletLedgerEntry{
		ID:          uuid.NewString(),
		UserID:      userID,
		AmountCents: amountCents,
		Reason:      reason,
		ExternalRef: externalRef,
		Metadata:    metadata,
		CreatedAt:   time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(e).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateRef
		}
		return nil, err
	}
	return e, nil
}

// FindLedgerEntryByRef returns the entry recorded for (userID, externalRef),
// or ErrNotFound. Used to recognize replays before touching the balance.
func FindLedgerEntryByRef(ctx context.Context, db *gorm.DB, userID, externalRef string) (*domain.WalletLedgerEntry, error) {
	var e domain.WalletLedgerEntry
	err := db.WithContext(ctx).
		Where("user_id = ? AND external_ref = ?", userID, externalRef).
		First(&e).Error
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ListLedgerPage returns a page of ledger entries for userID, newest first.
func ListLedgerPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.WalletLedgerEntry, error) {
	var out []domain.WalletLedgerEntry
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CountLedgerEntries returns the total number of ledger rows for userID.
func CountLedgerEntries(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.WalletLedgerEntry{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	return total, err
}

// isUniqueViolation detects unique-constraint violations across drivers that
// may not map to gorm.ErrDuplicatedKey.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// glebarez/sqlite often returns plain-text errors for UNIQUE violations;
	// Postgres says "duplicate key value violates unique constraint".
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "constraint failed: unique") ||
		strings.Contains(msg, "duplicate key")
}
