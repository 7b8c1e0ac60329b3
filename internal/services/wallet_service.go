// WalletService owns every balance mutation and its paired ledger entry.
// Invariants enforced here and in the repo layer:
//   - The balance never goes negative: a debit is one conditional UPDATE
//     whose WHERE clause requires sufficient funds.
//   - The ledger is append-only and idempotent per (user, externalRef):
//     replaying a debit or credit with a reference already recorded is a
//     no-op success, never a second mutation.

package services

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-lora-backend/internal/domain"
	"github.com/tbourn/go-lora-backend/internal/events"
	"github.com/tbourn/go-lora-backend/internal/repo"
)

// WalletService provides debit, credit and statement operations.
type WalletService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Events publishes wallet lifecycle events; nil disables publishing.
	Events *events.Publisher
}

// NewWalletService constructs a WalletService.
func NewWalletService(db *gorm.DB, ev *events.Publisher) *WalletService {
	return &WalletService{DB: db, Events: ev}
}

// Debit withdraws amountCents from the user's wallet and appends a negative
// ledger entry, atomically. A zero amount is trivially successful and leaves
// no entry. Insufficient funds return *InsufficientBalanceError. A replay
// (externalRef already recorded for this user) is a no-op success.
func (s *WalletService) Debit(ctx context.Context, userID string, amountCents int64, reason, externalRef, metadata string) error {
	if amountCents < 0 {
		return ErrInvalidAmount
	}
	if amountCents == 0 {
		return nil
	}

	// Replay detection happens inside the transaction via the unique index,
	// but checking first avoids burning the conditional UPDATE on the
	// common retry path.
	if externalRef != "" {
		if _, err := repo.FindLedgerEntryByRef(ctx, s.DB, userID, externalRef); err == nil {
			return nil
		} else if !errors.Is(err, repo.ErrNotFound) {
			return err
		}
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := repo.DecrementBalance(ctx, tx, userID, amountCents)
		if err != nil {
			return err
		}
		if !ok {
			u, err := repo.GetUser(ctx, tx, userID)
			if err != nil {
				return err
			}
			return &InsufficientBalanceError{
				RequiredCents:  amountCents,
				AvailableCents: u.WalletBalanceCents,
			}
		}
		_, err = repo.AppendLedgerEntry(ctx, tx, userID, -amountCents, reason, externalRef, metadata)
		return err
	})
	if errors.Is(err, repo.ErrDuplicateRef) {
		// Lost the race against a concurrent replay; the debit exists.
		return nil
	}
	if err != nil {
		return err
	}

	walletDebits.Inc()
	s.Events.Publish(ctx, events.WalletDebited, userID, map[string]any{
		"amount_cents": amountCents,
		"reason":       reason,
		"external_ref": externalRef,
	})
	return nil
}

// Credit deposits amountCents and appends a positive ledger entry,
// atomically. Used by the billing-provider confirmation hook, so the
// externalRef (the payment reference) is mandatory and the operation is
// idempotent per reference: confirming the same payment twice credits once.
func (s *WalletService) Credit(ctx context.Context, userID string, amountCents int64, reason, externalRef, metadata string) error {
	if amountCents < 0 {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(externalRef) == "" {
		return ErrMissingRef
	}
	if amountCents == 0 {
		return nil
	}
	if _, err := repo.GetOrCreateUser(ctx, s.DB, userID); err != nil {
		return err
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := repo.AppendLedgerEntry(ctx, tx, userID, amountCents, reason, externalRef, metadata); err != nil {
			return err
		}
		return repo.IncrementBalance(ctx, tx, userID, amountCents)
	})
	if errors.Is(err, repo.ErrDuplicateRef) {
		log.Debug().Str("user_id", userID).Str("external_ref", externalRef).Msg("duplicate top-up confirmation ignored")
		return nil
	}
	if err != nil {
		return err
	}

	s.Events.Publish(ctx, events.WalletCredited, userID, map[string]any{
		"amount_cents": amountCents,
		"reason":       reason,
		"external_ref": externalRef,
	})
	return nil
}

// Balance returns the user's current balance in cents. Unknown users are
// created with a zero balance so a fresh account reads as empty rather than
// missing.
func (s *WalletService) Balance(ctx context.Context, userID string) (int64, error) {
	u, err := repo.GetOrCreateUser(ctx, s.DB, userID)
	if err != nil {
		return 0, err
	}
	return u.WalletBalanceCents, nil
}

// Statement returns the balance plus a page of ledger entries, newest
// first.
func (s *WalletService) Statement(ctx context.Context, userID string, page, pageSize int) (int64, []domain.WalletLedgerEntry, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}

	balance, err := s.Balance(ctx, userID)
	if err != nil {
		return 0, nil, 0, err
	}
	total, err := repo.CountLedgerEntries(ctx, s.DB, userID)
	if err != nil {
		return 0, nil, 0, err
	}
	if total == 0 {
		return balance, []domain.WalletLedgerEntry{}, 0, nil
	}
	entries, err := repo.ListLedgerPage(ctx, s.DB, userID, (page-1)*pageSize, pageSize)
	return balance, entries, total, err
}
