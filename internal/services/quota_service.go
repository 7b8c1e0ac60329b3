// QuotaService performs the advisory quota checks that run before any
// expensive work (storage writes, provider calls, wallet debits). Every
// check here is a fast read; the authoritative enforcement is the repo
// layer's conditional increments, which re-apply the same bound atomically.
// A request that passes an advisory check can therefore still be denied at
// commit time under concurrency, and callers handle that.

package services

import (
	"context"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gorm.io/gorm"

	"github.com/tbourn/go-lora-backend/internal/domain"
	"github.com/tbourn/go-lora-backend/internal/plans"
	"github.com/tbourn/go-lora-backend/internal/repo"
)

// quotaPrinter formats the numbers in denial messages with thousands
// separators so multi-gigabyte byte counts stay readable.
var quotaPrinter = message.NewPrinter(language.English)

// QuotaService resolves a user's effective limits and answers allow/deny
// questions. All methods return nil on allow and *QuotaError on deny.
type QuotaService struct {
	// DB is the GORM handle used for count lookups.
	DB *gorm.DB
}

// NewQuotaService constructs a QuotaService.
func NewQuotaService(db *gorm.DB) *QuotaService {
	return &QuotaService{DB: db}
}

// LimitsFor resolves the effective limits for a tier. Unknown tiers fall
// back to FREE.
func (s *QuotaService) LimitsFor(tier domain.PlanTier) plans.Limits {
	return plans.For(tier)
}

// CheckFileSize denies files above the tier's per-file cap.
func (s *QuotaService) CheckFileSize(tier domain.PlanTier, sizeBytes int64) error {
	l := plans.For(tier)
	if plans.Allows(l.MaxFileBytes, 0, sizeBytes) {
		return nil
	}
	return &QuotaError{
		Code:    CodeFileSizeLimit,
		Message: quotaPrinter.Sprintf("file of %d bytes exceeds the per-file limit of %d bytes", sizeBytes, l.MaxFileBytes),
		Current: sizeBytes,
		Limit:   l.MaxFileBytes,
	}
}

// CheckUploadBytes denies an upload whose size would push the user past the
// monthly or total byte caps. Monthly is checked first so the denial code
// points at the cap that resets sooner.
func (s *QuotaService) CheckUploadBytes(u *domain.User, sizeBytes int64) error {
	l := plans.For(u.PlanTier)
	if !plans.Allows(l.MonthlyUploadBytes, u.MonthlyUploadUsedBytes, sizeBytes) {
		return &QuotaError{
			Code:    CodeMonthlyUploadLimit,
			Message: quotaPrinter.Sprintf("monthly upload budget exhausted: %d of %d bytes used", u.MonthlyUploadUsedBytes, l.MonthlyUploadBytes),
			Current: u.MonthlyUploadUsedBytes,
			Limit:   l.MonthlyUploadBytes,
		}
	}
	if !plans.Allows(l.TotalStorageBytes, u.StorageUsedBytes, sizeBytes) {
		return &QuotaError{
			Code:    CodeTotalStorageLimit,
			Message: quotaPrinter.Sprintf("total storage budget exhausted: %d of %d bytes used", u.StorageUsedBytes, l.TotalStorageBytes),
			Current: u.StorageUsedBytes,
			Limit:   l.TotalStorageBytes,
		}
	}
	return nil
}

// CheckModelVideos denies adding a video to a model already at the tier's
// per-model cap.
func (s *QuotaService) CheckModelVideos(m *domain.LoraModel, tier domain.PlanTier) error {
	l := plans.For(tier)
	if plans.Allows(l.VideosPerModel, int64(m.VideoCount), 1) {
		return nil
	}
	return &QuotaError{
		Code:    CodeModelVideoLimit,
		Message: quotaPrinter.Sprintf("model already holds %d of %d allowed videos", m.VideoCount, l.VideosPerModel),
		Current: int64(m.VideoCount),
		Limit:   l.VideosPerModel,
	}
}

// CheckModelSlots denies creating a model when the user's active model
// count is at the tier cap.
func (s *QuotaService) CheckModelSlots(ctx context.Context, userID string, tier domain.PlanTier) error {
	l := plans.For(tier)
	if l.ModelSlots == plans.Unlimited {
		return nil
	}
	count, err := repo.CountModels(ctx, s.DB, userID)
	if err != nil {
		return err
	}
	if plans.Allows(l.ModelSlots, count, 1) {
		return nil
	}
	return &QuotaError{
		Code:    CodeModelSlotLimit,
		Message: quotaPrinter.Sprintf("all %d model slots in use", l.ModelSlots),
		Current: count,
		Limit:   l.ModelSlots,
	}
}

// CheckTrainRuns denies a training submission for a model already at the
// tier's train-run cap.
func (s *QuotaService) CheckTrainRuns(m *domain.LoraModel, tier domain.PlanTier) error {
	l := plans.For(tier)
	if plans.Allows(l.TrainRunsPerModel, int64(m.TrainRuns), 1) {
		return nil
	}
	return &QuotaError{
		Code:    CodeTrainRunLimit,
		Message: quotaPrinter.Sprintf("model already used %d of %d training runs", m.TrainRuns, l.TrainRunsPerModel),
		Current: int64(m.TrainRuns),
		Limit:   l.TrainRunsPerModel,
	}
}

// CheckWalletBalance denies an operation whose cost exceeds the available
// balance. The authoritative check is the conditional debit; this is the
// advisory mirror used to fail fast before storage writes.
func (s *QuotaService) CheckWalletBalance(u *domain.User, costCents int64) error {
	if costCents <= 0 || u.WalletBalanceCents >= costCents {
		return nil
	}
	return &InsufficientBalanceError{
		RequiredCents:  costCents,
		AvailableCents: u.WalletBalanceCents,
	}
}
