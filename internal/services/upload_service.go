// UploadService ingests one training video: validation, quota checks, the
// free-tier counter claim, the byte-proportional wallet debit, the storage
// write, and the final accounting transaction, in that order. The ordering
// is load-bearing: the storage write happens before the accounting commit
// so a crash in between orphans a blob instead of corrupting counters, and
// any failure after a successful debit is an operational incident that is
// logged loudly rather than silently rolled back.

package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-lora-backend/internal/domain"
	"github.com/tbourn/go-lora-backend/internal/events"
	"github.com/tbourn/go-lora-backend/internal/repo"
	"github.com/tbourn/go-lora-backend/internal/storage"
)

// Upload describes one incoming file.
type Upload struct {
	Filename  string
	MimeType  string
	SizeBytes int64
	Body      io.Reader
	// ExternalRef identifies this upload attempt for debit idempotency.
	// Populated from the client's Idempotency-Key header when present;
	// empty means the service derives one.
	ExternalRef string
}

// IngestResult is the successful outcome: the stored video row plus the
// user's usage projection after the commit.
type IngestResult struct {
	Video                  *domain.LoraTrainingVideo `json:"video"`
	CostCents              int64                     `json:"cost_cents"`
	StorageUsedBytes       int64                     `json:"storage_used_bytes"`
	MonthlyUploadUsedBytes int64                     `json:"monthly_upload_used_bytes"`
}

// UploadService ingests training videos for a model.
type UploadService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Store persists the uploaded bytes.
	Store storage.Store
	// Quota performs the advisory pre-checks.
	Quota *QuotaService
	// Wallet performs the byte-proportional debit.
	Wallet *WalletService
	// Events publishes upload lifecycle events; nil disables publishing.
	Events *events.Publisher
}

// NewUploadService constructs an UploadService.
func NewUploadService(db *gorm.DB, store storage.Store, quota *QuotaService, wallet *WalletService, ev *events.Publisher) *UploadService {
	return &UploadService{DB: db, Store: store, Quota: quota, Wallet: wallet, Events: ev}
}

// Ingest runs the full upload pipeline for one file. On any denial the
// returned error is a *QuotaError or *InsufficientBalanceError carrying the
// stable code; other errors are internal.
func (s *UploadService) Ingest(ctx context.Context, userID, modelID string, up Upload) (*IngestResult, error) {
	// 1. Basic validation before touching any state.
	if up.SizeBytes <= 0 || !strings.HasPrefix(strings.ToLower(up.MimeType), "video/") {
		return nil, fmt.Errorf("%w: media type %q, size %d", ErrInvalidUpload, up.MimeType, up.SizeBytes)
	}

	user, err := s.prepareUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	limits := s.Quota.LimitsFor(user.PlanTier)

	// 2. Per-file cap.
	if err := s.Quota.CheckFileSize(user.PlanTier, up.SizeBytes); err != nil {
		return nil, s.reject(err)
	}

	// 3. Projected monthly/total byte caps (advisory; re-enforced at commit).
	if err := s.Quota.CheckUploadBytes(user, up.SizeBytes); err != nil {
		return nil, s.reject(err)
	}

	// 4. Model must exist, be owned, be active, and have a free video slot.
	model, err := s.activeModel(ctx, modelID, userID)
	if err != nil {
		return nil, err
	}
	if err := s.Quota.CheckModelVideos(model, user.PlanTier); err != nil {
		return nil, s.reject(err)
	}

	// 5. FREE tier claims one bounded free-upload slot. The conditional
	// increment is the enforcement; two concurrent uploads cannot both win
	// the last slot.
	if user.PlanTier == domain.TierFree {
		ok, err := repo.ClaimFreeUpload(ctx, s.DB, userID, limits.FreeVideoUploads)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, s.reject(&QuotaError{
				Code:    CodeFreeVideoLimit,
				Message: quotaPrinter.Sprintf("all %d free uploads used", limits.FreeVideoUploads),
				Current: limits.FreeVideoUploads,
				Limit:   limits.FreeVideoUploads,
			})
		}
	}

	// 6. Byte-proportional debit, idempotent per upload attempt. The advisory
	// balance check fails fast before any storage write; the conditional
	// debit is the authoritative one.
	cost := limits.UploadCostCents(up.SizeBytes)
	if err := s.Quota.CheckWalletBalance(user, cost); err != nil {
		return nil, s.reject(err)
	}
	ref := up.ExternalRef
	if ref == "" {
		ref = fmt.Sprintf("upload:%s:%s:%s", userID, modelID, uuid.NewString())
	}
	if cost > 0 {
		meta := fmt.Sprintf(`{"model_id":%q,"size_bytes":%d}`, modelID, up.SizeBytes)
		if err := s.Wallet.Debit(ctx, userID, cost, domain.LedgerReasonUploadUsage, ref, meta); err != nil {
			var ib *InsufficientBalanceError
			if errors.As(err, &ib) {
				uploadsRejected.WithLabelValues(CodeInsufficientBalance).Inc()
			}
			return nil, err
		}
	}

	// 7. Storage write. From here on the user may already be charged, so
	// every failure is logged as an incident with the debit reference.
	videoID := uuid.NewString()
	key := storage.VideoKey(userID, modelID, videoID, up.Filename)
	url, err := s.Store.Save(ctx, key, up.Body, up.SizeBytes, up.MimeType)
	if err != nil {
		s.incident(userID, modelID, ref, cost, "storage write failed after debit", err)
		return nil, fmt.Errorf("store upload: %w", err)
	}

	// 8. One transaction: video row + model counter + user byte counters,
	// each counter re-enforcing its cap conditionally.
	var video *domain.LoraTrainingVideo
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := repo.IncrementVideoCount(ctx, tx, modelID, limits.VideosPerModel)
		if err != nil {
			return err
		}
		if !ok {
			return &QuotaError{
				Code:    CodeModelVideoLimit,
				Message: "video slot claimed by a concurrent upload",
				Current: int64(model.VideoCount),
				Limit:   limits.VideosPerModel,
			}
		}
		ok, err = repo.AddUploadUsage(ctx, tx, userID, up.SizeBytes, limits.MonthlyUploadBytes, limits.TotalStorageBytes)
		if err != nil {
			return err
		}
		if !ok {
			// A concurrent upload claimed the remaining byte budget. Re-run
			// the advisory check on the fresh row so the denial names the
			// cap that was actually exceeded.
			if fresh, ferr := repo.GetUser(ctx, tx, userID); ferr == nil {
				if cerr := s.Quota.CheckUploadBytes(fresh, up.SizeBytes); cerr != nil {
					return cerr
				}
			}
			return &QuotaError{
				Code:    CodeMonthlyUploadLimit,
				Message: "byte budget claimed by a concurrent upload",
				Current: user.MonthlyUploadUsedBytes,
				Limit:   limits.MonthlyUploadBytes,
			}
		}
		v, err := repo.CreateVideo(ctx, tx, &domain.LoraTrainingVideo{
			ID:        videoID,
			UserID:    userID,
			ModelID:   modelID,
			URL:       url,
			MimeType:  up.MimeType,
			SizeBytes: up.SizeBytes,
		})
		if err != nil {
			return err
		}
		video = v
		return nil
	})
	if err != nil {
		if cost > 0 {
			s.incident(userID, modelID, ref, cost, "accounting commit failed after debit", err)
		}
		// Best-effort blob cleanup; the accounting never happened.
		if derr := s.Store.Delete(ctx, key); derr != nil {
			log.Warn().Err(derr).Str("key", key).Msg("orphaned blob cleanup failed")
		}
		var qe *QuotaError
		if errors.As(err, &qe) {
			return nil, s.reject(qe)
		}
		return nil, err
	}

	updated, err := repo.GetUser(ctx, s.DB, userID)
	if err != nil {
		return nil, err
	}

	uploadsIngested.Inc()
	s.Events.Publish(ctx, events.VideoUploaded, userID, map[string]any{
		"model_id":   modelID,
		"video_id":   videoID,
		"size_bytes": up.SizeBytes,
		"cost_cents": cost,
	})
	return &IngestResult{
		Video:                  video,
		CostCents:              cost,
		StorageUsedBytes:       updated.StorageUsedBytes,
		MonthlyUploadUsedBytes: updated.MonthlyUploadUsedBytes,
	}, nil
}

// prepareUser loads (or creates) the user row and rolls the monthly usage
// window forward when a new calendar month has started.
func (s *UploadService) prepareUser(ctx context.Context, userID string) (*domain.User, error) {
	if _, err := repo.GetOrCreateUser(ctx, s.DB, userID); err != nil {
		return nil, err
	}
	if err := repo.RollUsageWindow(ctx, s.DB, userID, time.Now().UTC()); err != nil {
		return nil, err
	}
	return repo.GetUser(ctx, s.DB, userID)
}

// activeModel loads the model and enforces ownership and lifecycle state.
func (s *UploadService) activeModel(ctx context.Context, modelID, userID string) (*domain.LoraModel, error) {
	m, err := repo.GetModel(ctx, s.DB, modelID, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrModelNotFound
	}
	if err != nil {
		return nil, err
	}
	if m.Status == domain.ModelArchived {
		return nil, ErrModelArchived
	}
	return m, nil
}

// reject counts the denial and passes it through unchanged.
func (s *UploadService) reject(err error) error {
	var qe *QuotaError
	if errors.As(err, &qe) {
		uploadsRejected.WithLabelValues(qe.Code).Inc()
	}
	var ib *InsufficientBalanceError
	if errors.As(err, &ib) {
		uploadsRejected.WithLabelValues(CodeInsufficientBalance).Inc()
	}
	return err
}

// incident logs a post-debit failure with everything needed to reconcile
// the charge by hand. The ledger row is the source of truth for "was the
// user charged"; it is never silently reversed here.
func (s *UploadService) incident(userID, modelID, ref string, cost int64, msg string, err error) {
	log.Error().
		Err(err).
		Str("user_id", userID).
		Str("model_id", modelID).
		Str("external_ref", ref).
		Int64("cost_cents", cost).
		Msg("upload incident: " + msg)
}
