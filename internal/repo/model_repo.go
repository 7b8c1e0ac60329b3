// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the LoraModel
// aggregate.
//
// Error semantics:
//   - When a model is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//
// The counter mutations (video count, train runs, version bump) are
// conditional UPDATEs returning RowsAffected as the success signal; they are
// the atomic re-enforcement behind the services' advisory quota checks.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-lora-backend/internal/domain"
	"github.com/tbourn/go-lora-backend/internal/plans"
)

// CreateModel inserts a new LoraModel row owned by userID. The model ID is a
// randomly generated UUID (string), status ACTIVE, version 1.
func CreateModel(ctx context.Context, db *gorm.DB, userID, name string, tier domain.PlanTier) (*domain.LoraModel, error) {
	m := &domain.LoraModel{
		ID:            uuid.NewString(),
		UserID:        userID,
		Name:          name,
		Status:        domain.ModelActive,
		PlanTier:      tier,
		LatestVersion: 1,
		CreatedAt:     time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, err
	}
	return m, nil
}

// GetModel fetches a single model by its ID and owner (userID). If the
// record does not exist or belongs to someone else, it returns ErrNotFound.
func GetModel(ctx context.Context, db *gorm.DB, id, userID string) (*domain.LoraModel, error) {
	var m domain.LoraModel
	err := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// CountModels returns the total number of models owned by userID.
func CountModels(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.LoraModel{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	return total, err
}

// ListModelsPage returns a paginated slice of models for userID, newest
// first. Use CountModels to obtain the total for pagination metadata.
func ListModelsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.LoraModel, error) {
	var out []domain.LoraModel
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ArchiveModel flips a model to ARCHIVED, enforcing ownership. Returns
// ErrNotFound when the model is missing, foreign, or already archived.
func ArchiveModel(ctx context.Context, db *gorm.DB, id, userID string) error {
	res := db.WithContext(ctx).
		Model(&domain.LoraModel{}).
		Where("id = ? AND user_id = ? AND status = ?", id, userID, domain.ModelActive).
		Update("status", domain.ModelArchived)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// IncrementVideoCount adds one to the model's video counter, but only while
// the model is ACTIVE and still under limit. Returns false when the cap is
// reached (or the model was archived mid-flight).
func IncrementVideoCount(ctx context.Context, db *gorm.DB, modelID string, limit int64) (bool, error) {
	q := db.WithContext(ctx).
		Model(&domain.LoraModel{}).
		Where("id = ? AND status = ?", modelID, domain.ModelActive)
	if limit != plans.Unlimited {
		q = q.Where("video_count < ?", limit)
	}
	res := q.Update("video_count", gorm.Expr("video_count + 1"))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// IncrementTrainRuns consumes one train-run slot for the model with the same
// bounded-increment discipline. FAILED runs are never refunded, so every
// terminal outcome counts against the cap.
func IncrementTrainRuns(ctx context.Context, db *gorm.DB, modelID string, limit int64) (bool, error) {
	q := db.WithContext(ctx).
		Model(&domain.LoraModel{}).
		Where("id = ? AND status = ?", modelID, domain.ModelActive)
	if limit != plans.Unlimited {
		q = q.Where("train_runs < ?", limit)
	}
	res := q.Update("train_runs", gorm.Expr("train_runs + 1"))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ApplyTrainingSuccess links the trained artifact onto the model and bumps
// latest_version by exactly one. Callers must hold the job-side terminal
// guard (FinishJob) before invoking this; that guard is what makes the bump
// happen once per job even under concurrent syncs.
func ApplyTrainingSuccess(ctx context.Context, db *gorm.DB, modelID, adapterURL string) error {
	res := db.WithContext(ctx).
		Model(&domain.LoraModel{}).
		Where("id = ?", modelID).
		Updates(map[string]any{
			"adapter_url":    adapterURL,
			"latest_version": gorm.Expr("latest_version + 1"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
