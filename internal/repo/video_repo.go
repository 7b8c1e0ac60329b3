// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for training
// videos. Video rows are created exactly once per successful upload and are
// never mutated.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-lora-backend/internal/domain"
)

// CreateVideo inserts a new LoraTrainingVideo row. Callers that need the ID
// before the insert (storage keys embed it) may preset it; otherwise one is
// generated.
func CreateVideo(ctx context.Context, db *gorm.DB, v *domain.LoraTrainingVideo) (*domain.LoraTrainingVideo, error) {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	if err := db.WithContext(ctx).Create(v).Error; err != nil {
		return nil, err
	}
	return v, nil
}

// ListModelVideoURLs returns the storage URLs of every video attached to the
// model, oldest first (stable training input order).
func ListModelVideoURLs(ctx context.Context, db *gorm.DB, modelID string) ([]string, error) {
	var urls []string
	err := db.WithContext(ctx).
		Model(&domain.LoraTrainingVideo{}).
		Where("model_id = ?", modelID).
		Order("created_at asc").
		Pluck("url", &urls).Error
	return urls, err
}
