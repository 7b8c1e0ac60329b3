// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the User row
// and its metering counters.
//
// All contended mutations here are single conditional UPDATEs ("mutate only
// if still within bound") whose RowsAffected count is the success signal.
// Two concurrent requests can both pass an advisory read-only check, but only
// the conditional UPDATE decides who actually gets the resource; nothing in
// this package does read-check-write in application code.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-lora-backend/internal/domain"
	"github.com/tbourn/go-lora-backend/internal/plans"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// GetUser fetches a user row by ID, or ErrNotFound if missing.
func GetUser(ctx context.Context, db *gorm.DB, id string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// GetOrCreateUser fetches the user row, inserting a zeroed FREE-tier row on
// first contact. Identity itself is owned by the upstream session provider;
// this row only exists to carry metering state.
func GetOrCreateUser(ctx context.Context, db *gorm.DB, id string) (*domain.User, error) {
	u, err := GetUser(ctx, db, id)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	fresh := &domain.User{
		ID:               id,
		PlanTier:         domain.TierFree,
		UsagePeriodStart: startOfMonth(time.Now().UTC()),
	}
	if err := db.WithContext(ctx).Create(fresh).Error; err != nil {
		// Lost a creation race: the other writer's row is the one to use.
		if isUniqueViolation(err) {
			return GetUser(ctx, db, id)
		}
		return nil, err
	}
	return fresh, nil
}

// RollUsageWindow resets monthly_upload_used_bytes when the user's usage
// window is older than the current calendar month. The reset is conditional
// on the stale anchor, so two concurrent rolls collapse into one: the loser
// affects zero rows and that is fine.
func RollUsageWindow(ctx context.Context, db *gorm.DB, userID string, now time.Time) error {
	boundary := startOfMonth(now.UTC())
	return db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ? AND usage_period_start < ?", userID, boundary).
		Updates(map[string]any{
			"monthly_upload_used_bytes": 0,
			"usage_period_start":        boundary,
		}).Error
}

// AddUploadUsage atomically adds size to both usage byte counters, enforcing
// the monthly and total byte caps in the WHERE clause. It returns false when
// the caps would be exceeded (zero rows affected). plans.Unlimited caps are
// simply omitted from the predicate.
func AddUploadUsage(ctx context.Context, db *gorm.DB, userID string, size, monthlyLimit, totalLimit int64) (bool, error) {
	q := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", userID)
	if monthlyLimit != plans.Unlimited {
		q = q.Where("monthly_upload_used_bytes + ? <= ?", size, monthlyLimit)
	}
	if totalLimit != plans.Unlimited {
		q = q.Where("storage_used_bytes + ? <= ?", size, totalLimit)
	}
	res := q.Updates(map[string]any{
		"monthly_upload_used_bytes": gorm.Expr("monthly_upload_used_bytes + ?", size),
		"storage_used_bytes":        gorm.Expr("storage_used_bytes + ?", size),
	})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ClaimFreeUpload consumes one free-tier upload slot:
// "increment where counter < limit". Zero rows affected means the quota is
// exhausted, including the case where two concurrent uploads both passed an
// earlier advisory check.
func ClaimFreeUpload(ctx context.Context, db *gorm.DB, userID string, limit int64) (bool, error) {
	if limit == plans.Unlimited {
		return true, nil
	}
	res := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ? AND free_video_uploads_used < ?", userID, limit).
		Update("free_video_uploads_used", gorm.Expr("free_video_uploads_used + 1"))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ClaimAISubmit consumes one training-submission slot with the same bounded
// increment discipline as ClaimFreeUpload.
func ClaimAISubmit(ctx context.Context, db *gorm.DB, userID string, limit int64) (bool, error) {
	if limit == plans.Unlimited {
		return true, nil
	}
	res := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ? AND ai_submits_used < ?", userID, limit).
		Update("ai_submits_used", gorm.Expr("ai_submits_used + 1"))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// startOfMonth truncates t to midnight UTC on the first of its month.
func startOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
