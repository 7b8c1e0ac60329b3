// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for training jobs.
//
// The terminal transition (FinishJob) is the concurrency-critical primitive:
// it is a conditional UPDATE keyed on the job still being non-terminal, so
// of any number of concurrent sync calls exactly one observes RowsAffected=1
// and applies the success side effects.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-lora-backend/internal/domain"
)

// CreateJob inserts a new LoraTrainingJob in the given initial state.
// The mvp provider may create jobs directly in a terminal state (synchronous
// completion); asynchronous providers start in QUEUED.
func CreateJob(ctx context.Context, db *gorm.DB, j *domain.LoraTrainingJob) (*domain.LoraTrainingJob, error) {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if j.StartedAt.IsZero() {
		j.StartedAt = now
	}
	j.CreatedAt = now
	if err := db.WithContext(ctx).Create(j).Error; err != nil {
		return nil, err
	}
	return j, nil
}

// GetJob fetches a job by ID and owner, or ErrNotFound.
func GetJob(ctx context.Context, db *gorm.DB, id, userID string) (*domain.LoraTrainingJob, error) {
	var j domain.LoraTrainingJob
	err := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&j).Error
	if err != nil {
		return nil, err
	}
	return &j, nil
}

// CountJobs returns the total number of jobs owned by userID.
func CountJobs(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.LoraTrainingJob{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	return total, err
}

// ListJobsPage returns a paginated slice of jobs for userID, newest first.
func ListJobsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.LoraTrainingJob, error) {
	var out []domain.LoraTrainingJob
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ListNonTerminalJobs returns the user's jobs still in QUEUED or RUNNING,
// oldest first. Used by the caller-driven "sync my jobs" action.
func ListNonTerminalJobs(ctx context.Context, db *gorm.DB, userID string) ([]domain.LoraTrainingJob, error) {
	var out []domain.LoraTrainingJob
	err := db.WithContext(ctx).
		Where("user_id = ? AND status IN ?", userID, []domain.JobStatus{domain.JobQueued, domain.JobRunning}).
		Order("created_at asc").
		Find(&out).Error
	return out, err
}

// UpdateJobProgress records the latest observed progress/notes and any
// forward move between the non-terminal states. Transitions are forward-only:
// the only non-terminal move is QUEUED -> RUNNING, so a vendor re-reporting a
// queued-family word for a RUNNING job updates progress/notes without moving
// the status backward. The WHERE clause keeps a concurrent terminal writer
// authoritative: once a job is terminal this update affects zero rows, which
// is not an error.
func UpdateJobProgress(ctx context.Context, db *gorm.DB, id string, status domain.JobStatus, progress int, notes string) error {
	updates := map[string]any{
		"progress": progress,
	}
	if status == domain.JobRunning {
		updates["status"] = domain.JobRunning
	}
	if notes != "" {
		updates["notes"] = notes
	}
	return db.WithContext(ctx).
		Model(&domain.LoraTrainingJob{}).
		Where("id = ? AND status IN ?", id, []domain.JobStatus{domain.JobQueued, domain.JobRunning}).
		Updates(updates).Error
}

// FinishJob attempts the terminal transition. It returns true only for the
// single caller whose conditional UPDATE moved the job out of a non-terminal
// state; everyone else gets false and must not re-apply side effects.
func FinishJob(ctx context.Context, db *gorm.DB, id string, status domain.JobStatus, progress int, notes string, finishedAt time.Time) (bool, error) {
	updates := map[string]any{
		"status":      status,
		"progress":    progress,
		"finished_at": finishedAt,
	}
	if notes != "" {
		updates["notes"] = notes
	}
	res := db.WithContext(ctx).
		Model(&domain.LoraTrainingJob{}).
		Where("id = ? AND status IN ?", id, []domain.JobStatus{domain.JobQueued, domain.JobRunning}).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
