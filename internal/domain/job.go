// Package domain defines the core persistence models for the application.
// This file holds the training-job model and its canonical status set.
package domain

import "time"

// JobStatus is the canonical training-job state. Vendor-specific vocabularies
// are normalized to this set by the provider adapters before anything is
// persisted.
type JobStatus string

const (
	JobQueued    JobStatus = "QUEUED"
	JobRunning   JobStatus = "RUNNING"
	JobSucceeded JobStatus = "SUCCEEDED"
	JobFailed    JobStatus = "FAILED"
)

// Terminal reports whether s is a final state. Terminal jobs must never be
// re-processed: the poller's conditional updates are keyed on the job still
// being non-terminal.
func (s JobStatus) Terminal() bool {
	return s == JobSucceeded || s == JobFailed
}

// LoraTrainingJob tracks one remote training run for a model. Created in
// QUEUED by the training orchestrator; transitions only forward via the job
// poller. Progress is clamped to [0,100] at the adapter boundary.
type LoraTrainingJob struct {
	ID            string    `json:"id"              gorm:"type:char(36);primaryKey"`
	UserID        string    `json:"user_id"         gorm:"type:char(36);not null;index"`
	ModelID       string    `json:"model_id"        gorm:"type:char(36);not null;index:idx_model_jobs"`
	Status        JobStatus `json:"status"          gorm:"type:varchar(16);not null;default:'QUEUED';index"`
	Progress      int       `json:"progress"        gorm:"not null;default:0;check:progress BETWEEN 0 AND 100"`
	Provider      string    `json:"provider"        gorm:"type:varchar(32);not null"`
	ExternalJobID string    `json:"external_job_id" gorm:"type:varchar(255);not null"`
	StatusURL     string    `json:"status_url,omitempty" gorm:"type:text"`
	Notes         string    `json:"notes,omitempty"      gorm:"type:text"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`

	// Model is the owning LoraModel; terminal success copies the artifact
	// URL onto it and bumps its version.
	Model LoraModel `json:"-" gorm:"foreignKey:ModelID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for LoraTrainingJob.
func (LoraTrainingJob) TableName() string { return "lora_training_jobs" }
