// Package domain defines the persistence models for users, LoRA models,
// training videos, training jobs, and the wallet ledger. These types are
// mapped with GORM and form the core data layer of the application.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// PlanTier names a subscription level. The effective tier is resolved by an
// external plan/subscription system and mirrored onto the user row; limits
// for each tier live in the plans package.
type PlanTier string

// Known plan tiers. Unknown values resolve to the FREE limits (fail safe).
const (
	TierFree    PlanTier = "FREE"
	TierCreator PlanTier = "CREATOR"
	TierPro     PlanTier = "PRO"
	TierStudio  PlanTier = "STUDIO"
)

// ModelStatus is the lifecycle state of a LoraModel.
type ModelStatus string

const (
	// ModelActive accepts new videos and training submissions.
	ModelActive ModelStatus = "ACTIVE"
	// ModelArchived rejects new videos and training submissions.
	ModelArchived ModelStatus = "ARCHIVED"
)

// User carries the metering state for one account. Identity and sessions are
// owned by an external provider; this row only holds the wallet balance and
// usage counters consumed by the quota and ledger machinery.
//
// Invariants:
//   - WalletBalanceCents and all usage counters never go negative. Every
//     mutation goes through a conditional UPDATE in the repo layer; no other
//     code path writes these fields.
//   - MonthlyUploadUsedBytes is scoped to the calendar month anchored by
//     UsagePeriodStart and is reset when the window rolls forward.
type User struct {
	ID                     string    `json:"id"                        gorm:"type:char(36);primaryKey"`
	PlanTier               PlanTier  `json:"plan_tier"                 gorm:"type:varchar(16);not null;default:'FREE'"`
	WalletBalanceCents     int64     `json:"wallet_balance_cents"      gorm:"not null;default:0;check:wallet_balance_cents >= 0"`
	StorageUsedBytes       int64     `json:"storage_used_bytes"        gorm:"not null;default:0;check:storage_used_bytes >= 0"`
	MonthlyUploadUsedBytes int64     `json:"monthly_upload_used_bytes" gorm:"not null;default:0;check:monthly_upload_used_bytes >= 0"`
	FreeVideoUploadsUsed   int       `json:"free_video_uploads_used"   gorm:"not null;default:0;check:free_video_uploads_used >= 0"`
	AISubmitsUsed          int       `json:"ai_submits_used"           gorm:"not null;default:0;check:ai_submits_used >= 0"`
	UsagePeriodStart       time.Time `json:"usage_period_start"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// LoraModel is a user-owned style-adaptation model. Counters on this row are
// mutated only by the upload ingest (VideoCount), the training orchestrator
// (TrainRuns), and the job poller (LatestVersion, AdapterURL).
type LoraModel struct {
	ID            string         `json:"id"             gorm:"type:char(36);primaryKey"`
	UserID        string         `json:"user_id"        gorm:"type:char(36);not null;index:idx_user_models"`
	Name          string         `json:"name"           gorm:"type:varchar(255);not null"`
	Status        ModelStatus    `json:"status"         gorm:"type:varchar(16);not null;default:'ACTIVE'"`
	PlanTier      PlanTier       `json:"plan_tier"      gorm:"type:varchar(16);not null"` // tier at creation time
	VideoCount    int            `json:"video_count"    gorm:"not null;default:0;check:video_count >= 0"`
	LatestVersion int            `json:"latest_version" gorm:"not null;default:1;check:latest_version >= 1"`
	TrainRuns     int            `json:"train_runs"     gorm:"not null;default:0;check:train_runs >= 0"`
	AdapterURL    string         `json:"adapter_url,omitempty" gorm:"type:text"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName returns the database table name for LoraModel.
func (LoraModel) TableName() string { return "lora_models" }

// LoraTrainingVideo records one successfully ingested training clip. Rows are
// created exactly once per successful upload and never mutated afterwards;
// training submissions reference them implicitly via the owning model.
type LoraTrainingVideo struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	UserID    string    `json:"user_id"    gorm:"type:char(36);not null;index"`
	ModelID   string    `json:"model_id"   gorm:"type:char(36);not null;index:idx_model_videos"`
	URL       string    `json:"url"        gorm:"type:text;not null"`
	MimeType  string    `json:"mime_type"  gorm:"type:varchar(128);not null"`
	SizeBytes int64     `json:"size_bytes" gorm:"not null;check:size_bytes >= 1"`
	CreatedAt time.Time `json:"created_at"`

	// Model is the owning LoraModel.
	Model LoraModel `json:"-" gorm:"foreignKey:ModelID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for LoraTrainingVideo.
func (LoraTrainingVideo) TableName() string { return "lora_training_videos" }
