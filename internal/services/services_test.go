package services

import (
	"context"
	"fmt"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-lora-backend/internal/domain"
	"github.com/tbourn/go-lora-backend/internal/provider"
	"github.com/tbourn/go-lora-backend/internal/repo"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	db.Exec("PRAGMA busy_timeout=5000;")
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB, u *domain.User) *domain.User {
	t.Helper()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.PlanTier == "" {
		u.PlanTier = domain.TierFree
	}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func seedModel(t *testing.T, db *gorm.DB, userID string, tier domain.PlanTier) *domain.LoraModel {
	t.Helper()
	m := &domain.LoraModel{
		ID:            uuid.NewString(),
		UserID:        userID,
		Name:          "test model",
		Status:        domain.ModelActive,
		PlanTier:      tier,
		LatestVersion: 1,
	}
	if err := db.Create(m).Error; err != nil {
		t.Fatalf("seed model: %v", err)
	}
	return m
}

func seedVideo(t *testing.T, db *gorm.DB, userID, modelID string) {
	t.Helper()
	v := &domain.LoraTrainingVideo{
		ID:        uuid.NewString(),
		UserID:    userID,
		ModelID:   modelID,
		URL:       "http://files.local/" + uuid.NewString() + ".mp4",
		MimeType:  "video/mp4",
		SizeBytes: 1024,
	}
	if err := db.Create(v).Error; err != nil {
		t.Fatalf("seed video: %v", err)
	}
}

// ----- Fake provider -----

type fakeAdapter struct {
	name string

	startCalls int
	startReq   provider.StartRequest
	startRes   provider.StartResult
	startErr   error

	statusCalls int
	statusRes   provider.StatusResult
	statusErr   error
}

func (f *fakeAdapter) Name() string {
	if f.name == "" {
		return "fake"
	}
	return f.name
}

func (f *fakeAdapter) StartTraining(ctx context.Context, req provider.StartRequest) (provider.StartResult, error) {
	f.startCalls++
	f.startReq = req
	if f.startErr != nil {
		return provider.StartResult{}, f.startErr
	}
	if f.startRes.ExternalJobID == "" {
		return provider.StartResult{ExternalJobID: "ext-" + req.JobID}, nil
	}
	return f.startRes, nil
}

func (f *fakeAdapter) FetchStatus(ctx context.Context, externalJobID, statusURL string) (provider.StatusResult, error) {
	f.statusCalls++
	if f.statusErr != nil {
		return provider.StatusResult{}, f.statusErr
	}
	return f.statusRes, nil
}
