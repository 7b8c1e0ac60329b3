package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/go-lora-backend/internal/domain"
	"github.com/tbourn/go-lora-backend/internal/plans"
	"github.com/tbourn/go-lora-backend/internal/provider"
)

func TestCreateModelBoundedBySlots(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewTrainingService(db, &fakeAdapter{}, NewQuotaService(db), nil)
	free := plans.For(domain.TierFree)

	u := seedUser(t, db, &domain.User{UsagePeriodStart: time.Now().UTC()})
	for i := int64(0); i < free.ModelSlots; i++ {
		if _, err := svc.CreateModel(ctx, u.ID, "model"); err != nil {
			t.Fatalf("create %d: %v", i+1, err)
		}
	}

	_, err := svc.CreateModel(ctx, u.ID, "one too many")
	var qe *QuotaError
	if !errors.As(err, &qe) || qe.Code != CodeModelSlotLimit {
		t.Fatalf("error = %v, want %s", err, CodeModelSlotLimit)
	}
}

func TestSubmitRejectsEmptyModel(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	ad := &fakeAdapter{}
	svc := NewTrainingService(db, ad, NewQuotaService(db), nil)

	u := seedUser(t, db, &domain.User{UsagePeriodStart: time.Now().UTC()})
	m := seedModel(t, db, u.ID, domain.TierFree)

	if _, err := svc.Submit(ctx, u.ID, m.ID); !errors.Is(err, ErrNoVideos) {
		t.Fatalf("error = %v, want ErrNoVideos", err)
	}
	if ad.startCalls != 0 {
		t.Fatalf("provider called %d times for an empty model", ad.startCalls)
	}
}

func TestSubmitCreatesQueuedJob(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	ad := &fakeAdapter{name: "mvp", startRes: provider.StartResult{ExternalJobID: "ext-1", StatusURL: "http://p/status/ext-1"}}
	svc := NewTrainingService(db, ad, NewQuotaService(db), nil)

	u := seedUser(t, db, &domain.User{UsagePeriodStart: time.Now().UTC()})
	m := seedModel(t, db, u.ID, domain.TierFree)
	seedVideo(t, db, u.ID, m.ID)
	seedVideo(t, db, u.ID, m.ID)

	job, err := svc.Submit(ctx, u.ID, m.ID)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if job.Status != domain.JobQueued {
		t.Fatalf("status = %s, want QUEUED", job.Status)
	}
	if job.Provider != "mvp" || job.ExternalJobID != "ext-1" || job.StatusURL != "http://p/status/ext-1" {
		t.Fatalf("job = %+v", job)
	}
	if len(ad.startReq.VideoURLs) != 2 {
		t.Fatalf("provider received %d videos", len(ad.startReq.VideoURLs))
	}

	updated, _ := svc.GetModel(ctx, u.ID, m.ID)
	if updated.TrainRuns != 1 {
		t.Fatalf("train runs = %d, want 1", updated.TrainRuns)
	}
}

func TestSubmitArchivedModel(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewTrainingService(db, &fakeAdapter{}, NewQuotaService(db), nil)

	u := seedUser(t, db, &domain.User{UsagePeriodStart: time.Now().UTC()})
	m := seedModel(t, db, u.ID, domain.TierFree)
	seedVideo(t, db, u.ID, m.ID)
	if err := svc.ArchiveModel(ctx, u.ID, m.ID); err != nil {
		t.Fatalf("archive: %v", err)
	}

	if _, err := svc.Submit(ctx, u.ID, m.ID); !errors.Is(err, ErrModelArchived) {
		t.Fatalf("error = %v, want ErrModelArchived", err)
	}
}

func TestSubmitTrainRunCap(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	ad := &fakeAdapter{}
	svc := NewTrainingService(db, ad, NewQuotaService(db), nil)

	// CREATOR allows 5 runs per model and is not AI-submit bounded for this
	// volume.
	u := seedUser(t, db, &domain.User{PlanTier: domain.TierCreator, UsagePeriodStart: time.Now().UTC()})
	m := seedModel(t, db, u.ID, domain.TierCreator)
	seedVideo(t, db, u.ID, m.ID)

	limit := plans.For(domain.TierCreator).TrainRunsPerModel
	for i := int64(0); i < limit; i++ {
		if _, err := svc.Submit(ctx, u.ID, m.ID); err != nil {
			t.Fatalf("submit %d: %v", i+1, err)
		}
	}

	_, err := svc.Submit(ctx, u.ID, m.ID)
	var qe *QuotaError
	if !errors.As(err, &qe) || qe.Code != CodeTrainRunLimit {
		t.Fatalf("error = %v, want %s", err, CodeTrainRunLimit)
	}
}

func TestSubmitFreeTierAISubmitCap(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewTrainingService(db, &fakeAdapter{}, NewQuotaService(db), nil)

	// FREE allows one submission; burn it on a first model, then a second
	// model still has a free train-run slot but the user does not.
	u := seedUser(t, db, &domain.User{UsagePeriodStart: time.Now().UTC()})
	m1 := seedModel(t, db, u.ID, domain.TierFree)
	seedVideo(t, db, u.ID, m1.ID)
	if _, err := svc.Submit(ctx, u.ID, m1.ID); err != nil {
		t.Fatalf("first submit: %v", err)
	}

	m2 := seedModel(t, db, u.ID, domain.TierFree)
	seedVideo(t, db, u.ID, m2.ID)
	_, err := svc.Submit(ctx, u.ID, m2.ID)
	var qe *QuotaError
	if !errors.As(err, &qe) || qe.Code != CodeAISubmitLimit {
		t.Fatalf("error = %v, want %s", err, CodeAISubmitLimit)
	}
}

func TestSubmitProviderFailureCreatesNoJob(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	ad := &fakeAdapter{startErr: &provider.Error{Provider: "external", Op: "start", StatusCode: 502, Payload: "bad gateway"}}
	svc := NewTrainingService(db, ad, NewQuotaService(db), nil)

	u := seedUser(t, db, &domain.User{PlanTier: domain.TierCreator, UsagePeriodStart: time.Now().UTC()})
	m := seedModel(t, db, u.ID, domain.TierCreator)
	seedVideo(t, db, u.ID, m.ID)

	_, err := svc.Submit(ctx, u.ID, m.ID)
	var pe *provider.Error
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want *provider.Error", err)
	}

	var count int64
	db.Model(&domain.LoraTrainingJob{}).Count(&count)
	if count != 0 {
		t.Fatalf("job rows = %d after a rejected start, want 0", count)
	}
}
