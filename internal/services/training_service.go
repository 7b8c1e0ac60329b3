// TrainingService owns the model lifecycle and the submission of training
// jobs to the configured provider. Submission order matters: all quota
// claims happen before the provider call, and the job row is created only
// after the provider accepts the run. A rejected StartTraining therefore
// never leaves a job behind, though the claimed train-run and AI-submit
// slots stay consumed.

package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-lora-backend/internal/domain"
	"github.com/tbourn/go-lora-backend/internal/events"
	"github.com/tbourn/go-lora-backend/internal/plans"
	"github.com/tbourn/go-lora-backend/internal/provider"
	"github.com/tbourn/go-lora-backend/internal/repo"
)

// TrainingService creates and archives models and submits training jobs.
type TrainingService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Provider is the configured training vendor adapter.
	Provider provider.Adapter
	// Quota performs the advisory pre-checks.
	Quota *QuotaService
	// Events publishes training lifecycle events; nil disables publishing.
	Events *events.Publisher
}

// NewTrainingService constructs a TrainingService.
func NewTrainingService(db *gorm.DB, p provider.Adapter, quota *QuotaService, ev *events.Publisher) *TrainingService {
	return &TrainingService{DB: db, Provider: p, Quota: quota, Events: ev}
}

// CreateModel creates a new active model, bounded by the tier's model-slot
// quota.
func (s *TrainingService) CreateModel(ctx context.Context, userID, name string) (*domain.LoraModel, error) {
	user, err := repo.GetOrCreateUser(ctx, s.DB, userID)
	if err != nil {
		return nil, err
	}
	if err := s.Quota.CheckModelSlots(ctx, userID, user.PlanTier); err != nil {
		return nil, err
	}
	return repo.CreateModel(ctx, s.DB, userID, name, user.PlanTier)
}

// GetModel fetches a model owned by the user.
func (s *TrainingService) GetModel(ctx context.Context, userID, modelID string) (*domain.LoraModel, error) {
	m, err := repo.GetModel(ctx, s.DB, modelID, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrModelNotFound
	}
	return m, err
}

// ListModels returns a page of the user's models plus the total count.
func (s *TrainingService) ListModels(ctx context.Context, userID string, page, pageSize int) ([]domain.LoraModel, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	total, err := repo.CountModels(ctx, s.DB, userID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.LoraModel{}, 0, nil
	}
	items, err := repo.ListModelsPage(ctx, s.DB, userID, (page-1)*pageSize, pageSize)
	return items, total, err
}

// ArchiveModel transitions an active model to ARCHIVED. Archived models
// reject new videos and training submissions.
func (s *TrainingService) ArchiveModel(ctx context.Context, userID, modelID string) error {
	err := repo.ArchiveModel(ctx, s.DB, modelID, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrModelNotFound
	}
	return err
}

// Submit starts a training run for the model. The mvp provider may report
// completion synchronously; callers treat a job returned in any state as a
// valid submission outcome.
func (s *TrainingService) Submit(ctx context.Context, userID, modelID string) (*domain.LoraTrainingJob, error) {
	user, err := repo.GetOrCreateUser(ctx, s.DB, userID)
	if err != nil {
		return nil, err
	}
	limits := plans.For(user.PlanTier)

	model, err := repo.GetModel(ctx, s.DB, modelID, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrModelNotFound
	}
	if err != nil {
		return nil, err
	}
	if model.Status == domain.ModelArchived {
		return nil, ErrModelArchived
	}
	if err := s.Quota.CheckTrainRuns(model, user.PlanTier); err != nil {
		return nil, err
	}

	videos, err := repo.ListModelVideoURLs(ctx, s.DB, modelID)
	if err != nil {
		return nil, err
	}
	if len(videos) == 0 {
		return nil, ErrNoVideos
	}

	// FREE tier claims one bounded AI-submit slot before any provider work.
	if user.PlanTier == domain.TierFree {
		ok, err := repo.ClaimAISubmit(ctx, s.DB, userID, limits.AISubmits)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, &QuotaError{
				Code:    CodeAISubmitLimit,
				Message: quotaPrinter.Sprintf("all %d training submissions used", limits.AISubmits),
				Current: limits.AISubmits,
				Limit:   limits.AISubmits,
			}
		}
	}

	// The train-run slot is claimed with a conditional increment so two
	// concurrent submissions cannot both use the last run.
	ok, err := repo.IncrementTrainRuns(ctx, s.DB, modelID, limits.TrainRunsPerModel)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &QuotaError{
			Code:    CodeTrainRunLimit,
			Message: "training run claimed by a concurrent submission",
			Current: int64(model.TrainRuns),
			Limit:   limits.TrainRunsPerModel,
		}
	}

	jobID := uuid.NewString()
	start, err := s.Provider.StartTraining(ctx, provider.StartRequest{
		JobID:     jobID,
		ModelID:   modelID,
		UserID:    userID,
		VideoURLs: videos,
		PlanTier:  user.PlanTier,
	})
	if err != nil {
		// No job row exists for a rejected start; the claimed run slot
		// stays consumed.
		log.Error().Err(err).Str("model_id", modelID).Str("provider", s.Provider.Name()).Msg("training start rejected")
		return nil, err
	}

	job, err := repo.CreateJob(ctx, s.DB, &domain.LoraTrainingJob{
		ID:            jobID,
		UserID:        userID,
		ModelID:       modelID,
		Status:        domain.JobQueued,
		Provider:      s.Provider.Name(),
		ExternalJobID: start.ExternalJobID,
		StatusURL:     start.StatusURL,
	})
	if err != nil {
		return nil, err
	}

	trainingSubmitted.Inc()
	s.Events.Publish(ctx, events.TrainingStarted, userID, map[string]any{
		"job_id":   job.ID,
		"model_id": modelID,
		"provider": s.Provider.Name(),
	})
	return job, nil
}
