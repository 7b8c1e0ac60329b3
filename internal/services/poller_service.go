// PollerService re-reads training job state from the provider on demand.
// Polling is caller-driven; there is no timer loop. Sync is safe to invoke
// concurrently on the same job: the terminal transition and its model side
// effects are guarded by a conditional UPDATE keyed on the job still being
// non-terminal, so exactly one caller applies them.

package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-lora-backend/internal/domain"
	"github.com/tbourn/go-lora-backend/internal/events"
	"github.com/tbourn/go-lora-backend/internal/provider"
	"github.com/tbourn/go-lora-backend/internal/repo"
)

// PollerService syncs job state with the training provider.
type PollerService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Provider is the configured training vendor adapter.
	Provider provider.Adapter
	// Events publishes training lifecycle events; nil disables publishing.
	Events *events.Publisher
}

// NewPollerService constructs a PollerService.
func NewPollerService(db *gorm.DB, p provider.Adapter, ev *events.Publisher) *PollerService {
	return &PollerService{DB: db, Provider: p, Events: ev}
}

// Sync fetches the provider's view of one job and applies it. Terminal jobs
// are returned unchanged. A provider failure leaves the last known state
// untouched so a later Sync can retry.
func (s *PollerService) Sync(ctx context.Context, userID, jobID string) (*domain.LoraTrainingJob, error) {
	job, err := repo.GetJob(ctx, s.DB, jobID, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	if job.Status.Terminal() {
		return job, nil
	}

	st, err := s.Provider.FetchStatus(ctx, job.ExternalJobID, job.StatusURL)
	if err != nil {
		log.Warn().Err(err).Str("job_id", jobID).Msg("status check failed, state unchanged")
		return nil, err
	}

	if !st.Status.Terminal() {
		if err := repo.UpdateJobProgress(ctx, s.DB, jobID, st.Status, st.Progress, st.Notes); err != nil {
			return nil, err
		}
		return repo.GetJob(ctx, s.DB, jobID, userID)
	}

	if err := s.finish(ctx, job, st); err != nil {
		return nil, err
	}
	return repo.GetJob(ctx, s.DB, jobID, userID)
}

// finish applies a terminal observation. The FinishJob conditional UPDATE
// picks a single winner; only the winner touches the model row or emits
// the finished event.
func (s *PollerService) finish(ctx context.Context, job *domain.LoraTrainingJob, st provider.StatusResult) error {
	now := time.Now().UTC()
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		won, err := repo.FinishJob(ctx, tx, job.ID, st.Status, st.Progress, st.Notes, now)
		if err != nil {
			return err
		}
		if !won {
			// A concurrent Sync already finished the job.
			return nil
		}
		if st.Status == domain.JobSucceeded {
			if err := repo.ApplyTrainingSuccess(ctx, tx, job.ModelID, st.ArtifactURL); err != nil {
				return err
			}
		}

		trainingFinished.WithLabelValues(string(st.Status)).Inc()
		s.Events.Publish(ctx, events.TrainingFinished, job.UserID, map[string]any{
			"job_id":   job.ID,
			"model_id": job.ModelID,
			"status":   string(st.Status),
		})
		return nil
	})
}

// GetJob fetches one job owned by the user.
func (s *PollerService) GetJob(ctx context.Context, userID, jobID string) (*domain.LoraTrainingJob, error) {
	j, err := repo.GetJob(ctx, s.DB, jobID, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrJobNotFound
	}
	return j, err
}

// ListJobs returns a page of the user's jobs plus the total count.
func (s *PollerService) ListJobs(ctx context.Context, userID string, page, pageSize int) ([]domain.LoraTrainingJob, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	total, err := repo.CountJobs(ctx, s.DB, userID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.LoraTrainingJob{}, 0, nil
	}
	items, err := repo.ListJobsPage(ctx, s.DB, userID, (page-1)*pageSize, pageSize)
	return items, total, err
}

// SyncUserJobs re-syncs every non-terminal job of the user and reports how
// many were checked and how many reached a terminal state. Individual
// provider failures are skipped so one flaky job does not block the rest.
func (s *PollerService) SyncUserJobs(ctx context.Context, userID string) (checked, finished int, err error) {
	jobs, err := repo.ListNonTerminalJobs(ctx, s.DB, userID)
	if err != nil {
		return 0, 0, err
	}
	for i := range jobs {
		updated, err := s.Sync(ctx, userID, jobs[i].ID)
		if err != nil {
			continue
		}
		checked++
		if updated.Status.Terminal() {
			finished++
		}
	}
	return checked, finished, nil
}
