// Training and job HTTP handlers.
//
//   - POST /models/{id}/train  (submit a training run)
//   - GET  /jobs               (list, paginated)
//   - POST /jobs/{id}/sync     (re-sync one job with the provider)
//   - POST /jobs/sync          (re-sync all non-terminal jobs)
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-lora-backend/internal/domain"
)

// ListJobsResponse wraps a page of jobs and pagination information.
type ListJobsResponse struct {
	Jobs       []domain.LoraTrainingJob `json:"jobs"`
	Pagination Pagination               `json:"pagination"`
}

// SyncJobsResponse reports the outcome of a bulk re-sync.
type SyncJobsResponse struct {
	// Checked is how many non-terminal jobs were re-synced.
	Checked int `json:"checked"`
	// Finished is how many of them reached a terminal state.
	Finished int `json:"finished"`
}

// SubmitTraining godoc
// @ID          submitTraining
// @Summary     Submit a training run
// @Description Starts training for the model through the configured provider and returns the created job.
// @Tags        Training
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Model ID"
//
// @Success     201  {object}  domain.LoraTrainingJob
// @Failure     400  {object}  handlers.ErrorResponse  "Model has no videos"
// @Failure     403  {object}  handlers.ErrorResponse  "Train-run or AI-submit quota reached"
// @Failure     404  {object}  handlers.ErrorResponse  "Model not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Model archived"
// @Failure     502  {object}  handlers.ErrorResponse  "Provider rejected the run"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /models/{id}/train [post]
func (h *Handlers) SubmitTraining(c *gin.Context) {
	job, err := h.trainingSvc.Submit(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusCreated, job)
}

// ListJobs godoc
// @ID          listJobs
// @Summary     List training jobs (paginated)
// @Description Returns a page of the user's training jobs, newest first.
// @Tags        Jobs
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       page       query   int     false "Page number"     minimum(1) default(1)
// @Param       page_size  query   int     false "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object}  handlers.ListJobsResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /jobs [get]
func (h *Handlers) ListJobs(c *gin.Context) {
	page, pageSize := clampPagination(c)

	items, total, err := h.pollerSvc.ListJobs(c.Request.Context(), userID(c), page, pageSize)
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusOK, ListJobsResponse{
		Jobs:       items,
		Pagination: newPagination(page, pageSize, total),
	})
}

// SyncJob godoc
// @ID          syncJob
// @Summary     Re-sync one job
// @Description Fetches the provider's current view of the job and applies it. Terminal jobs are returned unchanged.
// @Tags        Jobs
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Job ID"
//
// @Success     200  {object}  domain.LoraTrainingJob
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Failure     502  {object}  handlers.ErrorResponse  "Provider status check failed"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /jobs/{id}/sync [post]
func (h *Handlers) SyncJob(c *gin.Context) {
	job, err := h.pollerSvc.Sync(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusOK, job)
}

// SyncJobs godoc
// @ID          syncJobs
// @Summary     Re-sync all non-terminal jobs
// @Description Re-syncs every QUEUED or RUNNING job of the user. Individual provider failures are skipped.
// @Tags        Jobs
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
//
// @Success     200  {object}  handlers.SyncJobsResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /jobs/sync [post]
func (h *Handlers) SyncJobs(c *gin.Context) {
	checked, finished, err := h.pollerSvc.SyncUserJobs(c.Request.Context(), userID(c))
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusOK, SyncJobsResponse{Checked: checked, Finished: finished})
}
