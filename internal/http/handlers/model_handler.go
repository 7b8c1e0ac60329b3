// Model HTTP handlers.
//
// This file exposes REST endpoints for LoRA model resources:
//   - POST   /models               (create, bounded by model-slot quota)
//   - GET    /models               (list, paginated)
//   - GET    /models/{id}          (fetch)
//   - POST   /models/{id}/archive  (archive)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses.
package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-lora-backend/internal/domain"
	"github.com/tbourn/go-lora-backend/internal/services"
	"github.com/tbourn/go-lora-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// TrainingService defines the model lifecycle and training submission
// operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type TrainingService interface {
	// CreateModel creates a new active model within the user's slot quota.
	CreateModel(ctx context.Context, userID, name string) (*domain.LoraModel, error)
	// GetModel fetches a model owned by the user.
	GetModel(ctx context.Context, userID, modelID string) (*domain.LoraModel, error)
	// ListModels returns a page of the user's models and the total count.
	ListModels(ctx context.Context, userID string, page, pageSize int) ([]domain.LoraModel, int64, error)
	// ArchiveModel transitions an active model to ARCHIVED.
	ArchiveModel(ctx context.Context, userID, modelID string) error
	// Submit starts a training run for the model.
	Submit(ctx context.Context, userID, modelID string) (*domain.LoraTrainingJob, error)
}

// UploadService defines the video ingest operation.
type UploadService interface {
	// Ingest validates, charges and stores one training video.
	Ingest(ctx context.Context, userID, modelID string, up services.Upload) (*services.IngestResult, error)
}

// PollerService defines job retrieval and provider re-sync operations.
type PollerService interface {
	// ListJobs returns a page of the user's jobs and the total count.
	ListJobs(ctx context.Context, userID string, page, pageSize int) ([]domain.LoraTrainingJob, int64, error)
	// Sync re-reads one job's state from the training provider.
	Sync(ctx context.Context, userID, jobID string) (*domain.LoraTrainingJob, error)
	// SyncUserJobs re-syncs every non-terminal job of the user.
	SyncUserJobs(ctx context.Context, userID string) (checked, finished int, err error)
}

// WalletService defines balance, statement and top-up confirmation
// operations.
type WalletService interface {
	// Statement returns the balance plus a page of ledger entries.
	Statement(ctx context.Context, userID string, page, pageSize int) (int64, []domain.WalletLedgerEntry, int64, error)
	// Credit applies a confirmed top-up, idempotent per external reference.
	Credit(ctx context.Context, userID string, amountCents int64, reason, externalRef, metadata string) error
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints for models, uploads, jobs and wallet.
// It depends on abstract service interfaces to keep transport concerns
// separate from business logic.
type Handlers struct {
	trainingSvc TrainingService
	uploadSvc   UploadService
	pollerSvc   PollerService
	walletSvc   WalletService
}

// New constructs a Handlers instance bound to the given services.
func New(training TrainingService, uploads UploadService, poller PollerService, wallet WalletService) *Handlers {
	return &Handlers{trainingSvc: training, uploadSvc: uploads, pollerSvc: poller, walletSvc: wallet}
}

// userID extracts the authenticated user id from Gin context (set by upstream
// middleware). If absent, it falls back to "X-User-ID" header (tests use it),
// and finally to "demo-user". It never touches c.Request if it's nil.
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
			return h
		}
	}
	return "demo-user"
}

//
// DTOs
//

// CreateModelRequest is the JSON payload for creating a model.
type CreateModelRequest struct {
	// Name labels the model (1-255 chars).
	Name string `json:"name" binding:"required,min=1,max=255" example:"studio ghibli style"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

func newPagination(page, pageSize int, total int64) Pagination {
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

// ListModelsResponse wraps a page of models and pagination information.
type ListModelsResponse struct {
	Models     []domain.LoraModel `json:"models"`
	Pagination Pagination         `json:"pagination"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

//
// Handlers
//

// CreateModel godoc
// @ID          createModel
// @Summary     Create a new LoRA model
// @Description Creates a model for the current user, bounded by the tier's model-slot quota.
// @Tags        Models
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       body       body    handlers.CreateModelRequest  true  "Create model payload"
//
// @Success     201  {object}  domain.LoraModel
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     403  {object}  handlers.ErrorResponse  "Model slot quota reached"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /models [post]
func (h *Handlers) CreateModel(c *gin.Context) {
	var req CreateModelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	m, err := h.trainingSvc.CreateModel(c.Request.Context(), userID(c), strings.TrimSpace(req.Name))
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusCreated, m)
}

// ListModels godoc
// @ID          listModels
// @Summary     List models (paginated)
// @Description Returns a page of the user's LoRA models.
// @Tags        Models
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       page       query   int     false "Page number"     minimum(1) default(1)
// @Param       page_size  query   int     false "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object}  handlers.ListModelsResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /models [get]
func (h *Handlers) ListModels(c *gin.Context) {
	page, pageSize := clampPagination(c)

	items, total, err := h.trainingSvc.ListModels(c.Request.Context(), userID(c), page, pageSize)
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusOK, ListModelsResponse{
		Models:     items,
		Pagination: newPagination(page, pageSize, total),
	})
}

// GetModel godoc
// @ID          getModel
// @Summary     Fetch one model
// @Description Returns a single model owned by the current user.
// @Tags        Models
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Model ID"
//
// @Success     200  {object}  domain.LoraModel
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /models/{id} [get]
func (h *Handlers) GetModel(c *gin.Context) {
	m, err := h.trainingSvc.GetModel(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusOK, m)
}

// ArchiveModel godoc
// @ID          archiveModel
// @Summary     Archive a model
// @Description Transitions an active model to ARCHIVED. Archived models reject new videos and training.
// @Tags        Models
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Model ID"
//
// @Success     200  {object}  domain.LoraModel
// @Failure     404  {object}  handlers.ErrorResponse  "Not found or already archived"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /models/{id}/archive [post]
func (h *Handlers) ArchiveModel(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)
	id := c.Param("id")

	if err := h.trainingSvc.ArchiveModel(ctx, uid, id); err != nil {
		failFromService(c, err)
		return
	}
	m, err := h.trainingSvc.GetModel(ctx, uid, id)
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusOK, m)
}
