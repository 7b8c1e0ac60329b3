// The external variant: a generic HTTP training vendor driven entirely by
// configuration (train URL, optional status URL template, bearer token).
// Field names in both directions are tolerant of the common vendor
// spellings.

package provider

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/tbourn/go-lora-backend/internal/domain"
	"github.com/tbourn/go-lora-backend/internal/sysutil"
)

const externalName = "external"

// jobIDPlaceholder is substituted into StatusURLTemplate.
const jobIDPlaceholder = "{jobId}"

// ExternalConfig parameterizes the generic HTTP vendor.
type ExternalConfig struct {
	// TrainURL receives the POST that starts a run. Required.
	TrainURL string
	// StatusURLTemplate is used when the vendor does not return a statusUrl;
	// {jobId} is replaced with the external job id. Optional.
	StatusURLTemplate string
	// Token is sent as a bearer token on every call. Required.
	Token string
}

// External talks to a configured generic training vendor.
type External struct {
	cfg    ExternalConfig
	client *http.Client
}

// NewExternal validates the configuration and returns the adapter. A missing
// train URL or token is a startup error, not a per-request one.
func NewExternal(cfg ExternalConfig, timeout time.Duration) (*External, error) {
	if strings.TrimSpace(cfg.TrainURL) == "" {
		return nil, errors.New("external provider: TRAIN_URL is required")
	}
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("external provider: API token is required")
	}
	return &External{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}, nil
}

// Name implements Adapter.
func (e *External) Name() string { return externalName }

// externalStartRequest is the wire shape of the start call.
type externalStartRequest struct {
	JobID    string   `json:"jobId"`
	ModelID  string   `json:"modelId"`
	UserID   string   `json:"userId"`
	Videos   []string `json:"videos"`
	PlanTier string   `json:"planTier"`
}

// externalStartResponse accepts the vendor's id under any of its common
// spellings.
type externalStartResponse struct {
	JobID        string `json:"jobId"`
	ID           string `json:"id"`
	PredictionID string `json:"prediction_id"`
	StatusURL    string `json:"statusUrl"`
}

// externalStatusResponse accepts status/progress/artifact/notes under their
// common alternate names.
type externalStatusResponse struct {
	Status      string   `json:"status"`
	State       string   `json:"state"`
	Progress    *float64 `json:"progress"`
	Percent     *float64 `json:"percent"`
	ArtifactURL string   `json:"artifactUrl"`
	AdapterURL  string   `json:"adapterUrl"`
	Notes       string   `json:"notes"`
	Message     string   `json:"message"`
}

// StartTraining implements Adapter.
func (e *External) StartTraining(ctx context.Context, req StartRequest) (StartResult, error) {
	body := externalStartRequest{
		JobID:    req.JobID,
		ModelID:  req.ModelID,
		UserID:   req.UserID,
		Videos:   req.VideoURLs,
		PlanTier: string(req.PlanTier),
	}
	var resp externalStartResponse
	if err := doJSON(ctx, e.client, externalName, "start", http.MethodPost, e.cfg.TrainURL, e.authHeaders(), body, &resp); err != nil {
		return StartResult{}, err
	}

	extID := sysutil.FirstNonEmpty(resp.JobID, resp.ID, resp.PredictionID)
	if extID == "" {
		return StartResult{}, &Error{Provider: externalName, Op: "start", StatusCode: http.StatusOK, Payload: "response carried no job id"}
	}
	return StartResult{ExternalJobID: extID, StatusURL: resp.StatusURL}, nil
}

// FetchStatus implements Adapter. The job's stored statusURL wins; otherwise
// the configured template is filled with the external id.
func (e *External) FetchStatus(ctx context.Context, externalJobID, statusURL string) (StatusResult, error) {
	url := statusURL
	if url == "" {
		if e.cfg.StatusURLTemplate == "" {
			return StatusResult{}, &Error{Provider: externalName, Op: "status", Err: errors.New("no status URL and no template configured")}
		}
		url = strings.ReplaceAll(e.cfg.StatusURLTemplate, jobIDPlaceholder, externalJobID)
	}

	var resp externalStatusResponse
	if err := doJSON(ctx, e.client, externalName, "status", http.MethodGet, url, e.authHeaders(), nil, &resp); err != nil {
		return StatusResult{}, err
	}

	progress := 0
	if resp.Progress != nil {
		progress = int(*resp.Progress)
	} else if resp.Percent != nil {
		progress = int(*resp.Percent)
	}

	status := NormalizeStatus(sysutil.FirstNonEmpty(resp.Status, resp.State))
	if status == domain.JobSucceeded {
		progress = 100
	}
	return StatusResult{
		Status:      status,
		Progress:    ClampProgress(progress),
		ArtifactURL: sysutil.FirstNonEmpty(resp.ArtifactURL, resp.AdapterURL),
		Notes:       sysutil.FirstNonEmpty(resp.Notes, resp.Message),
	}, nil
}

func (e *External) authHeaders() map[string]string {
	return map[string]string{"Authorization": "Bearer " + e.cfg.Token}
}
