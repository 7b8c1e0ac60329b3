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

const (
	falName = "fal"

	// falQueueBase is the managed queue front for fal endpoints.
	falQueueBase = "https://queue.fal.run"
)

// FalConfig parameterizes the fal.ai queue adapter.
type FalConfig struct {
	// Endpoint is the fal model path, e.g. "fal-ai/flux-lora-fast-training".
	// Required.
	Endpoint string
	// APIKey is sent as "Authorization: Key <key>". Required.
	APIKey string
	// BaseURL overrides the queue base, used by tests.
	BaseURL string
}

// Fal submits training runs to a fal.ai queue endpoint and polls them with
// the two-phase status-then-result protocol the queue exposes.
type Fal struct {
	cfg    FalConfig
	client *http.Client
}

// NewFal validates the configuration and returns the adapter.
func NewFal(cfg FalConfig, timeout time.Duration) (*Fal, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, errors.New("fal provider: endpoint is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("fal provider: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = falQueueBase
	}
	return &Fal{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}, nil
}

// Name implements Adapter.
func (f *Fal) Name() string { return falName }

type falSubmitRequest struct {
	Input struct {
		Videos   []string `json:"videos"`
		UserID   string   `json:"user_id"`
		ModelID  string   `json:"model_id"`
		PlanTier string   `json:"plan_tier"`
	} `json:"input"`
	Metadata struct {
		LocalJobID string `json:"local_job_id"`
	} `json:"metadata"`
}

type falSubmitResponse struct {
	RequestID string `json:"request_id"`
	StatusURL string `json:"status_url"`
}

type falStatusResponse struct {
	Status  string `json:"status"`
	Percent *int   `json:"percent"`
	Logs    []struct {
		Message string `json:"message"`
	} `json:"logs"`
}

type falResultResponse struct {
	LoraURL string `json:"lora_url"`
	Message string `json:"message"`
	Result  struct {
		LoraURL    string `json:"lora_url"`
		AdapterURL string `json:"adapterUrl"`
		Message    string `json:"message"`
	} `json:"result"`
}

// StartTraining implements Adapter.
func (f *Fal) StartTraining(ctx context.Context, req StartRequest) (StartResult, error) {
	url := f.cfg.BaseURL + "/" + strings.Trim(f.cfg.Endpoint, "/")
	var body falSubmitRequest
	body.Input.Videos = req.VideoURLs
	body.Input.UserID = req.UserID
	body.Input.ModelID = req.ModelID
	body.Input.PlanTier = string(req.PlanTier)
	body.Metadata.LocalJobID = req.JobID

	var resp falSubmitResponse
	if err := doJSON(ctx, f.client, falName, "submit", http.MethodPost, url, f.authHeaders(), body, &resp); err != nil {
		return StartResult{}, err
	}
	if resp.RequestID == "" {
		return StartResult{}, &Error{Provider: falName, Op: "submit", StatusCode: http.StatusOK, Payload: "response carried no request_id"}
	}

	statusURL := resp.StatusURL
	if statusURL == "" {
		statusURL = f.statusURL(resp.RequestID)
	}
	return StartResult{ExternalJobID: resp.RequestID, StatusURL: statusURL}, nil
}

// FetchStatus implements Adapter. The queue's status endpoint never carries
// the artifact, so a succeeded run costs a second call to the result
// endpoint; anything short of success stops after the first.
func (f *Fal) FetchStatus(ctx context.Context, externalJobID, statusURL string) (StatusResult, error) {
	url := statusURL
	if url == "" {
		url = f.statusURL(externalJobID)
	}

	var st falStatusResponse
	if err := doJSON(ctx, f.client, falName, "status", http.MethodGet, url, f.authHeaders(), nil, &st); err != nil {
		return StatusResult{}, err
	}

	status := NormalizeStatus(st.Status)
	progress := 0
	if st.Percent != nil {
		progress = *st.Percent
	}
	notes := ""
	if n := len(st.Logs); n > 0 {
		notes = st.Logs[n-1].Message
	}

	if status != domain.JobSucceeded {
		return StatusResult{
			Status:   status,
			Progress: ClampProgress(progress),
			Notes:    notes,
		}, nil
	}

	var res falResultResponse
	if err := doJSON(ctx, f.client, falName, "result", http.MethodGet, resultURL(url), f.authHeaders(), nil, &res); err != nil {
		return StatusResult{}, err
	}
	return StatusResult{
		Status:      domain.JobSucceeded,
		Progress:    100,
		ArtifactURL: sysutil.FirstNonEmpty(res.LoraURL, res.Result.LoraURL, res.Result.AdapterURL),
		Notes:       sysutil.FirstNonEmpty(res.Message, res.Result.Message, notes),
	}, nil
}

func (f *Fal) statusURL(requestID string) string {
	return f.cfg.BaseURL + "/" + strings.Trim(f.cfg.Endpoint, "/") + "/requests/" + requestID + "/status"
}

// resultURL strips the trailing /status segment from a queue status URL.
func resultURL(statusURL string) string {
	return strings.TrimSuffix(statusURL, "/status")
}

func (f *Fal) authHeaders() map[string]string {
	return map[string]string{"Authorization": "Key " + f.cfg.APIKey}
}
