// Package provider abstracts the external training vendors behind a single
// two-method Adapter capability: submit a training run, and fetch/normalize
// its status. Three variants exist: mvp (deterministic local simulation),
// external (generic HTTP vendor), and fal (two-phase queue API). New vendors
// are added as new variants, never as deeper branches inside shared code.
//
// Every adapter normalizes the vendor's native status vocabulary into the
// canonical domain.JobStatus set before anything crosses this package
// boundary, and clamps progress into [0,100]. Vendor/network failures
// surface as *Error with the raw payload attached for diagnostics.
package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tbourn/go-lora-backend/internal/domain"
)

// ErrCodeProvider is the stable machine-readable code attached to vendor
// failures when they reach the HTTP surface.
const ErrCodeProvider = "PROVIDER_ERROR"

// StartRequest carries everything a vendor needs to begin training.
type StartRequest struct {
	// JobID is the local job identifier, passed through so vendor callbacks
	// and metadata can be correlated back.
	JobID     string
	ModelID   string
	UserID    string
	VideoURLs []string
	PlanTier  domain.PlanTier
}

// StartResult is the vendor's acknowledgement of a submitted run.
type StartResult struct {
	ExternalJobID string
	// StatusURL is optional; when present it takes precedence over any
	// configured status URL template.
	StatusURL string
}

// StatusResult is one normalized observation of a remote run.
type StatusResult struct {
	Status   domain.JobStatus
	Progress int // clamped to [0,100]; 0 when the vendor reports nothing
	// ArtifactURL is set only on SUCCEEDED.
	ArtifactURL string
	Notes       string
}

// Adapter is the full capability set a training vendor must offer.
type Adapter interface {
	// Name returns the variant name persisted on job rows ("mvp", ...).
	Name() string
	// StartTraining submits a run and returns the vendor's job handle.
	StartTraining(ctx context.Context, req StartRequest) (StartResult, error)
	// FetchStatus re-reads the run's state. statusURL is the job's stored
	// status URL and may be empty for vendors that derive it from the id.
	FetchStatus(ctx context.Context, externalJobID, statusURL string) (StatusResult, error)
}

// Error wraps any vendor or transport failure with enough context to debug
// it: which variant, which call, the HTTP status (0 for transport errors)
// and the raw vendor payload.
type Error struct {
	Provider   string
	Op         string // "start", "status" or "result"
	StatusCode int
	Payload    string
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("provider %s: %s: %v", e.Provider, e.Op, e.Err)
	}
	return fmt.Sprintf("provider %s: %s: http %d: %s", e.Provider, e.Op, e.StatusCode, truncate(e.Payload, 256))
}

// Unwrap exposes the underlying transport error, if any.
func (e *Error) Unwrap() error { return e.Err }

// Config selects and parameterizes the adapter variant.
type Config struct {
	Variant     string // "mvp", "external" or "fal"
	HTTPTimeout time.Duration
	External    ExternalConfig
	Fal         FalConfig
}

// New constructs the configured adapter variant. Missing endpoints or keys
// fail here, at startup, rather than on the first request.
func New(cfg Config) (Adapter, error) {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Variant)) {
	case "", "mvp":
		return NewMVP(), nil
	case "external":
		return NewExternal(cfg.External, timeout)
	case "fal":
		return NewFal(cfg.Fal, timeout)
	default:
		return nil, fmt.Errorf("unknown training provider %q", cfg.Variant)
	}
}

// NormalizeStatus maps a vendor's native status word onto the canonical set.
// Unknown non-empty values normalize to RUNNING: the vendor clearly knows
// the job, it is just speaking a dialect we have not seen.
func NormalizeStatus(raw string) domain.JobStatus {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "QUEUED", "IN_QUEUE", "PENDING", "WAITING", "SUBMITTED", "CREATED":
		return domain.JobQueued
	case "RUNNING", "IN_PROGRESS", "PROCESSING", "STARTED", "TRAINING":
		return domain.JobRunning
	case "SUCCEEDED", "COMPLETED", "DONE", "SUCCESS", "OK", "FINISHED":
		return domain.JobSucceeded
	case "FAILED", "ERROR", "CANCELLED", "CANCELED", "TIMEOUT", "TIMED_OUT":
		return domain.JobFailed
	case "":
		return domain.JobQueued
	default:
		return domain.JobRunning
	}
}

// ClampProgress forces v into [0,100].
func ClampProgress(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
