// The mvp variant: a deterministic local simulation used for development
// and the default deployment mode. No network calls.

package provider

import (
	"context"
	"fmt"

	"github.com/tbourn/go-lora-backend/internal/domain"
)

// mvpName is the variant name persisted on job rows.
const mvpName = "mvp"

// MVP simulates an instantly finished training run. StartTraining hands back
// a synthetic vendor id and FetchStatus immediately reports SUCCEEDED with a
// deterministic artifact URL, so callers exercise the full submit → sync →
// apply path without any vendor dependency. Callers must treat this
// synchronous completion as a valid outcome of a normal submission.
type MVP struct{}

// NewMVP returns the simulation adapter. It has no configuration and can
// never fail to construct.
func NewMVP() *MVP { return &MVP{} }

// Name implements Adapter.
func (m *MVP) Name() string { return mvpName }

// StartTraining implements Adapter with a synthetic, derivable vendor id.
func (m *MVP) StartTraining(_ context.Context, req StartRequest) (StartResult, error) {
	if len(req.VideoURLs) == 0 {
		return StartResult{}, &Error{Provider: mvpName, Op: "start", Err: fmt.Errorf("no training videos")}
	}
	return StartResult{ExternalJobID: "mvp-" + req.JobID}, nil
}

// FetchStatus implements Adapter: the simulated run is always finished.
func (m *MVP) FetchStatus(_ context.Context, externalJobID, _ string) (StatusResult, error) {
	return StatusResult{
		Status:      domain.JobSucceeded,
		Progress:    100,
		ArtifactURL: fmt.Sprintf("local://lora-artifacts/%s/adapter.safetensors", externalJobID),
		Notes:       "simulated training complete",
	}, nil
}
