package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tbourn/go-lora-backend/internal/domain"
)

func newFalServer(t *testing.T, statusBody, resultBody map[string]any, resultCalls *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Key fal-key" {
			t.Errorf("Authorization = %q, want Key fal-key", auth)
		}
		switch r.URL.Path {
		case "/fal-ai/flux-lora-fast-training":
			_ = json.NewEncoder(w).Encode(map[string]any{"request_id": "req-7"})
		case "/fal-ai/flux-lora-fast-training/requests/req-7/status":
			_ = json.NewEncoder(w).Encode(statusBody)
		case "/fal-ai/flux-lora-fast-training/requests/req-7":
			if resultCalls != nil {
				atomic.AddInt32(resultCalls, 1)
			}
			_ = json.NewEncoder(w).Encode(resultBody)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
		}
	}))
}

func newTestFal(t *testing.T, baseURL string) *Fal {
	t.Helper()
	f, err := NewFal(FalConfig{
		Endpoint: "fal-ai/flux-lora-fast-training",
		APIKey:   "fal-key",
		BaseURL:  baseURL,
	}, 5*time.Second)
	if err != nil {
		t.Fatalf("NewFal: %v", err)
	}
	return f
}

func TestFalStartTraining(t *testing.T) {
	srv := newFalServer(t, nil, nil, nil)
	defer srv.Close()

	f := newTestFal(t, srv.URL)
	res, err := f.StartTraining(context.Background(), StartRequest{
		JobID:     "j1",
		VideoURLs: []string{"http://x/a.mp4"},
	})
	if err != nil {
		t.Fatalf("StartTraining: %v", err)
	}
	if res.ExternalJobID != "req-7" {
		t.Fatalf("ExternalJobID = %q, want req-7", res.ExternalJobID)
	}
	want := srv.URL + "/fal-ai/flux-lora-fast-training/requests/req-7/status"
	if res.StatusURL != want {
		t.Fatalf("StatusURL = %q, want %q", res.StatusURL, want)
	}
}

func TestFalStatusInProgressSkipsResultCall(t *testing.T) {
	var resultCalls int32
	srv := newFalServer(t, map[string]any{
		"status": "IN_PROGRESS",
		"logs":   []map[string]any{{"message": "step 120/500"}},
	}, nil, &resultCalls)
	defer srv.Close()

	f := newTestFal(t, srv.URL)
	st, err := f.FetchStatus(context.Background(), "req-7", "")
	if err != nil {
		t.Fatalf("FetchStatus: %v", err)
	}
	if st.Status != domain.JobRunning {
		t.Fatalf("Status = %s, want RUNNING", st.Status)
	}
	if st.Notes != "step 120/500" {
		t.Fatalf("Notes = %q", st.Notes)
	}
	if st.ArtifactURL != "" {
		t.Fatalf("ArtifactURL = %q, want empty before success", st.ArtifactURL)
	}
	if n := atomic.LoadInt32(&resultCalls); n != 0 {
		t.Fatalf("result endpoint called %d times for a non-terminal run", n)
	}
}

func TestFalStatusFailedSkipsResultCall(t *testing.T) {
	var resultCalls int32
	srv := newFalServer(t, map[string]any{"status": "ERROR"}, nil, &resultCalls)
	defer srv.Close()

	f := newTestFal(t, srv.URL)
	st, err := f.FetchStatus(context.Background(), "req-7", "")
	if err != nil {
		t.Fatalf("FetchStatus: %v", err)
	}
	if st.Status != domain.JobFailed {
		t.Fatalf("Status = %s, want FAILED", st.Status)
	}
	if n := atomic.LoadInt32(&resultCalls); n != 0 {
		t.Fatalf("result endpoint called %d times for a failed run", n)
	}
}

func TestFalStatusSucceededFetchesResult(t *testing.T) {
	var resultCalls int32
	srv := newFalServer(t,
		map[string]any{"status": "COMPLETED"},
		map[string]any{
			"result": map[string]any{
				"lora_url": "https://cdn.fal/loras/req-7.safetensors",
				"message":  "training finished",
			},
		}, &resultCalls)
	defer srv.Close()

	f := newTestFal(t, srv.URL)
	st, err := f.FetchStatus(context.Background(), "req-7", "")
	if err != nil {
		t.Fatalf("FetchStatus: %v", err)
	}
	if st.Status != domain.JobSucceeded || st.Progress != 100 {
		t.Fatalf("status = %s/%d, want SUCCEEDED/100", st.Status, st.Progress)
	}
	if st.ArtifactURL != "https://cdn.fal/loras/req-7.safetensors" {
		t.Fatalf("ArtifactURL = %q", st.ArtifactURL)
	}
	if st.Notes != "training finished" {
		t.Fatalf("Notes = %q", st.Notes)
	}
	if n := atomic.LoadInt32(&resultCalls); n != 1 {
		t.Fatalf("result endpoint called %d times, want 1", n)
	}
}

func TestFalStatusUsesStoredURL(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "IN_QUEUE"})
	}))
	defer srv.Close()

	f := newTestFal(t, "http://never-dialed")
	st, err := f.FetchStatus(context.Background(), "req-7", srv.URL+"/custom/requests/req-7/status")
	if err != nil {
		t.Fatalf("FetchStatus: %v", err)
	}
	if gotPath != "/custom/requests/req-7/status" {
		t.Fatalf("path = %q, stored status URL must win", gotPath)
	}
	if st.Status != domain.JobQueued {
		t.Fatalf("Status = %s, want QUEUED", st.Status)
	}
}

func TestFalSubmitWithoutRequestID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{})
	}))
	defer srv.Close()

	f := newTestFal(t, srv.URL)
	_, err := f.StartTraining(context.Background(), StartRequest{JobID: "j1", VideoURLs: []string{"v"}})
	var pe *Error
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want *provider.Error", err)
	}
}
