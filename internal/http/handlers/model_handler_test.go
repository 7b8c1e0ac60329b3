package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/tbourn/go-lora-backend/internal/domain"
	"github.com/tbourn/go-lora-backend/internal/services"
)

func TestCreateModel_Created(t *testing.T) {
	training := &fakeTrainingSvc{model: &domain.LoraModel{ID: "m1", UserID: "u1", Name: "portrait"}}
	r := newRouter(New(training, &fakeUploadSvc{}, &fakePollerSvc{}, &fakeWalletSvc{}))

	w := doJSONReq(t, r, http.MethodPost, "/models", `{"name":"  portrait  "}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	if training.gotUser != "u1" || training.gotName != "portrait" {
		t.Fatalf("service args: user=%q name=%q", training.gotUser, training.gotName)
	}
	var m domain.LoraModel
	if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil || m.ID != "m1" {
		t.Fatalf("bad body: %s (err=%v)", w.Body.String(), err)
	}
}

func TestCreateModel_InvalidBody(t *testing.T) {
	r := newRouter(New(&fakeTrainingSvc{}, &fakeUploadSvc{}, &fakePollerSvc{}, &fakeWalletSvc{}))

	for _, body := range []string{``, `{}`, `{"name":""}`, `not json`} {
		w := doJSONReq(t, r, http.MethodPost, "/models", body)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("body %q: status = %d", body, w.Code)
		}
		if resp := decodeError(t, w); resp.Code != ErrCodeBadRequest {
			t.Fatalf("body %q: code = %q", body, resp.Code)
		}
	}
}

func TestCreateModel_SlotQuotaDenied(t *testing.T) {
	training := &fakeTrainingSvc{err: &services.QuotaError{
		Code:    services.CodeModelSlotLimit,
		Message: "all 5 model slots are in use",
		Current: 5,
		Limit:   5,
	}}
	r := newRouter(New(training, &fakeUploadSvc{}, &fakePollerSvc{}, &fakeWalletSvc{}))

	w := doJSONReq(t, r, http.MethodPost, "/models", `{"name":"overflow"}`)
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	resp := decodeError(t, w)
	if resp.Code != services.CodeModelSlotLimit {
		t.Fatalf("code = %q", resp.Code)
	}
	if resp.Details["current"] != 5 || resp.Details["limit"] != 5 {
		t.Fatalf("details = %v", resp.Details)
	}
}

func TestListModels_PageShape(t *testing.T) {
	training := &fakeTrainingSvc{
		models: []domain.LoraModel{{ID: "m1"}, {ID: "m2"}},
		total:  12,
	}
	r := newRouter(New(training, &fakeUploadSvc{}, &fakePollerSvc{}, &fakeWalletSvc{}))

	w := doJSONReq(t, r, http.MethodGet, "/models?page=2&page_size=2", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	if training.gotPage != 2 || training.gotSize != 2 {
		t.Fatalf("pagination args: %d/%d", training.gotPage, training.gotSize)
	}
	var resp ListModelsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Models) != 2 || resp.Pagination.Total != 12 || resp.Pagination.TotalPages != 6 || !resp.Pagination.HasNext {
		t.Fatalf("unexpected page: %+v", resp)
	}
}

func TestGetModel_NotFound(t *testing.T) {
	training := &fakeTrainingSvc{err: services.ErrModelNotFound}
	r := newRouter(New(training, &fakeUploadSvc{}, &fakePollerSvc{}, &fakeWalletSvc{}))

	w := doJSONReq(t, r, http.MethodGet, "/models/missing", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
	if resp := decodeError(t, w); resp.Code != ErrCodeNotFound {
		t.Fatalf("code = %q", resp.Code)
	}
	if training.gotModel != "missing" {
		t.Fatalf("model arg = %q", training.gotModel)
	}
}

func TestArchiveModel_ReturnsModel(t *testing.T) {
	training := &fakeTrainingSvc{model: &domain.LoraModel{ID: "m1", Status: domain.ModelArchived}}
	r := newRouter(New(training, &fakeUploadSvc{}, &fakePollerSvc{}, &fakeWalletSvc{}))

	w := doJSONReq(t, r, http.MethodPost, "/models/m1/archive", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	var m domain.LoraModel
	if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil || m.Status != domain.ModelArchived {
		t.Fatalf("bad body: %s (err=%v)", w.Body.String(), err)
	}
}

func TestArchiveModel_AlreadyArchived(t *testing.T) {
	training := &fakeTrainingSvc{err: services.ErrModelArchived}
	r := newRouter(New(training, &fakeUploadSvc{}, &fakePollerSvc{}, &fakeWalletSvc{}))

	w := doJSONReq(t, r, http.MethodPost, "/models/m1/archive", "")
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d", w.Code)
	}
	if resp := decodeError(t, w); resp.Code != ErrCodeModelArchived {
		t.Fatalf("code = %q", resp.Code)
	}
}
