package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/tbourn/go-lora-backend/internal/domain"
	"github.com/tbourn/go-lora-backend/internal/services"
)

func TestGetWallet_Statement(t *testing.T) {
	wallet := &fakeWalletSvc{
		balance: 150,
		entries: []domain.WalletLedgerEntry{
			{ID: "l2", AmountCents: -50, Reason: domain.LedgerReasonUploadUsage},
			{ID: "l1", AmountCents: 200, Reason: domain.LedgerReasonTopup},
		},
		total: 2,
	}
	r := newRouter(New(&fakeTrainingSvc{}, &fakeUploadSvc{}, &fakePollerSvc{}, wallet))

	w := doJSONReq(t, r, http.MethodGet, "/wallet", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	if wallet.gotUser != "u1" {
		t.Fatalf("user arg = %q", wallet.gotUser)
	}
	var resp WalletResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.BalanceCents != 150 || len(resp.Entries) != 2 || resp.Pagination.Total != 2 {
		t.Fatalf("unexpected statement: %+v", resp)
	}
}

func TestConfirmTopup_CreditsAndReturnsStatement(t *testing.T) {
	wallet := &fakeWalletSvc{balance: 1000, total: 1}
	r := newRouter(New(&fakeTrainingSvc{}, &fakeUploadSvc{}, &fakePollerSvc{}, wallet))

	w := doJSONReq(t, r, http.MethodPost, "/wallet/topup/confirm",
		`{"amount_cents":1000,"external_ref":"pay_9f3b2c"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	if wallet.gotAmount != 1000 || wallet.gotRef != "pay_9f3b2c" || wallet.gotReason != domain.LedgerReasonTopup {
		t.Fatalf("credit args: amount=%d ref=%q reason=%q", wallet.gotAmount, wallet.gotRef, wallet.gotReason)
	}
	var resp WalletResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp.BalanceCents != 1000 {
		t.Fatalf("bad body: %s (err=%v)", w.Body.String(), err)
	}
}

func TestConfirmTopup_InvalidBody(t *testing.T) {
	r := newRouter(New(&fakeTrainingSvc{}, &fakeUploadSvc{}, &fakePollerSvc{}, &fakeWalletSvc{}))

	cases := []string{
		``,
		`{}`,
		`{"amount_cents":0,"external_ref":"pay_1"}`,
		`{"amount_cents":-5,"external_ref":"pay_1"}`,
		`{"amount_cents":100}`,
	}
	for _, body := range cases {
		w := doJSONReq(t, r, http.MethodPost, "/wallet/topup/confirm", body)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("body %q: status = %d", body, w.Code)
		}
	}
}

func TestConfirmTopup_ServiceRejectsRef(t *testing.T) {
	wallet := &fakeWalletSvc{err: services.ErrMissingRef}
	r := newRouter(New(&fakeTrainingSvc{}, &fakeUploadSvc{}, &fakePollerSvc{}, wallet))

	w := doJSONReq(t, r, http.MethodPost, "/wallet/topup/confirm",
		`{"amount_cents":100,"external_ref":"   "}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	if resp := decodeError(t, w); resp.Code != ErrCodeBadRequest {
		t.Fatalf("code = %q", resp.Code)
	}
}
