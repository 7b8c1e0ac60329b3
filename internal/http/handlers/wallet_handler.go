// Wallet HTTP handlers.
//
//   - GET  /wallet                (balance + recent ledger page)
//   - POST /wallet/topup/confirm  (billing-provider confirmation → credit)
//
// The confirmation endpoint only ingests an already-confirmed external
// payment reference; the checkout flow itself lives with the billing
// provider. Confirmations are idempotent per reference, so webhook retries
// never double-credit.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-lora-backend/internal/domain"
)

// WalletResponse is the balance plus a page of ledger entries.
type WalletResponse struct {
	BalanceCents int64                      `json:"balance_cents"`
	Entries      []domain.WalletLedgerEntry `json:"entries"`
	Pagination   Pagination                 `json:"pagination"`
}

// ConfirmTopupRequest is the JSON payload of a top-up confirmation.
type ConfirmTopupRequest struct {
	// AmountCents is the confirmed payment amount.
	AmountCents int64 `json:"amount_cents" binding:"required,min=1" example:"1000"`
	// ExternalRef is the billing provider's payment reference; confirming
	// the same reference twice credits once.
	ExternalRef string `json:"external_ref" binding:"required,min=1,max=255" example:"pay_9f3b2c"`
	// Metadata is optional provider context stored on the ledger entry.
	Metadata string `json:"metadata,omitempty"`
}

// GetWallet godoc
// @ID          getWallet
// @Summary     Wallet balance and statement
// @Description Returns the current balance and a page of ledger entries, newest first.
// @Tags        Wallet
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       page       query   int     false "Page number"     minimum(1) default(1)
// @Param       page_size  query   int     false "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object}  handlers.WalletResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /wallet [get]
func (h *Handlers) GetWallet(c *gin.Context) {
	page, pageSize := clampPagination(c)

	balance, entries, total, err := h.walletSvc.Statement(c.Request.Context(), userID(c), page, pageSize)
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusOK, WalletResponse{
		BalanceCents: balance,
		Entries:      entries,
		Pagination:   newPagination(page, pageSize, total),
	})
}

// ConfirmTopup godoc
// @ID          confirmTopup
// @Summary     Confirm a wallet top-up
// @Description Credits the wallet for an externally confirmed payment. Idempotent per external reference.
// @Tags        Wallet
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       body       body    handlers.ConfirmTopupRequest  true  "Confirmation payload"
//
// @Success     200  {object}  handlers.WalletResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /wallet/topup/confirm [post]
func (h *Handlers) ConfirmTopup(c *gin.Context) {
	var req ConfirmTopupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	ctx := c.Request.Context()
	uid := userID(c)
	if err := h.walletSvc.Credit(ctx, uid, req.AmountCents, domain.LedgerReasonTopup, req.ExternalRef, req.Metadata); err != nil {
		failFromService(c, err)
		return
	}

	balance, entries, total, err := h.walletSvc.Statement(ctx, uid, 1, 10)
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusOK, WalletResponse{
		BalanceCents: balance,
		Entries:      entries,
		Pagination:   newPagination(1, 10, total),
	})
}
