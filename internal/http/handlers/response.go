// Package handlers provides HTTP handler implementations for the public API.
//
// This file defines the standard response utilities used across all endpoints,
// including the structured error envelope and the translation of service-layer
// errors into HTTP results. The goal is uniform, machine-friendly responses:
// every failure carries a stable `code`, and quota/wallet denials additionally
// carry the numbers behind them in `details`.
//
// Example error response:
//
//	HTTP/1.1 403 Forbidden
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "MONTHLY_UPLOAD_BYTES_LIMIT_REACHED",
//	  "message": "monthly upload budget exhausted: 209,715,200 of 209,715,200 bytes used",
//	  "details": {"current": 209715200, "limit": 209715200}
//	}
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-lora-backend/internal/http/middleware"
	"github.com/tbourn/go-lora-backend/internal/provider"
	"github.com/tbourn/go-lora-backend/internal/services"
)

// ErrorResponse is the standard error envelope returned by all endpoints.
//
// Fields:
//   - RequestID: correlation ID echoed from the X-Request-ID header.
//   - Code: a stable, machine-readable string (see errors.go and the
//     services quota codes).
//   - Message: a human-readable description, safe for display to users.
//   - Details: optional numbers behind a denial (current/limit,
//     required/available cents).
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code
	Code string `json:"code" example:"MODEL_VIDEO_LIMIT_REACHED"`
	// Human-readable message (safe to show to users)
	Message string `json:"message" example:"model already holds 5 of 5 allowed videos"`
	// Numbers behind a quota or balance denial
	Details map[string]int64 `json:"details,omitempty"`
}

// fail aborts the request with a structured error and logs server-side errors.
func fail(c *gin.Context, status int, code, msg string) {
	failWithDetails(c, status, code, msg, nil)
}

func failWithDetails(c *gin.Context, status int, code, msg string, details map[string]int64) {
	resp := ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
		Details:   details,
	}

	// Log 5xx (server-side) with request-scoped logger
	if status >= http.StatusInternalServerError {
		lg := middleware.LoggerFrom(c)
		lg.Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}

	c.AbortWithStatusJSON(status, resp)
}

// Fail is the exported variant of fail().
//
// External packages (e.g., router setup) should call Fail to return
// consistent error envelopes without directly depending on unexported helpers.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// failFromService translates a service-layer error into an HTTP response.
// Quota denials become 403 with the stable domain code, wallet insufficiency
// becomes 402, invariant violations map to 404/409/400, and provider
// failures become 502 with the PROVIDER_ERROR code.
func failFromService(c *gin.Context, err error) {
	var qe *services.QuotaError
	if errors.As(err, &qe) {
		failWithDetails(c, http.StatusForbidden, qe.Code, qe.Message, map[string]int64{
			"current": qe.Current,
			"limit":   qe.Limit,
		})
		return
	}

	var ib *services.InsufficientBalanceError
	if errors.As(err, &ib) {
		failWithDetails(c, http.StatusPaymentRequired, services.CodeInsufficientBalance,
			"wallet balance is insufficient", map[string]int64{
				"required_cents":  ib.RequiredCents,
				"available_cents": ib.AvailableCents,
			})
		return
	}

	var pe *provider.Error
	if errors.As(err, &pe) {
		fail(c, http.StatusBadGateway, provider.ErrCodeProvider, "training provider request failed")
		return
	}

	switch {
	case errors.Is(err, services.ErrModelNotFound), errors.Is(err, services.ErrJobNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, services.ErrModelArchived):
		fail(c, http.StatusConflict, ErrCodeModelArchived, err.Error())
	case errors.Is(err, services.ErrNoVideos):
		fail(c, http.StatusBadRequest, ErrCodeNoVideos, err.Error())
	case errors.Is(err, services.ErrInvalidUpload):
		fail(c, http.StatusBadRequest, ErrCodeUploadInvalid, err.Error())
	case errors.Is(err, services.ErrInvalidAmount), errors.Is(err, services.ErrMissingRef):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}

// ok writes a success JSON response.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}
