// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// Two code families coexist:
//   - Generic transport codes (lowercase snake_case) that mirror common HTTP
//     status semantics: bad_request, not_found, conflict, internal_error.
//   - Domain denial codes (UPPER_SNAKE_CASE) passed through unchanged from
//     the services layer: quota limits, wallet insufficiency, provider
//     failures. These are part of the API contract and never change once
//     published; clients branch on them programmatically.
//
// All error responses include both an HTTP status and one of these codes in
// the ErrorResponse envelope (see response.go).

package handlers

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeNotFound     = "not_found"
	ErrCodeConflict     = "conflict"
	ErrCodeRateLimited  = "too_many_requests"
	ErrCodeInternal     = "internal_error"

	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Domain-specific:
	ErrCodeModelArchived = "model_archived"
	ErrCodeNoVideos      = "model_has_no_videos"
	ErrCodeUploadInvalid = "invalid_upload"
)
