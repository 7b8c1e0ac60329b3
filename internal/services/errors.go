// Package services implements the business logic for models, uploads,
// wallets and training jobs. This file centralizes the service-level error
// values and typed errors so they can be consistently returned by service
// methods and checked by callers.
//
// Translation into HTTP status codes and user-facing messages is performed
// at the handler layer; the stable machine-readable codes live on the typed
// errors so that mapping never depends on message text.
package services

import (
	"errors"
	"fmt"
)

// Stable quota denial codes. These are part of the API contract; clients
// branch on them, so they never change once published.
const (
	CodeFileSizeLimit       = "UPLOAD_FILE_SIZE_LIMIT_REACHED"
	CodeMonthlyUploadLimit  = "MONTHLY_UPLOAD_BYTES_LIMIT_REACHED"
	CodeTotalStorageLimit   = "TOTAL_STORAGE_BYTES_LIMIT_REACHED"
	CodeModelVideoLimit     = "MODEL_VIDEO_LIMIT_REACHED"
	CodeModelSlotLimit      = "MODEL_SLOT_LIMIT_REACHED"
	CodeTrainRunLimit       = "TRAIN_RUN_LIMIT_REACHED"
	CodeFreeVideoLimit      = "FREE_VIDEO_UPLOAD_LIMIT_REACHED"
	CodeAISubmitLimit       = "AI_SUBMIT_LIMIT_REACHED"
	CodeInsufficientBalance = "INSUFFICIENT_WALLET_BALANCE"
)

// General service errors.
var (
	// ErrModelNotFound indicates the requested model does not exist or is
	// not accessible to the current user.
	ErrModelNotFound = errors.New("model not found")

	// ErrModelArchived is returned when an operation requires an active
	// model but the target is archived.
	ErrModelArchived = errors.New("model is archived")

	// ErrJobNotFound indicates the requested training job does not exist or
	// is not accessible to the current user.
	ErrJobNotFound = errors.New("training job not found")

	// ErrNoVideos is returned when training is submitted for a model that
	// has no uploaded videos.
	ErrNoVideos = errors.New("model has no training videos")

	// ErrInvalidUpload is returned when an upload is empty or carries an
	// unsupported media type.
	ErrInvalidUpload = errors.New("invalid upload")

	// ErrInvalidAmount is returned when a wallet operation is attempted
	// with a negative amount.
	ErrInvalidAmount = errors.New("amount must not be negative")

	// ErrMissingRef is returned when a wallet credit arrives without an
	// external payment reference.
	ErrMissingRef = errors.New("external reference is required")
)

// QuotaError is a quota denial. Code is one of the stable Code* constants;
// Current and Limit carry the numbers behind the denial so responses can
// show them.
type QuotaError struct {
	Code    string
	Message string
	Current int64
	Limit   int64
}

// Error implements the error interface.
func (e *QuotaError) Error() string {
	return fmt.Sprintf("%s: %s (current %d, limit %d)", e.Code, e.Message, e.Current, e.Limit)
}

// InsufficientBalanceError reports a wallet debit denied for lack of funds.
type InsufficientBalanceError struct {
	RequiredCents  int64
	AvailableCents int64
}

// Error implements the error interface.
func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("%s: required %d cents, available %d", CodeInsufficientBalance, e.RequiredCents, e.AvailableCents)
}
