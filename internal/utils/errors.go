package utils

import (
	"errors"
	"fmt"

	"github.com/HerbigniauxBenoit/spsync/internal/types"
)

// Exit codes. The trigger contract is three-valued and consumed by the
// deployment's alerting, so these values are load-bearing.
const (
	ExitSuccess = 0
	// Run completed but at least one item failed, or the run itself aborted
	// after work had started.
	ExitPartialFailure = 1
	// Configuration rejected before any remote call.
	ExitConfigError = 2
)

// Error codes (tool-owned, stable)
const (
	ErrCodeConfigInvalid     = "CONFIG_INVALID"
	ErrCodeAuthFailed        = "AUTH_FAILED"
	ErrCodeSiteNotFound      = "SITE_NOT_FOUND"
	ErrCodeDriveNotFound     = "DRIVE_NOT_FOUND"
	ErrCodeRemoteUnavailable = "REMOTE_UNAVAILABLE"
	ErrCodeRateLimited       = "RATE_LIMITED"
	ErrCodeTransferFailed    = "TRANSFER_FAILED"
	ErrCodeStoreUnavailable  = "STORE_UNAVAILABLE"
	ErrCodeTokenInvalid      = "TOKEN_INVALID"
	ErrCodeRunInProgress     = "RUN_IN_PROGRESS"
	ErrCodeCancelled         = "CANCELLED"
	ErrCodeInternalError     = "INTERNAL_ERROR"
	ErrCodeUnknown           = "UNKNOWN"
)

// AppError carries a stable code alongside the wrapped cause.
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates an AppError with a stable code.
func NewAppError(code, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// ErrorCode extracts the stable code from err, or ErrCodeUnknown.
func ErrorCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeUnknown
}

// Detail converts err into the serializable envelope form.
func Detail(err error) types.CLIErrorDetail {
	var appErr *AppError
	if errors.As(err, &appErr) {
		d := types.CLIErrorDetail{Code: appErr.Code, Message: appErr.Message}
		if appErr.Err != nil {
			d.Context = appErr.Err.Error()
		}
		return d
	}
	return types.CLIErrorDetail{Code: ErrCodeUnknown, Message: err.Error()}
}

// ExitCodeForRun maps a run outcome onto the trigger status contract:
// 0 success, 1 completed-with-failures or aborted mid-run, 2 configuration
// error before any work started.
func ExitCodeForRun(stats *types.RunStats, err error) int {
	if err != nil {
		if ErrorCode(err) == ErrCodeConfigInvalid {
			return ExitConfigError
		}
		return ExitPartialFailure
	}
	if stats != nil && stats.HasFailures() {
		return ExitPartialFailure
	}
	return ExitSuccess
}
