// Package apperr defines the application error taxonomy.
package apperr

import "fmt"

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// AppError carries an error code, severity, and an actor-facing message.
type AppError struct {
	Code        string
	Message     string
	UserMessage string
	Severity    Severity
	Retryable   bool
	cause       error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}

	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.cause
}

// NewValidationError reports malformed input rejected locally.
func NewValidationError(msg string) *AppError {
	return &AppError{
		Code:        "E100",
		Message:     msg,
		UserMessage: fmt.Sprintf("Invalid input. %s", msg),
		Severity:    SeverityLow,
		Retryable:   false,
	}
}

// NewStoreError reports a failed state store operation; this is the one
// class allowed to abort the current unit of work.
func NewStoreError(cause error) *AppError {
	var underlying string
	if cause != nil {
		underlying = cause.Error()
	}

	return &AppError{
		Code:        "E200",
		Message:     fmt.Sprintf("store error: %s", underlying),
		UserMessage: "Temporary storage problem, please try again later",
		Severity:    SeverityHigh,
		Retryable:   true,
		cause:       cause,
	}
}

// NewTransportError reports a failed chat delivery or edit; callers catch
// it, log, and continue.
func NewTransportError(cause error) *AppError {
	return &AppError{
		Code:        "E300",
		Message:     "chat transport error",
		UserMessage: "Delivery to Telegram failed",
		Severity:    SeverityMedium,
		Retryable:   true,
		cause:       cause,
	}
}

// NewExternalAPIError reports an unreachable or failing panel API.
func NewExternalAPIError(apiName string, cause error) *AppError {
	return &AppError{
		Code:        "E400",
		Message:     fmt.Sprintf("external API error: %s", apiName),
		UserMessage: "External service is temporarily unavailable",
		Severity:    SeverityMedium,
		Retryable:   true,
		cause:       cause,
	}
}

// NewConfigError reports an absent capability; features degrade, the
// process never crashes over it.
func NewConfigError(msg string) *AppError {
	return &AppError{
		Code:        "E500",
		Message:     msg,
		UserMessage: "This feature is not configured",
		Severity:    SeverityLow,
		Retryable:   false,
	}
}
