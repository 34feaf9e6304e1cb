package helpers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vigila/src/logger"
)

// -----------------------------------------------------------------------------
// Custom Error Types
// -----------------------------------------------------------------------------

type VigilaError struct {
	Message string
	Cause   error
}

func (e *VigilaError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *VigilaError) Unwrap() error {
	return e.Cause
}

// Distinct error types for errors.As classification
type ConfigurationError struct{ VigilaError }
type NetworkError struct{ VigilaError }
type DatabaseError struct{ VigilaError }
type ValidationError struct{ VigilaError }
type NotAuthenticatedError struct{ VigilaError }

// -----------------------------------------------------------------------------

// Widget and session sentinels.
var (
	ErrCommitInProgress = errors.New("a commit is already in progress")
	ErrWidgetClosed     = errors.New("widget is closed")
	ErrWidgetNotFound   = errors.New("widget not found")
	ErrSymbolNotFound   = errors.New("symbol not found in watchlist")
)

// -----------------------------------------------------------------------------

func NewConfigurationError(message string) error {
	return &ConfigurationError{VigilaError{Message: message}}
}

func NewNetworkError(message string, cause error) error {
	return &NetworkError{VigilaError{Message: message, Cause: cause}}
}

func NewDatabaseError(message string, cause error) error {
	return &DatabaseError{VigilaError{Message: message, Cause: cause}}
}

func NewValidationError(message string) error {
	return &ValidationError{VigilaError{Message: message}}
}

func NewNotAuthenticatedError() error {
	return &NotAuthenticatedError{VigilaError{Message: "user not authenticated"}}
}

// -----------------------------------------------------------------------------

func IsNotAuthenticated(err error) bool {
	var target *NotAuthenticatedError
	return errors.As(err, &target)
}

func IsConfiguration(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}

func IsNetwork(err error) bool {
	var target *NetworkError
	return errors.As(err, &target)
}

func IsDatabase(err error) bool {
	var target *DatabaseError
	return errors.As(err, &target)
}

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// -----------------------------------------------------------------------------
// Retry Logic
// -----------------------------------------------------------------------------

// RetryWithBackoff attempts to execute the operation up to maxRetries times with exponential backoff.
func RetryWithBackoff(ctx context.Context, operation string, maxRetries int, baseDelay time.Duration, fn func() error) error {
	if maxRetries < 1 {
		maxRetries = 1
	}
	log := logger.NewLogger("Retry")

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err
		if attempt == maxRetries-1 {
			break
		}

		delay := baseDelay * (1 << attempt)
		log.Warning("Attempt %d/%d failed for %s: %v. Retrying in %v", attempt+1, maxRetries, operation, err, delay)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return &VigilaError{Message: fmt.Sprintf("%s failed after %d attempts", operation, maxRetries), Cause: lastErr}
}

// -----------------------------------------------------------------------------
// Error Handler
// -----------------------------------------------------------------------------

type ErrorHandler struct {
	Logger *logger.Logger
}

func NewErrorHandler(name string) *ErrorHandler {
	return &ErrorHandler{
		Logger: logger.NewLogger(name),
	}
}

// -----------------------------------------------------------------------------

// UserMessage converts an async failure into the inline text shown next to the
// control that triggered it. fallback replaces internal error text when set.
func (e *ErrorHandler) UserMessage(err error, context string, fallback string) string {
	if err == nil {
		return ""
	}
	e.Logger.Error("Error in %s: %v", context, err)

	switch {
	case IsNotAuthenticated(err):
		return "You must be signed in to do this."
	case errors.Is(err, ErrCommitInProgress):
		return "Symbols are already being saved."
	case fallback != "":
		return fallback
	default:
		return err.Error()
	}
}
