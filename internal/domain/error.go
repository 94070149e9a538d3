package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound                 = errors.New("entity not found")
	ErrForbidden                = errors.New("caller does not own this entity")
	ErrAlreadyCompleted         = errors.New("payment already completed")
	ErrNotPaid                  = errors.New("payment not confirmed by provider")
	ErrManualCompletionDisabled = errors.New("manual payment completion is disabled")
	ErrNotConfigured            = errors.New("provider credentials not configured")
	ErrInvalidArgument          = errors.New("invalid argument")
	ErrUnsupportedMethod        = errors.New("unsupported payment method")
	ErrLockNotAcquired          = errors.New("could not acquire lock")
	ErrOperationFailed          = errors.New("database operation failed")
	ErrReadDatabaseRow          = errors.New("failed to read database row")
	ErrInvalidExecContext       = errors.New("invalid execution context for query")
)

// ProviderError carries a remote payment network's own failure code and
// message. It is terminal for the current purchase attempt; the purchase has
// to be restarted rather than retried.
type ProviderError struct {
	Provider string
	Code     string
	Message  string
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s error: %s (code %s)", e.Provider, e.Message, e.Code)
	}
	return fmt.Sprintf("%s error: %s", e.Provider, e.Message)
}

// IsProviderError reports whether err (or anything it wraps) is a remote
// provider decline.
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}
