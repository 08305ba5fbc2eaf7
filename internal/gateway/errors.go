package gateway

import "fmt"

// RateLimitError means the operation was rejected by admission control
// before any upstream call was made.
type RateLimitError struct {
	Operation string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s", e.Operation)
}

// ProviderError means the upstream call was made and failed, or returned an
// error payload. The provider's message travels with it.
type ProviderError struct {
	Operation string
	Err       error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error during %s: %v", e.Operation, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ValidationError means the caller's input was malformed. Nothing was
// attempted upstream.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}
