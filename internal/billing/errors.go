package billing

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConfigured is returned when the gateway access token is missing.
	ErrNotConfigured = errors.New("billing: gateway not configured")

	// ErrPreapprovalNotFound is returned when a preapproval does not exist.
	ErrPreapprovalNotFound = errors.New("billing: preapproval not found")
)

// GatewayError wraps a provider API error with additional context.
type GatewayError struct {
	Message       string // Human-readable error message from the provider
	StatusCode    int    // HTTP status code returned by the provider
	OriginalError error  // Underlying transport error, if any
}

func (e *GatewayError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("mercadopago: %s (status: %d)", e.Message, e.StatusCode)
	}
	return fmt.Sprintf("mercadopago: %s", e.Message)
}

func (e *GatewayError) Unwrap() error {
	return e.OriginalError
}

// IsTemporary returns true if the error is likely transient and the caller
// may retry. Timeouts and 5xx responses qualify; 4xx responses do not.
func (e *GatewayError) IsTemporary() bool {
	return e.StatusCode == 0 || e.StatusCode >= 500 || e.StatusCode == 429
}
