package provider

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotConfigured marks provider calls attempted without credentials. It is
// still converted into a per-item failure by the dispatcher, but carries a
// distinct identity for logs and metrics.
var ErrNotConfigured = errors.New("provider is not configured")

// ProviderError carries the provider's status and detail for a failed call.
type ProviderError struct {
	StatusCode int
	Message    string
	Cause      error
}

func (e *ProviderError) Error() string {
	if e == nil {
		return "<nil>"
	}

	parts := make([]string, 0, 4)
	parts = append(parts, "provider error")

	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		parts = append(parts, msg)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}

	return strings.Join(parts, ": ")
}

func (e *ProviderError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// IsNotConfigured reports whether an error stems from missing credentials.
func IsNotConfigured(err error) bool {
	return errors.Is(err, ErrNotConfigured)
}
