// SPDX-License-Identifier: AGPL-3.0-only
package errors

import (
	"errors"
	"fmt"
)

// Sentinel kinds for the provider adapter layer. Callers match them with
// errors.Is; the constructors below attach human-readable detail.
var (
	// ErrConfiguration indicates a missing or invalid setting detected at
	// construction time (e.g. no API key for the selected provider).
	ErrConfiguration = errors.New("configuration error")

	// ErrEmptyConversation indicates a request translation was attempted
	// with no messages at all.
	ErrEmptyConversation = errors.New("empty conversation")

	// ErrUnsupportedContent indicates a content block the target provider
	// cannot carry (unknown block type or disallowed image MIME type).
	ErrUnsupportedContent = errors.New("unsupported content")

	// ErrProviderRequest indicates a transport, auth or rate-limit failure
	// reported by the vendor client.
	ErrProviderRequest = errors.New("provider request failed")

	// ErrCostUnavailable indicates a response carried no usage counts, so
	// no cost can be derived. Never substituted with zero.
	ErrCostUnavailable = errors.New("cost unavailable")
)

// Configuration creates a construction-time configuration error.
func Configuration(reason string) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, reason)
}

// EmptyConversation creates an error for a request built from zero messages.
func EmptyConversation(provider string) error {
	return fmt.Errorf("%w: %s: no messages to translate", ErrEmptyConversation, provider)
}

// UnsupportedContent creates an error for a content block the provider
// cannot represent.
func UnsupportedContent(provider, detail string) error {
	return fmt.Errorf("%w: %s: %s", ErrUnsupportedContent, provider, detail)
}

// ProviderRequest tags a vendor client failure with the provider identity so
// the caller can tell which backend failed. The underlying error is wrapped,
// never swallowed.
func ProviderRequest(provider string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrProviderRequest, provider, err)
}

// CostUnavailable creates an error for a response with missing usage counts.
func CostUnavailable(provider string) error {
	return fmt.Errorf("%w: %s: response reported no token usage", ErrCostUnavailable, provider)
}

// NotFound creates a formatted "not found" error
func NotFound(resource, id string) error {
	return fmt.Errorf("resource not found: %s with ID %s", resource, id)
}

// AlreadyExists creates a formatted "already exists" error
func AlreadyExists(resource, id string) error {
	return fmt.Errorf("resource already exists: %s with ID %s", resource, id)
}

// InvalidInput creates a formatted "invalid input" error
func InvalidInput(reason string) error {
	return fmt.Errorf("invalid input: %s", reason)
}

// Internal creates a formatted "internal error" error
func Internal(err error) error {
	return fmt.Errorf("internal error: %v", err)
}
