// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// These symbolic constants are mapped to HTTP responses via the `fail()` helper
// in this package, giving clients a stable, machine-readable error taxonomy
// alongside the human-readable messages.
//
// Conventions:
//   - Codes are lowercase, snake_case, and domain-agnostic unless noted.
//   - Generic codes (bad_request, not_found, ...) mirror common HTTP status
//     semantics to aid interoperability.
//   - Domain-specific codes (moderation_rejected, generate_failed, ...) carry
//     business outcomes that the status code alone cannot convey.

package handlers

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeNotFound     = "not_found"
	ErrCodeRateLimited  = "too_many_requests"
	ErrCodeInternal     = "internal_error"

	// Domain-specific:
	ErrCodeModerationRejected = "moderation_rejected"
	ErrCodePreferencesInvalid = "preferences_invalid"
	ErrCodeGenerateFailed     = "generate_failed"
	ErrCodeListFailed         = "list_failed"
	ErrCodeMethodNotAllowed   = "method_not_allowed"
)
