// Package services implements the business logic that ties prompt
// moderation, request coalescing, the generation client, and the durable
// stores together. This file centralizes common service-level error values so
// that they can be consistently returned by service methods and checked by
// callers.
//
// Translation into user-facing messages or HTTP status codes is performed at
// the handler layer. None of these errors are fatal to the process; every
// failure is scoped to a single user interaction.
package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrPreferencesInvalid indicates the generation preferences failed the
	// settings gate. The requesting user has already been notified with the
	// specific missing or malformed setting.
	ErrPreferencesInvalid = errors.New("generation preferences invalid")

	// ErrPendingNotFound indicates a completion callback referenced a
	// prediction id with no pending record.
	ErrPendingNotFound = errors.New("pending generation not found")

	// ErrChatContextNotFound indicates the user or room recorded for a
	// pending generation could not be resolved. The pending record is kept in
	// this case so a later delivery attempt can still succeed.
	ErrChatContextNotFound = errors.New("user or room not found")
)

// ModerationRejectedError reports a prompt the moderation service refused,
// carrying the offending terms so they can be surfaced to the user.
type ModerationRejectedError struct {
	Words []string
}

func (e *ModerationRejectedError) Error() string {
	return fmt.Sprintf("prompt rejected by moderation: %s", strings.Join(e.Words, ", "))
}
