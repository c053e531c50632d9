package common

import "errors"

// Business logic errors
var (
	// Auth errors
	ErrUnauthenticated = errors.New("authentication required")
	ErrInvalidToken    = errors.New("invalid token")

	// Chat errors
	ErrAccessDenied         = errors.New("access denied")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrSelfConversation     = errors.New("cannot chat with yourself")
	ErrEmptyMessage         = errors.New("message content is empty")

	// Validation errors
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("resource not found")

	// Datastore errors
	ErrStoreUnavailable = errors.New("datastore unavailable")
)
