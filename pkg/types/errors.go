package types

import "errors"

// Validation errors shared across components.
var (
	ErrInvalidRoomID    = errors.New("room ID must be 1-64 characters, alphanumeric + underscore/hyphen only")
	ErrInvalidRole      = errors.New("role must be 'applicant' or 'recruiter'")
	ErrInvalidMessageID = errors.New("message ID cannot be empty")
	ErrEmptyMessageText = errors.New("message text cannot be empty")
	ErrMessageTooLarge  = errors.New("message text exceeds 8KB limit")
)

// Event decoding errors.
var (
	ErrUnknownEventType = errors.New("unknown transport event type")
	ErrMalformedEvent   = errors.New("malformed transport event payload")
)
