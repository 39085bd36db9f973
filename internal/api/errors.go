package api

import "errors"

// Request/response faults. All are recoverable for the caller; the engine
// never auto-retries them.
var (
	ErrRequestFailed   = errors.New("request failed")
	ErrUnexpectedReply = errors.New("unexpected API reply")
	ErrUnauthorized    = errors.New("credential rejected by API")
)
