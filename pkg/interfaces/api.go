package interfaces

import (
	"context"
	"errors"

	"jobtalk/pkg/types"
)

// ErrSuggestionsWithheld marks the policy sentinel on smart-reply requests,
// distinct from transport or server failures.
var ErrSuggestionsWithheld = errors.New("smart reply suggestions withheld by policy")

// APIClient is the request/response API the engine consumes. All calls are
// recoverable failures for the caller; none are retried internally.
type APIClient interface {
	// RoomsForSession returns the room summaries for the authenticated
	// participant, ordered by last activity descending.
	RoomsForSession(ctx context.Context) ([]*types.Room, error)

	// Messages fetches one ordered history page. Page 1 is the most recent.
	Messages(ctx context.Context, roomID string, page, pageSize int) ([]*types.Message, error)

	// MarkSeen durably records the seen point for a room.
	MarkSeen(ctx context.Context, roomID string) error

	// OriginateRoom creates or fetches the canonical room for a
	// (job, counterparty) pair. Idempotent.
	OriginateRoom(ctx context.Context, jobID, counterpartyID string) (*types.Room, error)

	// SmartReplies returns suggested reply texts for the given message, or
	// ErrSuggestionsWithheld when the server declines for policy reasons.
	SmartReplies(ctx context.Context, lastMessageID string) ([]string, error)
}
