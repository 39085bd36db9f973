package interfaces

import (
	"context"

	"jobtalk/pkg/types"
)

// Transport owns the persistent bidirectional connection for one session.
type Transport interface {
	// Connect establishes or reuses the session. Idempotent when already
	// connected with the same credential. Authentication failure is fatal
	// and never retried internally.
	Connect(ctx context.Context, credential string) error

	// Disconnect tears the session down cleanly.
	Disconnect() error

	// JoinRoom and LeaveRoom scope subsequent room events.
	JoinRoom(roomID string) error
	LeaveRoom(roomID string) error

	// Emit sends a fire-and-forget event. Delivery is not guaranteed when
	// the connection is down; callers rely on the echoed newMessage, not on
	// Emit succeeding.
	Emit(ev types.Event) error

	// Events yields decoded inbound events. Malformed frames never appear.
	Events() <-chan types.Event

	// State reports coarse connection health.
	State() types.ConnState

	// OnResync registers the per-room hook invoked after a reconnect gap.
	// Must be called before Connect.
	OnResync(fn func(roomID string))

	// OnStateChange registers the connection-health observer. Must be
	// called before Connect.
	OnStateChange(fn func(state types.ConnState))
}
