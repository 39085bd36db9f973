package receipt

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"jobtalk/internal/reconcile"
	"jobtalk/internal/registry"
	"jobtalk/pkg/types"
)

// Emitter sends fire-and-forget transport events.
type Emitter interface {
	Emit(ev types.Event) error
}

// DurableMarker performs the request/response mark-seen call so a reload
// clears badge state.
type DurableMarker interface {
	MarkSeen(ctx context.Context, roomID string) error
}

// Coordinator tracks and broadcasts seen state per room. Outbound marks go
// both to the API (durability) and the transport (immediate counterparty
// feedback); inbound messagesSeen events advance the local flags
// monotonically.
type Coordinator struct {
	api      DurableMarker
	emitter  Emitter
	rec      *reconcile.Reconciler
	reg      *registry.Registry
	ownRole  string
	onChange func(roomID string)
	logger   zerolog.Logger
}

// NewCoordinator creates a read-receipt coordinator for the given local
// role. onChange fires when inbound receipts advanced seen flags; may be nil.
func NewCoordinator(api DurableMarker, emitter Emitter, rec *reconcile.Reconciler, reg *registry.Registry, ownRole string, onChange func(string), logger zerolog.Logger) *Coordinator {
	return &Coordinator{
		api:      api,
		emitter:  emitter,
		rec:      rec,
		reg:      reg,
		ownRole:  ownRole,
		onChange: onChange,
		logger:   logger.With().Str("component", "receipt").Logger(),
	}
}

// MarkSeen is invoked when a room becomes the active selection and whenever
// a live message arrives while the room is active. The unread badge clears
// immediately; the durability call's failure is surfaced to the caller, the
// transport emit is best-effort.
func (c *Coordinator) MarkSeen(ctx context.Context, roomID string) error {
	if !types.IsValidRoomID(roomID) {
		return types.ErrInvalidRoomID
	}

	c.reg.ClearUnread(roomID)
	_ = c.emitter.Emit(types.Event{Type: types.EventMarkSeen, RoomID: roomID})

	if err := c.api.MarkSeen(ctx, roomID); err != nil {
		return fmt.Errorf("mark seen durability call: %w", err)
	}
	return nil
}

// HandleMessagesSeen applies an inbound receipt: every message in the room
// sent by the viewing participant is flagged seen. Monotonic: a later
// receipt can only advance, never retract.
func (c *Coordinator) HandleMessagesSeen(roomID string) {
	marked := c.rec.MarkOwnSeen(roomID, c.ownRole)
	if marked > 0 {
		c.logger.Debug().Str("room", roomID).Int("marked", marked).Msg("receipt applied")
		if c.onChange != nil {
			c.onChange(roomID)
		}
	}
}
