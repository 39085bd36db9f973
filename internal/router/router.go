package router

import (
	"context"

	"github.com/rs/zerolog"

	"jobtalk/internal/presence"
	"jobtalk/internal/receipt"
	"jobtalk/internal/reconcile"
	"jobtalk/internal/registry"
	"jobtalk/pkg/interfaces"
	"jobtalk/pkg/types"
)

// Hooks are the controller-owned decision points the router consults while
// dispatching. ActiveRoom reports the current selection; OwnEcho fires when
// the echo of a locally-sent message lands; RoomClosed fires after a room
// was invalidated externally.
type Hooks struct {
	ActiveRoom func() string
	OwnEcho    func(roomID string)
	RoomClosed func(roomID string)
}

// Router fans decoded inbound events out to the reconciler, presence
// tracker, receipt coordinator and room registry. It runs on the
// controller's event pump, which makes it the single ordering point for all
// state mutation triggered by the transport.
type Router struct {
	rec      *reconcile.Reconciler
	reg      *registry.Registry
	presence *presence.Tracker
	receipt  *receipt.Coordinator
	sink     interfaces.EventSink
	hooks    Hooks
	ownRole  string
	logger   zerolog.Logger
}

// NewRouter creates an inbound event router.
func NewRouter(rec *reconcile.Reconciler, reg *registry.Registry, pres *presence.Tracker, rcpt *receipt.Coordinator, sink interfaces.EventSink, hooks Hooks, ownRole string, logger zerolog.Logger) *Router {
	return &Router{
		rec:      rec,
		reg:      reg,
		presence: pres,
		receipt:  rcpt,
		sink:     sink,
		hooks:    hooks,
		ownRole:  ownRole,
		logger:   logger.With().Str("component", "router").Logger(),
	}
}

// Route dispatches one inbound event. Unexpected tags are logged and
// dropped; they never crash the pump.
func (r *Router) Route(ctx context.Context, ev types.Event) {
	switch ev.Type {
	case types.EventNewMessage:
		r.handleNewMessage(ctx, ev)

	case types.EventMessagesSeen:
		r.receipt.HandleMessagesSeen(ev.RoomID)
		r.sink.MessagesChanged(ev.RoomID)

	case types.EventTyping:
		r.presence.HandleRemoteTyping(ev.RoomID)

	case types.EventStopTyping:
		r.presence.HandleRemoteStopped(ev.RoomID)

	case types.EventChatClosed:
		r.handleChatClosed(ev.RoomID)

	default:
		r.logger.Warn().Str("event", ev.Type).Msg("unexpected inbound event dropped")
	}
}

func (r *Router) handleNewMessage(ctx context.Context, ev types.Event) {
	msg := ev.Message
	inserted := r.rec.ApplyLive(ev.RoomID, msg)
	r.reg.Touch(msg)

	if inserted {
		switch {
		case msg.SenderRole == r.ownRole:
			// Echo of a locally-sent message: the pending entry retires,
			// the unread count is untouched.
			if r.hooks.OwnEcho != nil {
				r.hooks.OwnEcho(ev.RoomID)
			}
		case r.hooks.ActiveRoom != nil && r.hooks.ActiveRoom() == ev.RoomID:
			// Active room stays at zero unread; the counterparty gets
			// immediate seen feedback.
			if err := r.receipt.MarkSeen(ctx, ev.RoomID); err != nil {
				r.logger.Warn().Err(err).Str("room", ev.RoomID).Msg("mark-seen on live message failed")
			}
		default:
			r.reg.IncrementUnread(ev.RoomID)
		}
	}

	r.sink.MessagesChanged(ev.RoomID)
	r.sink.RoomsChanged()
}

func (r *Router) handleChatClosed(roomID string) {
	r.reg.RemoveRoom(roomID)
	r.rec.Forget(roomID)
	if r.hooks.RoomClosed != nil {
		r.hooks.RoomClosed(roomID)
	}
	r.sink.RoomsChanged()
	r.logger.Info().Str("room", roomID).Msg("room invalidated externally")
}
