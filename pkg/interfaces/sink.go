package interfaces

import "jobtalk/pkg/types"

// EventSink receives notifications the view layer acts on. Implementations
// must not block; they are invoked from the controller's event pump.
type EventSink interface {
	// RoomsChanged fires when the room list, previews or unread counts move.
	RoomsChanged()

	// MessagesChanged fires after the room's visible sequence changed.
	MessagesChanged(roomID string)

	// TypingChanged fires when the counterparty's typing flag flips.
	TypingChanged(roomID string, typing bool)

	// ConnStateChanged reports coarse connection health transitions.
	ConnStateChanged(state types.ConnState)

	// HistoryTruncated fires when a resynchronization had to discard the
	// in-memory sequence; older messages need an explicit load-more.
	HistoryTruncated(roomID string)
}

// NopSink discards all notifications.
type NopSink struct{}

func (NopSink) RoomsChanged()                    {}
func (NopSink) MessagesChanged(string)           {}
func (NopSink) TypingChanged(string, bool)       {}
func (NopSink) ConnStateChanged(types.ConnState) {}
func (NopSink) HistoryTruncated(string)          {}
