package types

import (
	"encoding/json"
	"fmt"
)

// Transport event tags. The set is closed: anything else on the wire is
// rejected at the transport boundary.
const (
	// Outbound
	EventJoinRoom    = "joinRoom"
	EventLeaveRoom   = "leaveRoom"
	EventSendMessage = "sendMessage"
	EventMarkSeen    = "markSeen"
	EventTyping      = "typing"
	EventStopTyping  = "stopTyping"

	// Inbound (typing/stopTyping also arrive counterparty-originated)
	EventNewMessage   = "newMessage"
	EventMessagesSeen = "messagesSeen"
	EventChatClosed   = "chatClosed"
)

// Event is the decoded form of one transport frame. RoomID is set for every
// tag; Message only for newMessage, Text only for sendMessage.
type Event struct {
	Type    string
	RoomID  string
	Text    string
	Message *Message
}

// envelope is the wire framing: {"event": "...", "data": {...}}.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type roomPayload struct {
	RoomID string `json:"roomId"`
}

type sendPayload struct {
	RoomID string `json:"roomId"`
	Text   string `json:"text"`
}

// EncodeEvent serializes an event into its wire envelope.
func EncodeEvent(ev Event) ([]byte, error) {
	var data any
	switch ev.Type {
	case EventSendMessage:
		data = sendPayload{RoomID: ev.RoomID, Text: ev.Text}
	case EventJoinRoom, EventLeaveRoom, EventMarkSeen, EventTyping, EventStopTyping,
		EventMessagesSeen, EventChatClosed:
		data = roomPayload{RoomID: ev.RoomID}
	case EventNewMessage:
		data = ev.Message
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, ev.Type)
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return json.Marshal(envelope{Event: ev.Type, Data: raw})
}

// DecodeEvent parses a wire frame into an Event. Unknown tags and payloads
// that fail validation are rejected with typed errors so the transport can
// drop them without touching downstream state.
func DecodeEvent(frame []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	switch env.Event {
	case EventNewMessage:
		var msg Message
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			return Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		if err := msg.Validate(); err != nil {
			return Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		return Event{Type: env.Event, RoomID: msg.RoomID, Message: &msg}, nil

	case EventSendMessage:
		var p sendPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		if !IsValidRoomID(p.RoomID) || p.Text == "" {
			return Event{}, ErrMalformedEvent
		}
		return Event{Type: env.Event, RoomID: p.RoomID, Text: p.Text}, nil

	case EventJoinRoom, EventLeaveRoom, EventMarkSeen, EventTyping, EventStopTyping,
		EventMessagesSeen, EventChatClosed:
		var p roomPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		if !IsValidRoomID(p.RoomID) {
			return Event{}, ErrMalformedEvent
		}
		return Event{Type: env.Event, RoomID: p.RoomID}, nil

	default:
		return Event{}, fmt.Errorf("%w: %q", ErrUnknownEventType, env.Event)
	}
}
