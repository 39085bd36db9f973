package types

import (
	"errors"
	"testing"
	"time"
)

func TestDecodeEvent_NewMessageRoundTrip(t *testing.T) {
	msg := &Message{
		ID:         "m1",
		RoomID:     "room-1",
		SenderRole: RoleRecruiter,
		Text:       "we'd like to schedule a call",
		CreatedAt:  time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
	}

	frame, err := EncodeEvent(Event{Type: EventNewMessage, RoomID: msg.RoomID, Message: msg})
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}

	ev, err := DecodeEvent(frame)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}
	if ev.Type != EventNewMessage || ev.RoomID != "room-1" {
		t.Errorf("unexpected event: %+v", ev)
	}
	if ev.Message == nil || ev.Message.ID != "m1" || !ev.Message.CreatedAt.Equal(msg.CreatedAt) {
		t.Errorf("message payload not preserved: %+v", ev.Message)
	}
}

func TestDecodeEvent_RoomScopedTags(t *testing.T) {
	for _, tag := range []string{EventTyping, EventStopTyping, EventMessagesSeen, EventChatClosed} {
		frame, err := EncodeEvent(Event{Type: tag, RoomID: "room-7"})
		if err != nil {
			t.Fatalf("EncodeEvent(%s) failed: %v", tag, err)
		}
		ev, err := DecodeEvent(frame)
		if err != nil {
			t.Fatalf("DecodeEvent(%s) failed: %v", tag, err)
		}
		if ev.Type != tag || ev.RoomID != "room-7" {
			t.Errorf("tag %s: got %+v", tag, ev)
		}
	}
}

func TestDecodeEvent_UnknownTagRejected(t *testing.T) {
	_, err := DecodeEvent([]byte(`{"event":"adminBroadcast","data":{"roomId":"room-1"}}`))
	if !errors.Is(err, ErrUnknownEventType) {
		t.Errorf("expected ErrUnknownEventType, got %v", err)
	}
}

func TestDecodeEvent_MalformedPayloadRejected(t *testing.T) {
	cases := []string{
		`not json at all`,
		`{"event":"typing","data":{"roomId":""}}`,
		`{"event":"newMessage","data":{"id":"","roomId":"room-1"}}`,
		`{"event":"newMessage","data":"string not object"}`,
		`{"event":"sendMessage","data":{"roomId":"room-1","text":""}}`,
	}
	for _, frame := range cases {
		if _, err := DecodeEvent([]byte(frame)); err == nil {
			t.Errorf("expected rejection for frame %s", frame)
		}
	}
}

func TestEncodeEvent_UnknownTagRejected(t *testing.T) {
	if _, err := EncodeEvent(Event{Type: "heartbeat"}); !errors.Is(err, ErrUnknownEventType) {
		t.Errorf("expected ErrUnknownEventType, got %v", err)
	}
}
