package presence

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"jobtalk/pkg/types"
)

// Emitter sends fire-and-forget transport events. Satisfied by the
// transport manager.
type Emitter interface {
	Emit(ev types.Event) error
}

// Tracker owns the ephemeral typing signal in both directions: outbound
// keystrokes are debounced into at most one start per window with an
// automatic stop after the idle timeout, and inbound counterparty signals
// expire on the same timeout when the stop event is lost. Nothing here is
// ever persisted.
type Tracker struct {
	mu       sync.Mutex
	emitter  Emitter
	debounce time.Duration
	idle     time.Duration
	outbound map[string]*outboundState // roomID -> own typing
	remote   map[string]*remoteState   // roomID -> counterparty typing
	onChange func(roomID string, typing bool)
	logger   zerolog.Logger
}

type outboundState struct {
	active    bool
	lastStart time.Time
	autoStop  *time.Timer
}

type remoteState struct {
	active bool
	expiry *time.Timer
}

// NewTracker creates a typing tracker. onChange fires when the counterparty
// flag for a room flips; it may be nil.
func NewTracker(emitter Emitter, debounce, idle time.Duration, onChange func(string, bool), logger zerolog.Logger) *Tracker {
	return &Tracker{
		emitter:  emitter,
		debounce: debounce,
		idle:     idle,
		outbound: make(map[string]*outboundState),
		remote:   make(map[string]*remoteState),
		onChange: onChange,
		logger:   logger.With().Str("component", "presence").Logger(),
	}
}

// NotifyTyping is called on every input change. At most one start event per
// debounce window reaches the wire, and a stop event fires automatically if
// no further input arrives within the idle timeout.
func (t *Tracker) NotifyTyping(roomID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, exists := t.outbound[roomID]
	if !exists {
		st = &outboundState{}
		t.outbound[roomID] = st
	}

	now := time.Now()
	if !st.active || now.Sub(st.lastStart) >= t.debounce {
		st.active = true
		st.lastStart = now
		_ = t.emitter.Emit(types.Event{Type: types.EventTyping, RoomID: roomID})
	}

	if st.autoStop != nil {
		st.autoStop.Stop()
	}
	st.autoStop = time.AfterFunc(t.idle, func() {
		t.autoStopFired(roomID)
	})
}

// NotifyStopped cancels the pending auto-stop and emits immediately.
func (t *Tracker) NotifyStopped(roomID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, exists := t.outbound[roomID]
	if !exists || !st.active {
		return
	}
	if st.autoStop != nil {
		st.autoStop.Stop()
		st.autoStop = nil
	}
	st.active = false
	_ = t.emitter.Emit(types.Event{Type: types.EventStopTyping, RoomID: roomID})
}

func (t *Tracker) autoStopFired(roomID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, exists := t.outbound[roomID]
	if !exists || !st.active {
		return
	}
	st.active = false
	st.autoStop = nil
	_ = t.emitter.Emit(types.Event{Type: types.EventStopTyping, RoomID: roomID})
}

// HandleRemoteTyping records a counterparty start signal. The flag clears
// itself after the idle timeout if no stop event arrives, defending against
// a lost stop.
func (t *Tracker) HandleRemoteTyping(roomID string) {
	t.mu.Lock()

	st, exists := t.remote[roomID]
	if !exists {
		st = &remoteState{}
		t.remote[roomID] = st
	}
	changed := !st.active
	st.active = true
	if st.expiry != nil {
		st.expiry.Stop()
	}
	st.expiry = time.AfterFunc(t.idle, func() {
		t.remoteExpired(roomID)
	})
	t.mu.Unlock()

	if changed && t.onChange != nil {
		t.onChange(roomID, true)
	}
}

// HandleRemoteStopped clears the counterparty flag.
func (t *Tracker) HandleRemoteStopped(roomID string) {
	t.mu.Lock()

	st, exists := t.remote[roomID]
	if !exists || !st.active {
		t.mu.Unlock()
		return
	}
	st.active = false
	if st.expiry != nil {
		st.expiry.Stop()
		st.expiry = nil
	}
	t.mu.Unlock()

	if t.onChange != nil {
		t.onChange(roomID, false)
	}
}

func (t *Tracker) remoteExpired(roomID string) {
	t.mu.Lock()

	st, exists := t.remote[roomID]
	if !exists || !st.active {
		t.mu.Unlock()
		return
	}
	st.active = false
	st.expiry = nil
	t.mu.Unlock()

	t.logger.Debug().Str("room", roomID).Msg("remote typing expired without stop event")
	if t.onChange != nil {
		t.onChange(roomID, false)
	}
}

// IsTyping reports the counterparty's current typing flag for a room. The
// viewer's own input never shows here.
func (t *Tracker) IsTyping(roomID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, exists := t.remote[roomID]
	return exists && st.active
}

// Stop cancels every pending timer. Used at session teardown.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, st := range t.outbound {
		if st.autoStop != nil {
			st.autoStop.Stop()
		}
	}
	for _, st := range t.remote {
		if st.expiry != nil {
			st.expiry.Stop()
		}
	}
}
