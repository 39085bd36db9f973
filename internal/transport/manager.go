package transport

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"jobtalk/internal/metrics"
	"jobtalk/internal/session"
	"jobtalk/pkg/types"
)

const (
	sendBufferSize  = 64
	eventBufferSize = 256
)

// Config holds transport tuning knobs.
type Config struct {
	URL                  string
	DialTimeout          time.Duration
	WriteTimeout         time.Duration
	MaxReconnectAttempts int
	BaseBackoff          time.Duration
	MaxBackoff           time.Duration
}

// Manager owns the persistent bidirectional connection for one session:
// authentication handshake, reconnection with bounded backoff, and event
// dispatch. Writes go through a single writer goroutine per physical
// connection. Implements interfaces.Transport.
type Manager struct {
	cfg    Config
	sess   *session.Session
	logger zerolog.Logger

	mu         sync.Mutex
	conn       *websocket.Conn
	writeCh    chan []byte
	connDone   chan struct{}
	credential string
	closed     bool

	events  chan types.Event
	resync  func(roomID string)
	onState func(state types.ConnState)
}

// NewManager creates a transport manager bound to a session record.
func NewManager(cfg Config, sess *session.Session, logger zerolog.Logger) *Manager {
	return &Manager{
		cfg:    cfg,
		sess:   sess,
		logger: logger.With().Str("component", "transport").Logger(),
		events: make(chan types.Event, eventBufferSize),
	}
}

// OnResync registers the hook invoked per joined room after a reconnect,
// since events broadcast during the outage are lost. Must be set before
// Connect.
func (m *Manager) OnResync(fn func(roomID string)) {
	m.resync = fn
}

// OnStateChange registers the connection-health observer. Must be set
// before Connect.
func (m *Manager) OnStateChange(fn func(state types.ConnState)) {
	m.onState = fn
}

// Events yields decoded inbound events. Malformed frames are dropped at
// this boundary and never appear.
func (m *Manager) Events() <-chan types.Event {
	return m.events
}

// State reports coarse connection health.
func (m *Manager) State() types.ConnState {
	return m.sess.State()
}

// Connect establishes or reuses the session. Idempotent when already
// connected with the same credential. Authentication failure is fatal and
// reported upward; it is never retried here.
func (m *Manager) Connect(ctx context.Context, credential string) error {
	m.mu.Lock()
	if m.conn != nil && m.credential == credential && m.sess.State() == types.ConnConnected {
		m.mu.Unlock()
		return nil
	}
	stale := m.detachLocked()
	m.credential = credential
	m.closed = false
	m.mu.Unlock()

	if stale != nil {
		stale.Close()
	}

	m.setState(types.ConnConnecting)

	conn, err := m.dial(ctx, credential)
	if err != nil {
		m.setState(types.ConnDisconnected)
		return err
	}

	m.install(conn)
	m.sess.BeginTransport()
	m.setState(types.ConnConnected)
	m.logger.Info().Str("transport_id", m.sess.TransportID()).Msg("connected")
	return nil
}

// Disconnect tears the session down cleanly. No reconnection follows.
func (m *Manager) Disconnect() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrAlreadyClosed
	}
	m.closed = true
	conn := m.detachLocked()
	m.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	m.sess.EndTransport()
	m.setState(types.ConnDisconnected)
	return nil
}

// JoinRoom scopes subsequent events to the room and records it for
// re-joining after a reconnect.
func (m *Manager) JoinRoom(roomID string) error {
	if !types.IsValidRoomID(roomID) {
		return types.ErrInvalidRoomID
	}
	m.sess.Join(roomID)
	return m.Emit(types.Event{Type: types.EventJoinRoom, RoomID: roomID})
}

// LeaveRoom removes the room from the session scope.
func (m *Manager) LeaveRoom(roomID string) error {
	if !types.IsValidRoomID(roomID) {
		return types.ErrInvalidRoomID
	}
	m.sess.Leave(roomID)
	return m.Emit(types.Event{Type: types.EventLeaveRoom, RoomID: roomID})
}

// Emit sends a fire-and-forget event. When the connection is down the event
// is silently dropped: callers rely on the echoed newMessage for
// confirmation, never on Emit succeeding.
func (m *Manager) Emit(ev types.Event) error {
	frame, err := types.EncodeEvent(ev)
	if err != nil {
		return err
	}

	m.mu.Lock()
	ch := m.writeCh
	connected := m.conn != nil
	m.mu.Unlock()

	if !connected || ch == nil {
		m.logger.Debug().Str("event", ev.Type).Msg("emit dropped, not connected")
		return nil
	}

	select {
	case ch <- frame:
		metrics.EventsSent.WithLabelValues(ev.Type).Inc()
	default:
		m.logger.Warn().Str("event", ev.Type).Msg("emit dropped, send buffer full")
	}
	return nil
}

func (m *Manager) dial(ctx context.Context, credential string) (*websocket.Conn, error) {
	dialer := &websocket.Dialer{HandshakeTimeout: m.cfg.DialTimeout}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+credential)

	conn, resp, err := dialer.DialContext(ctx, m.cfg.URL, header)
	if resp != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, ErrAuthenticationFailed
		}
		return nil, err
	}
	return conn, nil
}

// install wires a physical connection: one writer goroutine, one reader.
func (m *Manager) install(conn *websocket.Conn) {
	done := make(chan struct{})
	ch := make(chan []byte, sendBufferSize)

	m.mu.Lock()
	m.conn = conn
	m.writeCh = ch
	m.connDone = done
	m.mu.Unlock()

	go m.writeLoop(conn, ch, done)
	go m.readLoop(conn, done)
}

// detachLocked disconnects the current physical connection from the manager
// and stops its writer goroutine. Callers hold m.mu and close the returned
// conn themselves.
func (m *Manager) detachLocked() *websocket.Conn {
	conn := m.conn
	if conn != nil {
		m.conn = nil
		m.writeCh = nil
		close(m.connDone)
		m.connDone = nil
	}
	return conn
}

// release detaches a physical connection if it is still the current one.
// Returns true when this call performed the detach.
func (m *Manager) release(conn *websocket.Conn) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn != conn {
		return false
	}
	m.detachLocked()
	return true
}

func (m *Manager) writeLoop(conn *websocket.Conn, ch chan []byte, done chan struct{}) {
	for {
		select {
		case frame := <-ch:
			if err := conn.SetWriteDeadline(time.Now().Add(m.cfg.WriteTimeout)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				conn.Close()
				return
			}
		case <-done:
			return
		}
	}
}

func (m *Manager) readLoop(conn *websocket.Conn, done chan struct{}) {
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			break
		}

		ev, derr := types.DecodeEvent(frame)
		if derr != nil {
			// Malformed inbound events are dropped at this boundary and
			// never reach the reconciler.
			metrics.MalformedEventsDropped.Inc()
			m.logger.Warn().Err(derr).Msg("dropped malformed inbound frame")
			continue
		}

		metrics.EventsReceived.WithLabelValues(ev.Type).Inc()
		select {
		case m.events <- ev:
		default:
			m.logger.Warn().Str("event", ev.Type).Msg("event buffer full, inbound event dropped")
		}
	}

	conn.Close()
	if !m.release(conn) {
		return
	}
	m.sess.EndTransport()

	m.mu.Lock()
	deliberate := m.closed
	m.mu.Unlock()
	if deliberate {
		return
	}

	m.logger.Warn().Msg("connection dropped, reconnecting")
	go m.reconnect()
}

// reconnect retries with bounded exponential backoff. On success it
// re-joins every room joined before the drop and triggers a
// resynchronization per room. On exhaustion the session surfaces a
// persistent-failure state.
func (m *Manager) reconnect() {
	m.setState(types.ConnConnecting)

	m.mu.Lock()
	credential := m.credential
	m.mu.Unlock()

	backoff := m.cfg.BaseBackoff
	for attempt := 1; attempt <= m.cfg.MaxReconnectAttempts; attempt++ {
		time.Sleep(backoff)
		backoff *= 2
		if backoff > m.cfg.MaxBackoff {
			backoff = m.cfg.MaxBackoff
		}

		m.mu.Lock()
		closed := m.closed
		m.mu.Unlock()
		if closed {
			return
		}

		metrics.ReconnectAttempts.Inc()
		ctx, cancel := context.WithTimeout(context.Background(), m.cfg.DialTimeout)
		conn, err := m.dial(ctx, credential)
		cancel()

		if err == ErrAuthenticationFailed {
			// Fatal: the credential was valid before the drop, but the
			// server rejects it now. Reported upward, never retried.
			m.logger.Error().Msg("authentication rejected during reconnect")
			m.setState(types.ConnFailed)
			return
		}
		if err != nil {
			m.logger.Warn().Err(err).Int("attempt", attempt).Msg("reconnect attempt failed")
			continue
		}

		m.install(conn)
		m.sess.BeginTransport()
		m.setState(types.ConnConnected)
		m.logger.Info().Int("attempt", attempt).Msg("reconnected")

		// Events broadcast during the outage are lost: re-join and ask the
		// reconciler to resynchronize every room.
		for _, roomID := range m.sess.JoinedRooms() {
			m.Emit(types.Event{Type: types.EventJoinRoom, RoomID: roomID})
			if m.resync != nil {
				m.resync(roomID)
			}
		}
		return
	}

	m.logger.Error().Int("attempts", m.cfg.MaxReconnectAttempts).Msg("reconnect exhausted")
	m.setState(types.ConnFailed)
}

func (m *Manager) setState(state types.ConnState) {
	m.sess.SetState(state)
	if m.onState != nil {
		m.onState(state)
	}
}
