package session

import (
	"sync"

	"github.com/google/uuid"

	"jobtalk/pkg/types"
)

// Session is the connection session for one authenticated participant.
// The logical ID is stable across reconnects; the transport ID changes with
// every physical connection. Only the transport manager mutates a Session.
type Session struct {
	mu          sync.RWMutex
	id          string
	transportID string
	state       types.ConnState
	joined      map[string]bool // roomID -> joined
}

// New creates a session in the disconnected state.
func New() *Session {
	return &Session{
		id:     uuid.New().String(),
		state:  types.ConnDisconnected,
		joined: make(map[string]bool),
	}
}

// ID returns the logical session identifier.
func (s *Session) ID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id
}

// TransportID returns the identifier of the current physical connection,
// empty when disconnected.
func (s *Session) TransportID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.transportID
}

// BeginTransport assigns a fresh transport identifier for a new physical
// connection and returns it.
func (s *Session) BeginTransport() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transportID = uuid.New().String()
	return s.transportID
}

// EndTransport clears the transport identifier after a drop or teardown.
func (s *Session) EndTransport() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transportID = ""
}

// State returns the current connection health.
func (s *Session) State() types.ConnState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// SetState records a connection health transition.
func (s *Session) SetState(state types.ConnState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

// Join records a room as joined. Idempotent.
func (s *Session) Join(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.joined[roomID] = true
}

// Leave removes a room from the joined set. Idempotent.
func (s *Session) Leave(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.joined, roomID)
}

// IsJoined reports whether a room is currently joined.
func (s *Session) IsJoined(roomID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.joined[roomID]
}

// JoinedRooms returns a snapshot of the joined room identifiers. The
// reconnect path iterates this to re-join and resynchronize every room.
func (s *Session) JoinedRooms() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rooms := make([]string, 0, len(s.joined))
	for roomID := range s.joined {
		rooms = append(rooms, roomID)
	}
	return rooms
}
