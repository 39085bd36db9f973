package registry

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"jobtalk/pkg/types"
)

// Registry is the in-memory index of rooms the participant has joined.
// Reads always return copies so a view never observes a partially-updated
// room mid-merge.
type Registry struct {
	mu     sync.RWMutex
	rooms  map[string]*types.Room // roomID -> Room
	logger zerolog.Logger
}

// NewRegistry creates an empty room registry.
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		rooms:  make(map[string]*types.Room),
		logger: logger.With().Str("component", "registry").Logger(),
	}
}

// ListRooms returns a snapshot of the known rooms ordered by last activity,
// most recent first.
func (r *Registry) ListRooms() []types.Room {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rooms := make([]types.Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		rooms = append(rooms, *room)
	}
	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].LastActivity.Equal(rooms[j].LastActivity) {
			return rooms[i].ID < rooms[j].ID
		}
		return rooms[i].LastActivity.After(rooms[j].LastActivity)
	})
	return rooms
}

// GetRoom returns a copy of one room.
func (r *Registry) GetRoom(roomID string) (types.Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, exists := r.rooms[roomID]
	if !exists {
		return types.Room{}, false
	}
	return *room, true
}

// UpsertRoom merges a room summary by identifier. Called from the initial
// bulk load and from live room-touched events. Local unread counts and the
// selection flag are preserved; metadata, preview and activity are replaced.
func (r *Registry) UpsertRoom(room *types.Room) error {
	if err := room.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.rooms[room.ID]
	if !exists {
		cp := *room
		cp.Selected = false
		r.rooms[room.ID] = &cp
		r.logger.Debug().Str("room", room.ID).Msg("room added")
		return nil
	}

	existing.CounterpartyName = room.CounterpartyName
	existing.CounterpartyRole = room.CounterpartyRole
	existing.Job = room.Job
	existing.Preview = room.Preview
	if room.LastActivity.After(existing.LastActivity) {
		existing.LastActivity = room.LastActivity
	}
	return nil
}

// Touch updates a room's preview and activity from a live message.
func (r *Registry) Touch(msg *types.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, exists := r.rooms[msg.RoomID]
	if !exists {
		return
	}
	room.Preview = msg.Text
	if msg.CreatedAt.After(room.LastActivity) {
		room.LastActivity = msg.CreatedAt
	}
}

// RemoveRoom drops a room invalidated by an external event, e.g. the owning
// application was withdrawn. Idempotent.
func (r *Registry) RemoveRoom(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.rooms[roomID]; exists {
		delete(r.rooms, roomID)
		r.logger.Debug().Str("room", roomID).Msg("room removed")
	}
}

// IncrementUnread bumps a room's unread count.
func (r *Registry) IncrementUnread(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if room, exists := r.rooms[roomID]; exists {
		room.Unread++
	}
}

// ClearUnread zeroes a room's unread count.
func (r *Registry) ClearUnread(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if room, exists := r.rooms[roomID]; exists {
		room.Unread = 0
	}
}

// SetSelected marks roomID as the active selection and clears the flag on
// every other room. Empty roomID clears all selection.
func (r *Registry) SetSelected(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, room := range r.rooms {
		room.Selected = id == roomID
	}
}

// Contains reports whether a room is known.
func (r *Registry) Contains(roomID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.rooms[roomID]
	return exists
}

// Stats returns registry counters for monitoring.
func (r *Registry) Stats() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	unread := 0
	for _, room := range r.rooms {
		unread += room.Unread
	}
	return map[string]int{
		"rooms":        len(r.rooms),
		"total_unread": unread,
	}
}
