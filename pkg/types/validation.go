package types

import "regexp"

var roomIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// IsValidRoomID checks if a room identifier meets format requirements.
func IsValidRoomID(roomID string) bool {
	if len(roomID) < 1 || len(roomID) > 64 {
		return false
	}
	return roomIDRegex.MatchString(roomID)
}

// IsValidRole checks if the role is one of the two fixed participant roles.
func IsValidRole(role string) bool {
	return role == RoleApplicant || role == RoleRecruiter
}

// Validate ensures a message carries everything reconciliation depends on.
func (m *Message) Validate() error {
	if m.ID == "" {
		return ErrInvalidMessageID
	}
	if !IsValidRoomID(m.RoomID) {
		return ErrInvalidRoomID
	}
	if !IsValidRole(m.SenderRole) {
		return ErrInvalidRole
	}
	if m.Text == "" {
		return ErrEmptyMessageText
	}
	if len(m.Text) > 8192 {
		return ErrMessageTooLarge
	}
	return nil
}

// Validate ensures a room summary is usable by the registry.
func (r *Room) Validate() error {
	if !IsValidRoomID(r.ID) {
		return ErrInvalidRoomID
	}
	if !IsValidRole(r.CounterpartyRole) {
		return ErrInvalidRole
	}
	return nil
}
