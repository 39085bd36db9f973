package interfaces

import (
	"context"
	"errors"
)

// ErrNoSelection is returned when no room selection is persisted for a key.
var ErrNoSelection = errors.New("no persisted room selection")

// SelectionStore persists the selected-room identifier per (session, role).
// Nothing else survives a reload; everything else is rebuilt from the API
// and fresh transport events.
type SelectionStore interface {
	SaveSelection(ctx context.Context, sessionKey, role, roomID string) error

	// LoadSelection returns ErrNoSelection when nothing is persisted.
	LoadSelection(ctx context.Context, sessionKey, role string) (string, error)

	ClearSelection(ctx context.Context, sessionKey, role string) error

	Close() error
}
