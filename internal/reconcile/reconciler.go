package reconcile

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"jobtalk/internal/metrics"
	"jobtalk/pkg/types"
)

// PageFetcher fetches one ordered history page; page 1 is the most recent.
// Satisfied by the API client.
type PageFetcher interface {
	Messages(ctx context.Context, roomID string, page, pageSize int) ([]*types.Message, error)
}

// Reconciler merges paginated history with live pushes into one gap-free,
// duplicate-free, (timestamp, identifier)-ordered sequence per room. It is
// the single ordering point: no other component writes message sequences.
type Reconciler struct {
	mu       sync.RWMutex
	rooms    map[string]*roomState
	fetcher  PageFetcher
	pageSize int
	logger   zerolog.Logger
}

// roomState holds one room's reconciled sequence and pagination cursor.
type roomState struct {
	msgs        []*types.Message // sorted ascending by (CreatedAt, ID)
	byID        map[string]*types.Message
	pagesLoaded int  // history pages absorbed so far
	exhausted   bool // a short page was seen; no older history remains
	truncated   bool // resync discarded the tail; load-more must restart
}

// NewReconciler creates a reconciler fetching pages of the given size.
func NewReconciler(fetcher PageFetcher, pageSize int, logger zerolog.Logger) *Reconciler {
	return &Reconciler{
		rooms:    make(map[string]*roomState),
		fetcher:  fetcher,
		pageSize: pageSize,
		logger:   logger.With().Str("component", "reconcile").Logger(),
	}
}

func (r *Reconciler) room(roomID string) *roomState {
	rs, exists := r.rooms[roomID]
	if !exists {
		rs = &roomState{byID: make(map[string]*types.Message)}
		r.rooms[roomID] = rs
	}
	return rs
}

// insert places a message at its ordering position. Duplicate identifiers
// are no-ops. Returns true if the message was new.
func (rs *roomState) insert(msg *types.Message) bool {
	if _, dup := rs.byID[msg.ID]; dup {
		return false
	}
	cp := *msg
	idx := sort.Search(len(rs.msgs), func(i int) bool {
		return msg.Less(rs.msgs[i])
	})
	rs.msgs = append(rs.msgs, nil)
	copy(rs.msgs[idx+1:], rs.msgs[idx:])
	rs.msgs[idx] = &cp
	rs.byID[cp.ID] = &cp
	return true
}

// SeedHistory inserts an ordered history page into the room's sequence,
// skipping identifiers already present. Returns the number inserted.
func (r *Reconciler) SeedHistory(roomID string, page []*types.Message) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	rs := r.room(roomID)
	inserted := 0
	for _, msg := range page {
		if msg.RoomID != roomID {
			continue
		}
		if rs.insert(msg) {
			inserted++
		}
	}
	return inserted
}

// ApplyLive inserts a transport-pushed message. Returns true if the message
// was new; the echo of a locally-sent message that already arrived via
// history is absorbed here.
func (r *Reconciler) ApplyLive(roomID string, msg *types.Message) bool {
	if msg.RoomID != roomID {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.room(roomID).insert(msg)
}

// LoadOlder fetches the next history page for the room and reconciles it in.
// The returned count is the fetched page length; a count below the page size
// means no more history exists. The first call on an empty room fetches the
// most recent page.
func (r *Reconciler) LoadOlder(ctx context.Context, roomID string) (int, error) {
	r.mu.RLock()
	page := 1
	if rs, exists := r.rooms[roomID]; exists {
		if rs.exhausted {
			r.mu.RUnlock()
			return 0, nil
		}
		page = rs.pagesLoaded + 1
	}
	r.mu.RUnlock()

	fetched, err := r.fetcher.Messages(ctx, roomID, page, r.pageSize)
	if err != nil {
		return 0, fmt.Errorf("load older page %d: %w", page, err)
	}
	metrics.HistoryPagesFetched.Inc()

	r.mu.Lock()
	defer r.mu.Unlock()

	rs := r.room(roomID)
	for _, msg := range fetched {
		if msg.RoomID == roomID {
			rs.insert(msg)
		}
	}
	if page > rs.pagesLoaded {
		rs.pagesLoaded = page
	}
	if len(fetched) < r.pageSize {
		rs.exhausted = true
	}
	if rs.truncated && page > 1 {
		// Load-more after a truncating resync restores access to older
		// history, so the informational flag is cleared.
		rs.truncated = false
	}
	return len(fetched), nil
}

// Resynchronize bridges the gap after a reconnect by re-fetching the most
// recent page. When the page overlaps the in-memory tail it is merged; when
// it does not, the room's sequence is discarded and replaced, and the
// returned flag tells the caller older messages need an explicit load-more.
// Calling twice with no new server-side messages is a no-op the second time.
func (r *Reconciler) Resynchronize(ctx context.Context, roomID string) (truncated bool, err error) {
	fetched, err := r.fetcher.Messages(ctx, roomID, 1, r.pageSize)
	if err != nil {
		return false, fmt.Errorf("resynchronize: %w", err)
	}
	metrics.HistoryPagesFetched.Inc()

	r.mu.Lock()
	defer r.mu.Unlock()

	rs := r.room(roomID)

	overlap := len(rs.msgs) == 0
	for _, msg := range fetched {
		if _, held := rs.byID[msg.ID]; held {
			overlap = true
			break
		}
	}

	if overlap {
		for _, msg := range fetched {
			if msg.RoomID == roomID {
				rs.insert(msg)
			}
		}
		if rs.pagesLoaded == 0 {
			rs.pagesLoaded = 1
		}
		if len(fetched) < r.pageSize {
			rs.exhausted = true
		}
		metrics.Resyncs.WithLabelValues("merged").Inc()
		return false, nil
	}

	// The tail no longer overlaps: events lost during the outage exceed one
	// page. Discard and replace; older history is reachable again via
	// LoadOlder from page 2.
	fresh := &roomState{byID: make(map[string]*types.Message)}
	for _, msg := range fetched {
		if msg.RoomID == roomID {
			fresh.insert(msg)
		}
	}
	fresh.pagesLoaded = 1
	fresh.exhausted = len(fetched) < r.pageSize
	fresh.truncated = true
	r.rooms[roomID] = fresh

	r.logger.Info().Str("room", roomID).Msg("resync gap unbridgeable, sequence replaced")
	metrics.Resyncs.WithLabelValues("truncated").Inc()
	return true, nil
}

// MarkOwnSeen flips the seen flag on every message in the room sent by the
// given role. Monotonic: flags only advance, never revert. Returns the
// number of messages newly marked.
func (r *Reconciler) MarkOwnSeen(roomID, role string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	rs, exists := r.rooms[roomID]
	if !exists {
		return 0
	}
	marked := 0
	for _, msg := range rs.msgs {
		if msg.SenderRole == role && !msg.Seen {
			msg.Seen = true
			marked++
		}
	}
	return marked
}

// Snapshot returns a copy of the room's visible sequence in order. Views
// never receive a live reference into reconciler state.
func (r *Reconciler) Snapshot(roomID string) []types.Message {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rs, exists := r.rooms[roomID]
	if !exists {
		return nil
	}
	out := make([]types.Message, len(rs.msgs))
	for i, msg := range rs.msgs {
		out[i] = *msg
	}
	return out
}

// Latest returns a copy of the newest message in the room, if any.
func (r *Reconciler) Latest(roomID string) (types.Message, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rs, exists := r.rooms[roomID]
	if !exists || len(rs.msgs) == 0 {
		return types.Message{}, false
	}
	return *rs.msgs[len(rs.msgs)-1], true
}

// Exhausted reports whether all history for the room has been fetched.
func (r *Reconciler) Exhausted(roomID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rs, exists := r.rooms[roomID]
	return exists && rs.exhausted
}

// Truncated reports whether the last resync discarded the room's tail.
func (r *Reconciler) Truncated(roomID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rs, exists := r.rooms[roomID]
	return exists && rs.truncated
}

// Forget drops all state for a room, e.g. after chatClosed.
func (r *Reconciler) Forget(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rooms, roomID)
}
