package controller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"jobtalk/internal/presence"
	"jobtalk/internal/receipt"
	"jobtalk/internal/reconcile"
	"jobtalk/internal/registry"
	"jobtalk/internal/router"
	"jobtalk/pkg/interfaces"
	"jobtalk/pkg/types"
)

// Deps are the collaborators a controller orchestrates.
type Deps struct {
	Role       string
	SessionKey string
	Credential string

	API       interfaces.APIClient
	Transport interfaces.Transport
	Store     interfaces.SelectionStore
	Sink      interfaces.EventSink

	Reconciler *reconcile.Reconciler
	Registry   *registry.Registry
	Presence   *presence.Tracker
	Receipt    *receipt.Coordinator

	Logger zerolog.Logger
}

// PendingSend is a locally-sent message awaiting its server echo. It never
// enters the reconciled sequence; views may render it as transient.
type PendingSend struct {
	Key    string
	RoomID string
	Text   string
	SentAt time.Time
}

// Controller is the shared core of both role controllers: room discovery,
// the selection state machine, the transport event pump, and user actions.
// All inbound events flow through its single pump goroutine, making the
// reconciler mutations sequentially ordered.
type Controller struct {
	role       string
	sessionKey string
	credential string

	api       interfaces.APIClient
	transport interfaces.Transport
	store     interfaces.SelectionStore
	sink      interfaces.EventSink
	rec       *reconcile.Reconciler
	reg       *registry.Registry
	presence  *presence.Tracker
	receipt   *receipt.Coordinator
	router    *router.Router
	logger    zerolog.Logger

	mu       sync.Mutex
	selected string
	pending  map[string][]PendingSend // roomID -> FIFO awaiting echo
	running  bool

	ctx    context.Context
	cancel context.CancelFunc
}

func newController(deps Deps) *Controller {
	c := &Controller{
		role:       deps.Role,
		sessionKey: deps.SessionKey,
		credential: deps.Credential,
		api:        deps.API,
		transport:  deps.Transport,
		store:      deps.Store,
		sink:       deps.Sink,
		rec:        deps.Reconciler,
		reg:        deps.Registry,
		presence:   deps.Presence,
		receipt:    deps.Receipt,
		pending:    make(map[string][]PendingSend),
		logger:     deps.Logger.With().Str("component", "controller").Str("role", deps.Role).Logger(),
	}
	if c.sink == nil {
		c.sink = interfaces.NopSink{}
	}

	c.router = router.NewRouter(c.rec, c.reg, c.presence, c.receipt, c.sink, router.Hooks{
		ActiveRoom: c.Selected,
		OwnEcho:    c.retirePending,
		RoomClosed: c.handleRoomClosed,
	}, c.role, deps.Logger)

	return c
}

// Activate bulk-loads the room list, connects the transport, joins the
// known rooms and restores the persisted selection if that room still
// exists. Authentication failure is fatal and surfaced unretried.
func (c *Controller) Activate(ctx context.Context) error {
	rooms, err := c.api.RoomsForSession(ctx)
	if err != nil {
		return fmt.Errorf("bulk room load: %w", err)
	}
	for _, room := range rooms {
		if uerr := c.reg.UpsertRoom(room); uerr != nil {
			c.logger.Warn().Err(uerr).Str("room", room.ID).Msg("skipping invalid room summary")
		}
	}

	c.transport.OnResync(c.handleResync)
	c.transport.OnStateChange(c.sink.ConnStateChanged)

	if err := c.transport.Connect(ctx, c.credential); err != nil {
		return fmt.Errorf("transport connect: %w", err)
	}

	// Join every known room so previews and unread counts track live
	// activity even while another room is selected.
	for _, room := range c.reg.ListRooms() {
		if jerr := c.transport.JoinRoom(room.ID); jerr != nil {
			c.logger.Warn().Err(jerr).Str("room", room.ID).Msg("join failed")
		}
	}

	c.mu.Lock()
	c.running = true
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.mu.Unlock()
	go c.pump()

	// Restore the persisted selection only if the room survived.
	if roomID, lerr := c.store.LoadSelection(ctx, c.sessionKey, c.role); lerr == nil {
		if c.reg.Contains(roomID) {
			if serr := c.Select(ctx, roomID); serr != nil {
				c.logger.Warn().Err(serr).Str("room", roomID).Msg("restoring selection failed")
			}
		}
	}

	c.sink.RoomsChanged()
	c.logger.Info().Int("rooms", len(rooms)).Msg("controller activated")
	return nil
}

// pump is the single-threaded ordering point for all inbound events.
func (c *Controller) pump() {
	for {
		select {
		case ev := <-c.transport.Events():
			c.router.Route(c.ctx, ev)
		case <-c.ctx.Done():
			return
		}
	}
}

// Shutdown stops the pump, the typing timers and the transport.
func (c *Controller) Shutdown() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	cancel := c.cancel
	c.mu.Unlock()

	cancel()
	c.presence.Stop()
	if err := c.transport.Disconnect(); err != nil {
		c.logger.Debug().Err(err).Msg("transport teardown")
	}
	c.logger.Info().Msg("controller shut down")
}

// Selected returns the active room identifier, empty when none.
func (c *Controller) Selected() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected
}

// Select makes roomID the active selection. Direct selected→selected
// transitions are allowed; the previous room's mark-seen side effects are
// already handled, the new room's fire here. Every transition persists the
// selection so a reload restores it.
func (c *Controller) Select(ctx context.Context, roomID string) error {
	if !c.reg.Contains(roomID) {
		return ErrUnknownRoom
	}

	c.mu.Lock()
	if c.selected == roomID {
		c.mu.Unlock()
		return nil
	}
	c.selected = roomID
	c.mu.Unlock()

	c.reg.SetSelected(roomID)
	if err := c.transport.JoinRoom(roomID); err != nil {
		c.logger.Warn().Err(err).Str("room", roomID).Msg("join on select failed")
	}

	// Seed the backlog on first view of the room.
	if len(c.rec.Snapshot(roomID)) == 0 && !c.rec.Exhausted(roomID) {
		if _, err := c.rec.LoadOlder(ctx, roomID); err != nil {
			c.logger.Warn().Err(err).Str("room", roomID).Msg("initial history fetch failed")
		}
	}

	if err := c.receipt.MarkSeen(ctx, roomID); err != nil {
		c.logger.Warn().Err(err).Str("room", roomID).Msg("mark seen on select failed")
	}

	if err := c.store.SaveSelection(ctx, c.sessionKey, c.role, roomID); err != nil {
		c.logger.Warn().Err(err).Msg("persisting selection failed")
	}

	c.sink.RoomsChanged()
	c.sink.MessagesChanged(roomID)
	return nil
}

// CloseRoom transitions selected→none on explicit close.
func (c *Controller) CloseRoom(ctx context.Context) {
	c.mu.Lock()
	if c.selected == "" {
		c.mu.Unlock()
		return
	}
	c.selected = ""
	c.mu.Unlock()

	c.reg.SetSelected("")
	if err := c.store.ClearSelection(ctx, c.sessionKey, c.role); err != nil {
		c.logger.Warn().Err(err).Msg("clearing persisted selection failed")
	}
	c.sink.RoomsChanged()
}

// SendMessage emits a fire-and-forget send for the active room and records
// a pending entry keyed by a locally-generated identifier. The entry
// retires when the server echo arrives; confirmation comes from the echo,
// never from this call.
func (c *Controller) SendMessage(text string) (string, error) {
	if text == "" {
		return "", types.ErrEmptyMessageText
	}
	if len(text) > 8192 {
		return "", types.ErrMessageTooLarge
	}

	c.mu.Lock()
	roomID := c.selected
	if roomID == "" {
		c.mu.Unlock()
		return "", ErrNoActiveRoom
	}
	key := ulid.Make().String()
	c.pending[roomID] = append(c.pending[roomID], PendingSend{
		Key:    key,
		RoomID: roomID,
		Text:   text,
		SentAt: time.Now(),
	})
	c.mu.Unlock()

	if err := c.transport.Emit(types.Event{Type: types.EventSendMessage, RoomID: roomID, Text: text}); err != nil {
		return "", err
	}
	return key, nil
}

// retirePending drops the oldest pending entry for a room when the echo of
// an own-role message arrives.
func (c *Controller) retirePending(roomID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	queue := c.pending[roomID]
	if len(queue) == 0 {
		return
	}
	c.pending[roomID] = queue[1:]
	if len(c.pending[roomID]) == 0 {
		delete(c.pending, roomID)
	}
}

// PendingSends returns a snapshot of the sends still awaiting their echo.
func (c *Controller) PendingSends(roomID string) []PendingSend {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]PendingSend, len(c.pending[roomID]))
	copy(out, c.pending[roomID])
	return out
}

// LoadOlder fetches the next history page for the active room. If the room
// is deselected before the fetch resolves, the result is dropped rather
// than presented; the fetched messages stay reconciled for the room's next
// visit, which keeps the sequence consistent.
func (c *Controller) LoadOlder(ctx context.Context) (int, error) {
	roomID := c.Selected()
	if roomID == "" {
		return 0, ErrNoActiveRoom
	}

	n, err := c.rec.LoadOlder(ctx, roomID)
	if err != nil {
		return 0, err
	}

	if c.Selected() != roomID {
		// Superseded: the room context changed mid-flight.
		return 0, nil
	}
	c.sink.MessagesChanged(roomID)
	return n, nil
}

// Messages returns the visible sequence snapshot for a room.
func (c *Controller) Messages(roomID string) []types.Message {
	return c.rec.Snapshot(roomID)
}

// Rooms returns the room list ordered by last activity.
func (c *Controller) Rooms() []types.Room {
	return c.reg.ListRooms()
}

// CounterpartyTyping reports the ephemeral typing flag for the active room.
func (c *Controller) CounterpartyTyping() bool {
	roomID := c.Selected()
	if roomID == "" {
		return false
	}
	return c.presence.IsTyping(roomID)
}

// InputChanged forwards a keystroke in the active room's composer to the
// debounced typing signal.
func (c *Controller) InputChanged() {
	if roomID := c.Selected(); roomID != "" {
		c.presence.NotifyTyping(roomID)
	}
}

// InputCleared signals the composer was emptied or the message sent.
func (c *Controller) InputCleared() {
	if roomID := c.Selected(); roomID != "" {
		c.presence.NotifyStopped(roomID)
	}
}

// SmartReplies fetches suggestion texts for the newest message in the
// active room. interfaces.ErrSuggestionsWithheld passes through unchanged
// so the view can present the policy refusal distinctly.
func (c *Controller) SmartReplies(ctx context.Context) ([]string, error) {
	roomID := c.Selected()
	if roomID == "" {
		return nil, ErrNoActiveRoom
	}
	latest, ok := c.rec.Latest(roomID)
	if !ok {
		return nil, nil
	}
	return c.api.SmartReplies(ctx, latest.ID)
}

// ConnState reports coarse transport health for the view.
func (c *Controller) ConnState() types.ConnState {
	return c.transport.State()
}

// handleResync runs the reconnect-gap reconciliation for one room. Invoked
// from the transport after a successful reconnect.
func (c *Controller) handleResync(roomID string) {
	c.mu.Lock()
	ctx := c.ctx
	c.mu.Unlock()
	if ctx == nil {
		return
	}

	go func() {
		truncated, err := c.rec.Resynchronize(ctx, roomID)
		if err != nil {
			c.logger.Warn().Err(err).Str("room", roomID).Msg("resynchronization failed")
			return
		}
		if truncated {
			c.sink.HistoryTruncated(roomID)
		}
		c.sink.MessagesChanged(roomID)
	}()
}

// handleRoomClosed clears the selection when the active room is invalidated
// externally.
func (c *Controller) handleRoomClosed(roomID string) {
	c.mu.Lock()
	wasSelected := c.selected == roomID
	if wasSelected {
		c.selected = ""
	}
	ctx := c.ctx
	c.mu.Unlock()

	if wasSelected && ctx != nil {
		if err := c.store.ClearSelection(ctx, c.sessionKey, c.role); err != nil {
			c.logger.Warn().Err(err).Msg("clearing selection for closed room failed")
		}
	}
}
