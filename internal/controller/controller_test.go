package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"jobtalk/internal/presence"
	"jobtalk/internal/receipt"
	"jobtalk/internal/reconcile"
	"jobtalk/internal/registry"
	"jobtalk/internal/store"
	"jobtalk/pkg/interfaces"
	"jobtalk/pkg/types"
)

// fakeTransport implements interfaces.Transport in-memory. Tests push
// inbound events through the events channel; emitted events accumulate for
// inspection.
type fakeTransport struct {
	mu         sync.Mutex
	connected  bool
	credential string
	connectErr error
	joined     map[string]int
	emitted    []types.Event
	events     chan types.Event
	state      types.ConnState
	resync     func(string)
	onState    func(types.ConnState)
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		joined: make(map[string]int),
		events: make(chan types.Event, 32),
		state:  types.ConnDisconnected,
	}
}

func (t *fakeTransport) Connect(_ context.Context, credential string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.connectErr != nil {
		t.state = types.ConnFailed
		return t.connectErr
	}
	t.connected = true
	t.credential = credential
	t.state = types.ConnConnected
	return nil
}

func (t *fakeTransport) Disconnect() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.connected = false
	t.state = types.ConnDisconnected
	return nil
}

func (t *fakeTransport) JoinRoom(roomID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.joined[roomID]++
	return nil
}

func (t *fakeTransport) LeaveRoom(roomID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.joined, roomID)
	return nil
}

func (t *fakeTransport) Emit(ev types.Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.emitted = append(t.emitted, ev)
	return nil
}

func (t *fakeTransport) Events() <-chan types.Event { return t.events }

func (t *fakeTransport) State() types.ConnState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *fakeTransport) OnResync(fn func(string)) { t.resync = fn }

func (t *fakeTransport) OnStateChange(fn func(types.ConnState)) { t.onState = fn }

func (t *fakeTransport) emittedOfType(eventType string) []types.Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []types.Event
	for _, ev := range t.emitted {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}

func (t *fakeTransport) joinCount(roomID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.joined[roomID]
}

// fakeAPI implements interfaces.APIClient against fixture data.
type fakeAPI struct {
	mu          sync.Mutex
	rooms       []*types.Room
	history     map[string][]*types.Message // ascending per room
	pageSize    int
	seenCalls   []string
	originated  map[string]*types.Room // jobID|counterpartyID
	originCalls int
	suggestions []string
	suggestErr  error

	// When non-nil, Messages for gateRoom blocks until the channel closes.
	messagesGate chan struct{}
	gateRoom     string
}

func newFakeAPI(pageSize int) *fakeAPI {
	return &fakeAPI{
		history:    make(map[string][]*types.Message),
		pageSize:   pageSize,
		originated: make(map[string]*types.Room),
	}
}

func (a *fakeAPI) RoomsForSession(context.Context) ([]*types.Room, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rooms, nil
}

func (a *fakeAPI) Messages(_ context.Context, roomID string, page, pageSize int) ([]*types.Message, error) {
	a.mu.Lock()
	gate := a.messagesGate
	gateRoom := a.gateRoom
	a.mu.Unlock()
	if gate != nil && gateRoom == roomID {
		<-gate
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	all := a.history[roomID]
	end := len(all) - (page-1)*pageSize
	if end <= 0 {
		return nil, nil
	}
	start := end - pageSize
	if start < 0 {
		start = 0
	}
	// Newest first within the page.
	out := make([]*types.Message, 0, end-start)
	for i := end - 1; i >= start; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

func (a *fakeAPI) MarkSeen(_ context.Context, roomID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seenCalls = append(a.seenCalls, roomID)
	return nil
}

func (a *fakeAPI) OriginateRoom(_ context.Context, jobID, counterpartyID string) (*types.Room, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.originCalls++
	key := jobID + "|" + counterpartyID
	if room, exists := a.originated[key]; exists {
		return room, nil
	}
	room := &types.Room{
		ID:               fmt.Sprintf("room-%s-%s", jobID, counterpartyID),
		CounterpartyName: "Applicant " + counterpartyID,
		CounterpartyRole: types.RoleApplicant,
		Job:              types.JobRef{ID: jobID, Title: "Backend Engineer"},
		LastActivity:     time.Now(),
	}
	a.originated[key] = room
	return room, nil
}

func (a *fakeAPI) SmartReplies(context.Context, string) ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.suggestErr != nil {
		return nil, a.suggestErr
	}
	return a.suggestions, nil
}

// recordingSink captures sink notifications for assertions.
type recordingSink struct {
	mu        sync.Mutex
	truncated []string
}

func (s *recordingSink) RoomsChanged()                    {}
func (s *recordingSink) MessagesChanged(string)           {}
func (s *recordingSink) TypingChanged(string, bool)       {}
func (s *recordingSink) ConnStateChanged(types.ConnState) {}
func (s *recordingSink) HistoryTruncated(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.truncated = append(s.truncated, roomID)
}

type fixture struct {
	api       *fakeAPI
	transport *fakeTransport
	store     *store.MemoryStore
	reg       *registry.Registry
	rec       *reconcile.Reconciler
	pres      *presence.Tracker
	deps      Deps
}

func newFixture(t *testing.T, role string) *fixture {
	t.Helper()
	logger := zerolog.Nop()

	api := newFakeAPI(5)
	transport := newFakeTransport()
	mem := store.NewMemoryStore()
	reg := registry.NewRegistry(logger)
	rec := reconcile.NewReconciler(api, 5, logger)
	pres := presence.NewTracker(transport, 50*time.Millisecond, 100*time.Millisecond, nil, logger)
	rcpt := receipt.NewCoordinator(api, transport, rec, reg, role, nil, logger)

	return &fixture{
		api:       api,
		transport: transport,
		store:     mem,
		reg:       reg,
		rec:       rec,
		pres:      pres,
		deps: Deps{
			Role:       role,
			SessionKey: "sess-test",
			Credential: "token-abc",
			API:        api,
			Transport:  transport,
			Store:      mem,
			Reconciler: rec,
			Registry:   reg,
			Presence:   pres,
			Receipt:    rcpt,
			Logger:     logger,
		},
	}
}

func testRoom(id string) *types.Room {
	return &types.Room{
		ID:               id,
		CounterpartyName: "Dana",
		CounterpartyRole: types.RoleRecruiter,
		Job:              types.JobRef{ID: "job-1", Title: "Backend Engineer"},
		LastActivity:     time.Now(),
	}
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestActivate_LoadsRoomsAndJoinsAll(t *testing.T) {
	f := newFixture(t, types.RoleApplicant)
	f.api.rooms = []*types.Room{testRoom("room-a"), testRoom("room-b")}

	c := NewApplicant(f.deps)
	if err := c.Activate(context.Background()); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	defer c.Shutdown()

	if got := len(c.Rooms()); got != 2 {
		t.Fatalf("rooms = %d, want 2", got)
	}
	if f.transport.joinCount("room-a") == 0 || f.transport.joinCount("room-b") == 0 {
		t.Error("all known rooms should be joined at activation")
	}
	if c.ConnState() != types.ConnConnected {
		t.Errorf("state = %v, want connected", c.ConnState())
	}
}

func TestActivate_AuthFailureIsFatal(t *testing.T) {
	f := newFixture(t, types.RoleApplicant)
	authErr := errors.New("credential rejected")
	f.transport.connectErr = authErr

	c := NewApplicant(f.deps)
	if err := c.Activate(context.Background()); !errors.Is(err, authErr) {
		t.Fatalf("err = %v, want the auth failure surfaced", err)
	}
}

func TestActivate_RestoresPersistedSelection(t *testing.T) {
	f := newFixture(t, types.RoleApplicant)
	f.api.rooms = []*types.Room{testRoom("room-a"), testRoom("room-b")}
	if err := f.store.SaveSelection(context.Background(), "sess-test", types.RoleApplicant, "room-b"); err != nil {
		t.Fatal(err)
	}

	c := NewApplicant(f.deps)
	if err := c.Activate(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer c.Shutdown()

	if got := c.Selected(); got != "room-b" {
		t.Errorf("restored selection = %q, want room-b", got)
	}
}

func TestActivate_SkipsSelectionForVanishedRoom(t *testing.T) {
	f := newFixture(t, types.RoleApplicant)
	f.api.rooms = []*types.Room{testRoom("room-a")}
	if err := f.store.SaveSelection(context.Background(), "sess-test", types.RoleApplicant, "room-gone"); err != nil {
		t.Fatal(err)
	}

	c := NewApplicant(f.deps)
	if err := c.Activate(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer c.Shutdown()

	if got := c.Selected(); got != "" {
		t.Errorf("selection = %q, want none for a room no longer listed", got)
	}
}

func TestSelect_UnknownRoom(t *testing.T) {
	f := newFixture(t, types.RoleApplicant)
	c := NewApplicant(f.deps)
	if err := c.Activate(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer c.Shutdown()

	if err := c.Select(context.Background(), "nope"); !errors.Is(err, ErrUnknownRoom) {
		t.Errorf("err = %v, want ErrUnknownRoom", err)
	}
}

func TestSelect_MarksSeenAndPersists(t *testing.T) {
	f := newFixture(t, types.RoleApplicant)
	f.api.rooms = []*types.Room{testRoom("room-a")}

	c := NewApplicant(f.deps)
	if err := c.Activate(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer c.Shutdown()

	if err := c.Select(context.Background(), "room-a"); err != nil {
		t.Fatal(err)
	}

	f.api.mu.Lock()
	seen := len(f.api.seenCalls)
	f.api.mu.Unlock()
	if seen != 1 {
		t.Errorf("durable mark-seen calls = %d, want 1", seen)
	}
	if roomID, err := f.store.LoadSelection(context.Background(), "sess-test", types.RoleApplicant); err != nil || roomID != "room-a" {
		t.Errorf("persisted selection = (%q, %v), want room-a", roomID, err)
	}
	if marks := f.transport.emittedOfType(types.EventMarkSeen); len(marks) != 1 {
		t.Errorf("markSeen emits = %d, want 1", len(marks))
	}
}

func TestCloseRoom_ClearsSelection(t *testing.T) {
	f := newFixture(t, types.RoleApplicant)
	f.api.rooms = []*types.Room{testRoom("room-a")}

	c := NewApplicant(f.deps)
	if err := c.Activate(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer c.Shutdown()

	if err := c.Select(context.Background(), "room-a"); err != nil {
		t.Fatal(err)
	}
	c.CloseRoom(context.Background())

	if c.Selected() != "" {
		t.Error("selection should be cleared")
	}
	if _, err := f.store.LoadSelection(context.Background(), "sess-test", types.RoleApplicant); !errors.Is(err, interfaces.ErrNoSelection) {
		t.Errorf("persisted selection should be cleared, got err = %v", err)
	}
}

func TestSendMessage_RequiresActiveRoom(t *testing.T) {
	f := newFixture(t, types.RoleApplicant)
	c := NewApplicant(f.deps)
	if err := c.Activate(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer c.Shutdown()

	if _, err := c.SendMessage("hi"); !errors.Is(err, ErrNoActiveRoom) {
		t.Errorf("err = %v, want ErrNoActiveRoom", err)
	}
	if err := c.Select(context.Background(), testRoomMustAdd(t, f)); err != nil {
		t.Fatal(err)
	}
	if _, err := c.SendMessage(""); !errors.Is(err, types.ErrEmptyMessageText) {
		t.Errorf("err = %v, want ErrEmptyMessageText", err)
	}
}

func testRoomMustAdd(t *testing.T, f *fixture) string {
	t.Helper()
	room := testRoom("room-a")
	if err := f.reg.UpsertRoom(room); err != nil {
		t.Fatal(err)
	}
	return room.ID
}

func TestSendMessage_PendingRetiresOnEcho(t *testing.T) {
	f := newFixture(t, types.RoleApplicant)
	f.api.rooms = []*types.Room{testRoom("room-a")}

	c := NewApplicant(f.deps)
	if err := c.Activate(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer c.Shutdown()
	if err := c.Select(context.Background(), "room-a"); err != nil {
		t.Fatal(err)
	}

	key, err := c.SendMessage("are we still on for friday?")
	if err != nil {
		t.Fatal(err)
	}
	if key == "" {
		t.Fatal("expected a pending key")
	}
	if sends := f.transport.emittedOfType(types.EventSendMessage); len(sends) != 1 || sends[0].Text != "are we still on for friday?" {
		t.Fatalf("emitted sends = %+v, want exactly the composed text", sends)
	}
	if got := c.PendingSends("room-a"); len(got) != 1 || got[0].Key != key {
		t.Fatalf("pending = %+v, want the one unacked send", got)
	}

	// The server echo retires the pending entry and lands in the sequence.
	f.transport.events <- types.Event{
		Type:   types.EventNewMessage,
		RoomID: "room-a",
		Message: &types.Message{
			ID:         "m-echo-1",
			RoomID:     "room-a",
			SenderRole: types.RoleApplicant,
			Text:       "are we still on for friday?",
			CreatedAt:  time.Now(),
		},
	}

	waitFor(t, func() bool { return len(c.PendingSends("room-a")) == 0 }, "pending entry never retired")
	waitFor(t, func() bool { return len(c.Messages("room-a")) == 1 }, "echo never reconciled")
}

func TestCounterpartyMessage_UnreadOnInactiveRoom(t *testing.T) {
	f := newFixture(t, types.RoleApplicant)
	f.api.rooms = []*types.Room{testRoom("room-a"), testRoom("room-b")}

	c := NewApplicant(f.deps)
	if err := c.Activate(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer c.Shutdown()
	if err := c.Select(context.Background(), "room-a"); err != nil {
		t.Fatal(err)
	}

	f.transport.events <- types.Event{
		Type:   types.EventNewMessage,
		RoomID: "room-b",
		Message: &types.Message{
			ID:         "m-1",
			RoomID:     "room-b",
			SenderRole: types.RoleRecruiter,
			Text:       "any update on your availability?",
			CreatedAt:  time.Now(),
		},
	}

	waitFor(t, func() bool {
		room, exists := f.reg.GetRoom("room-b")
		return exists && room.Unread == 1
	}, "inactive room never accrued unread")

	if room, _ := f.reg.GetRoom("room-a"); room.Unread != 0 {
		t.Errorf("active room unread = %d, want 0", room.Unread)
	}
}

func TestLoadOlder_SupersededResultIsDropped(t *testing.T) {
	f := newFixture(t, types.RoleApplicant)
	f.api.rooms = []*types.Room{testRoom("room-a"), testRoom("room-b")}
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		f.api.history["room-a"] = append(f.api.history["room-a"], &types.Message{
			ID:         fmt.Sprintf("m-%02d", i),
			RoomID:     "room-a",
			SenderRole: types.RoleRecruiter,
			Text:       fmt.Sprintf("message %d", i),
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		})
	}

	c := NewApplicant(f.deps)
	if err := c.Activate(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer c.Shutdown()
	if err := c.Select(context.Background(), "room-a"); err != nil {
		t.Fatal(err)
	}
	// The select already seeded the history; the next fetch blocks until we
	// deselect mid-flight.
	gate := make(chan struct{})
	f.api.mu.Lock()
	f.api.messagesGate = gate
	f.api.gateRoom = "room-a"
	f.api.history["room-a"] = append([]*types.Message{{
		ID:         "m-older",
		RoomID:     "room-a",
		SenderRole: types.RoleRecruiter,
		Text:       "an older message",
		CreatedAt:  base.Add(-time.Minute),
	}}, f.api.history["room-a"]...)
	f.api.mu.Unlock()

	done := make(chan struct{})
	var n int
	var loadErr error
	go func() {
		n, loadErr = c.LoadOlder(context.Background())
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	if err := c.Select(context.Background(), "room-b"); err != nil {
		t.Fatal(err)
	}
	close(gate)
	<-done

	if loadErr != nil {
		t.Fatalf("LoadOlder failed: %v", loadErr)
	}
	if n != 0 {
		t.Errorf("superseded LoadOlder reported %d messages, want 0", n)
	}
}

func TestSmartReplies(t *testing.T) {
	f := newFixture(t, types.RoleApplicant)
	f.api.rooms = []*types.Room{testRoom("room-a")}
	f.api.suggestions = []string{"Sounds great!", "Let me check my calendar."}
	f.api.history["room-a"] = []*types.Message{{
		ID:         "m-1",
		RoomID:     "room-a",
		SenderRole: types.RoleRecruiter,
		Text:       "can you start monday?",
		CreatedAt:  time.Now(),
	}}

	c := NewApplicant(f.deps)
	if err := c.Activate(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer c.Shutdown()

	if _, err := c.SmartReplies(context.Background()); !errors.Is(err, ErrNoActiveRoom) {
		t.Fatalf("err = %v, want ErrNoActiveRoom before selection", err)
	}

	if err := c.Select(context.Background(), "room-a"); err != nil {
		t.Fatal(err)
	}
	replies, err := c.SmartReplies(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(replies) != 2 {
		t.Fatalf("replies = %v, want 2 suggestions", replies)
	}

	f.api.mu.Lock()
	f.api.suggestErr = interfaces.ErrSuggestionsWithheld
	f.api.mu.Unlock()
	if _, err := c.SmartReplies(context.Background()); !errors.Is(err, interfaces.ErrSuggestionsWithheld) {
		t.Errorf("err = %v, want the withheld sentinel passed through", err)
	}
}

func TestOriginateRoom_Idempotent(t *testing.T) {
	f := newFixture(t, types.RoleRecruiter)

	c := NewRecruiter(f.deps)
	if err := c.Activate(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer c.Shutdown()

	first, err := c.OriginateRoom(context.Background(), "42", "7")
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.OriginateRoom(context.Background(), "42", "7")
	if err != nil {
		t.Fatal(err)
	}

	if first != second {
		t.Errorf("originate resolved to %q then %q, want the same room", first, second)
	}
	if got := len(c.Rooms()); got != 1 {
		t.Errorf("registry holds %d rooms for the pair, want exactly 1", got)
	}
	if f.transport.joinCount(first) == 0 {
		t.Error("originated room should be joined immediately")
	}
}

func TestChatClosed_ClearsSelectionAndState(t *testing.T) {
	f := newFixture(t, types.RoleApplicant)
	f.api.rooms = []*types.Room{testRoom("room-a")}

	c := NewApplicant(f.deps)
	if err := c.Activate(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer c.Shutdown()
	if err := c.Select(context.Background(), "room-a"); err != nil {
		t.Fatal(err)
	}

	f.transport.events <- types.Event{Type: types.EventChatClosed, RoomID: "room-a"}

	waitFor(t, func() bool { return c.Selected() == "" }, "selection never cleared on chatClosed")
	waitFor(t, func() bool { return len(c.Rooms()) == 0 }, "room never removed on chatClosed")
}

func TestResync_TruncationReachesSink(t *testing.T) {
	f := newFixture(t, types.RoleApplicant)
	f.api.rooms = []*types.Room{testRoom("room-a")}
	sink := &recordingSink{}
	f.deps.Sink = sink

	c := NewApplicant(f.deps)
	if err := c.Activate(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer c.Shutdown()

	// Local state holds messages the server no longer returns in page 1:
	// the gap is unbridgeable and the resync replaces the tail.
	base := time.Now().Add(-time.Hour)
	f.rec.SeedHistory("room-a", []*types.Message{{
		ID: "m-old", RoomID: "room-a", SenderRole: types.RoleRecruiter,
		Text: "stale", CreatedAt: base,
	}})
	for i := 0; i < 5; i++ {
		f.api.history["room-a"] = append(f.api.history["room-a"], &types.Message{
			ID:         fmt.Sprintf("m-new-%d", i),
			RoomID:     "room-a",
			SenderRole: types.RoleRecruiter,
			Text:       fmt.Sprintf("while you were away %d", i),
			CreatedAt:  base.Add(time.Duration(i+10) * time.Minute),
		})
	}

	if f.transport.resync == nil {
		t.Fatal("resync hook was never registered")
	}
	f.transport.resync("room-a")

	waitFor(t, func() bool {
		sink.mu.Lock()
		defer sink.mu.Unlock()
		return len(sink.truncated) == 1 && sink.truncated[0] == "room-a"
	}, "truncation never notified")

	if !f.rec.Truncated("room-a") {
		t.Error("room should be flagged truncated after the discard")
	}
}
