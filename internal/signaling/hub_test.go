package signaling

import (
	"context"
	"errors"
	"maps"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beaconcast/beacon/internal/codec"
	"github.com/beaconcast/beacon/internal/config"
	"github.com/beaconcast/beacon/internal/events"
	"github.com/beaconcast/beacon/internal/protocol"
)

var testNow = time.Date(2024, time.May, 1, 12, 0, 0, 123_000_000, time.UTC)

const testTimestamp = "2024-05-01T12:00:00.123Z"

type fakeScheduler struct {
	mu      sync.Mutex
	delays  []time.Duration
	pending []func()
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	s.pending = append(s.pending, f)
}

func (s *fakeScheduler) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// fireAll runs every pending callback, as if the grace period had elapsed.
func (s *fakeScheduler) fireAll() {
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, f := range pending {
		f()
	}
}

type fakePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *fakePublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func (p *fakePublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type harness struct {
	t       *testing.T
	hub     *Hub
	sched   *fakeScheduler
	pub     *fakePublisher
	clients []*Client
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		t:     t,
		sched: &fakeScheduler{},
		pub:   &fakePublisher{},
	}
	h.hub = NewHub(
		WithScheduler(h.sched),
		WithPublisher(h.pub),
		WithClock(func() time.Time { return testNow }),
		WithLogger(zerolog.Nop()),
	)

	ctx, cancel := context.WithCancel(context.Background())
	go h.hub.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-h.hub.done
	})
	return h
}

func (h *harness) connectWith(cfg config.WebSocketConfig) *Client {
	h.t.Helper()
	c := NewClient(h.hub, nil, codec.JSON, cfg)
	require.True(h.t, h.hub.Register(c))
	h.sync()
	h.clients = append(h.clients, c)
	return c
}

// connect registers a client and consumes its connected event.
func (h *harness) connect() *Client {
	h.t.Helper()
	c := h.connectWith(config.DefaultWebSocket())
	env := h.expect(c, protocol.EventConnected)
	assert.Equal(h.t, protocol.Connected{ID: c.ID}, env.Payload)
	return c
}

// sync waits until the hub has handled everything submitted so far.
func (h *harness) sync() {
	h.t.Helper()
	_, err := h.hub.Stats(context.Background())
	require.NoError(h.t, err)
}

// emit sends an event from c through the JSON codec, as a browser would.
func (h *harness) emit(c *Client, event string, payload any) {
	h.t.Helper()
	data, err := codec.JSON.Marshal(&codec.Envelope{Type: event, Payload: payload})
	require.NoError(h.t, err)
	frame, err := codec.JSON.Unmarshal(data)
	require.NoError(h.t, err)
	require.True(h.t, h.hub.Submit(&Message{Client: c, Frame: frame}))
	h.sync()
}

func (h *harness) disconnect(c *Client) {
	h.t.Helper()
	h.hub.Unregister(c)
	h.sync()
}

func (h *harness) next(c *Client) *codec.Envelope {
	h.t.Helper()
	select {
	case env, ok := <-c.Send:
		require.True(h.t, ok, "send queue of %s closed", c.ID)
		return env
	default:
		require.FailNow(h.t, "no pending event", "client %s", c.ID)
		return nil
	}
}

func (h *harness) expect(c *Client, event string) *codec.Envelope {
	h.t.Helper()
	env := h.next(c)
	require.Equal(h.t, event, env.Type)
	return env
}

func (h *harness) assertSilent(c *Client) {
	h.t.Helper()
	select {
	case env, ok := <-c.Send:
		if ok {
			assert.Failf(h.t, "unexpected event", "client %s got %s", c.ID, env.Type)
		}
	default:
	}
}

func (h *harness) drainAll() {
	for _, c := range h.clients {
		for len(c.Send) > 0 {
			<-c.Send
		}
	}
}

// createRoom has host open a room and clears the resulting directory updates.
func (h *harness) createRoom(host *Client, title string) string {
	h.t.Helper()
	h.emit(host, protocol.EventCreateStream, protocol.CreateStream{Title: title})
	env := h.expect(host, protocol.EventStreamCreated)
	h.drainAll()
	return env.Payload.(protocol.StreamCreated).RoomID
}

func (h *harness) join(c *Client, roomID string, isHost bool) protocol.StreamJoined {
	h.t.Helper()
	h.emit(c, protocol.EventJoinStream, protocol.JoinStream{RoomID: roomID, IsHost: isHost})
	env := h.expect(c, protocol.EventStreamJoined)
	return env.Payload.(protocol.StreamJoined)
}

func (h *harness) room(id string) (Room, bool) {
	h.t.Helper()
	var (
		r     Room
		found bool
	)
	require.NoError(h.t, h.hub.do(context.Background(), func() {
		if room, ok := h.hub.registry.Get(id); ok {
			r = *room
			r.Viewers = maps.Clone(room.Viewers)
			found = true
		}
	}))
	return r, found
}

func TestCreateStream(t *testing.T) {
	h := newHarness(t)
	host := h.connect()
	other := h.connect()

	h.emit(host, protocol.EventCreateStream, map[string]any{})

	created := h.expect(host, protocol.EventStreamCreated).Payload.(protocol.StreamCreated)
	require.NotEmpty(t, created.RoomID)

	want := []protocol.StreamSummary{{
		RoomID:      created.RoomID,
		Title:       protocol.DefaultTitle,
		Description: "",
		CreatedAt:   testTimestamp,
		ViewerCount: 0,
	}}
	assert.Equal(t, want, h.expect(host, protocol.EventStreamListUpdated).Payload)
	assert.Equal(t, want, h.expect(other, protocol.EventStreamListUpdated).Payload)

	room, ok := h.room(created.RoomID)
	require.True(t, ok)
	assert.Equal(t, host.ID, room.Host)
	assert.Empty(t, room.Viewers)

	assert.Equal(t, []events.Type{events.StreamCreated}, h.pub.types())
}

func TestCreateStreamKeepsMetadata(t *testing.T) {
	h := newHarness(t)
	host := h.connect()

	h.emit(host, protocol.EventCreateStream, protocol.CreateStream{Title: "Launch", Description: "live from the pad"})
	roomID := h.expect(host, protocol.EventStreamCreated).Payload.(protocol.StreamCreated).RoomID

	room, ok := h.room(roomID)
	require.True(t, ok)
	assert.Equal(t, protocol.StreamInfo{Title: "Launch", Description: "live from the pad", CreatedAt: testTimestamp}, room.Info)
}

func TestCreateStreamIDFailure(t *testing.T) {
	h := newHarness(t)
	host := h.connect()

	require.NoError(t, h.hub.do(context.Background(), func() {
		h.hub.registry.newID = func() (string, error) { return "", errors.New("entropy exhausted") }
	}))

	h.emit(host, protocol.EventCreateStream, protocol.CreateStream{Title: "x"})

	env := h.expect(host, protocol.EventError)
	assert.Equal(t, protocol.Error{Message: protocol.MsgCreateStreamFailed}, env.Payload)
	h.assertSilent(host)

	stats, err := h.hub.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Rooms)
}

func TestJoinUnknownStream(t *testing.T) {
	h := newHarness(t)
	host := h.connect()
	roomID := h.createRoom(host, "real")
	stranger := h.connect()

	for _, id := range []string{"nope", ""} {
		h.emit(stranger, protocol.EventJoinStream, protocol.JoinStream{RoomID: id})
		env := h.expect(stranger, protocol.EventError)
		assert.Equal(t, protocol.Error{Message: protocol.MsgStreamNotFound}, env.Payload)
	}
	h.assertSilent(host)

	// No subscription happened either.
	h.emit(host, protocol.EventChatMessage, protocol.ChatMessage{RoomID: "nope", Message: "anyone?"})
	h.assertSilent(stranger)

	streams, err := h.hub.Streams(context.Background())
	require.NoError(t, err)
	require.Len(t, streams, 1)
	assert.Equal(t, roomID, streams[0].RoomID)
	assert.Zero(t, streams[0].ViewerCount)
}

func TestJoinAsViewer(t *testing.T) {
	h := newHarness(t)
	host := h.connect()
	roomID := h.createRoom(host, "Game night")
	viewer := h.connect()

	joined := h.join(viewer, roomID, false)
	assert.Equal(t, roomID, joined.RoomID)
	assert.Equal(t, "Game night", joined.StreamInfo.Title)
	assert.Equal(t, 1, joined.ViewerCount)
	assert.False(t, joined.IsHost)

	env := h.expect(host, protocol.EventViewerJoined)
	assert.Equal(t, protocol.ViewerEvent{ViewerID: viewer.ID, ViewerCount: 1}, env.Payload)
	env = h.expect(host, protocol.EventViewerJoinedStream)
	assert.Equal(t, viewer.ID, env.Payload)

	second := h.connect()
	assert.Equal(t, 2, h.join(second, roomID, false).ViewerCount)

	streams, err := h.hub.Streams(context.Background())
	require.NoError(t, err)
	require.Len(t, streams, 1)
	assert.Equal(t, 2, streams[0].ViewerCount)
}

func TestHostJoiningAsViewerStaysHost(t *testing.T) {
	h := newHarness(t)
	host := h.connect()
	roomID := h.createRoom(host, "")

	joined := h.join(host, roomID, false)
	assert.True(t, joined.IsHost)
	assert.Zero(t, joined.ViewerCount)
	h.assertSilent(host)

	room, _ := h.room(roomID)
	assert.Equal(t, host.ID, room.Host)
	assert.Empty(t, room.Viewers)
}

func TestReclaimBeforeGraceExpiry(t *testing.T) {
	h := newHarness(t)
	host := h.connect()
	roomID := h.createRoom(host, "")
	viewer := h.connect()
	h.join(viewer, roomID, false)
	h.drainAll()

	h.disconnect(host)
	require.Equal(t, 1, h.sched.count())
	assert.Equal(t, DefaultGracePeriod, h.sched.delays[0])
	h.assertSilent(viewer)

	// Room survives while the grace period runs.
	_, ok := h.room(roomID)
	require.True(t, ok)

	newHost := h.connect()
	joined := h.join(newHost, roomID, true)
	assert.True(t, joined.IsHost)
	assert.Equal(t, 1, joined.ViewerCount)

	h.sched.fireAll()
	h.sync()

	room, ok := h.room(roomID)
	require.True(t, ok)
	assert.Equal(t, newHost.ID, room.Host)
	h.assertSilent(viewer)
	h.assertSilent(newHost)

	assert.Equal(t, []events.Type{
		events.StreamCreated,
		events.ViewerJoined,
		events.HostDisconnected,
		events.HostReclaimed,
	}, h.pub.types())
}

func TestReclaimByViewerLeavesViewerSet(t *testing.T) {
	h := newHarness(t)
	host := h.connect()
	roomID := h.createRoom(host, "")
	viewer := h.connect()
	h.join(viewer, roomID, false)

	joined := h.join(viewer, roomID, true)
	assert.True(t, joined.IsHost)
	assert.Zero(t, joined.ViewerCount)

	room, _ := h.room(roomID)
	assert.Equal(t, viewer.ID, room.Host)
	assert.NotContains(t, room.Viewers, viewer.ID)
}

func TestGraceExpiryEndsStream(t *testing.T) {
	h := newHarness(t)
	host := h.connect()
	roomID := h.createRoom(host, "")
	keep := h.createRoom(h.connect(), "other")
	viewer := h.connect()
	h.join(viewer, roomID, false)
	h.drainAll()

	h.disconnect(host)
	h.sched.fireAll()
	h.sync()

	env := h.expect(viewer, protocol.EventStreamEnded)
	assert.Equal(t, protocol.StreamEnded{Reason: protocol.ReasonHostDisconnected}, env.Payload)

	env = h.expect(viewer, protocol.EventStreamListUpdated)
	list := env.Payload.([]protocol.StreamSummary)
	require.Len(t, list, 1)
	assert.Equal(t, keep, list[0].RoomID)

	_, ok := h.room(roomID)
	assert.False(t, ok)

	// A second expiry for the same room is a no-op.
	h.hub.expire(graceExpiry{roomID: roomID, hostID: host.ID})
	h.sync()
	h.assertSilent(viewer)
}

func TestGroupOutlivesRoom(t *testing.T) {
	h := newHarness(t)
	host := h.connect()
	roomID := h.createRoom(host, "")
	a := h.connect()
	b := h.connect()
	h.join(a, roomID, false)
	h.join(b, roomID, false)

	h.disconnect(host)
	h.sched.fireAll()
	h.sync()
	h.drainAll()

	h.emit(a, protocol.EventChatMessage, protocol.ChatMessage{RoomID: roomID, Message: "still here?"})
	h.expect(a, protocol.EventChatMessage)
	h.expect(b, protocol.EventChatMessage)
}

func TestViewerDisconnectNotifiesHost(t *testing.T) {
	h := newHarness(t)
	host := h.connect()
	roomID := h.createRoom(host, "")
	a := h.connect()
	b := h.connect()
	h.join(a, roomID, false)
	h.join(b, roomID, false)
	h.drainAll()

	h.disconnect(a)

	env := h.expect(host, protocol.EventViewerLeft)
	assert.Equal(t, protocol.ViewerEvent{ViewerID: a.ID, ViewerCount: 1}, env.Payload)
	h.assertSilent(b)
	assert.Zero(t, h.sched.count())

	room, _ := h.room(roomID)
	assert.Equal(t, map[string]struct{}{b.ID: {}}, room.Viewers)

	_, open := <-a.Send
	assert.False(t, open)
}

func TestDisconnectScansInCreationOrder(t *testing.T) {
	h := newHarness(t)
	h1 := h.connect()
	h3 := h.connect()
	x := h.connect()

	first := h.createRoom(h1, "first")
	second := h.createRoom(x, "second")
	third := h.createRoom(h3, "third")
	h.join(x, first, false)
	h.join(x, third, false)
	h.drainAll()

	h.disconnect(x)

	// Viewer of an earlier room: removed, host told.
	env := h.expect(h1, protocol.EventViewerLeft)
	assert.Equal(t, protocol.ViewerEvent{ViewerID: x.ID, ViewerCount: 0}, env.Payload)
	r1, _ := h.room(first)
	assert.Empty(t, r1.Viewers)

	// Host of the next room: grace period started, scan stops.
	assert.Equal(t, 1, h.sched.count())
	_, ok := h.room(second)
	assert.True(t, ok)

	r3, _ := h.room(third)
	assert.Contains(t, r3.Viewers, x.ID)
	h.assertSilent(h3)
}

func TestDisconnectOfBystander(t *testing.T) {
	h := newHarness(t)
	host := h.connect()
	h.createRoom(host, "")
	bystander := h.connect()

	h.disconnect(bystander)
	h.assertSilent(host)
	assert.Zero(t, h.sched.count())

	// Unregistering twice is harmless.
	h.disconnect(bystander)
}

func TestDirectedRelay(t *testing.T) {
	h := newHarness(t)
	a := h.connect()
	roomID := h.createRoom(a, "")
	x := h.connect()
	y := h.connect()
	h.join(x, roomID, false)
	h.join(y, roomID, false)
	h.drainAll()

	offer := map[string]any{"type": "offer", "sdp": "v=0"}
	h.emit(a, protocol.EventStreamOffer, protocol.Signal{Offer: offer, To: x.ID, RoomID: roomID})

	env := h.expect(x, protocol.EventStreamOffer)
	assert.Equal(t, protocol.OfferRelay{Offer: offer, From: a.ID}, env.Payload)
	h.assertSilent(y)
	h.assertSilent(a)
}

func TestBroadcastRelay(t *testing.T) {
	h := newHarness(t)
	a := h.connect()
	roomID := h.createRoom(a, "")
	b := h.connect()
	c := h.connect()
	outsider := h.connect()
	h.join(b, roomID, false)
	h.join(c, roomID, false)
	h.drainAll()

	candidate := map[string]any{"candidate": "candidate:1 1 udp 1 10.0.0.1 5000 typ host", "sdpMLineIndex": float64(0)}
	h.emit(b, protocol.EventICECandidate, protocol.Signal{Candidate: candidate, RoomID: roomID})

	for _, member := range []*Client{a, c} {
		env := h.expect(member, protocol.EventICECandidate)
		assert.Equal(t, protocol.CandidateRelay{Candidate: candidate, From: b.ID}, env.Payload)
	}
	h.assertSilent(b)
	h.assertSilent(outsider)

	answer := map[string]any{"type": "answer", "sdp": "v=0"}
	h.emit(c, protocol.EventStreamAnswer, protocol.Signal{Answer: answer, RoomID: roomID})
	assert.Equal(t, protocol.AnswerRelay{Answer: answer, From: c.ID}, h.expect(a, protocol.EventStreamAnswer).Payload)
	h.expect(b, protocol.EventStreamAnswer)
	h.assertSilent(c)
}

func TestRelayToUnknownRecipientIsDropped(t *testing.T) {
	h := newHarness(t)
	a := h.connect()
	roomID := h.createRoom(a, "")
	b := h.connect()
	h.join(b, roomID, false)
	h.drainAll()

	h.emit(a, protocol.EventStreamOffer, protocol.Signal{Offer: "sdp", To: "gone"})
	h.assertSilent(a)
	h.assertSilent(b)
}

func TestChatRoundTrip(t *testing.T) {
	h := newHarness(t)
	a := h.connect()
	roomID := h.createRoom(a, "")
	b := h.connect()
	outsider := h.connect()
	h.join(b, roomID, false)
	h.drainAll()

	h.emit(a, protocol.EventChatMessage, protocol.ChatMessage{RoomID: roomID, Message: "hi"})

	want := protocol.ChatBroadcast{Message: "hi", Username: protocol.DefaultUsername, Timestamp: testTimestamp, UserID: a.ID}
	assert.Equal(t, want, h.expect(a, protocol.EventChatMessage).Payload)
	assert.Equal(t, want, h.expect(b, protocol.EventChatMessage).Payload)
	h.assertSilent(outsider)

	h.emit(b, protocol.EventChatMessage, protocol.ChatMessage{RoomID: roomID, Message: "hey", Username: "bea"})
	got := h.expect(a, protocol.EventChatMessage).Payload.(protocol.ChatBroadcast)
	assert.Equal(t, "bea", got.Username)
	assert.Equal(t, b.ID, got.UserID)
}

func TestListStreamsRepliesToRequester(t *testing.T) {
	h := newHarness(t)
	host := h.connect()
	roomID := h.createRoom(host, "t")
	asker := h.connect()

	h.emit(asker, protocol.EventListStreams, nil)
	list := h.expect(asker, protocol.EventStreamListUpdated).Payload.([]protocol.StreamSummary)
	require.Len(t, list, 1)
	assert.Equal(t, roomID, list[0].RoomID)
	h.assertSilent(host)
}

func TestInvalidInput(t *testing.T) {
	h := newHarness(t)
	c := h.connect()

	t.Run("undecodable frame", func(t *testing.T) {
		require.True(t, h.hub.Submit(&Message{Client: c, Err: errors.New("bad json")}))
		h.sync()
		env := h.expect(c, protocol.EventError)
		assert.Equal(t, protocol.Error{Message: protocol.MsgInvalidFormat}, env.Payload)
	})

	t.Run("unknown event", func(t *testing.T) {
		h.emit(c, "make-coffee", map[string]any{"sugar": 2})
		h.assertSilent(c)
	})

	t.Run("malformed payload uses defaults", func(t *testing.T) {
		h.emit(c, protocol.EventCreateStream, "not an object")
		roomID := h.expect(c, protocol.EventStreamCreated).Payload.(protocol.StreamCreated).RoomID
		room, ok := h.room(roomID)
		require.True(t, ok)
		assert.Equal(t, protocol.DefaultTitle, room.Info.Title)
	})

	t.Run("wrongly typed field keeps the rest of the payload", func(t *testing.T) {
		h.drainAll()
		h.emit(c, protocol.EventCreateStream, map[string]any{"title": "Real title", "description": 7})
		roomID := h.expect(c, protocol.EventStreamCreated).Payload.(protocol.StreamCreated).RoomID
		room, ok := h.room(roomID)
		require.True(t, ok)
		assert.Equal(t, "Real title", room.Info.Title)
		assert.Equal(t, "7", room.Info.Description)
		h.drainAll()

		h.emit(c, protocol.EventChatMessage, map[string]any{"roomId": roomID, "message": "hi", "username": 42})
		got := h.expect(c, protocol.EventChatMessage).Payload.(protocol.ChatBroadcast)
		assert.Equal(t, "hi", got.Message)
		assert.Equal(t, "42", got.Username)

		viewer := h.connect()
		h.drainAll()
		h.emit(viewer, protocol.EventJoinStream, map[string]any{"roomId": roomID, "isHost": "yes"})
		joined := h.expect(viewer, protocol.EventStreamJoined).Payload.(protocol.StreamJoined)
		assert.Equal(t, roomID, joined.RoomID)
		assert.True(t, joined.IsHost)
	})
}

func TestSlowClientIsDropped(t *testing.T) {
	h := newHarness(t)
	cfg := config.DefaultWebSocket()
	cfg.SendBuffer = 1

	// The connected event fills the single slot.
	slow := h.connectWith(cfg)
	host := h.connect()

	h.emit(host, protocol.EventCreateStream, protocol.CreateStream{})

	env, ok := <-slow.Send
	require.True(t, ok)
	assert.Equal(t, protocol.EventConnected, env.Type)
	_, ok = <-slow.Send
	assert.False(t, ok, "slow client should have been unregistered")

	stats, err := h.hub.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Stats{Rooms: 1, Connections: 1}, stats)
}

func TestDirectoryQueries(t *testing.T) {
	h := newHarness(t)
	host := h.connect()
	roomID := h.createRoom(host, "Quiz")
	h.join(h.connect(), roomID, false)

	ctx := context.Background()

	summary, err := h.hub.Stream(ctx, roomID)
	require.NoError(t, err)
	assert.Equal(t, "Quiz", summary.Title)
	assert.Equal(t, 1, summary.ViewerCount)

	_, err = h.hub.Stream(ctx, "missing")
	assert.ErrorIs(t, err, ErrStreamNotFound)

	stats, err := h.hub.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Rooms: 1, Connections: 2}, stats)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = h.hub.Streams(cancelled)
	assert.Error(t, err)
}

func TestStoppedHub(t *testing.T) {
	hub := NewHub(WithLogger(zerolog.Nop()))
	ctx, cancel := context.WithCancel(context.Background())

	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	c := NewClient(hub, nil, codec.JSON, config.DefaultWebSocket())
	require.True(t, hub.Register(c))

	cancel()
	<-stopped

	<-c.Send // connected
	_, open := <-c.Send
	assert.False(t, open)

	assert.False(t, hub.Register(NewClient(hub, nil, codec.JSON, config.DefaultWebSocket())))
	assert.False(t, hub.Submit(&Message{Client: c}))
	hub.Unregister(c)

	_, err := hub.Streams(context.Background())
	assert.ErrorIs(t, err, ErrHubStopped)
}
