package signaling

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/beaconcast/beacon/internal/codec"
	"github.com/beaconcast/beacon/internal/events"
	"github.com/beaconcast/beacon/internal/logging"
	"github.com/beaconcast/beacon/internal/protocol"
)

// DefaultGracePeriod is how long a room waits for its disconnected host.
const DefaultGracePeriod = 30 * time.Second

// isoMillis matches JavaScript's Date.toISOString for UTC times.
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

var (
	// ErrStreamNotFound is returned by directory lookups for unknown rooms.
	ErrStreamNotFound = errors.New("stream not found")

	// ErrHubStopped is returned once Run has returned.
	ErrHubStopped = errors.New("hub stopped")
)

// Stats is a point-in-time view of hub load.
type Stats struct {
	Rooms       int `json:"rooms"`
	Connections int `json:"connections"`
}

// Hub is the relay's single event lane.
//
// Every state change (connections coming and going, inbound frames, grace
// expiries, directory queries) is funnelled through channels into Run, which
// handles them one at a time. The room registry and the broadcast groups are
// only ever touched from that goroutine, so neither needs locking.
type Hub struct {
	registry *Registry

	// clients maps connection ids to live connections.
	clients map[string]*Client

	// groups maps a room id to its subscribed connections. Groups are kept
	// apart from the registry and may outlive the room they were named for.
	groups map[string]map[string]*Client

	// slow collects connections whose send buffer overflowed during the
	// current event. They are dropped once the event is handled.
	slow []*Client

	register   chan *Client
	unregister chan *Client
	inbound    chan *Message
	expired    chan graceExpiry
	calls      chan func()
	done       chan struct{}

	grace     time.Duration
	scheduler Scheduler
	publisher events.Publisher
	now       func() time.Time
	logger    zerolog.Logger
}

// Option configures a Hub.
type Option func(*Hub)

// WithGracePeriod sets how long a room outlives its disconnected host.
func WithGracePeriod(d time.Duration) Option {
	return func(h *Hub) { h.grace = d }
}

// WithScheduler replaces the timer used for grace periods.
func WithScheduler(s Scheduler) Option {
	return func(h *Hub) { h.scheduler = s }
}

// WithPublisher sets the lifecycle event sink.
func WithPublisher(p events.Publisher) Option {
	return func(h *Hub) { h.publisher = p }
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(h *Hub) { h.now = now }
}

// WithLogger sets the hub logger.
func WithLogger(l zerolog.Logger) Option {
	return func(h *Hub) { h.logger = l }
}

// NewHub creates a Hub. Call Run to start processing.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		registry:   NewRegistry(),
		clients:    make(map[string]*Client),
		groups:     make(map[string]map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan *Message),
		expired:    make(chan graceExpiry),
		calls:      make(chan func()),
		done:       make(chan struct{}),
		grace:      DefaultGracePeriod,
		scheduler:  timerScheduler{},
		publisher:  events.Discard{},
		now:        time.Now,
		logger:     logging.L(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run processes hub events until ctx is cancelled. On return every remaining
// connection's send queue is closed.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	h.logger.Info().Dur("grace_period", h.grace).Msg("hub started")

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case c := <-h.register:
			h.handleRegister(c)

		case c := <-h.unregister:
			h.handleUnregister(c)

		case msg := <-h.inbound:
			h.handleMessage(msg)

		case exp := <-h.expired:
			h.handleGraceExpired(exp)

		case call := <-h.calls:
			call()
		}

		h.evictSlow()
	}
}

// Register adds a connection. It reports false once the hub has stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a connection. Unknown or already removed connections
// are ignored.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Submit queues an inbound frame. It reports false once the hub has stopped.
func (h *Hub) Submit(msg *Message) bool {
	select {
	case h.inbound <- msg:
		return true
	case <-h.done:
		return false
	}
}

// Streams returns the room directory.
func (h *Hub) Streams(ctx context.Context) ([]protocol.StreamSummary, error) {
	var list []protocol.StreamSummary
	err := h.do(ctx, func() {
		list = h.registry.List()
	})
	return list, err
}

// Stream returns the directory entry for one room.
func (h *Hub) Stream(ctx context.Context, roomID string) (protocol.StreamSummary, error) {
	var (
		summary protocol.StreamSummary
		found   bool
	)
	err := h.do(ctx, func() {
		if room, ok := h.registry.Get(roomID); ok {
			summary, found = room.Summary(), true
		}
	})
	if err != nil {
		return summary, err
	}
	if !found {
		return summary, ErrStreamNotFound
	}
	return summary, nil
}

// Stats reports the number of rooms and live connections.
func (h *Hub) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := h.do(ctx, func() {
		s = Stats{Rooms: h.registry.Len(), Connections: len(h.clients)}
	})
	return s, err
}

// do runs fn on the hub goroutine and waits for it to finish.
func (h *Hub) do(ctx context.Context, fn func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ran := make(chan struct{})
	call := func() {
		defer close(ran)
		fn()
	}

	select {
	case h.calls <- call:
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		return ErrHubStopped
	}

	<-ran
	return nil
}

func (h *Hub) handleRegister(c *Client) {
	h.clients[c.ID] = c
	h.logger.Debug().Str(logging.FieldClientID, c.ID).Str(logging.FieldCodec, c.codec.Name()).Msg("client registered")

	h.send(c, protocol.EventConnected, protocol.Connected{ID: c.ID})
}

func (h *Hub) handleUnregister(c *Client) {
	if !h.isLive(c) {
		return
	}
	delete(h.clients, c.ID)

	h.disconnect(c.ID)

	for roomID, members := range h.groups {
		delete(members, c.ID)
		if len(members) == 0 {
			delete(h.groups, roomID)
		}
	}

	close(c.Send)
	h.logger.Debug().Str(logging.FieldClientID, c.ID).Msg("client unregistered")
}

func (h *Hub) handleMessage(msg *Message) {
	c := msg.Client
	if !h.isLive(c) {
		return
	}

	if msg.Err != nil || msg.Frame == nil {
		h.logger.Debug().Err(msg.Err).Str(logging.FieldClientID, c.ID).Msg("undecodable frame")
		h.send(c, protocol.EventError, protocol.Error{Message: protocol.MsgInvalidFormat})
		return
	}

	frame := msg.Frame
	switch frame.Type {
	case protocol.EventCreateStream:
		h.createStream(c, decodePayload[protocol.CreateStream](h, c, frame))

	case protocol.EventJoinStream:
		h.joinStream(c, decodePayload[protocol.JoinStream](h, c, frame))

	case protocol.EventListStreams:
		h.send(c, protocol.EventStreamListUpdated, h.registry.List())

	case protocol.EventStreamOffer, protocol.EventStreamAnswer, protocol.EventICECandidate:
		h.relaySignal(c, frame.Type, decodePayload[protocol.Signal](h, c, frame))

	case protocol.EventChatMessage:
		h.chat(c, decodePayload[protocol.ChatMessage](h, c, frame))

	default:
		h.logger.Debug().Str(logging.FieldClientID, c.ID).Str(logging.FieldEvent, frame.Type).Msg("unknown event type")
	}
}

// decodePayload decodes a frame payload. Fields of the wrong type are coerced
// or left empty; a payload that is not an object at all is treated as empty.
// Either way defaults apply to whatever is missing.
func decodePayload[T any](h *Hub, c *Client, f *codec.Frame) T {
	var v T
	if err := f.DecodeLoose(&v); err != nil {
		h.logger.Debug().Err(err).Str(logging.FieldClientID, c.ID).Str(logging.FieldEvent, f.Type).Msg("ignoring malformed payload")
		var zero T
		return zero
	}
	return v
}

func (h *Hub) isLive(c *Client) bool {
	cur, ok := h.clients[c.ID]
	return ok && cur == c
}

// send queues an event for c without blocking. A full queue marks c as slow.
func (h *Hub) send(c *Client, event string, payload any) {
	select {
	case c.Send <- &codec.Envelope{Type: event, Payload: payload}:
	default:
		h.logger.Warn().Str(logging.FieldClientID, c.ID).Str(logging.FieldEvent, event).Msg("send buffer full, dropping client")
		h.slow = append(h.slow, c)
	}
}

// sendTo delivers to a connection by id. Unknown ids are dropped.
func (h *Hub) sendTo(id, event string, payload any) {
	c, ok := h.clients[id]
	if !ok {
		h.logger.Debug().Str(logging.FieldClientID, id).Str(logging.FieldEvent, event).Msg("recipient not connected, dropping")
		return
	}
	h.send(c, event, payload)
}

// broadcastGroup delivers to every member of a room's group except exclude.
func (h *Hub) broadcastGroup(roomID, event string, payload any, exclude string) {
	for id, c := range h.groups[roomID] {
		if id == exclude {
			continue
		}
		h.send(c, event, payload)
	}
}

// broadcastDirectory sends the current directory to every connection.
func (h *Hub) broadcastDirectory() {
	list := h.registry.List()
	for _, c := range h.clients {
		h.send(c, protocol.EventStreamListUpdated, list)
	}
}

func (h *Hub) subscribe(roomID string, c *Client) {
	members, ok := h.groups[roomID]
	if !ok {
		members = make(map[string]*Client)
		h.groups[roomID] = members
	}
	members[c.ID] = c
}

func (h *Hub) evictSlow() {
	for len(h.slow) > 0 {
		c := h.slow[0]
		h.slow = h.slow[1:]
		h.handleUnregister(c)
	}
}

func (h *Hub) shutdown() {
	for id, c := range h.clients {
		close(c.Send)
		delete(h.clients, id)
	}
	h.groups = make(map[string]map[string]*Client)
	h.logger.Info().Int("rooms", h.registry.Len()).Msg("hub stopped")
}

func (h *Hub) timestamp() string {
	return h.now().UTC().Format(isoMillis)
}

func (h *Hub) publish(e events.Event) {
	e.Timestamp = h.now().UTC()
	if err := h.publisher.Publish(context.Background(), e); err != nil {
		h.logger.Debug().Err(err).Str("type", string(e.Type)).Msg("lifecycle event not published")
	}
}
