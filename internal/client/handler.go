package client

import (
	"context"

	"github.com/beaconcast/beacon/internal/codec"
	"github.com/beaconcast/beacon/internal/logging"
	"github.com/beaconcast/beacon/internal/protocol"
)

// Handler routes relay events to typed channels.
//
// Event channels are buffered and never closed; an event arriving while its
// channel is full is dropped. Disconnected is closed once the connection ends.
type Handler struct {
	client *Client

	Connected     chan string
	StreamCreated chan string
	StreamJoined  chan protocol.StreamJoined
	ViewerJoined  chan protocol.ViewerEvent
	ViewerLeft    chan protocol.ViewerEvent
	Offers        chan Offer
	Answers       chan Answer
	Candidates    chan RemoteCandidate
	Chat          chan protocol.ChatBroadcast
	Directory     chan []protocol.StreamSummary
	StreamEnded   chan string
	Errors        chan string
	Disconnected  chan struct{}
}

// NewHandler creates a handler for client. Call Start to begin routing.
func NewHandler(client *Client) *Handler {
	return &Handler{
		client:        client,
		Connected:     make(chan string, 1),
		StreamCreated: make(chan string, 1),
		StreamJoined:  make(chan protocol.StreamJoined, 1),
		ViewerJoined:  make(chan protocol.ViewerEvent, 32),
		ViewerLeft:    make(chan protocol.ViewerEvent, 32),
		Offers:        make(chan Offer, 8),
		Answers:       make(chan Answer, 8),
		Candidates:    make(chan RemoteCandidate, 64),
		Chat:          make(chan protocol.ChatBroadcast, 64),
		Directory:     make(chan []protocol.StreamSummary, 4),
		StreamEnded:   make(chan string, 1),
		Errors:        make(chan string, 4),
		Disconnected:  make(chan struct{}),
	}
}

// Start routes incoming frames until the connection closes.
func (h *Handler) Start() {
	defer close(h.Disconnected)

	for frame := range h.client.Incoming() {
		h.route(frame)
	}
}

func (h *Handler) route(f *codec.Frame) {
	switch f.Type {
	case protocol.EventConnected:
		if v, ok := decodeFrame[protocol.Connected](f); ok {
			deliver(h.Connected, v.ID, f.Type)
		}

	case protocol.EventStreamCreated:
		if v, ok := decodeFrame[protocol.StreamCreated](f); ok {
			deliver(h.StreamCreated, v.RoomID, f.Type)
		}

	case protocol.EventStreamJoined:
		if v, ok := decodeFrame[protocol.StreamJoined](f); ok {
			deliver(h.StreamJoined, v, f.Type)
		}

	case protocol.EventViewerJoined:
		if v, ok := decodeFrame[protocol.ViewerEvent](f); ok {
			deliver(h.ViewerJoined, v, f.Type)
		}

	case protocol.EventViewerLeft:
		if v, ok := decodeFrame[protocol.ViewerEvent](f); ok {
			deliver(h.ViewerLeft, v, f.Type)
		}

	case protocol.EventStreamOffer:
		if v, ok := decodeFrame[Offer](f); ok {
			deliver(h.Offers, v, f.Type)
		}

	case protocol.EventStreamAnswer:
		if v, ok := decodeFrame[Answer](f); ok {
			deliver(h.Answers, v, f.Type)
		}

	case protocol.EventICECandidate:
		if v, ok := decodeFrame[RemoteCandidate](f); ok {
			deliver(h.Candidates, v, f.Type)
		}

	case protocol.EventChatMessage:
		if v, ok := decodeFrame[protocol.ChatBroadcast](f); ok {
			deliver(h.Chat, v, f.Type)
		}

	case protocol.EventStreamListUpdated:
		if v, ok := decodeFrame[[]protocol.StreamSummary](f); ok {
			deliver(h.Directory, v, f.Type)
		}

	case protocol.EventStreamEnded:
		if v, ok := decodeFrame[protocol.StreamEnded](f); ok {
			deliver(h.StreamEnded, v.Reason, f.Type)
		}

	case protocol.EventError:
		if v, ok := decodeFrame[protocol.Error](f); ok {
			deliver(h.Errors, v.Message, f.Type)
		}

	default:
		// viewer-joined-stream duplicates viewer-joined for browsers.
	}
}

func decodeFrame[T any](f *codec.Frame) (T, bool) {
	var v T
	if err := f.Decode(&v); err != nil {
		l := logging.L()
		l.Debug().Err(err).Str(logging.FieldEvent, f.Type).Msg("dropping malformed event")
		return v, false
	}
	return v, true
}

func deliver[T any](ch chan T, v T, event string) {
	select {
	case ch <- v:
	default:
		l := logging.L()
		l.Debug().Str(logging.FieldEvent, event).Msg("event dropped, nobody listening")
	}
}

// Hello waits for the relay to announce this connection's id.
func (h *Handler) Hello(ctx context.Context) (string, error) {
	select {
	case id := <-h.Connected:
		return id, nil
	case <-h.Disconnected:
		return "", NewError("connect to relay", ErrDisconnected)
	case <-ctx.Done():
		return "", WrapError("connect to relay", ErrTimeout, ctx.Err().Error())
	}
}

// CreateStream opens a room and returns its id.
func (h *Handler) CreateStream(ctx context.Context, req protocol.CreateStream) (string, error) {
	if err := h.client.Send(protocol.EventCreateStream, req); err != nil {
		return "", NewError("create stream", err)
	}

	select {
	case roomID := <-h.StreamCreated:
		return roomID, nil
	case msg := <-h.Errors:
		return "", WrapError("create stream", ErrServer, msg)
	case <-h.Disconnected:
		return "", NewError("create stream", ErrDisconnected)
	case <-ctx.Done():
		return "", WrapError("create stream", ErrTimeout, ctx.Err().Error())
	}
}

// JoinStream enters a room as viewer, or as host when isHost is set.
func (h *Handler) JoinStream(ctx context.Context, roomID string, isHost bool) (protocol.StreamJoined, error) {
	if err := h.client.Send(protocol.EventJoinStream, protocol.JoinStream{RoomID: roomID, IsHost: isHost}); err != nil {
		return protocol.StreamJoined{}, NewError("join stream", err)
	}

	select {
	case joined := <-h.StreamJoined:
		return joined, nil
	case msg := <-h.Errors:
		return protocol.StreamJoined{}, WrapError("join stream", ErrServer, msg)
	case <-h.Disconnected:
		return protocol.StreamJoined{}, NewError("join stream", ErrDisconnected)
	case <-ctx.Done():
		return protocol.StreamJoined{}, WrapError("join stream", ErrTimeout, ctx.Err().Error())
	}
}

// SendChat posts a chat line to a room.
func (h *Handler) SendChat(roomID, username, message string) error {
	return h.client.Send(protocol.EventChatMessage, protocol.ChatMessage{
		RoomID:   roomID,
		Message:  message,
		Username: username,
	})
}

// SendAnswer answers an offer from a specific participant.
func (h *Handler) SendAnswer(to string, answer Description) error {
	return h.client.Send(protocol.EventStreamAnswer, protocol.Signal{Answer: answer, To: to})
}

// SendCandidate trickles a local ICE candidate to a specific participant.
func (h *Handler) SendCandidate(to string, candidate Candidate) error {
	return h.client.Send(protocol.EventICECandidate, protocol.Signal{Candidate: candidate, To: to})
}
