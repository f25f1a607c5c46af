// Package protocol defines the events exchanged between the relay and its
// participants. Both the server and the beacon CLI speak it.
package protocol

// Client to server events.
const (
	EventCreateStream = "create-stream"
	EventJoinStream   = "join-stream"
	EventListStreams  = "list-streams"
	EventStreamOffer  = "stream-offer"
	EventStreamAnswer = "stream-answer"
	EventICECandidate = "ice-candidate"
	EventChatMessage  = "chat-message"
)

// Server to client events. Signaling and chat events reuse the names above.
const (
	EventConnected          = "connected"
	EventStreamCreated      = "stream-created"
	EventStreamJoined       = "stream-joined"
	EventViewerJoined       = "viewer-joined"
	EventViewerJoinedStream = "viewer-joined-stream"
	EventViewerLeft         = "viewer-left"
	EventStreamListUpdated  = "stream-list-updated"
	EventStreamEnded        = "stream-ended"
	EventError              = "error"
)

// Defaults applied to missing fields.
const (
	DefaultTitle    = "Untitled Stream"
	DefaultUsername = "Anonymous"
)

// Fixed error and teardown messages.
const (
	MsgStreamNotFound      = "Stream not found"
	MsgCreateStreamFailed  = "Failed to create stream"
	MsgInvalidFormat       = "Invalid message format"
	ReasonHostDisconnected = "Host disconnected"
)

// StreamInfo is the metadata attached to a room at creation time.
type StreamInfo struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	CreatedAt   string `json:"createdAt"`
}

// StreamSummary is one entry of the room directory.
type StreamSummary struct {
	RoomID      string `json:"roomId"`
	Title       string `json:"title"`
	Description string `json:"description"`
	CreatedAt   string `json:"createdAt"`
	ViewerCount int    `json:"viewerCount"`
}

// CreateStream is sent by a host to open a new room.
type CreateStream struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// JoinStream is sent to enter a room, either as viewer or as a reconnecting host.
type JoinStream struct {
	RoomID string `json:"roomId"`
	IsHost bool   `json:"isHost"`
}

// Signal carries an opaque offer, answer or candidate descriptor. Exactly one
// of the descriptor fields is expected, matching the event type.
type Signal struct {
	Offer     any    `json:"offer,omitempty"`
	Answer    any    `json:"answer,omitempty"`
	Candidate any    `json:"candidate,omitempty"`
	To        string `json:"to,omitempty"`
	RoomID    string `json:"roomId,omitempty"`
}

// ChatMessage is sent by any group member.
type ChatMessage struct {
	RoomID   string `json:"roomId"`
	Message  string `json:"message"`
	Username string `json:"username,omitempty"`
}

// Connected tells a participant its own connection identity.
type Connected struct {
	ID string `json:"id"`
}

// StreamCreated acknowledges create-stream.
type StreamCreated struct {
	RoomID string `json:"roomId"`
}

// StreamJoined acknowledges join-stream.
type StreamJoined struct {
	RoomID      string     `json:"roomId"`
	StreamInfo  StreamInfo `json:"streamInfo"`
	ViewerCount int        `json:"viewerCount"`
	IsHost      bool       `json:"isHost"`
}

// ViewerEvent is sent to the host when its audience changes.
type ViewerEvent struct {
	ViewerID    string `json:"viewerId"`
	ViewerCount int    `json:"viewerCount"`
}

// OfferRelay is a stream-offer as delivered to its recipient.
type OfferRelay struct {
	Offer any    `json:"offer"`
	From  string `json:"from"`
}

// AnswerRelay is a stream-answer as delivered to its recipient.
type AnswerRelay struct {
	Answer any    `json:"answer"`
	From   string `json:"from"`
}

// CandidateRelay is an ice-candidate as delivered to its recipient.
type CandidateRelay struct {
	Candidate any    `json:"candidate"`
	From      string `json:"from"`
}

// ChatBroadcast is a chat-message as delivered to the group.
type ChatBroadcast struct {
	Message   string `json:"message"`
	Username  string `json:"username"`
	Timestamp string `json:"timestamp"`
	UserID    string `json:"userId"`
}

// StreamEnded is broadcast when a room is torn down.
type StreamEnded struct {
	Reason string `json:"reason"`
}

// Error reports a failed request to its sender.
type Error struct {
	Message string `json:"message"`
}
