package signaling

import (
	"github.com/beaconcast/beacon/internal/protocol"
)

// relaySignal forwards an offer, answer or candidate. With a recipient it goes
// to that connection only; otherwise to the rest of the room's group.
// Descriptors are passed through untouched.
func (h *Hub) relaySignal(c *Client, event string, sig protocol.Signal) {
	var payload any
	switch event {
	case protocol.EventStreamOffer:
		payload = protocol.OfferRelay{Offer: sig.Offer, From: c.ID}
	case protocol.EventStreamAnswer:
		payload = protocol.AnswerRelay{Answer: sig.Answer, From: c.ID}
	case protocol.EventICECandidate:
		payload = protocol.CandidateRelay{Candidate: sig.Candidate, From: c.ID}
	default:
		return
	}

	if sig.To != "" {
		h.sendTo(sig.To, event, payload)
		return
	}
	h.broadcastGroup(sig.RoomID, event, payload, c.ID)
}

// chat broadcasts a chat line to the whole group, sender included.
func (h *Hub) chat(c *Client, msg protocol.ChatMessage) {
	username := msg.Username
	if username == "" {
		username = protocol.DefaultUsername
	}

	h.broadcastGroup(msg.RoomID, protocol.EventChatMessage, protocol.ChatBroadcast{
		Message:   msg.Message,
		Username:  username,
		Timestamp: h.timestamp(),
		UserID:    c.ID,
	}, "")
}
