package signaling

import "github.com/beaconcast/beacon/internal/codec"

// Message is an inbound frame queued for the hub.
type Message struct {
	// Client is the connection that sent the frame.
	Client *Client

	Frame *codec.Frame

	// Err is set when the frame could not be decoded at all.
	Err error
}

// graceExpiry is posted back to the hub when a host's grace period ends.
// It captures the host that disconnected, not whoever is host at expiry.
type graceExpiry struct {
	roomID string
	hostID string
}
