// Package events publishes room lifecycle notifications to an external feed.
// The feed is informational: room state itself never leaves the relay.
package events

import (
	"context"
	"time"
)

// Type names a lifecycle transition.
type Type string

const (
	StreamCreated    Type = "stream_created"
	HostReclaimed    Type = "host_reclaimed"
	ViewerJoined     Type = "viewer_joined"
	ViewerLeft       Type = "viewer_left"
	HostDisconnected Type = "host_disconnected"
	StreamEnded      Type = "stream_ended"
)

// Event is one lifecycle notification.
type Event struct {
	Type         Type      `json:"type"`
	RoomID       string    `json:"roomId"`
	ConnectionID string    `json:"connectionId,omitempty"`
	ViewerCount  int       `json:"viewerCount"`
	Reason       string    `json:"reason,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Publisher delivers events to a feed.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(context.Context, Event) error { return nil }

func (Discard) Close() error { return nil }
