package signaling

import (
	"github.com/beaconcast/beacon/internal/events"
	"github.com/beaconcast/beacon/internal/logging"
	"github.com/beaconcast/beacon/internal/protocol"
)

// createStream opens a room hosted by c.
func (h *Hub) createStream(c *Client, req protocol.CreateStream) {
	info := protocol.StreamInfo{
		Title:       req.Title,
		Description: req.Description,
		CreatedAt:   h.timestamp(),
	}
	if info.Title == "" {
		info.Title = protocol.DefaultTitle
	}

	roomID, err := h.registry.Create(c.ID, info)
	if err != nil {
		h.logger.Error().Err(err).Str(logging.FieldClientID, c.ID).Msg("failed to create stream")
		h.send(c, protocol.EventError, protocol.Error{Message: protocol.MsgCreateStreamFailed})
		return
	}

	h.subscribe(roomID, c)
	h.send(c, protocol.EventStreamCreated, protocol.StreamCreated{RoomID: roomID})

	h.logger.Info().
		Str(logging.FieldRoomID, roomID).
		Str(logging.FieldClientID, c.ID).
		Str("title", info.Title).
		Msg("stream created")
	h.publish(events.Event{Type: events.StreamCreated, RoomID: roomID, ConnectionID: c.ID})

	h.broadcastDirectory()
}

// joinStream enters c into a room, as a viewer or as a reclaiming host.
func (h *Hub) joinStream(c *Client, req protocol.JoinStream) {
	room, ok := h.registry.Get(req.RoomID)
	if req.RoomID == "" || !ok {
		h.logger.Debug().Str(logging.FieldRoomID, req.RoomID).Str(logging.FieldClientID, c.ID).Msg("join failed: stream not found")
		h.send(c, protocol.EventError, protocol.Error{Message: protocol.MsgStreamNotFound})
		return
	}

	h.subscribe(room.ID, c)

	switch {
	case req.IsHost && room.Host != c.ID:
		// Anyone claiming to be host takes over. The previous host's grace
		// timer, if any, finds a different host on expiry and does nothing.
		previous := room.Host
		room.Host = c.ID
		delete(room.Viewers, c.ID)

		h.logger.Info().
			Str(logging.FieldRoomID, room.ID).
			Str(logging.FieldClientID, c.ID).
			Str("previous_host", previous).
			Msg("host reclaimed stream")
		h.publish(events.Event{Type: events.HostReclaimed, RoomID: room.ID, ConnectionID: c.ID, ViewerCount: room.ViewerCount()})

	case !req.IsHost && room.Host != c.ID:
		room.Viewers[c.ID] = struct{}{}
		count := room.ViewerCount()

		h.sendTo(room.Host, protocol.EventViewerJoined, protocol.ViewerEvent{ViewerID: c.ID, ViewerCount: count})
		h.sendTo(room.Host, protocol.EventViewerJoinedStream, c.ID)

		h.logger.Info().
			Str(logging.FieldRoomID, room.ID).
			Str(logging.FieldClientID, c.ID).
			Int(logging.FieldViewerCount, count).
			Msg("viewer joined")
		h.publish(events.Event{Type: events.ViewerJoined, RoomID: room.ID, ConnectionID: c.ID, ViewerCount: count})
	}

	h.send(c, protocol.EventStreamJoined, protocol.StreamJoined{
		RoomID:      room.ID,
		StreamInfo:  room.Info,
		ViewerCount: room.ViewerCount(),
		IsHost:      room.Host == c.ID,
	})
}
