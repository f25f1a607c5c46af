package signaling

import (
	"github.com/beaconcast/beacon/internal/events"
	"github.com/beaconcast/beacon/internal/logging"
	"github.com/beaconcast/beacon/internal/protocol"
)

// disconnect updates rooms after connection id went away.
//
// Rooms are scanned in creation order. Every room the connection was watching
// loses a viewer and its host hears about it, until a room hosted by the
// connection is found: that room gets a grace period and the scan stops.
func (h *Hub) disconnect(id string) {
	h.registry.Each(func(room *Room) bool {
		if room.Host == id {
			h.logger.Info().
				Str(logging.FieldRoomID, room.ID).
				Str(logging.FieldClientID, id).
				Dur("grace_period", h.grace).
				Msg("host disconnected, waiting for reconnection")
			h.publish(events.Event{Type: events.HostDisconnected, RoomID: room.ID, ConnectionID: id, ViewerCount: room.ViewerCount()})

			exp := graceExpiry{roomID: room.ID, hostID: id}
			h.scheduler.AfterFunc(h.grace, func() { h.expire(exp) })
			return false
		}

		if room.HasViewer(id) {
			delete(room.Viewers, id)
			count := room.ViewerCount()

			h.sendTo(room.Host, protocol.EventViewerLeft, protocol.ViewerEvent{ViewerID: id, ViewerCount: count})

			h.logger.Info().
				Str(logging.FieldRoomID, room.ID).
				Str(logging.FieldClientID, id).
				Int(logging.FieldViewerCount, count).
				Msg("viewer left")
			h.publish(events.Event{Type: events.ViewerLeft, RoomID: room.ID, ConnectionID: id, ViewerCount: count})
		}
		return true
	})
}

// expire posts a grace expiry onto the hub lane. It runs on the timer's
// goroutine and never touches hub state.
func (h *Hub) expire(exp graceExpiry) {
	select {
	case h.expired <- exp:
	case <-h.done:
	}
}

// handleGraceExpired ends the room only if the host that disconnected is
// still recorded as host.
func (h *Hub) handleGraceExpired(exp graceExpiry) {
	room, ok := h.registry.Get(exp.roomID)
	if !ok || room.Host != exp.hostID {
		h.logger.Debug().Str(logging.FieldRoomID, exp.roomID).Msg("grace period expired after reclaim")
		return
	}

	h.broadcastGroup(room.ID, protocol.EventStreamEnded, protocol.StreamEnded{Reason: protocol.ReasonHostDisconnected}, "")
	h.registry.Delete(room.ID)

	h.logger.Info().Str(logging.FieldRoomID, room.ID).Msg("host did not reconnect, stream ended")
	h.publish(events.Event{Type: events.StreamEnded, RoomID: room.ID, ConnectionID: exp.hostID, Reason: protocol.ReasonHostDisconnected})

	h.broadcastDirectory()
}
