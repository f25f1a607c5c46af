package signaling

import (
	"github.com/beaconcast/beacon/internal/protocol"
)

// Room is one broadcast session: a single host and any number of viewers.
type Room struct {
	ID string

	// Host is the connection id currently recognized as the media source.
	// It is never empty while the room is registered.
	Host string

	// Viewers never contains Host.
	Viewers map[string]struct{}

	// Info is fixed at creation.
	Info protocol.StreamInfo
}

// HasViewer reports whether id is recorded as a viewer.
func (r *Room) HasViewer(id string) bool {
	_, ok := r.Viewers[id]
	return ok
}

// ViewerCount is the live size of the viewer set.
func (r *Room) ViewerCount() int {
	return len(r.Viewers)
}

// Summary returns a directory entry for the room.
func (r *Room) Summary() protocol.StreamSummary {
	return protocol.StreamSummary{
		RoomID:      r.ID,
		Title:       r.Info.Title,
		Description: r.Info.Description,
		CreatedAt:   r.Info.CreatedAt,
		ViewerCount: len(r.Viewers),
	}
}

// Registry is the authoritative map of room id to room state.
//
// Registry does no locking. It is owned by the Hub and every call happens on
// the Hub's goroutine.
type Registry struct {
	rooms map[string]*Room

	// order holds room ids in creation order.
	order []string

	newID func() (string, error)
}

// NewRegistry returns an empty Registry that generates random room ids.
func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[string]*Room),
		newID: generateRoomID,
	}
}

// Create inserts a room hosted by host and returns its id. Nothing is inserted
// when id generation fails.
func (r *Registry) Create(host string, info protocol.StreamInfo) (string, error) {
	id, err := r.newID()
	if err != nil {
		return "", err
	}

	if _, exists := r.rooms[id]; !exists {
		r.order = append(r.order, id)
	}
	r.rooms[id] = &Room{
		ID:      id,
		Host:    host,
		Viewers: make(map[string]struct{}),
		Info:    info,
	}
	return id, nil
}

// Get looks up a room by id.
func (r *Registry) Get(id string) (*Room, bool) {
	room, ok := r.rooms[id]
	return room, ok
}

// Delete removes a room. Unknown ids are ignored.
func (r *Registry) Delete(id string) {
	if _, ok := r.rooms[id]; !ok {
		return
	}
	delete(r.rooms, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Len is the number of live rooms.
func (r *Registry) Len() int {
	return len(r.rooms)
}

// Each calls fn for every room in creation order until fn returns false.
func (r *Registry) Each(fn func(*Room) bool) {
	for _, id := range r.order {
		if !fn(r.rooms[id]) {
			return
		}
	}
}

// List returns a snapshot of the directory in creation order.
func (r *Registry) List() []protocol.StreamSummary {
	list := make([]protocol.StreamSummary, 0, len(r.order))
	r.Each(func(room *Room) bool {
		list = append(list, room.Summary())
		return true
	})
	return list
}
