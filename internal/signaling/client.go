package signaling

import (
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/beaconcast/beacon/internal/codec"
	"github.com/beaconcast/beacon/internal/config"
	"github.com/beaconcast/beacon/internal/logging"
)

// Client is one websocket participant.
type Client struct {
	// ID is the connection identity seen by other participants.
	ID string

	hub   *Hub
	conn  *websocket.Conn
	codec codec.Codec
	cfg   config.WebSocketConfig

	// Send is the buffered outbound queue. Only the hub writes to it and
	// only the hub closes it; WritePump drains it onto the socket.
	Send chan *codec.Envelope

	logger zerolog.Logger
}

// NewClient wraps conn with a fresh connection id.
func NewClient(hub *Hub, conn *websocket.Conn, cd codec.Codec, cfg config.WebSocketConfig) *Client {
	id := uuid.NewString()
	size := cfg.SendBuffer
	if size <= 0 {
		size = config.DefaultWebSocket().SendBuffer
	}
	return &Client{
		ID:     id,
		hub:    hub,
		conn:   conn,
		codec:  cd,
		cfg:    cfg,
		Send:   make(chan *codec.Envelope, size),
		logger: hub.logger.With().Str(logging.FieldClientID, id).Logger(),
	}
}

// Codec is the wire codec negotiated for this connection.
func (c *Client) Codec() codec.Codec {
	return c.codec
}

// ReadPump pumps frames from the websocket connection to the hub.
//
// The application runs ReadPump in a per-connection goroutine. The application
// ensures that there is at most one reader on a connection by executing all
// reads from this goroutine.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn().Err(err).Msg("unexpected close")
			}
			return
		}

		frame, err := c.codec.Unmarshal(data)
		if !c.hub.Submit(&Message{Client: c, Frame: frame, Err: err}) {
			return
		}
	}
}

// WritePump pumps events from the hub to the websocket connection.
//
// A goroutine running WritePump is started for each connection. The
// application ensures that there is at most one writer to a connection by
// executing all writes from this goroutine.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case env, ok := <-c.Send:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := c.codec.Marshal(env)
			if err != nil {
				c.logger.Error().Err(err).Str(logging.FieldEvent, env.Type).Msg("failed to encode event")
				continue
			}
			if err := c.conn.WriteMessage(c.codec.MessageType(), data); err != nil {
				c.logger.Debug().Err(err).Msg("write failed")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
