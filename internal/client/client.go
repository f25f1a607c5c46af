// Package client connects the beacon CLI to a relay as a websocket participant.
package client

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/beaconcast/beacon/internal/codec"
	"github.com/beaconcast/beacon/internal/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Client manages the websocket connection to the relay.
type Client struct {
	conn      *websocket.Conn
	serverURL string
	codec     codec.Codec
	logger    zerolog.Logger

	incoming chan *codec.Frame
	outgoing chan *codec.Envelope
	done     chan struct{}
	once     sync.Once
}

// New creates a client for the relay websocket at serverURL.
func New(serverURL string, cd codec.Codec) *Client {
	if cd == nil {
		cd = codec.Msgpack
	}
	return &Client{
		serverURL: serverURL,
		codec:     cd,
		logger:    logging.L(),
		incoming:  make(chan *codec.Frame, 16),
		outgoing:  make(chan *codec.Envelope, 16),
		done:      make(chan struct{}),
	}
}

// Connect dials the relay and starts the read and write pumps.
func (c *Client) Connect(ctx context.Context) error {
	u, err := url.Parse(c.serverURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}
	q := u.Query()
	q.Set("codec", c.codec.Name())
	u.RawQuery = q.Encode()

	dialer := *websocket.DefaultDialer
	dialer.NetDialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, err
		}
		ip, err := resolveHost(ctx, host)
		if err != nil {
			return nil, fmt.Errorf("dns lookup failed: %w", err)
		}
		var d net.Dialer
		return d.DialContext(ctx, network, net.JoinHostPort(ip, port))
	}

	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	c.conn = conn

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.readPump()
	go c.writePump()

	return nil
}

// readPump decodes frames until the connection fails or closes.
func (c *Client) readPump() {
	defer func() {
		c.conn.Close()
		close(c.incoming)
	}()

	// The relay pings; any inbound traffic keeps the connection alive.
	c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))

		frame, err := c.codec.Unmarshal(data)
		if err != nil {
			c.logger.Debug().Err(err).Msg("dropping undecodable frame")
			continue
		}
		c.incoming <- frame
	}
}

// writePump writes queued envelopes and sends periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case env := <-c.outgoing:
			data, err := c.codec.Marshal(env)
			if err != nil {
				c.logger.Error().Err(err).Str(logging.FieldEvent, env.Type).Msg("failed to encode event")
				continue
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(c.codec.MessageType(), data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// Send queues an event for the relay.
func (c *Client) Send(event string, payload any) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	select {
	case c.outgoing <- &codec.Envelope{Type: event, Payload: payload}:
		return nil
	case <-c.done:
		return ErrClosed
	}
}

// Incoming yields decoded frames; it is closed when the connection ends.
func (c *Client) Incoming() <-chan *codec.Frame {
	return c.incoming
}

// Close sends a close frame and shuts the connection down.
func (c *Client) Close() {
	c.once.Do(func() {
		close(c.done)
	})
}
