// Package server exposes the relay over HTTP: the websocket endpoint, the
// room directory and a health check.
package server

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/beaconcast/beacon/internal/codec"
	"github.com/beaconcast/beacon/internal/config"
	"github.com/beaconcast/beacon/internal/logging"
	"github.com/beaconcast/beacon/internal/protocol"
	"github.com/beaconcast/beacon/internal/signaling"
)

// NewRouter builds the gin engine for the relay.
func NewRouter(hub *signaling.Hub, cfg config.WebSocketConfig, logger zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), logging.GinMiddleware(logger))

	r.GET("/ws", ServeWs(hub, cfg))
	r.GET("/health", healthHandler(hub))

	api := r.Group("/api")
	api.GET("/streams", listStreamsHandler(hub))
	api.GET("/streams/:roomId", getStreamHandler(hub))

	return r
}

func newUpgrader(allowed []string) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  64 * 1024,
		WriteBufferSize: 64 * 1024,
		CheckOrigin:     originChecker(allowed),
	}
}

// originChecker accepts every origin when allowed is empty. Otherwise the
// Origin header must match one entry, compared case-insensitively on scheme
// and host. Requests without an Origin header (non-browser clients) pass.
func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}

	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[strings.ToLower(strings.TrimSuffix(o, "/"))] = struct{}{}
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		_, ok := set[strings.ToLower(u.Scheme+"://"+u.Host)]
		return ok
	}
}

// ServeWs upgrades the request and hands the connection to the hub. The codec
// is chosen with the codec query parameter (json or msgpack).
func ServeWs(hub *signaling.Hub, cfg config.WebSocketConfig) gin.HandlerFunc {
	upgrader := newUpgrader(cfg.AllowedOrigins)

	return func(c *gin.Context) {
		logger := logging.Ctx(c.Request.Context())

		cd, err := codec.Lookup(c.Query("codec"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade has already written an error response.
			logger.Warn().Err(err).Msg("failed to upgrade connection")
			return
		}

		client := signaling.NewClient(hub, conn, cd, cfg)
		if !hub.Register(client) {
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			conn.Close()
			return
		}

		logger.Info().
			Str(logging.FieldClientID, client.ID).
			Str(logging.FieldCodec, cd.Name()).
			Msg("client connected")

		go client.WritePump()
		go client.ReadPump()
	}
}

func listStreamsHandler(hub *signaling.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		streams, err := hub.Streams(c.Request.Context())
		if err != nil {
			unavailable(c, err)
			return
		}
		c.JSON(http.StatusOK, streams)
	}
}

func getStreamHandler(hub *signaling.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		stream, err := hub.Stream(c.Request.Context(), c.Param("roomId"))
		switch {
		case errors.Is(err, signaling.ErrStreamNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": protocol.MsgStreamNotFound})
		case err != nil:
			unavailable(c, err)
		default:
			c.JSON(http.StatusOK, stream)
		}
	}
}

func healthHandler(hub *signaling.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := hub.Stats(c.Request.Context())
		if err != nil {
			unavailable(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":      "ok",
			"rooms":       stats.Rooms,
			"connections": stats.Connections,
		})
	}
}

func unavailable(c *gin.Context, err error) {
	l := logging.Ctx(c.Request.Context())
	l.Warn().Err(err).Msg("hub unavailable")
	c.JSON(http.StatusServiceUnavailable, gin.H{"error": "service unavailable"})
}
