package client

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beaconcast/beacon/internal/codec"
	"github.com/beaconcast/beacon/internal/config"
	"github.com/beaconcast/beacon/internal/protocol"
	"github.com/beaconcast/beacon/internal/server"
	"github.com/beaconcast/beacon/internal/signaling"
)

func startRelay(t *testing.T) string {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := signaling.NewHub(signaling.WithLogger(zerolog.Nop()))
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(server.NewRouter(hub, config.DefaultWebSocket(), zerolog.Nop()))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func connect(t *testing.T, url string, cd codec.Codec) (*Handler, string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	c := New(url, cd)
	require.NoError(t, c.Connect(ctx))
	t.Cleanup(c.Close)

	h := NewHandler(c)
	go h.Start()

	id, err := h.Hello(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, id)
	return h, id
}

func within(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(3 * time.Second):
		require.FailNow(t, "timed out waiting for event")
		var zero T
		return zero
	}
}

func TestHostAndViewerSession(t *testing.T) {
	url := startRelay(t)
	host, hostID := connect(t, url, codec.JSON)
	viewer, viewerID := connect(t, url, codec.Msgpack)

	roomID, err := host.CreateStream(within(t), protocol.CreateStream{Title: "Terminal TV"})
	require.NoError(t, err)
	require.NotEmpty(t, roomID)

	joined, err := viewer.JoinStream(within(t), roomID, false)
	require.NoError(t, err)
	assert.Equal(t, "Terminal TV", joined.StreamInfo.Title)
	assert.Equal(t, 1, joined.ViewerCount)
	assert.False(t, joined.IsHost)

	ev := receive(t, host.ViewerJoined)
	assert.Equal(t, protocol.ViewerEvent{ViewerID: viewerID, ViewerCount: 1}, ev)

	require.NoError(t, viewer.SendAnswer(hostID, Description{Type: "answer", SDP: "v=0"}))
	answer := receive(t, host.Answers)
	assert.Equal(t, viewerID, answer.From)
	assert.Equal(t, Description{Type: "answer", SDP: "v=0"}, answer.Answer)

	mid := "0"
	var idx uint16
	require.NoError(t, viewer.SendCandidate(hostID, Candidate{Candidate: "candidate:1 1 udp 1 10.0.0.1 9 typ host", SDPMid: &mid, SDPMLineIndex: &idx}))
	cand := receive(t, host.Candidates)
	assert.Equal(t, "candidate:1 1 udp 1 10.0.0.1 9 typ host", cand.Candidate.Candidate)
	require.NotNil(t, cand.Candidate.SDPMid)
	assert.Equal(t, "0", *cand.Candidate.SDPMid)

	require.NoError(t, host.SendChat(roomID, "host", "welcome"))
	for _, h := range []*Handler{host, viewer} {
		msg := receive(t, h.Chat)
		assert.Equal(t, "welcome", msg.Message)
		assert.Equal(t, "host", msg.Username)
		assert.Equal(t, hostID, msg.UserID)
	}
}

func TestJoinUnknownStream(t *testing.T) {
	url := startRelay(t)
	h, _ := connect(t, url, codec.Msgpack)

	_, err := h.JoinStream(within(t), "does-not-exist", false)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrServer)

	var cliErr *Error
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, "join stream", cliErr.Op)
	assert.Equal(t, protocol.MsgStreamNotFound, cliErr.Details)
}

func TestClosedClient(t *testing.T) {
	c := New("ws://127.0.0.1:1/ws", nil)
	c.Close()
	c.Close()
	assert.ErrorIs(t, c.Send(protocol.EventListStreams, nil), ErrClosed)
}

func TestErrorFormatting(t *testing.T) {
	assert.Equal(t, "join stream: relay error (Stream not found)",
		WrapError("join stream", ErrServer, "Stream not found").Error())
	assert.Equal(t, "connect to relay: disconnected from relay",
		NewError("connect to relay", ErrDisconnected).Error())
}

func TestResolveHostLiteral(t *testing.T) {
	ip, err := resolveHost(context.Background(), "127.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", ip)
}
