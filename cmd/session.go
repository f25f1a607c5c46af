package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/beaconcast/beacon/internal/client"
	"github.com/beaconcast/beacon/internal/codec"
	"github.com/beaconcast/beacon/internal/config"
	"github.com/beaconcast/beacon/internal/protocol"
	"github.com/beaconcast/beacon/internal/ui"
)

// requestTimeout bounds a single request/acknowledgement round trip.
const requestTimeout = 15 * time.Second

// ConnectionContext is a live relay connection shared by the commands.
type ConnectionContext struct {
	Client  *client.Client
	Handler *client.Handler
	Config  *config.ClientConfig

	// SelfID is the relay-assigned connection id.
	SelfID string
}

func NewConnectionContext(ctx context.Context, cfg *config.ClientConfig) (*ConnectionContext, error) {
	cd, err := codec.Lookup(flagCodec)
	if err != nil {
		return nil, client.NewError("select codec", err)
	}

	dialCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	c := client.New(cfg.WebSocketURL, cd)
	if err := c.Connect(dialCtx); err != nil {
		return nil, client.NewError("connect to relay", err)
	}

	handler := client.NewHandler(c)
	go handler.Start()

	selfID, err := handler.Hello(dialCtx)
	if err != nil {
		c.Close()
		return nil, err
	}

	return &ConnectionContext{
		Client:  c,
		Handler: handler,
		Config:  cfg,
		SelfID:  selfID,
	}, nil
}

func (c *ConnectionContext) Close() {
	if c.Client != nil {
		c.Client.Close()
	}
}

// LoadConfig resolves the persistent flags against the environment.
func LoadConfig() (*config.ClientConfig, error) {
	cfg, err := config.LoadClient(config.Options{
		Server:     flagServer,
		STUNServer: flagSTUN,
		TURNServer: flagTURN,
		TURNUser:   flagTURNUser,
		TURNPass:   flagTURNPass,
	})
	if err != nil {
		return nil, client.NewError("load config", err)
	}
	return cfg, nil
}

// connect loads configuration and dials the relay behind a spinner.
func connect(ctx context.Context) (*ConnectionContext, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}

	sp := ui.NewConnectionSpinner("Connecting to relay...")
	sp.Start()
	conn, err := NewConnectionContext(ctx, cfg)
	if err != nil {
		sp.Error("Could not reach " + cfg.ServerURL)
		return nil, err
	}
	sp.Success(fmt.Sprintf("%s Connected to %s", ui.IconConnect, cfg.ServerURL))
	return conn, nil
}

// joinRoom enters roomID as a viewer.
func joinRoom(ctx context.Context, conn *ConnectionContext, roomID string) (protocol.StreamJoined, error) {
	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	joined, err := conn.Handler.JoinStream(reqCtx, roomID, false)
	if err != nil {
		return protocol.StreamJoined{}, err
	}
	if joined.IsHost {
		return protocol.StreamJoined{}, client.WrapError("join stream", client.ErrNotViewer, roomID)
	}
	return joined, nil
}
