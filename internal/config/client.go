package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/viper"
)

// Default CLI values.
const (
	DefaultServer = "http://localhost:3000"
	DefaultSTUN   = "stun:stun.l.google.com:19302"
)

// ClientConfig is the beacon CLI configuration.
type ClientConfig struct {
	// ServerURL is the relay base URL, e.g. https://beacon.example.com.
	ServerURL string

	// WebSocketURL is derived from ServerURL.
	WebSocketURL string

	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
}

// Options carries CLI flag values. Empty fields fall through to the
// environment, then to defaults.
type Options struct {
	Server     string
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
}

// LoadClient resolves CLI settings with priority flag > env > default.
func LoadClient(opts Options) (*ClientConfig, error) {
	v := viper.New()

	v.SetDefault("server", DefaultServer)
	v.SetDefault("stun_server", DefaultSTUN)
	v.SetDefault("turn_server", "")
	v.SetDefault("turn_username", "")
	v.SetDefault("turn_password", "")

	_ = v.BindEnv("server", EnvPrefix+"_SERVER")
	_ = v.BindEnv("stun_server", "STUN_SERVER")
	_ = v.BindEnv("turn_server", "TURN_SERVER")
	_ = v.BindEnv("turn_username", "TURN_USERNAME")
	_ = v.BindEnv("turn_password", "TURN_PASSWORD")

	for key, flag := range map[string]string{
		"server":        opts.Server,
		"stun_server":   opts.STUNServer,
		"turn_server":   opts.TURNServer,
		"turn_username": opts.TURNUser,
		"turn_password": opts.TURNPass,
	} {
		if flag != "" {
			v.Set(key, flag)
		}
	}

	base, err := normalizeServer(v.GetString("server"))
	if err != nil {
		return nil, err
	}
	wsURL, err := websocketURL(base)
	if err != nil {
		return nil, err
	}

	return &ClientConfig{
		ServerURL:    base,
		WebSocketURL: wsURL,
		STUNServer:   v.GetString("stun_server"),
		TURNServer:   v.GetString("turn_server"),
		TURNUser:     v.GetString("turn_username"),
		TURNPass:     v.GetString("turn_password"),
	}, nil
}

// normalizeServer accepts a bare host[:port] or a URL and returns a base URL
// without a trailing slash. Bare hosts default to https.
func normalizeServer(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("server address is empty")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid server address %q: %w", raw, err)
	}
	switch u.Scheme {
	case "http", "https":
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	default:
		return "", fmt.Errorf("invalid server address %q: unsupported scheme %q", raw, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid server address %q: missing host", raw)
	}

	u.Path = strings.TrimSuffix(strings.TrimSuffix(u.Path, "/"), "/ws")
	u.RawQuery = ""
	u.Fragment = ""
	return strings.TrimSuffix(u.String(), "/"), nil
}

func websocketURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	return u.String(), nil
}

// StreamsURL is the directory endpoint.
func (c *ClientConfig) StreamsURL() string {
	return c.ServerURL + "/api/streams"
}

// RoomLink is the browser URL of a room.
func (c *ClientConfig) RoomLink(roomID string) string {
	return fmt.Sprintf("%s/stream/%s", c.ServerURL, roomID)
}

// STUNServers returns STUN server URLs.
func (c *ClientConfig) STUNServers() []string {
	if c.STUNServer == "" {
		return nil
	}
	return []string{c.STUNServer}
}

// TURNServers returns TURN server URLs if configured.
func (c *ClientConfig) TURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	host := strings.TrimPrefix(strings.TrimPrefix(c.TURNServer, "turn:"), "turns:")
	return []string{
		fmt.Sprintf("turn:%s:3478?transport=udp", host),
		fmt.Sprintf("turn:%s:3478?transport=tcp", host),
		fmt.Sprintf("turns:%s:5349?transport=tcp", host),
	}
}

// TURNCredentials returns the TURN username and password.
func (c *ClientConfig) TURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}
