// Package config loads relay server and CLI settings with viper.
package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/beaconcast/beacon/internal/events"
	"github.com/beaconcast/beacon/internal/logging"
)

// EnvPrefix prefixes every environment override, e.g. BEACON_SERVER_PORT.
const EnvPrefix = "BEACON"

// Config is the relay server configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	Relay     RelayConfig     `mapstructure:"relay"`
	Events    events.Config   `mapstructure:"events"`
	Log       logging.Config  `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// Mode is the gin mode: debug, release or test.
	Mode string `mapstructure:"mode"`
}

// Addr is the listen address.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

type WebSocketConfig struct {
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
	SendBuffer     int           `mapstructure:"send_buffer"`
	// AllowedOrigins limits websocket upgrades. Empty allows every origin.
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RelayConfig struct {
	// GracePeriod is how long a room outlives its disconnected host.
	GracePeriod time.Duration `mapstructure:"grace_period"`
}

// DefaultWebSocket returns the websocket defaults, also used by tests.
func DefaultWebSocket() WebSocketConfig {
	return WebSocketConfig{
		PingInterval:   54 * time.Second,
		PongWait:       60 * time.Second,
		WriteWait:      10 * time.Second,
		MaxMessageSize: 64 * 1024,
		SendBuffer:     256,
	}
}

func setDefaults(v *viper.Viper) {
	ws := DefaultWebSocket()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.mode", "release")
	v.SetDefault("websocket.ping_interval", ws.PingInterval.String())
	v.SetDefault("websocket.pong_wait", ws.PongWait.String())
	v.SetDefault("websocket.write_wait", ws.WriteWait.String())
	v.SetDefault("websocket.max_message_size", ws.MaxMessageSize)
	v.SetDefault("websocket.send_buffer", ws.SendBuffer)
	v.SetDefault("websocket.allowed_origins", []string{})
	v.SetDefault("relay.grace_period", "30s")
	v.SetDefault("events.driver", events.DriverNone)
	v.SetDefault("events.buffer", 256)
	v.SetDefault("events.redis.address", "localhost:6379")
	v.SetDefault("events.redis.password", "")
	v.SetDefault("events.redis.db", 0)
	v.SetDefault("events.redis.channel", "beacon:streams")
	v.SetDefault("events.kafka.brokers", "localhost:9092")
	v.SetDefault("events.kafka.topic", "beacon-stream-events")
	v.SetDefault("events.kafka.partitions", 4)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("log.service", "beacon")
}

// Load reads config.yaml from the given directories (then . and ./config),
// applies environment overrides and defaults, and validates the result.
// A missing file is not an error.
func Load(paths ...string) (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Conventional unprefixed overrides.
	_ = v.BindEnv("server.port", EnvPrefix+"_SERVER_PORT", "PORT")
	_ = v.BindEnv("log.level", EnvPrefix+"_LOG_LEVEL", "LOG_LEVEL")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the relay cannot run with.
func (c *Config) Validate() error {
	ws := c.WebSocket
	switch {
	case c.Server.Port <= 0 || c.Server.Port > 65535:
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	case ws.PongWait <= 0:
		return errors.New("websocket.pong_wait must be positive")
	case ws.PingInterval <= 0 || ws.PingInterval >= ws.PongWait:
		return fmt.Errorf("websocket.ping_interval (%s) must be positive and shorter than pong_wait (%s)", ws.PingInterval, ws.PongWait)
	case ws.WriteWait <= 0:
		return errors.New("websocket.write_wait must be positive")
	case ws.MaxMessageSize <= 0:
		return errors.New("websocket.max_message_size must be positive")
	case ws.SendBuffer <= 0:
		return errors.New("websocket.send_buffer must be positive")
	case c.Relay.GracePeriod < 0:
		return errors.New("relay.grace_period must not be negative")
	}
	return nil
}
