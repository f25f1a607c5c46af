package events

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Supported drivers.
const (
	DriverNone  = "none"
	DriverRedis = "redis"
	DriverKafka = "kafka"
)

// RedisConfig holds Redis-specific configuration.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Channel  string `mapstructure:"channel"`
}

// KafkaConfig holds Kafka-specific configuration.
type KafkaConfig struct {
	Brokers    string `mapstructure:"brokers"`
	Topic      string `mapstructure:"topic"`
	Partitions int    `mapstructure:"partitions"`
}

// Config selects and configures the lifecycle feed.
type Config struct {
	Driver string      `mapstructure:"driver"`
	Buffer int         `mapstructure:"buffer"`
	Redis  RedisConfig `mapstructure:"redis"`
	Kafka  KafkaConfig `mapstructure:"kafka"`
}

// Dial connects the driver named in cfg.
func Dial(ctx context.Context, cfg Config, logger zerolog.Logger) (Publisher, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", DriverNone:
		return Discard{}, nil
	case DriverRedis:
		return NewRedisPublisher(ctx, cfg.Redis)
	case DriverKafka:
		return NewKafkaPublisher(cfg.Kafka, logger)
	default:
		return nil, fmt.Errorf("unknown events driver %q", cfg.Driver)
	}
}

// New returns an asynchronous publisher for cfg. When the driver cannot be
// reached the feed is disabled with a warning; the relay keeps running.
func New(ctx context.Context, cfg Config, logger zerolog.Logger) Publisher {
	next, err := Dial(ctx, cfg, logger)
	if err != nil {
		logger.Warn().Err(err).Str("driver", cfg.Driver).Msg("lifecycle events disabled")
		return Discard{}
	}
	if _, ok := next.(Discard); ok {
		return next
	}

	logger.Info().Str("driver", cfg.Driver).Msg("lifecycle events enabled")
	return NewAsync(next, cfg.Buffer, logger)
}
