// Package config defines process configuration and how it is loaded.
//
// Conventions:
//   - New(ctx) returns a Config populated with defaults.
//   - Load(ctx) layers a YAML file and DPSBAR_ environment variables on top.
//   - Validation failures wrap ErrInvalidConfig.
package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/okian/dpsbar/internal/domain/model"
)

// UI modes.
const (
	UITUI      = "tui"
	UIHeadless = "headless"

	DefaultTUILogFile = "dpsbar.log"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// LogFile receives log output. Empty means stderr in headless mode and
	// DefaultTUILogFile in TUI mode, where the terminal is taken.
	LogFile string `koanf:"log_file"`

	// Addr configures the HTTP listen address. Empty disables the API.
	Addr string `koanf:"addr"`

	// ACTHost and ACTPort locate the OverlayPlugin WebSocket server.
	ACTHost string `koanf:"act_host"`
	ACTPort int    `koanf:"act_port"`

	// TickIntervalMS is how often the combat flag is sampled.
	TickIntervalMS int `koanf:"tick_interval_ms"`

	// LingerMS keeps the connection open after combat ends.
	LingerMS int `koanf:"linger_ms"`

	// DisconnectGraceMS is how long a disconnect waits before warning
	// about a slow receive loop.
	DisconnectGraceMS int `koanf:"disconnect_grace_ms"`

	// MaxMessageBytes caps a single reassembled telemetry message.
	MaxMessageBytes int `koanf:"max_message_bytes"`

	// UI selects the host: tui or headless.
	UI string `koanf:"ui"`

	// MQTTBroker enables the MQTT report sink when set, e.g. tcp://localhost:1883.
	MQTTBroker string `koanf:"mqtt_broker"`

	// MQTTTopic is the topic prefix for reports.
	MQTTTopic string `koanf:"mqtt_topic"`
}

// New creates a Config with defaults. The context is reserved for loaders
// and is currently unused.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:          "info",
		LogFormat:         "text",
		Addr:              "127.0.0.1:9090",
		ACTHost:           model.DefaultHost,
		ACTPort:           model.DefaultPort,
		TickIntervalMS:    250,
		LingerMS:          2000,
		DisconnectGraceMS: 1000,
		MaxMessageBytes:   1 << 20,
		UI:                UITUI,
		MQTTTopic:         "dpsbar/metrics",
	}
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.ACTHost) == "":
		return fmt.Errorf("%w: act_host must not be empty", ErrInvalidConfig)
	case c.ACTPort <= 0 || c.ACTPort > 65535:
		return fmt.Errorf("%w: act_port %d out of range", ErrInvalidConfig, c.ACTPort)
	case c.TickIntervalMS <= 0:
		return fmt.Errorf("%w: tick_interval_ms must be positive", ErrInvalidConfig)
	case c.LingerMS <= 0:
		return fmt.Errorf("%w: linger_ms must be positive", ErrInvalidConfig)
	case c.DisconnectGraceMS <= 0:
		return fmt.Errorf("%w: disconnect_grace_ms must be positive", ErrInvalidConfig)
	case c.MaxMessageBytes <= 0:
		return fmt.Errorf("%w: max_message_bytes must be positive", ErrInvalidConfig)
	}
	switch c.UI {
	case UITUI, UIHeadless:
	default:
		return fmt.Errorf("%w: ui must be %q or %q, got %q", ErrInvalidConfig, UITUI, UIHeadless, c.UI)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log_format must be text or json, got %q", ErrInvalidConfig, c.LogFormat)
	}
	if c.MQTTBroker != "" && strings.TrimSpace(c.MQTTTopic) == "" {
		return fmt.Errorf("%w: mqtt_topic must be set when mqtt_broker is", ErrInvalidConfig)
	}
	return nil
}

// Target returns the telemetry peer.
func (c *Config) Target() model.ConnectionTarget {
	return model.ConnectionTarget{Host: c.ACTHost, Port: c.ACTPort}
}

// TickInterval returns TickIntervalMS as a duration.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalMS) * time.Millisecond
}

// Linger returns LingerMS as a duration.
func (c *Config) Linger() time.Duration {
	return time.Duration(c.LingerMS) * time.Millisecond
}

// LogPath returns where logs go; empty means stderr.
func (c *Config) LogPath() string {
	if c.LogFile == "" && c.UI == UITUI {
		return DefaultTUILogFile
	}
	return c.LogFile
}

// DisconnectGrace returns DisconnectGraceMS as a duration.
func (c *Config) DisconnectGrace() time.Duration {
	return time.Duration(c.DisconnectGraceMS) * time.Millisecond
}
