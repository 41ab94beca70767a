package telemetry

import (
	"time"

	"github.com/okian/dpsbar/internal/domain/decode"
	"github.com/okian/dpsbar/pkg/logger"
)

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithDialer replaces the WebSocket dialer.
func WithDialer(d Dialer) Option {
	return func(c *Client) {
		if d != nil {
			c.dialer = d
		}
	}
}

// WithDecoder replaces the CombatData decoder.
func WithDecoder(d decode.Decoder) Option {
	return func(c *Client) {
		if d != nil {
			c.decoder = d
		}
	}
}

// WithGracePeriod sets how long Disconnect waits before warning.
func WithGracePeriod(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.grace = d
		}
	}
}

// WithMaxMessageBytes caps a single reassembled message.
func WithMaxMessageBytes(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxMessageBytes = n
		}
	}
}

// WithBufferSize sets the update stream buffer.
func WithBufferSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.bufferSize = n
		}
	}
}

// WithClock overrides the timestamp source for updates.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets a custom logger for the client.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}
