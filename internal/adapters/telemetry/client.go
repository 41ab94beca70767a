// Package telemetry owns the connection to the combat-logging tool's
// WebSocket server: connect, subscribe, receive, reassemble, decode and
// publish MetricUpdate events for one client generation.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/okian/dpsbar/internal/adapters/mq/queue"
	"github.com/okian/dpsbar/internal/domain/decode"
	"github.com/okian/dpsbar/internal/domain/model"
	"github.com/okian/dpsbar/pkg/logger"
	"github.com/okian/dpsbar/pkg/metrics"
)

// DefaultGracePeriod is how long Disconnect waits before warning about a
// slow receive loop.
const DefaultGracePeriod = time.Second

// Client is a single connection generation. After Disconnect it is retired
// and a new Client must be created for the next cycle.
type Client struct {
	generation      string
	dialer          Dialer
	decoder         decode.Decoder
	grace           time.Duration
	maxMessageBytes int
	bufferSize      int
	now             func() time.Time
	logger          logger.Logger

	updates *queue.InMemoryQueue

	// ended is set by the receive loop when it stops on its own. The loop
	// never takes mu because teardown holds it while joining the loop.
	ended atomic.Bool

	mu        sync.Mutex
	transport Transport
	cancel    context.CancelFunc
	loopDone  chan struct{}
	connected bool
	retired   bool
}

// NewClient creates a client that has not connected yet.
func NewClient(opts ...Option) *Client {
	c := &Client{
		generation:      uuid.NewString(),
		grace:           DefaultGracePeriod,
		maxMessageBytes: DefaultMaxMessageBytes,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logger.Get().Named("telemetry")
	}
	if c.dialer == nil {
		c.dialer = NewWebSocketDialer(0)
	}
	if c.decoder == nil {
		c.decoder = decode.New(decode.WithLogger(c.logger))
	}
	var qopts []queue.Option
	if c.bufferSize > 0 {
		qopts = append(qopts, queue.WithBufferSize(c.bufferSize))
	}
	c.updates = queue.NewInMemoryQueue(qopts...)
	metrics.RecordGeneration()
	return c
}

// Generation identifies this client instance. Every update it publishes
// carries the same value.
func (c *Client) Generation() string {
	return c.generation
}

// Updates returns the client's update stream. It is closed by Disconnect,
// or earlier when the peer goes away.
func (c *Client) Updates() <-chan model.MetricUpdate {
	return c.updates.Updates()
}

// Connected reports whether Connect succeeded, Disconnect has not run and
// the receive loop is still running.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected && !c.ended.Load()
}

// Connect dials target, sends the CombatData subscription and starts the
// receive loop. It blocks until the connection is established or fails.
// Calling it on a connected client does nothing. A failed connect retires
// the client.
func (c *Client) Connect(ctx context.Context, target model.ConnectionTarget) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected && c.ended.Load() {
		return ErrClientClosed
	}
	if c.connected {
		metrics.RecordConnectAttempt("noop")
		c.logger.Info(ctx, "already connected", logger.String("generation", c.generation))
		return nil
	}
	if c.retired {
		return ErrClientClosed
	}

	target = target.WithDefaults()
	t, err := c.dialer.Dial(ctx, target)
	if err != nil {
		metrics.RecordConnectAttempt("error")
		c.logger.Warn(ctx, "connect failed",
			logger.String("url", target.URL()),
			logger.Error(err),
		)
		c.teardownLocked(ctx)
		return fmt.Errorf("%w: %s: %w", ErrConnection, target.URL(), err)
	}

	if err := t.WriteText(decode.SubscribeMessage()); err != nil {
		metrics.RecordSubscribeError()
		c.logger.Warn(ctx, "subscribe send failed, continuing", logger.Error(err))
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	c.transport = t
	c.cancel = cancel
	c.loopDone = make(chan struct{})
	c.connected = true

	metrics.RecordConnectAttempt("ok")
	metrics.UpdateConnectionActive(true)
	c.logger.Info(ctx, "connected",
		logger.String("url", target.URL()),
		logger.String("generation", c.generation),
	)

	go c.receive(loopCtx, t, c.loopDone)
	return nil
}

// Disconnect cancels the receive loop, waits for it to exit and releases
// the transport. A loop slower than the grace period is logged and still
// waited for. Safe to call repeatedly or without a prior Connect.
func (c *Client) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.retired {
		return nil
	}
	c.teardownLocked(ctx)
	return nil
}

func (c *Client) teardownLocked(ctx context.Context) {
	c.retired = true
	wasConnected := c.connected

	if c.cancel != nil {
		c.cancel()
	}
	if c.transport != nil {
		c.transport.Interrupt()
	}

	if c.loopDone != nil {
		start := time.Now()
		mode := "joined"
		timer := time.NewTimer(c.grace)
		select {
		case <-c.loopDone:
		case <-timer.C:
			mode = "slow"
			c.logger.Warn(ctx, "receive loop still running after grace period, waiting",
				logger.String("generation", c.generation),
				logger.String("grace", c.grace.String()),
			)
			<-c.loopDone
		}
		timer.Stop()
		metrics.RecordDisconnect(mode, time.Since(start).Seconds())
	}

	if c.transport != nil {
		if err := c.transport.Close(); err != nil {
			c.logger.Debug(ctx, "transport close", logger.Error(err))
		}
	}
	_ = c.updates.Close()

	c.transport = nil
	c.cancel = nil
	c.connected = false
	if wasConnected {
		metrics.UpdateConnectionActive(false)
		c.logger.Info(ctx, "disconnected", logger.String("generation", c.generation))
	}
}

// receive runs until ctx is cancelled or the transport stops. It touches
// nothing but its arguments, the decoder, the update queue and the ended
// flag, all of which outlive it.
func (c *Client) receive(ctx context.Context, t Transport, done chan<- struct{}) {
	defer close(done)
	defer c.endLoop(ctx)
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error(ctx, "receive loop panic", logger.Error(fmt.Errorf("%v", r)))
		}
	}()

	r := NewReassembler(c.maxMessageBytes)
	for {
		if ctx.Err() != nil {
			c.logger.Info(ctx, "receive loop cancelled")
			return
		}
		frame, err := t.ReadFrame()
		if ctx.Err() != nil {
			c.logger.Info(ctx, "receive loop cancelled")
			return
		}
		if err != nil {
			if errors.Is(err, ErrTransportClosed) {
				c.logger.Info(ctx, "transport closed by peer", logger.Error(err))
			} else {
				c.logger.Warn(ctx, "read failed, stopping receive loop", logger.Error(err))
			}
			return
		}
		metrics.RecordFrameReceived(frame.Kind.String())

		msg, ok, err := r.Push(frame)
		if err != nil {
			metrics.RecordMessageDropped("too_large")
			c.logger.Warn(ctx, "dropping message", logger.Error(err))
			continue
		}
		if !ok {
			continue
		}
		metrics.RecordMessageAssembled(len(msg))

		ev, ok := c.decoder.Decode(ctx, msg)
		if !ok {
			continue
		}
		if !c.updates.Publish(ctx, ev.Update(c.generation, c.now())) {
			return
		}
	}
}

// endLoop ends the generation when the loop stopped without being cancelled:
// the stream closes so consumers see the end, and Connected turns false.
// The loop is the only publisher, so closing here cannot race a send.
func (c *Client) endLoop(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	c.ended.Store(true)
	_ = c.updates.Close()
	metrics.UpdateConnectionActive(false)
	c.logger.Info(ctx, "generation ended by transport", logger.String("generation", c.generation))
}
