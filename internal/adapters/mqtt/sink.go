package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/okian/dpsbar/internal/domain/model"
	"github.com/okian/dpsbar/pkg/logger"
	"github.com/okian/dpsbar/pkg/metrics"
)

// DefaultTopic is the topic prefix; reports go to <prefix>/<kind>.
const DefaultTopic = "dpsbar/metrics"

const defaultBufferSize = 32

type outbound struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

// Sink publishes reports asynchronously. Publish never blocks: when the
// buffer is full the report is dropped and counted.
type Sink struct {
	pub    Publisher
	topic  string
	logger logger.Logger

	mu     sync.RWMutex
	ch     chan outbound
	closed bool
	done   chan struct{}
}

// Option configures a Sink.
type Option func(*Sink)

// WithTopic sets the topic prefix.
func WithTopic(topic string) Option {
	return func(s *Sink) {
		if topic != "" {
			s.topic = topic
		}
	}
}

// WithBufferSize sets how many reports may wait for the broker.
func WithBufferSize(n int) Option {
	return func(s *Sink) {
		if n > 0 {
			s.ch = make(chan outbound, n)
		}
	}
}

// WithLogger sets a custom logger for the sink.
func WithLogger(l logger.Logger) Option {
	return func(s *Sink) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewSink starts the publishing goroutine.
func NewSink(pub Publisher, opts ...Option) *Sink {
	s := &Sink{
		pub:   pub,
		topic: DefaultTopic,
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.ch == nil {
		s.ch = make(chan outbound, defaultBufferSize)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("mqtt")
	}
	go s.run()
	return s
}

// Topic returns the full topic for a report kind.
func (s *Sink) Topic(kind string) string {
	return s.topic + "/" + kind
}

// Publish enqueues r. Final reports are retained at QoS 1 so a late
// subscriber sees the last settled value; updates are QoS 0.
func (s *Sink) Publish(ctx context.Context, r model.Report) {
	payload, err := json.Marshal(r)
	if err != nil {
		metrics.RecordSinkPublish("error")
		s.logger.Warn(ctx, "encode report", logger.Error(err))
		return
	}
	msg := outbound{topic: s.Topic(r.Kind), payload: payload}
	if r.Kind == model.ReportFinal {
		msg.qos, msg.retained = 1, true
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		metrics.RecordSinkPublish("closed")
		return
	}
	select {
	case s.ch <- msg:
	default:
		metrics.RecordSinkPublish("dropped")
		s.logger.Debug(ctx, "sink buffer full, report dropped", logger.String("kind", r.Kind))
	}
}

func (s *Sink) run() {
	defer close(s.done)
	ctx := context.Background()
	for msg := range s.ch {
		if err := s.pub.Publish(msg.topic, msg.qos, msg.retained, msg.payload); err != nil {
			metrics.RecordSinkPublish("error")
			s.logger.Warn(ctx, "publish report", logger.String("topic", msg.topic), logger.Error(err))
			continue
		}
		metrics.RecordSinkPublish("ok")
	}
}

// Close drains what is buffered, then disconnects the publisher.
func (s *Sink) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.ch)
	s.mu.Unlock()

	select {
	case <-s.done:
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrSinkClosed, ctx.Err())
	}
	return s.pub.Close()
}
