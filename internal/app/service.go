// Package service ties the combat-state debouncer to telemetry client
// generations and the display label. It is what the host drives: a
// periodic Tick with the sampled in-combat flag, and ToggleMetric.
package service

import (
	"context"
	"sync"
	"time"

	"github.com/okian/dpsbar/internal/adapters/mq/worker"
	"github.com/okian/dpsbar/internal/adapters/telemetry"
	"github.com/okian/dpsbar/internal/domain/combat"
	"github.com/okian/dpsbar/internal/domain/display"
	"github.com/okian/dpsbar/internal/domain/model"
	"github.com/okian/dpsbar/pkg/logger"
	"github.com/okian/dpsbar/pkg/metrics"
)

// TelemetryClient is one connection generation.
type TelemetryClient interface {
	Connect(ctx context.Context, target model.ConnectionTarget) error
	Disconnect(ctx context.Context) error
	Updates() <-chan model.MetricUpdate
	Generation() string
	Connected() bool
}

// ClientFactory builds a fresh, unconnected client.
type ClientFactory func() TelemetryClient

// Host shows the display text. SetText must not block or call back into
// the Service.
type Host interface {
	SetText(text string)
}

// ClickSource is implemented by hosts whose label can be clicked.
// The Service registers ToggleMetric as the callback.
type ClickSource interface {
	OnClick(func())
}

// Sink receives reports. Publish must not block.
type Sink interface {
	Publish(ctx context.Context, r model.Report)
}

// Stats is a point-in-time view of the service.
type Stats struct {
	State           string        `json:"state"`
	Generation      string        `json:"generation"`
	Connected       bool          `json:"connected"`
	Text            string        `json:"text"`
	Metric          string        `json:"metric"`
	LastValue       float64       `json:"last_value"`
	LastGroupValue  float64       `json:"last_group_value"`
	LastJob         string        `json:"last_job,omitempty"`
	ShowFinalMarker bool          `json:"show_final_marker"`
	LastUpdate      time.Time     `json:"last_update,omitempty"`
	LingerRemaining time.Duration `json:"linger_remaining_ns"`
	Connects        int           `json:"connects"`
	ConnectFailures int           `json:"connect_failures"`
	Finalizes       int           `json:"finalizes"`
	Updates         int           `json:"updates"`
}

// Service owns the debouncer, the display state and the live client.
type Service struct {
	mu sync.Mutex

	tracker  *combat.Tracker
	display  display.State
	client   TelemetryClient
	consumer *worker.InMemoryWorker

	// Configuration
	newClient ClientFactory
	target    model.ConnectionTarget
	linger    time.Duration
	now       func() time.Time
	host      Host
	sink      Sink

	// State
	lastText        string
	lastUpdate      time.Time
	connects        int
	connectFailures int
	finalizes       int
	updates         int
	stopped         bool

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithClientFactory sets how client generations are built.
func WithClientFactory(f ClientFactory) Option {
	return func(s *Service) {
		if f != nil {
			s.newClient = f
		}
	}
}

// WithTarget sets the telemetry peer.
func WithTarget(t model.ConnectionTarget) Option {
	return func(s *Service) {
		s.target = t.WithDefaults()
	}
}

// WithLinger sets the post-combat linger window.
func WithLinger(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.linger = d
		}
	}
}

// WithClock overrides the time source used for debouncing.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithHost sets the display host. If it is also a ClickSource, clicks
// toggle the displayed metric.
func WithHost(h Host) Option {
	return func(s *Service) {
		s.host = h
	}
}

// WithSink adds a report sink.
func WithSink(k Sink) Option {
	return func(s *Service) {
		s.sink = k
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a Service with an idle tracker and one unconnected client.
func New(opts ...Option) *Service {
	s := &Service{
		target: model.DefaultTarget(),
		linger: combat.DefaultLinger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.newClient == nil {
		s.newClient = func() TelemetryClient {
			return telemetry.NewClient()
		}
	}
	s.tracker = combat.NewTracker(s.linger)

	if cs, ok := s.host.(ClickSource); ok {
		cs.OnClick(func() { s.ToggleMetric(context.Background()) })
	}

	s.mu.Lock()
	s.replaceClientLocked(context.Background())
	s.refreshLocked()
	s.mu.Unlock()
	metrics.UpdateCombatState(combat.Idle.String(), combat.States())
	return s
}

// Tick feeds one sample of the host's in-combat flag to the debouncer and
// carries out the resulting action. Connect and disconnect block.
func (s *Service) Tick(ctx context.Context, inCombat bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}

	now := s.now()
	action := s.tracker.Process(now, inCombat)

	switch action {
	case combat.ActionConnect:
		s.display.Reset()
		s.refreshLocked()
		s.connects++
		if err := s.client.Connect(ctx, s.target); err != nil {
			// Back to Idle so the next in-combat tick retries.
			s.connectFailures++
			s.logger.Warn(ctx, "connect failed, retrying next tick", logger.Error(err))
			s.tracker.Reset(now)
			s.replaceClientLocked(ctx)
		}

	case combat.ActionLinger:
		s.logger.Debug(ctx, "combat ended, lingering",
			logger.String("linger", s.tracker.Linger().String()),
		)

	case combat.ActionResume:
		s.logger.Debug(ctx, "combat resumed before linger expired")
		s.display.ShowFinalMarker = false
		s.refreshLocked()

	case combat.ActionFinalize:
		s.display.ShowFinalMarker = true
		text := s.refreshLocked()
		s.finalizes++
		metrics.RecordLingerFinalized()
		s.publishLocked(ctx, model.ReportFinal, text, now)

		if err := s.client.Disconnect(ctx); err != nil {
			s.logger.Warn(ctx, "disconnect failed", logger.Error(err))
		}
		s.replaceClientLocked(ctx)
		s.logger.Info(ctx, "combat finalized", logger.String("text", text))

	case combat.ActionNone:
	}

	metrics.UpdateCombatState(s.tracker.State().String(), combat.States())
}

// Apply folds an update from the client stream into the display. Updates
// from a retired generation, or arriving while Idle, are discarded.
func (s *Service) Apply(ctx context.Context, u model.MetricUpdate) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped || s.client == nil || u.Generation != s.client.Generation() {
		return false
	}
	if s.tracker.State() == combat.Idle {
		return false
	}

	s.display.Apply(u)
	s.lastUpdate = u.ReceivedAt
	s.updates++

	metrics.UpdateLastMetricValue(model.MetricPrimary.String(), u.Value)
	if u.HasGroup {
		metrics.UpdateLastMetricValue(model.MetricSecondary.String(), u.GroupValue)
	}

	text := s.refreshLocked()
	s.publishLocked(ctx, model.ReportUpdate, text, u.ReceivedAt)
	return true
}

// ToggleMetric switches between the personal and party metric.
func (s *Service) ToggleMetric(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.display.Toggle()
	metrics.RecordMetricToggle()
	text := s.refreshLocked()
	s.logger.Debug(ctx, "metric toggled",
		logger.String("metric", s.display.Selected.String()),
		logger.String("text", text),
	)
}

// DisplayText returns the current label text.
func (s *Service) DisplayText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastText
}

// Snapshot returns current statistics.
func (s *Service) Snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{
		State:           s.tracker.State().String(),
		Text:            s.lastText,
		Metric:          s.display.Selected.String(),
		LastValue:       s.display.LastValue,
		LastGroupValue:  s.display.LastGroupValue,
		LastJob:         s.display.LastJob,
		ShowFinalMarker: s.display.ShowFinalMarker,
		LastUpdate:      s.lastUpdate,
		LingerRemaining: s.tracker.LingerRemaining(s.now()),
		Connects:        s.connects,
		ConnectFailures: s.connectFailures,
		Finalizes:       s.finalizes,
		Updates:         s.updates,
	}
	if s.client != nil {
		st.Generation = s.client.Generation()
		st.Connected = s.client.Connected()
	}
	return st
}

// Stop disconnects the live client and waits for its consumer.
// The service ignores ticks afterwards.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	client, consumer := s.client, s.consumer
	s.mu.Unlock()

	s.logger.Info(ctx, "stopping service")

	var err error
	if client != nil {
		err = client.Disconnect(ctx)
	}
	if consumer != nil {
		if serr := consumer.Shutdown(ctx); serr != nil && err == nil {
			err = serr
		}
	}
	metrics.UpdateCombatState(combat.Idle.String(), combat.States())
	return err
}

// replaceClientLocked installs a fresh client generation and starts the
// consumer for its update stream. The previous client must already be
// disconnected; its consumer exits when that stream closes.
func (s *Service) replaceClientLocked(ctx context.Context) {
	c := s.newClient()
	s.client = c
	s.consumer = worker.NewInMemoryWorker(c, s,
		worker.WithLogger(s.logger),
		worker.WithName(shortGeneration(c.Generation())),
	)
	go s.consumer.Run(context.WithoutCancel(ctx))
}

// refreshLocked recomputes the label and pushes it to the host when it changed.
func (s *Service) refreshLocked() string {
	text := s.display.Text()
	if text != s.lastText {
		s.lastText = text
		if s.host != nil {
			s.host.SetText(text)
		}
	}
	return text
}

func (s *Service) publishLocked(ctx context.Context, kind, text string, at time.Time) {
	if s.sink == nil {
		return
	}
	s.sink.Publish(ctx, model.Report{
		Kind:       kind,
		Generation: s.client.Generation(),
		Metric:     s.display.Selected.String(),
		Value:      s.display.LastValue,
		GroupValue: s.display.LastGroupValue,
		Job:        s.display.LastJob,
		Text:       text,
		At:         at,
	})
}

func shortGeneration(g string) string {
	if len(g) > 8 {
		return g[:8]
	}
	return g
}
