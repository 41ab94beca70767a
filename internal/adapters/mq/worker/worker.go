// Package worker drains a client generation's update stream into the
// display state.
package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/okian/dpsbar/internal/domain/model"
	"github.com/okian/dpsbar/pkg/logger"
	"github.com/okian/dpsbar/pkg/metrics"
)

// Source is anything exposing a MetricUpdate stream, normally a telemetry client.
type Source interface {
	Updates() <-chan model.MetricUpdate
}

// Applier folds one update into shared state. It returns false when the
// update was discarded, e.g. because its generation is no longer current.
type Applier interface {
	Apply(ctx context.Context, u model.MetricUpdate) bool
}

// Worker consumes updates until its source closes.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the source closes.
	Run(ctx context.Context)

	// Shutdown stops the worker and waits for Run to return.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker for a single update stream.
type InMemoryWorker struct {
	source  Source
	applier Applier
	name    string

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(source Source, applier Applier, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		source:   source,
		applier:  applier,
		name:     "consumer",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.logger == nil {
		w.logger = logger.Get().Named("worker")
	}
	if w.name != "consumer" {
		w.logger = w.logger.Named(w.name)
	}

	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	updates := w.source.Updates()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			w.apply(ctx, u)
		}
	}
}

func (w *InMemoryWorker) apply(ctx context.Context, u model.MetricUpdate) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error(ctx, "apply panicked", logger.Error(fmt.Errorf("%v", r)))
		}
	}()
	if !w.applier.Apply(ctx, u) {
		metrics.RecordStaleUpdate()
		w.logger.Debug(ctx, "update discarded", logger.String("generation", u.Generation))
	}
}

// Done is closed when Run has returned.
func (w *InMemoryWorker) Done() <-chan struct{} {
	return w.done
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}
