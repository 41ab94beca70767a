package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/okian/dpsbar/internal/adapters/http/api"
	"github.com/okian/dpsbar/internal/adapters/http/site"
	"github.com/okian/dpsbar/internal/adapters/http/swagger"
	"github.com/okian/dpsbar/internal/adapters/mqtt"
	"github.com/okian/dpsbar/internal/adapters/telemetry"
	"github.com/okian/dpsbar/internal/adapters/tui"
	service "github.com/okian/dpsbar/internal/app"
	"github.com/okian/dpsbar/internal/config"
	"github.com/okian/dpsbar/internal/domain/display"
	"github.com/okian/dpsbar/pkg/logger"
	"github.com/okian/dpsbar/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout           = 10 * time.Second
	writeTimeout          = 10 * time.Second
	idleTimeout           = 60 * time.Second
	readHeaderTimeout     = 5 * time.Second
	shutdownTimeout       = 10 * time.Second
	systemMetricsInterval = 10 * time.Second
)

func main() {
	if err := run(); err != nil {
		os.Stderr.WriteString("dpsbar: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func run() error {
	// Bootstrap logger for config errors; reconfigured once the config is known.
	if err := logger.Init(logger.WithOutput(os.Stderr)); err != nil {
		return fmt.Errorf("initialize logging: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	closeLog, err := initLogging(cfg)
	if err != nil {
		return err
	}
	defer closeLog()
	log := logger.Get()

	var sink *mqtt.Sink
	if cfg.MQTTBroker != "" {
		pub, err := mqtt.NewRealPublisher(cfg.MQTTBroker, "dpsbar-"+uuid.NewString()[:8])
		if err != nil {
			// The bar is useful without the broker.
			log.Warn(ctx, "mqtt disabled", logger.String("broker", cfg.MQTTBroker), logger.Error(err))
		} else {
			sink = mqtt.NewSink(pub, mqtt.WithTopic(cfg.MQTTTopic))
		}
	}

	var host *tui.Host
	if cfg.UI == config.UITUI {
		host = tui.NewHost(display.State{}.Text())
	}
	svc := service.New(serviceOptions(cfg, host, sink)...)

	signalFlag := &service.Signal{}

	go startSystemMetricsUpdater(ctx)

	var srv *http.Server
	if cfg.Addr != "" {
		srv = newHTTPServer(ctx, cfg.Addr, svc, signalFlag)
		go func() {
			log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error(ctx, "HTTP server failed", logger.Error(err))
			}
		}()
	}

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		svc.Run(ctx, cfg.TickInterval(), signalFlag)
	}()

	log.Info(ctx, "dpsbar started",
		logger.String("target", cfg.Target().URL()),
		logger.String("ui", cfg.UI),
	)

	var runErr error
	if host != nil {
		runErr = tui.Run(ctx, tui.NewModel(host, signalFlag, cfg.Target().URL()))
		stop()
	} else {
		<-ctx.Done()
	}
	<-loopDone
	log.Info(ctx, "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := svc.Stop(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "service stop failed", logger.Error(err))
	}
	if sink != nil {
		if err := sink.Close(shutdownCtx); err != nil {
			log.Error(shutdownCtx, "mqtt sink close failed", logger.Error(err))
		}
	}
	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error(shutdownCtx, "server shutdown failed", logger.Error(err))
		}
	}
	log.Info(shutdownCtx, "stopped")
	return runErr
}

// initLogging applies format, destination and level from cfg.
func initLogging(cfg *config.Config) (func(), error) {
	var (
		out     io.Writer = os.Stderr
		closeFn           = func() {}
	)
	if path := cfg.LogPath(); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file %s: %w", path, err)
		}
		out = f
		closeFn = func() { _ = f.Close() }
	}
	if err := logger.Init(logger.WithOutput(out), logger.WithFormat(cfg.LogFormat)); err != nil {
		closeFn()
		return nil, fmt.Errorf("initialize logging: %w", err)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(context.Background(), "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	return closeFn, nil
}

// serviceOptions maps the config onto the service and its client factory.
func serviceOptions(cfg *config.Config, host *tui.Host, sink *mqtt.Sink) []service.Option {
	grace, maxBytes := cfg.DisconnectGrace(), cfg.MaxMessageBytes
	opts := []service.Option{
		service.WithTarget(cfg.Target()),
		service.WithLinger(cfg.Linger()),
		service.WithClientFactory(func() service.TelemetryClient {
			return telemetry.NewClient(
				telemetry.WithGracePeriod(grace),
				telemetry.WithMaxMessageBytes(maxBytes),
			)
		}),
	}
	if host != nil {
		opts = append(opts, service.WithHost(host))
	}
	if sink != nil {
		opts = append(opts, service.WithSink(sink))
	}
	return opts
}

// newHTTPServer registers the host API, the docs and the overlay page.
func newHTTPServer(ctx context.Context, addr string, svc *service.Service, combat api.CombatSetter) *http.Server {
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	site.Register(ctx, mux)
	api.NewServer(svc, combat).Register(ctx, mux)

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

// startSystemMetricsUpdater refreshes process gauges until ctx is done.
func startSystemMetricsUpdater(ctx context.Context) {
	updateSystemMetrics()
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
}
