// Command fake-act serves a synthetic OverlayPlugin CombatData feed on
// ws://<addr>/ws for running the bar without the game.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/dpsbar/internal/fakeact"
	"github.com/okian/dpsbar/pkg/logger"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 5 * time.Second
)

func main() {
	var (
		addr      = flag.String("addr", "127.0.0.1:10501", "Listen address")
		interval  = flag.Duration("interval", 500*time.Millisecond, "Time between snapshots")
		party     = flag.Bool("party", true, "Use party key naming (\"Name (YOU)\")")
		chocobo   = flag.Bool("chocobo", true, "Include a Chocobo (YOU) pet row")
		name      = flag.String("name", "Warrior Of Light", "Player name")
		job       = flag.String("job", "Drg", "Player job tag")
		nanEvery  = flag.Int("nan-every", 7, "Send NaN for the player every n snapshots (0 disables)")
		bufSize   = flag.Int("write-buffer", 256, "Server write buffer; small values fragment messages")
		logFormat = flag.String("log-format", "text", "Log format: text or json")
	)
	flag.Parse()

	if err := logger.Init(logger.WithOutput(os.Stderr), logger.WithFormat(*logFormat)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := logger.Named("fake-act")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	peer := fakeact.New(
		fakeact.WithInterval(*interval),
		fakeact.WithParty(*party),
		fakeact.WithChocobo(*chocobo),
		fakeact.WithPlayer(*name, *job),
		fakeact.WithNonFiniteEvery(*nanEvery),
		fakeact.WithWriteBufferSize(*bufSize),
	)

	mux := http.NewServeMux()
	mux.Handle("/ws", peer)
	srv := &http.Server{Addr: *addr, Handler: mux, ReadHeaderTimeout: readHeaderTimeout}

	go func() {
		log.Info(ctx, "serving CombatData feed", logger.String("url", "ws://"+*addr+"/ws"))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "listen failed", logger.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	peer.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "shutdown failed", logger.Error(err))
	}
	log.Info(shutdownCtx, "stopped", logger.Int("connections", peer.Connections()))
}
