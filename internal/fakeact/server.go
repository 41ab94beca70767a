// Package fakeact is a stand-in for the combat-logging tool's WebSocket
// server. It accepts the CombatData subscription and streams synthetic
// snapshots, for manual runs and integration tests.
package fakeact

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/okian/dpsbar/pkg/logger"
)

const writeWait = time.Second

// Server serves the feed on any path it is mounted at, normally /ws.
type Server struct {
	cfg      Config
	upgrader websocket.Upgrader
	logger   logger.Logger

	mu            sync.Mutex
	subscriptions []string
	connections   int

	wg     sync.WaitGroup
	closed chan struct{}
	once   sync.Once
}

// New creates a server from DefaultConfig adjusted by opts.
func New(opts ...Option) *Server {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Server{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger.Get().Named("fakeact"),
		closed: make(chan struct{}),
	}
}

// Subscriptions returns the raw subscription messages received so far.
func (s *Server) Subscriptions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.subscriptions...)
}

// Connections returns the number of accepted WebSocket connections.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connections
}

// Close stops every stream and waits for the handlers to return.
func (s *Server) Close() {
	s.mu.Lock()
	s.once.Do(func() { close(s.closed) })
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn(r.Context(), "upgrade failed", logger.Error(err))
		return
	}
	defer conn.Close()

	s.mu.Lock()
	select {
	case <-s.closed:
		s.mu.Unlock()
		return
	default:
	}
	s.wg.Add(1)
	s.connections++
	s.mu.Unlock()
	defer s.wg.Done()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	subscribed := make(chan struct{})
	go s.readLoop(ctx, cancel, conn, subscribed)

	select {
	case <-subscribed:
	case <-ctx.Done():
		return
	case <-s.closed:
		return
	}

	if len(s.cfg.Script) > 0 {
		for _, msg := range s.cfg.Script {
			if err := s.write(conn, []byte(msg)); err != nil {
				return
			}
		}
		select {
		case <-ctx.Done():
		case <-s.closed:
			s.sayGoodbye(conn)
		}
		return
	}

	s.stream(ctx, conn)
}

// readLoop records subscriptions and notices the client going away.
func (s *Server) readLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, subscribed chan<- struct{}) {
	defer cancel()
	var once sync.Once
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var req struct {
			Call   string   `json:"call"`
			Events []string `json:"events"`
		}
		if json.Unmarshal(data, &req) != nil || req.Call != "subscribe" {
			s.logger.Debug(ctx, "ignoring client message", logger.String("data", string(data)))
			continue
		}
		s.mu.Lock()
		s.subscriptions = append(s.subscriptions, string(data))
		s.mu.Unlock()
		once.Do(func() { close(subscribed) })
	}
}

func (s *Server) stream(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for seq := 0; ; seq++ {
		if s.cfg.LogLineEvery > 0 && seq%s.cfg.LogLineEvery == 0 {
			if msg, err := LogLine(seq); err == nil {
				if s.write(conn, msg) != nil {
					return
				}
			}
		}
		msg, err := Snapshot(seq, s.cfg)
		if err != nil {
			s.logger.Error(ctx, "snapshot encode failed", logger.Error(err))
			return
		}
		if s.write(conn, msg) != nil {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-s.closed:
			s.sayGoodbye(conn)
			return
		case <-ticker.C:
		}
	}
}

// write sends one text message in buffer-sized pieces so that anything
// longer than the write buffer goes out as several frames.
func (s *Server) write(conn *websocket.Conn, msg []byte) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	w, err := conn.NextWriter(websocket.TextMessage)
	if err != nil {
		return err
	}
	chunk := s.cfg.WriteBufferSize
	if chunk <= 0 {
		chunk = len(msg)
	}
	for len(msg) > 0 {
		n := min(chunk, len(msg))
		if _, err := w.Write(msg[:n]); err != nil {
			return err
		}
		msg = msg[n:]
	}
	return w.Close()
}

func (s *Server) sayGoodbye(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server closing")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}
