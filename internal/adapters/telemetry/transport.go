package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/gorilla/websocket"
	"github.com/okian/dpsbar/internal/domain/model"
)

const (
	defaultChunkSize   = 4096
	closeWriteDeadline = time.Second
)

// Transport is one open, ordered, message-based connection.
// ReadFrame is only called from the receive loop. Interrupt may be called
// concurrently with ReadFrame and makes a blocked read return.
type Transport interface {
	ReadFrame() (model.Frame, error)
	WriteText(p []byte) error
	Interrupt()
	Close() error
}

// Dialer opens transports.
type Dialer interface {
	Dial(ctx context.Context, target model.ConnectionTarget) (Transport, error)
}

// WebSocketDialer dials OverlayPlugin-style WebSocket endpoints.
type WebSocketDialer struct {
	dialer    *websocket.Dialer
	chunkSize int
}

// NewWebSocketDialer returns a dialer using gorilla's defaults. Frames are
// surfaced in chunks of at most chunkSize bytes; non-positive selects 4 KiB.
func NewWebSocketDialer(chunkSize int) *WebSocketDialer {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	d := *websocket.DefaultDialer
	return &WebSocketDialer{dialer: &d, chunkSize: chunkSize}
}

// Dial connects to ws://host:port/ws.
func (d *WebSocketDialer) Dial(ctx context.Context, target model.ConnectionTarget) (Transport, error) {
	conn, resp, err := d.dialer.DialContext(ctx, target.URL(), nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("handshake status %d: %w", resp.StatusCode, err)
		}
		return nil, err
	}
	return &wsTransport{conn: conn, buf: make([]byte, d.chunkSize)}, nil
}

// wsTransport adapts a gorilla connection. Each message is read through
// NextReader and handed out in buffer-sized pieces; the piece that hits
// io.EOF is marked final.
type wsTransport struct {
	conn   *websocket.Conn
	reader io.Reader
	kind   model.FrameKind
	buf    []byte
}

func (t *wsTransport) ReadFrame() (model.Frame, error) {
	if t.reader == nil {
		mt, r, err := t.conn.NextReader()
		if err != nil {
			return model.Frame{}, classify(err)
		}
		t.reader = r
		t.kind = model.FrameOther
		if mt == websocket.TextMessage {
			t.kind = model.FrameText
		}
	}

	n, err := t.reader.Read(t.buf)
	frame := model.Frame{Data: append([]byte(nil), t.buf[:n]...), Kind: t.kind}
	switch {
	case errors.Is(err, io.EOF):
		t.reader = nil
		frame.Final = true
		return frame, nil
	case err != nil:
		t.reader = nil
		return model.Frame{}, classify(err)
	}
	return frame, nil
}

func (t *wsTransport) WriteText(p []byte) error {
	return t.conn.WriteMessage(websocket.TextMessage, p)
}

// Interrupt expires the read deadline. The connection is unusable for
// reads afterwards, which is fine because Close always follows.
func (t *wsTransport) Interrupt() {
	_ = t.conn.SetReadDeadline(time.Now())
}

func (t *wsTransport) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = t.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWriteDeadline))
	return t.conn.Close()
}

func classify(err error) error {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) ||
		errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %w", ErrTransportClosed, err)
	}
	return err
}
