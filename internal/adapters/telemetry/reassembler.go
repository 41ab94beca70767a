package telemetry

import (
	"bytes"
	"fmt"

	"github.com/okian/dpsbar/internal/domain/model"
)

// DefaultMaxMessageBytes bounds a single reassembled message.
const DefaultMaxMessageBytes = 1 << 20

// Reassembler joins text frames into complete messages. It is owned by a
// single receive loop and is not safe for concurrent use.
type Reassembler struct {
	buf      bytes.Buffer
	max      int
	overflow int
}

// NewReassembler returns a reassembler that rejects messages larger than
// max bytes. A non-positive max selects DefaultMaxMessageBytes.
func NewReassembler(max int) *Reassembler {
	if max <= 0 {
		max = DefaultMaxMessageBytes
	}
	return &Reassembler{max: max}
}

// Push adds a frame. It returns the complete message once a final text
// frame arrives. Non-text frames carry no data; a final one discards any
// partial text. Oversized messages are discarded and reported with
// ErrMessageTooLarge when their final frame arrives.
func (r *Reassembler) Push(f model.Frame) (string, bool, error) {
	if f.Kind != model.FrameText {
		if f.Final {
			r.Reset()
		}
		return "", false, nil
	}

	if r.overflow > 0 || r.buf.Len()+len(f.Data) > r.max {
		r.overflow += r.buf.Len() + len(f.Data)
		r.buf.Reset()
	} else {
		r.buf.Write(f.Data)
	}

	if !f.Final {
		return "", false, nil
	}

	if r.overflow > 0 {
		size := r.overflow
		r.Reset()
		return "", false, fmt.Errorf("%w: %d bytes (max %d)", ErrMessageTooLarge, size, r.max)
	}

	msg := r.buf.String()
	r.buf.Reset()
	return msg, true, nil
}

// Pending returns the number of buffered bytes of the current message.
func (r *Reassembler) Pending() int {
	return r.buf.Len()
}

// Reset drops any partial message.
func (r *Reassembler) Reset() {
	r.buf.Reset()
	r.overflow = 0
}
