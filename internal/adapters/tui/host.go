// Package tui is the terminal host: it renders the display label, supplies
// the in-combat signal from a key press and forwards clicks to the metric
// toggle.
package tui

import (
	"sync"
	"sync/atomic"
)

// Host receives label text from the service. SetText only stores the text
// and wakes the UI, so it is safe to call under the service lock.
type Host struct {
	text   atomic.Value
	notify chan struct{}

	mu      sync.Mutex
	onClick func()
}

// NewHost creates a host with the placeholder text.
func NewHost(initial string) *Host {
	h := &Host{notify: make(chan struct{}, 1)}
	h.text.Store(initial)
	return h
}

// SetText stores text and signals the UI without blocking.
func (h *Host) SetText(text string) {
	h.text.Store(text)
	select {
	case h.notify <- struct{}{}:
	default:
	}
}

// Text returns the latest label.
func (h *Host) Text() string {
	s, _ := h.text.Load().(string)
	return s
}

// OnClick registers the click callback.
func (h *Host) OnClick(f func()) {
	h.mu.Lock()
	h.onClick = f
	h.mu.Unlock()
}

// Click invokes the registered callback, if any.
func (h *Host) Click() {
	h.mu.Lock()
	f := h.onClick
	h.mu.Unlock()
	if f != nil {
		f()
	}
}

// Changed fires after SetText; several calls may coalesce into one signal.
func (h *Host) Changed() <-chan struct{} {
	return h.notify
}
