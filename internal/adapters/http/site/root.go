// Package site serves the embedded overlay page: the display label in a
// browser source, polling the host API.
package site

import (
	"context"
	"net/http"
)

// Register attaches the overlay page at the exact root path. Other paths
// stay free for the API.
func Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	mux.Handle("/{$}", http.FileServer(FS()))
}
