package telemetry

import "errors"

// Sentinel errors returned by the telemetry client.
var (
	ErrConnection      = errors.New("telemetry connection failed")
	ErrClientClosed    = errors.New("telemetry client already disconnected")
	ErrMessageTooLarge = errors.New("telemetry message exceeds size limit")
	ErrTransportClosed = errors.New("telemetry transport closed")
)
