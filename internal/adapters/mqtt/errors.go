package mqtt

import "errors"

// Sentinel errors for the MQTT adapter.
var (
	ErrBroker     = errors.New("mqtt broker unavailable")
	ErrPublish    = errors.New("mqtt publish failed")
	ErrSinkClosed = errors.New("mqtt sink closed")
)
