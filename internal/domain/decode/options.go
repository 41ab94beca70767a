package decode

import "github.com/okian/dpsbar/pkg/logger"

// Option applies a configuration option to the CombatDataDecoder.
type Option func(*CombatDataDecoder)

// WithMetricFields overrides the personal metric field precedence.
func WithMetricFields(names ...string) Option {
	return func(d *CombatDataDecoder) {
		if len(names) > 0 {
			d.metricFields = append([]string(nil), names...)
		}
	}
}

// WithGroupFields overrides the encounter-wide metric field precedence.
func WithGroupFields(names ...string) Option {
	return func(d *CombatDataDecoder) {
		if len(names) > 0 {
			d.groupFields = append([]string(nil), names...)
		}
	}
}

// WithLogger sets a custom logger for the decoder.
func WithLogger(l logger.Logger) Option {
	return func(d *CombatDataDecoder) {
		if l != nil {
			d.logger = l
		}
	}
}
