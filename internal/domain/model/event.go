// Package model contains domain models passed between layers.
package model

import (
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Default telemetry peer (OverlayPlugin WebSocket server).
const (
	DefaultHost = "127.0.0.1"
	DefaultPort = 10501
)

// ConnectionTarget identifies the telemetry peer for one connection attempt.
type ConnectionTarget struct {
	Host string
	Port int
}

// DefaultTarget returns 127.0.0.1:10501.
func DefaultTarget() ConnectionTarget {
	return ConnectionTarget{Host: DefaultHost, Port: DefaultPort}
}

// WithDefaults fills an empty host or non-positive port with the defaults.
func (t ConnectionTarget) WithDefaults() ConnectionTarget {
	if strings.TrimSpace(t.Host) == "" {
		t.Host = DefaultHost
	}
	if t.Port <= 0 {
		t.Port = DefaultPort
	}
	return t
}

// URL renders ws://host:port/ws.
func (t ConnectionTarget) URL() string {
	t = t.WithDefaults()
	u := url.URL{
		Scheme: "ws",
		Host:   net.JoinHostPort(t.Host, strconv.Itoa(t.Port)),
		Path:   "/ws",
	}
	return u.String()
}

// FrameKind classifies a transport frame.
type FrameKind int

const (
	FrameText FrameKind = iota
	FrameOther
)

func (k FrameKind) String() string {
	if k == FrameText {
		return "text"
	}
	return "other"
}

// Frame is one chunk delivered by the transport. Final marks the end of a message.
type Frame struct {
	Data  []byte
	Final bool
	Kind  FrameKind
}

// CombatEvent is a decoded CombatData snapshot for the local player.
type CombatEvent struct {
	CombatantKey string  // resolved self row key, e.g. "YOU" or "Name (YOU)"
	MetricValue  float64 // always finite
	JobTag       string  // as sent by the peer; empty when absent

	// Encounter-wide value, present only when the snapshot carries one.
	GroupValue float64
	HasGroup   bool
}

// Update converts the event into the client's published form.
func (e CombatEvent) Update(generation string, at time.Time) MetricUpdate {
	return MetricUpdate{
		Value:      e.MetricValue,
		JobTag:     e.JobTag,
		GroupValue: e.GroupValue,
		HasGroup:   e.HasGroup,
		Generation: generation,
		ReceivedAt: at,
	}
}

// MetricUpdate is the only data-bearing output of a telemetry client.
type MetricUpdate struct {
	Value      float64
	JobTag     string
	GroupValue float64
	HasGroup   bool
	Generation string    // id of the client instance that produced it
	ReceivedAt time.Time // wall clock at decode
}

// MetricKind selects which tracked value the display shows.
type MetricKind int

const (
	MetricPrimary   MetricKind = iota // personal encounter DPS
	MetricSecondary                   // party-wide encounter DPS
)

func (k MetricKind) String() string {
	if k == MetricSecondary {
		return "secondary"
	}
	return "primary"
}

// Label is the unit suffix used in display text.
func (k MetricKind) Label() string {
	if k == MetricSecondary {
		return "Party DPS"
	}
	return "DPS"
}

// Next returns the other metric kind.
func (k MetricKind) Next() MetricKind {
	if k == MetricPrimary {
		return MetricSecondary
	}
	return MetricPrimary
}

// Report kinds published to metric sinks.
const (
	ReportUpdate = "update"
	ReportFinal  = "final"
)

// Report is what the bridge publishes to external sinks: every applied
// update and the settled value when a linger window ends.
type Report struct {
	Kind       string    `json:"kind"`
	Generation string    `json:"generation"`
	Metric     string    `json:"metric"`
	Value      float64   `json:"value"`
	GroupValue float64   `json:"group_value,omitempty"`
	Job        string    `json:"job,omitempty"`
	Text       string    `json:"text"`
	At         time.Time `json:"at"`
}
