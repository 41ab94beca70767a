// Package combat debounces the host's sampled in-combat signal into
// connect and finalize decisions.
//
// The Tracker is pure: it keeps no timers and is told the time on every
// sample, so the host's tick cadence is the only clock.
package combat

import "time"

// DefaultLinger is how long the connection stays open after combat ends.
const DefaultLinger = 2 * time.Second

// State is the debouncer state.
type State int

const (
	Idle      State = iota // not connected
	Active                 // connected, combat ongoing
	Lingering              // combat ended, waiting for the final totals
)

func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case Lingering:
		return "lingering"
	default:
		return "idle"
	}
}

// States lists every state, for metrics.
func States() []string {
	return []string{Idle.String(), Active.String(), Lingering.String()}
}

// Action tells the caller what to do after a sample.
type Action int

const (
	ActionNone     Action = iota
	ActionConnect         // Idle -> Active: open a fresh connection
	ActionLinger          // Active -> Lingering: keep the connection
	ActionResume          // Lingering -> Active: drop the pending finalize
	ActionFinalize        // Lingering -> Idle: mark final, then disconnect
)

func (a Action) String() string {
	switch a {
	case ActionConnect:
		return "connect"
	case ActionLinger:
		return "linger"
	case ActionResume:
		return "resume"
	case ActionFinalize:
		return "finalize"
	default:
		return "none"
	}
}

// Tracker is the combat-state machine. It is not safe for concurrent use.
type Tracker struct {
	linger       time.Duration
	state        State
	lingerSince  time.Time
	transitionAt time.Time
}

// NewTracker returns an Idle tracker. A non-positive linger selects DefaultLinger.
func NewTracker(linger time.Duration) *Tracker {
	if linger <= 0 {
		linger = DefaultLinger
	}
	return &Tracker{linger: linger}
}

// Process folds one sample into the state and returns the resulting action.
func (t *Tracker) Process(now time.Time, inCombat bool) Action {
	switch t.state {
	case Idle:
		if inCombat {
			t.enter(Active, now)
			return ActionConnect
		}
	case Active:
		if !inCombat {
			t.enter(Lingering, now)
			t.lingerSince = now
			return ActionLinger
		}
	case Lingering:
		if inCombat {
			t.enter(Active, now)
			t.lingerSince = time.Time{}
			return ActionResume
		}
		if now.Sub(t.lingerSince) >= t.linger {
			t.enter(Idle, now)
			t.lingerSince = time.Time{}
			return ActionFinalize
		}
	}
	return ActionNone
}

// Reset forces the tracker back to Idle, e.g. after a failed connect, so
// the next in-combat sample retries.
func (t *Tracker) Reset(now time.Time) {
	t.enter(Idle, now)
	t.lingerSince = time.Time{}
}

func (t *Tracker) enter(s State, now time.Time) {
	t.state = s
	t.transitionAt = now
}

// State returns the current state.
func (t *Tracker) State() State {
	return t.state
}

// Linger returns the configured linger window.
func (t *Tracker) Linger() time.Duration {
	return t.linger
}

// LingerRemaining returns how long until finalize, or 0 outside Lingering.
func (t *Tracker) LingerRemaining(now time.Time) time.Duration {
	if t.state != Lingering {
		return 0
	}
	if left := t.linger - now.Sub(t.lingerSince); left > 0 {
		return left
	}
	return 0
}

// Since returns when the current state was entered.
func (t *Tracker) Since() time.Time {
	return t.transitionAt
}
