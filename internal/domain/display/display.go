// Package display holds the values shown on the status label and renders
// them as text.
package display

import (
	"fmt"
	"math"
	"strings"

	"github.com/okian/dpsbar/internal/domain/model"
)

// FinalMarker prefixes the text once the post-combat value is settled.
const FinalMarker = "✓"

const noJob = "---"

// State is the display model. The zero value shows the Primary placeholder.
type State struct {
	LastValue       float64
	LastGroupValue  float64
	LastJob         string
	ShowFinalMarker bool
	Selected        model.MetricKind
}

// Reset clears values and the final marker at the start of a connection
// cycle. The selected metric is a user choice and survives.
func (s *State) Reset() {
	selected := s.Selected
	*s = State{Selected: selected}
}

// Apply records an accepted update.
func (s *State) Apply(u model.MetricUpdate) {
	s.LastValue = u.Value
	s.LastJob = u.JobTag
	if u.HasGroup {
		s.LastGroupValue = u.GroupValue
	}
}

// Toggle switches the selected metric and clears the final marker.
func (s *State) Toggle() {
	s.Selected = s.Selected.Next()
	s.ShowFinalMarker = false
}

// Value returns the stored value for the selected metric.
func (s State) Value() float64 {
	if s.Selected == model.MetricSecondary {
		return s.LastGroupValue
	}
	return s.LastValue
}

// Text renders the label, e.g. "✓ DRG 1235 DPS" or "DPS: --".
func (s State) Text() string {
	label := s.Selected.Label()
	v := s.Value()
	if !(v > 0) || math.IsInf(v, 0) {
		return label + ": --"
	}

	job := strings.ToUpper(strings.TrimSpace(s.LastJob))
	if job == "" {
		job = noJob
	}

	text := fmt.Sprintf("%s %d %s", job, int64(math.Round(v)), label)
	if s.ShowFinalMarker {
		return FinalMarker + " " + text
	}
	return text
}
