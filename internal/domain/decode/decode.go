// Package decode turns OverlayPlugin event payloads into combat events for
// the local player.
//
// The peer names fields differently depending on party context and tool
// version, so every lookup goes through a fallback chain and a miss only
// skips the message.
package decode

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/okian/dpsbar/internal/domain/model"
	"github.com/okian/dpsbar/pkg/logger"
	"github.com/okian/dpsbar/pkg/metrics"
	"github.com/tidwall/gjson"
)

// TypeCombatData is the only event type the decoder accepts.
const TypeCombatData = "CombatData"

const (
	selfKey    = "YOU"
	selfMarker = "(YOU)"
	petMarker  = "chocobo"
	jobField   = "Job"
)

// Field precedence for the personal and encounter-wide values.
var (
	defaultMetricFields = []string{"EncDPS", "encdps", "DPS"}
	defaultGroupFields  = []string{"ENCDPS", "encdps", "DPS"}
)

// Outcome classifies a decode attempt.
type Outcome string

const (
	OutcomeAccepted    Outcome = "accepted"
	OutcomeMalformed   Outcome = "malformed"
	OutcomeIgnored     Outcome = "ignored_type"
	OutcomeNoCombatant Outcome = "no_combatant"
	OutcomeNoSelf      Outcome = "no_self"
	OutcomeNoMetric    Outcome = "no_metric"
	OutcomeBadNumber   Outcome = "bad_number"
	OutcomeNonFinite   Outcome = "non_finite"
)

// Result is the outcome of Parse. Event is only meaningful when Outcome is
// OutcomeAccepted.
type Result struct {
	Event   model.CombatEvent
	Outcome Outcome
	Type    string   // payload type, when readable
	Key     string   // resolved self key, when found
	Fields  []string // field names of the self row, for diagnostics
	Value   string   // raw metric string that failed to parse
}

// Decoder extracts a CombatEvent from a complete message.
type Decoder interface {
	Decode(ctx context.Context, message string) (model.CombatEvent, bool)
}

// CombatDataDecoder implements Decoder for OverlayPlugin CombatData payloads.
type CombatDataDecoder struct {
	metricFields []string
	groupFields  []string
	logger       logger.Logger
}

// New creates a decoder with the default field precedence.
func New(opts ...Option) *CombatDataDecoder {
	d := &CombatDataDecoder{
		metricFields: defaultMetricFields,
		groupFields:  defaultGroupFields,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = logger.Get().Named("decode")
	}
	return d
}

// Decode parses message and logs why it was skipped, if it was.
// It never panics.
func (d *CombatDataDecoder) Decode(ctx context.Context, message string) (ev model.CombatEvent, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			metrics.RecordDecodeOutcome(string(OutcomeMalformed))
			d.logger.Error(ctx, "decoder panic", logger.Error(fmt.Errorf("%v", r)))
			ev, ok = model.CombatEvent{}, false
		}
	}()

	res := parse(message, d.metricFields, d.groupFields)
	metrics.RecordDecodeOutcome(string(res.Outcome))

	switch res.Outcome {
	case OutcomeAccepted:
		return res.Event, true
	case OutcomeMalformed:
		d.logger.Info(ctx, "skipping malformed message", logger.Int("bytes", len(message)))
	case OutcomeIgnored, OutcomeNonFinite:
		// expected, nothing to report
	case OutcomeNoCombatant:
		d.logger.Warn(ctx, "CombatData without Combatant map")
	case OutcomeNoSelf:
		d.logger.Warn(ctx, "no self combatant in CombatData")
	case OutcomeNoMetric:
		d.logger.Warn(ctx, "self combatant has no metric field",
			logger.String("combatant", res.Key),
			logger.String("fields", strings.Join(res.Fields, ",")),
		)
	case OutcomeBadNumber:
		d.logger.Warn(ctx, "unparsable metric value",
			logger.String("combatant", res.Key),
			logger.String("value", res.Value),
		)
	}
	return model.CombatEvent{}, false
}

// Parse decodes message with the default field precedence.
func Parse(message string) Result {
	return parse(message, defaultMetricFields, defaultGroupFields)
}

func parse(message string, metricFields, groupFields []string) Result {
	if !gjson.Valid(message) {
		return Result{Outcome: OutcomeMalformed}
	}
	root := gjson.Parse(message)
	if !root.IsObject() {
		return Result{Outcome: OutcomeMalformed}
	}

	typ := root.Get("type")
	if typ.Type != gjson.String || typ.Str != TypeCombatData {
		return Result{Outcome: OutcomeIgnored, Type: typ.String()}
	}

	combatants := root.Get("Combatant")
	if !combatants.IsObject() {
		return Result{Outcome: OutcomeNoCombatant, Type: TypeCombatData}
	}

	key, row, found := resolveSelf(combatants)
	if !found {
		return Result{Outcome: OutcomeNoSelf, Type: TypeCombatData}
	}

	fields, names := objectFields(row)
	res := Result{Type: TypeCombatData, Key: key, Fields: names}

	raw, ok := firstNonEmpty(fields, metricFields)
	if !ok {
		res.Outcome = OutcomeNoMetric
		return res
	}

	value, err := parseNumber(raw)
	switch {
	case errors.Is(err, errNonFinite):
		res.Outcome = OutcomeNonFinite
		return res
	case err != nil:
		res.Outcome = OutcomeBadNumber
		res.Value = raw
		return res
	}

	res.Outcome = OutcomeAccepted
	res.Event = model.CombatEvent{
		CombatantKey: key,
		MetricValue:  value,
	}
	if job, ok := fields[jobField]; ok && job.Type != gjson.Null {
		res.Event.JobTag = strings.TrimSpace(job.String())
	}

	if enc := root.Get("Encounter"); enc.IsObject() {
		encFields, _ := objectFields(enc)
		if raw, ok := firstNonEmpty(encFields, groupFields); ok {
			if v, err := parseNumber(raw); err == nil {
				res.Event.GroupValue = v
				res.Event.HasGroup = true
			}
		}
	}
	return res
}

// resolveSelf finds the local player's row: the exact "YOU" key wins,
// otherwise the first "(YOU)" key in document order that is not a chocobo.
func resolveSelf(combatants gjson.Result) (string, gjson.Result, bool) {
	var (
		candKey   string
		candRow   gjson.Result
		haveCand  bool
		exactRow  gjson.Result
		haveExact bool
	)
	combatants.ForEach(func(k, v gjson.Result) bool {
		key := k.String()
		if key == selfKey {
			exactRow, haveExact = v, true
			return false
		}
		if !haveCand && strings.Contains(key, selfMarker) &&
			!strings.Contains(strings.ToLower(key), petMarker) {
			candKey, candRow, haveCand = key, v, true
		}
		return true
	})
	if haveExact {
		return selfKey, exactRow, true
	}
	return candKey, candRow, haveCand
}

// objectFields indexes an object's members by name, keeping the first
// occurrence of duplicated keys, and lists the names in document order.
func objectFields(obj gjson.Result) (map[string]gjson.Result, []string) {
	fields := make(map[string]gjson.Result)
	var names []string
	if !obj.IsObject() {
		return fields, names
	}
	obj.ForEach(func(k, v gjson.Result) bool {
		name := k.String()
		if _, dup := fields[name]; !dup {
			fields[name] = v
			names = append(names, name)
		}
		return true
	})
	return fields, names
}

func firstNonEmpty(fields map[string]gjson.Result, names []string) (string, bool) {
	for _, name := range names {
		v, ok := fields[name]
		if !ok || v.Type == gjson.Null {
			continue
		}
		if s := strings.TrimSpace(v.String()); s != "" {
			return s, true
		}
	}
	return "", false
}

var errNonFinite = errors.New("non-finite value")

// parseNumber accepts the peer's numeric strings. ACT renders an infinite
// rate as "∞".
func parseNumber(s string) (float64, error) {
	switch s {
	case "∞", "+∞", "-∞":
		return 0, errNonFinite
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) && math.IsInf(v, 0) {
			return 0, errNonFinite
		}
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errNonFinite
	}
	return v, nil
}
