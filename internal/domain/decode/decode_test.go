package decode_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/okian/dpsbar/internal/domain/decode"
	"github.com/okian/dpsbar/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func newDecoder(t *testing.T) (*decode.CombatDataDecoder, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	if err := logger.Init(logger.WithOutput(&buf)); err != nil {
		t.Fatalf("logger init: %v", err)
	}
	return decode.New(decode.WithLogger(logger.Named("decode"))), &buf
}

func TestSelfResolution(t *testing.T) {
	Convey("Given CombatData payloads with several combatants", t, func() {
		Convey("When an exact YOU key exists alongside a (YOU) key", func() {
			msg := `{"type":"CombatData","Combatant":{
				"Alice (YOU)":{"EncDPS":"10"},
				"YOU":{"EncDPS":"500","Job":"Drg"}}}`
			res := decode.Parse(msg)

			Convey("Then the exact key wins", func() {
				So(res.Outcome, ShouldEqual, decode.OutcomeAccepted)
				So(res.Event.CombatantKey, ShouldEqual, "YOU")
				So(res.Event.MetricValue, ShouldEqual, 500)
				So(res.Event.JobTag, ShouldEqual, "Drg")
			})
		})

		Convey("When the first (YOU) key is the player's chocobo", func() {
			msg := `{"type":"CombatData","Combatant":{
				"Chocobo (YOU)":{"EncDPS":"999"},
				"Alice (YOU)":{"EncDPS":"321.5"},
				"Bob (YOU)":{"EncDPS":"1"}}}`
			res := decode.Parse(msg)

			Convey("Then the first non-chocobo key in document order is used", func() {
				So(res.Outcome, ShouldEqual, decode.OutcomeAccepted)
				So(res.Event.CombatantKey, ShouldEqual, "Alice (YOU)")
				So(res.Event.MetricValue, ShouldEqual, 321.5)
			})
		})

		Convey("When the chocobo check meets mixed case", func() {
			msg := `{"type":"CombatData","Combatant":{"my CHOCOBO (YOU)":{"EncDPS":"5"}}}`

			Convey("Then the row is still excluded", func() {
				So(decode.Parse(msg).Outcome, ShouldEqual, decode.OutcomeNoSelf)
			})
		})

		Convey("When only other players are present", func() {
			msg := `{"type":"CombatData","Combatant":{"Someone Else":{"EncDPS":"5"}}}`

			Convey("Then no event is produced", func() {
				So(decode.Parse(msg).Outcome, ShouldEqual, decode.OutcomeNoSelf)
			})
		})
	})
}

func TestMetricFieldPrecedence(t *testing.T) {
	Convey("Given a self row with several metric spellings", t, func() {
		Convey("When EncDPS and encdps are both present", func() {
			res := decode.Parse(`{"type":"CombatData","Combatant":{"YOU":{"EncDPS":"12.5","encdps":"99"}}}`)

			Convey("Then EncDPS is used", func() {
				So(res.Outcome, ShouldEqual, decode.OutcomeAccepted)
				So(res.Event.MetricValue, ShouldEqual, 12.5)
			})
		})

		Convey("When EncDPS is blank", func() {
			res := decode.Parse(`{"type":"CombatData","Combatant":{"YOU":{"EncDPS":"  ","encdps":"42"}}}`)

			Convey("Then the next field is tried", func() {
				So(res.Event.MetricValue, ShouldEqual, 42)
			})
		})

		Convey("When only DPS is present as a JSON number", func() {
			res := decode.Parse(`{"type":"CombatData","Combatant":{"YOU":{"DPS":7.25,"EncDPS":null}}}`)

			Convey("Then the number is accepted", func() {
				So(res.Outcome, ShouldEqual, decode.OutcomeAccepted)
				So(res.Event.MetricValue, ShouldEqual, 7.25)
			})
		})

		Convey("When no metric field exists", func() {
			res := decode.Parse(`{"type":"CombatData","Combatant":{"YOU":{"name":"YOU","Job":"Whm"}}}`)

			Convey("Then the available fields are reported", func() {
				So(res.Outcome, ShouldEqual, decode.OutcomeNoMetric)
				So(res.Fields, ShouldResemble, []string{"name", "Job"})
			})
		})

		Convey("When the job tag is empty", func() {
			res := decode.Parse(`{"type":"CombatData","Combatant":{"YOU":{"EncDPS":"1","Job":""}}}`)

			Convey("Then it is treated as absent", func() {
				So(res.Event.JobTag, ShouldBeEmpty)
			})
		})
	})
}

func TestNumericEdgeCases(t *testing.T) {
	Convey("Given metric values that are not usable numbers", t, func() {
		cases := map[string]decode.Outcome{
			"NaN":      decode.OutcomeNonFinite,
			"Infinity": decode.OutcomeNonFinite,
			"-Inf":     decode.OutcomeNonFinite,
			"∞":        decode.OutcomeNonFinite,
			"1e400":    decode.OutcomeNonFinite,
			"abc":      decode.OutcomeBadNumber,
			"12,5":     decode.OutcomeBadNumber,
		}
		for raw, want := range cases {
			msg := `{"type":"CombatData","Combatant":{"YOU":{"EncDPS":"` + raw + `"}}}`
			res := decode.Parse(msg)
			So(res.Outcome, ShouldEqual, want)
		}
	})
}

func TestEnvelopeHandling(t *testing.T) {
	Convey("Given payloads that are not usable CombatData", t, func() {
		So(decode.Parse(`{"type":"LogLine","line":["00"]}`).Outcome, ShouldEqual, decode.OutcomeIgnored)
		So(decode.Parse(`{"Combatant":{"YOU":{"EncDPS":"1"}}}`).Outcome, ShouldEqual, decode.OutcomeIgnored)
		So(decode.Parse(`{"type":"CombatData"}`).Outcome, ShouldEqual, decode.OutcomeNoCombatant)
		So(decode.Parse(`{"type":"CombatData","Combatant":[]}`).Outcome, ShouldEqual, decode.OutcomeNoCombatant)
		So(decode.Parse(`{"type":"CombatData"`).Outcome, ShouldEqual, decode.OutcomeMalformed)
		So(decode.Parse(``).Outcome, ShouldEqual, decode.OutcomeMalformed)
		So(decode.Parse(`[1,2]`).Outcome, ShouldEqual, decode.OutcomeMalformed)
	})
}

func TestEncounterValue(t *testing.T) {
	Convey("Given a CombatData payload with an Encounter block", t, func() {
		Convey("When ENCDPS is present", func() {
			res := decode.Parse(`{"type":"CombatData",
				"Encounter":{"ENCDPS":"4321.9","encdps":"1"},
				"Combatant":{"YOU":{"EncDPS":"100"}}}`)

			Convey("Then the group value is carried", func() {
				So(res.Event.HasGroup, ShouldBeTrue)
				So(res.Event.GroupValue, ShouldEqual, 4321.9)
			})
		})

		Convey("When the encounter value is unusable", func() {
			res := decode.Parse(`{"type":"CombatData",
				"Encounter":{"ENCDPS":"NaN"},
				"Combatant":{"YOU":{"EncDPS":"100"}}}`)

			Convey("Then the personal value still decodes", func() {
				So(res.Outcome, ShouldEqual, decode.OutcomeAccepted)
				So(res.Event.HasGroup, ShouldBeFalse)
			})
		})
	})
}

func TestDecoderLogging(t *testing.T) {
	d, buf := newDecoder(t)
	ctx := context.Background()

	ev, ok := d.Decode(ctx, `{"type":"CombatData","Combatant":{"YOU":{"EncDPS":"88"}}}`)
	if !ok || ev.MetricValue != 88 {
		t.Fatalf("expected accepted event, got %+v ok=%v", ev, ok)
	}

	if _, ok := d.Decode(ctx, `{"type":"CombatData","Combatant":{"YOU":{"EncDPS":"NaN"}}}`); ok {
		t.Fatal("NaN must not produce an event")
	}
	if strings.Contains(buf.String(), "level=WARN") {
		t.Fatalf("non-finite values must not warn: %s", buf.String())
	}

	if _, ok := d.Decode(ctx, `{"type":"CombatData","Combatant":{"YOU":{"Job":"Nin"}}}`); ok {
		t.Fatal("missing metric must not produce an event")
	}
	out := buf.String()
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, "fields=Job") {
		t.Fatalf("missing metric should warn with field names: %s", out)
	}
}

func TestCustomFieldOrder(t *testing.T) {
	if err := logger.Init(logger.WithOutput(&bytes.Buffer{})); err != nil {
		t.Fatal(err)
	}
	d := decode.New(decode.WithMetricFields("DPS"))
	ev, ok := d.Decode(context.Background(), `{"type":"CombatData","Combatant":{"YOU":{"EncDPS":"1","DPS":"2"}}}`)
	if !ok || ev.MetricValue != 2 {
		t.Fatalf("expected DPS field, got %+v", ev)
	}
}

func TestSubscribeMessage(t *testing.T) {
	got := string(decode.SubscribeMessage())
	want := `{"call":"subscribe","events":["CombatData"]}`
	if got != want {
		t.Fatalf("subscribe message = %s, want %s", got, want)
	}

	var req decode.SubscribeRequest
	if err := json.Unmarshal([]byte(got), &req); err != nil {
		t.Fatal(err)
	}
	if req.Call != "subscribe" || len(req.Events) != 1 || req.Events[0] != "CombatData" {
		t.Fatalf("unexpected round trip: %+v", req)
	}
}
