package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options on a private registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then collectors are registered under the dpsbar namespace", func() {
				So(manager, ShouldNotBeNil)
				manager.metricUpdates.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				found := false
				for _, f := range families {
					if f.GetName() == "dpsbar_bridge_metric_updates_total" {
						found = true
					}
				}
				So(found, ShouldBeTrue)
			})
		})

		Convey("When creating with custom naming and labels", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("client"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithConstLabels(map[string]string{"instance": "desk"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then metric names and labels follow the options", func() {
				manager.lingerFinalized.Inc()
				expected := `
# HELP test_client_linger_finalized_total Linger windows that elapsed and finalized a value
# TYPE test_client_linger_finalized_total counter
test_client_linger_finalized_total{instance="desk"} 1
`
				err := testutil.GatherAndCompare(registry, strings.NewReader(expected), "test_client_linger_finalized_total")
				So(err, ShouldBeNil)
			})
		})
	})
}

func TestGlobalRecorders(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording decode outcomes", func() {
			before := testutil.ToFloat64(globalManager.decodeOutcomes.WithLabelValues("accepted"))
			RecordDecodeOutcome("accepted")
			RecordDecodeOutcome("accepted")

			Convey("Then the labelled counter advances", func() {
				after := testutil.ToFloat64(globalManager.decodeOutcomes.WithLabelValues("accepted"))
				So(after-before, ShouldEqual, 2)
			})
		})

		Convey("When switching combat state", func() {
			all := []string{"idle", "active", "lingering"}
			UpdateCombatState("active", all)

			Convey("Then exactly one state gauge is set", func() {
				So(testutil.ToFloat64(globalManager.combatState.WithLabelValues("active")), ShouldEqual, 1)
				So(testutil.ToFloat64(globalManager.combatState.WithLabelValues("idle")), ShouldEqual, 0)
				So(testutil.ToFloat64(globalManager.combatState.WithLabelValues("lingering")), ShouldEqual, 0)
			})
		})

		Convey("When toggling the connection gauge", func() {
			UpdateConnectionActive(true)
			So(testutil.ToFloat64(globalManager.connectionActive), ShouldEqual, 1)
			UpdateConnectionActive(false)
			So(testutil.ToFloat64(globalManager.connectionActive), ShouldEqual, 0)
		})

		Convey("When the registry is gathered", func() {
			RecordFrameReceived("text")
			RecordMessageAssembled(128)
			RecordConnectAttempt("ok")
			RecordDisconnect("joined", 0.01)

			Convey("Then it gathers without error", func() {
				families, err := GetRegistry().Gather()
				So(err, ShouldBeNil)
				So(len(families), ShouldBeGreaterThan, 0)
			})
		})
	})
}
