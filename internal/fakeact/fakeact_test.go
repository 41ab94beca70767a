package fakeact_test

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/okian/dpsbar/internal/domain/decode"
	"github.com/okian/dpsbar/internal/fakeact"
	"github.com/okian/dpsbar/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/tidwall/gjson"
)

func TestSnapshot(t *testing.T) {
	Convey("Given the default party feed", t, func() {
		cfg := fakeact.DefaultConfig()

		Convey("When rendering the first snapshot", func() {
			msg, err := fakeact.Snapshot(0, cfg)
			So(err, ShouldBeNil)

			Convey("Then the chocobo row comes first but the player is resolved", func() {
				So(strings.Index(string(msg), "Chocobo (YOU)"), ShouldBeLessThan, strings.Index(string(msg), "Warrior Of Light (YOU)"))
				res := decode.Parse(string(msg))
				So(res.Outcome, ShouldEqual, decode.OutcomeAccepted)
				So(res.Event.CombatantKey, ShouldEqual, "Warrior Of Light (YOU)")
				So(res.Event.MetricValue, ShouldEqual, 1200)
				So(res.Event.JobTag, ShouldEqual, "Drg")
				So(res.Event.HasGroup, ShouldBeTrue)
				So(res.Event.GroupValue, ShouldBeGreaterThan, res.Event.MetricValue)
			})
		})

		Convey("When the snapshot is scheduled to be non-finite", func() {
			msg, err := fakeact.Snapshot(cfg.NonFiniteEvery, cfg)
			So(err, ShouldBeNil)

			Convey("Then the decoder drops it", func() {
				So(decode.Parse(string(msg)).Outcome, ShouldEqual, decode.OutcomeNonFinite)
			})
		})

		Convey("When playing solo", func() {
			cfg.Party = false
			cfg.Chocobo = false
			msg, err := fakeact.Snapshot(2, cfg)
			So(err, ShouldBeNil)

			Convey("Then the self row is keyed YOU", func() {
				res := decode.Parse(string(msg))
				So(res.Event.CombatantKey, ShouldEqual, "YOU")
				So(res.Event.MetricValue, ShouldEqual, 1275)
			})
		})

		Convey("When the player name carries path characters", func() {
			cfg.PlayerName = "J.R. *Tester?"
			msg, err := fakeact.Snapshot(0, cfg)
			So(err, ShouldBeNil)

			Convey("Then the key is written verbatim and rows keep their order", func() {
				var keys []string
				gjson.GetBytes(msg, "Combatant").ForEach(func(k, _ gjson.Result) bool {
					keys = append(keys, k.String())
					return true
				})
				So(keys, ShouldResemble, []string{
					"Chocobo (YOU)", "J.R. *Tester? (YOU)", "Tank Friend", "Healer Friend", "Caster Friend",
				})
				res := decode.Parse(string(msg))
				So(res.Event.CombatantKey, ShouldEqual, "J.R. *Tester? (YOU)")
				So(res.Event.MetricValue, ShouldEqual, 1200)
			})
		})

		Convey("When rendering a log line", func() {
			msg, err := fakeact.LogLine(1)
			So(err, ShouldBeNil)
			So(decode.Parse(string(msg)).Outcome, ShouldEqual, decode.OutcomeIgnored)
		})
	})
}

func TestServerStreamsAfterSubscribe(t *testing.T) {
	if err := logger.Init(logger.WithOutput(io.Discard)); err != nil {
		t.Fatal(err)
	}
	srv := fakeact.New(fakeact.WithInterval(10*time.Millisecond), fakeact.WithWriteBufferSize(64))
	ts := httptest.NewServer(srv)
	defer ts.Close()
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, decode.SubscribeMessage()); err != nil {
		t.Fatal(err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	accepted := 0
	for accepted < 2 {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if decode.Parse(string(data)).Outcome == decode.OutcomeAccepted {
			accepted++
		}
	}

	subs := srv.Subscriptions()
	if len(subs) != 1 || subs[0] != `{"call":"subscribe","events":["CombatData"]}` {
		t.Fatalf("unexpected subscriptions %q", subs)
	}
	if srv.Connections() != 1 {
		t.Fatalf("connections = %d", srv.Connections())
	}
}
