package mqtt_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/okian/dpsbar/internal/adapters/mqtt"
	"github.com/okian/dpsbar/internal/domain/model"
	"github.com/okian/dpsbar/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init(logger.WithOutput(io.Discard))
}

func report(kind string, v float64) model.Report {
	return model.Report{
		Kind:       kind,
		Generation: "gen-1",
		Metric:     "primary",
		Value:      v,
		Job:        "DRG",
		Text:       "DRG 1235 DPS",
		At:         time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestSinkPublishes(t *testing.T) {
	Convey("Given a sink over a fake publisher", t, func() {
		pub := mqtt.NewFakePublisher()
		sink := mqtt.NewSink(pub, mqtt.WithTopic("bar"))
		ctx := context.Background()

		Convey("When an update and a final report are published and the sink closes", func() {
			sink.Publish(ctx, report(model.ReportUpdate, 1234.6))
			sink.Publish(ctx, report(model.ReportFinal, 1234.6))
			So(sink.Close(ctx), ShouldBeNil)

			Convey("Then both reach the broker in order", func() {
				msgs := pub.Messages()
				So(len(msgs), ShouldEqual, 2)
				So(msgs[0].Topic, ShouldEqual, "bar/update")
				So(msgs[0].QoS, ShouldEqual, 0)
				So(msgs[0].Retained, ShouldBeFalse)
				So(msgs[1].Topic, ShouldEqual, "bar/final")
				So(msgs[1].QoS, ShouldEqual, 1)
				So(msgs[1].Retained, ShouldBeTrue)
				So(pub.Closed(), ShouldBeTrue)
			})

			Convey("And the payload is the report as JSON", func() {
				var got model.Report
				So(json.Unmarshal(pub.Messages()[0].Payload, &got), ShouldBeNil)
				So(got.Value, ShouldEqual, 1234.6)
				So(got.Job, ShouldEqual, "DRG")
				So(got.Kind, ShouldEqual, model.ReportUpdate)
			})

			Convey("And later reports are ignored", func() {
				sink.Publish(ctx, report(model.ReportUpdate, 1))
				So(len(pub.Messages()), ShouldEqual, 2)
				So(sink.Close(ctx), ShouldBeNil)
			})
		})
	})
}

func TestSinkDropsWhenFull(t *testing.T) {
	Convey("Given a sink whose broker is stalled", t, func() {
		pub := mqtt.NewFakePublisher()
		pub.Block = make(chan struct{})
		sink := mqtt.NewSink(pub, mqtt.WithBufferSize(1))
		ctx := context.Background()

		Convey("When more reports arrive than the buffer holds", func() {
			done := make(chan struct{})
			go func() {
				for i := 0; i < 10; i++ {
					sink.Publish(ctx, report(model.ReportUpdate, float64(i)))
				}
				close(done)
			}()

			Convey("Then Publish does not block", func() {
				select {
				case <-done:
				case <-time.After(time.Second):
					t.Fatal("Publish blocked on a full buffer")
				}
				close(pub.Block)
				So(sink.Close(ctx), ShouldBeNil)
				So(len(pub.Messages()), ShouldBeBetweenOrEqual, 1, 2)
			})
		})
	})
}

func TestSinkPublishErrors(t *testing.T) {
	Convey("Given a broker that rejects publishes", t, func() {
		pub := mqtt.NewFakePublisher()
		pub.PublishError = errors.New("not authorized")
		sink := mqtt.NewSink(pub)

		Convey("When a report is published", func() {
			sink.Publish(context.Background(), report(model.ReportFinal, 5))

			Convey("Then the error is absorbed and the sink still closes", func() {
				So(sink.Close(context.Background()), ShouldBeNil)
				So(pub.Messages(), ShouldBeEmpty)
				So(sink.Topic(model.ReportFinal), ShouldEqual, mqtt.DefaultTopic+"/final")
			})
		})
	})
}
