package api_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/okian/dpsbar/internal/adapters/http/api"
	service "github.com/okian/dpsbar/internal/app"
	"github.com/okian/dpsbar/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init(logger.WithOutput(io.Discard))
}

type mockService struct {
	mu      sync.Mutex
	text    string
	metric  string
	toggles int
}

func (m *mockService) DisplayText() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.text
}

func (m *mockService) Snapshot() service.Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return service.Stats{State: "active", Text: m.text, Metric: m.metric, LastValue: 1234.6}
}

func (m *mockService) ToggleMetric(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.toggles++
	if m.metric == "primary" {
		m.metric, m.text = "secondary", "DRG 9000 Party DPS"
		return
	}
	m.metric, m.text = "primary", "DRG 1235 DPS"
}

func newMux() (*http.ServeMux, *mockService, *service.Signal) {
	svc := &mockService{text: "DRG 1235 DPS", metric: "primary"}
	sig := &service.Signal{}
	mux := http.NewServeMux()
	api.NewServer(svc, sig).Register(context.Background(), mux)
	return mux, svc, sig
}

func serve(mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	var r io.Reader = http.NoBody
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func TestReadEndpoints(t *testing.T) {
	Convey("Given a registered API", t, func() {
		mux, _, _ := newMux()

		Convey("When GET /display is called", func() {
			w := serve(mux, http.MethodGet, "/display", "")

			Convey("Then the label is returned as text", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldStartWith, "text/plain")
				So(w.Body.String(), ShouldEqual, "DRG 1235 DPS\n")
			})
		})

		Convey("When GET /stats is called", func() {
			w := serve(mux, http.MethodGet, "/stats", "")

			Convey("Then the snapshot is JSON", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var st service.Stats
				So(json.Unmarshal(w.Body.Bytes(), &st), ShouldBeNil)
				So(st.State, ShouldEqual, "active")
				So(st.LastValue, ShouldEqual, 1234.6)
			})
		})

		Convey("When POST /stats is called", func() {
			w := serve(mux, http.MethodPost, "/stats", "")

			Convey("Then it is not found", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When GET /healthz is called", func() {
			w := serve(mux, http.MethodGet, "/healthz", "")

			Convey("Then Prometheus metrics are served", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, "dpsbar_")
			})
		})
	})
}

func TestCombatEndpoint(t *testing.T) {
	Convey("Given a registered API", t, func() {
		mux, _, sig := newMux()

		Convey("When combat starts", func() {
			w := serve(mux, http.MethodPost, "/combat", `{"in_combat":true}`)

			Convey("Then the signal is set", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				So(sig.InCombat(), ShouldBeTrue)

				Convey("And GET reports it", func() {
					w := serve(mux, http.MethodGet, "/combat", "")
					So(w.Body.String(), ShouldContainSubstring, `"in_combat":true`)
				})
			})
		})

		Convey("When the flag is missing", func() {
			w := serve(mux, http.MethodPost, "/combat", `{}`)

			Convey("Then it is rejected", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(w.Body.String(), ShouldContainSubstring, "missing in_combat")
				So(sig.InCombat(), ShouldBeFalse)
			})
		})

		Convey("When the body is not JSON", func() {
			w := serve(mux, http.MethodPost, "/combat", `yes`)

			Convey("Then it is rejected", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(w.Body.String(), ShouldContainSubstring, `"code":"bad_request"`)
			})
		})

		Convey("When an unsupported method is used", func() {
			w := serve(mux, http.MethodDelete, "/combat", "")

			Convey("Then it is refused", func() {
				So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
			})
		})
	})
}

func TestToggleEndpoint(t *testing.T) {
	Convey("Given a registered API", t, func() {
		mux, svc, _ := newMux()

		Convey("When POST /toggle is called", func() {
			w := serve(mux, http.MethodPost, "/toggle", "")

			Convey("Then the metric switches and the new text is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(svc.toggles, ShouldEqual, 1)
				So(w.Body.String(), ShouldContainSubstring, `"metric":"secondary"`)
				So(w.Body.String(), ShouldContainSubstring, "Party DPS")
			})
		})

		Convey("When GET /toggle is called", func() {
			w := serve(mux, http.MethodGet, "/toggle", "")

			Convey("Then nothing changes", func() {
				So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
				So(svc.toggles, ShouldEqual, 0)
			})
		})
	})
}
