package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestServeRegistersMetrics(t *testing.T) {
	srv := Serve(":0", nil)
	defer srv.Close()

	EventsTotal.WithLabelValues("spot", "snapshot").Inc()
	DecisionsTotal.WithLabelValues("BTC-15m", "blocked", "cooldown").Inc()

	mfs, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	want := map[string]bool{"feed_events_total": false, "decisions_total": false}
	for _, mf := range mfs {
		if _, ok := want[mf.GetName()]; ok {
			want[mf.GetName()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Fatalf("%s metric not found", name)
		}
	}
}

func TestServeMountsExtraHandlers(t *testing.T) {
	srv := Serve(":0", map[string]http.Handler{
		"/state": http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTeapot) }),
	})
	defer srv.Close()

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/state", nil))
	if rec.Code != http.StatusTeapot {
		t.Fatalf("expected extra handler to be mounted, got %d", rec.Code)
	}
}
