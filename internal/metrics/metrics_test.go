package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCanonicalPath(t *testing.T) {
	tests := map[string]string{
		"":                      "/",
		"/":                     "/",
		"/auth/login":           "/auth/login",
		"/auth/google/callback": "/auth/google/callback",
		"/storage":              "/storage",
		"/storage/2024":         "/storage/:year",
		"/storage/2024/5":       "/storage/:year/:month",
		"/storage/2024/5/init":  "/storage/:year/:month/init",
		"/metrics":              "/metrics",
		"/does-not-exist-1":     "other",
		"/does-not-exist-2":     "other",
		"/auth/login/extra":     "other",
		"/storage/1/2/x1":       "other",
		"/storage/1/2/init/x":   "other",
	}
	for in, want := range tests {
		if got := CanonicalPath(in); got != want {
			t.Errorf("CanonicalPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestInstrumentHandlerCountsRequests(t *testing.T) {
	h := InstrumentHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	before := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/storage/:year/:month", "418"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/storage/2024/1", nil))
	after := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/storage/:year/:month", "418"))

	if after-before != 1 {
		t.Fatalf("expected counter to grow by 1, got %v", after-before)
	}
}

func TestRecordAuthAndBootstrap(t *testing.T) {
	before := testutil.ToFloat64(authAttempts.WithLabelValues("password", "ok"))
	RecordAuth("password", "ok")
	if got := testutil.ToFloat64(authAttempts.WithLabelValues("password", "ok")); got-before != 1 {
		t.Fatalf("auth counter grew by %v", got-before)
	}

	before = testutil.ToFloat64(bootstraps.WithLabelValues("true"))
	RecordBootstrap(true)
	if got := testutil.ToFloat64(bootstraps.WithLabelValues("true")); got-before != 1 {
		t.Fatalf("bootstrap counter grew by %v", got-before)
	}
}

func TestHandlerExposesCollectors(t *testing.T) {
	RecordBootstrap(false)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "habit_tracker_snapshots_bootstrap_total") {
		t.Fatalf("metrics output missing bootstrap counter:\n%s", body)
	}
}
