package obs

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                                     "other",
		"/":                                    "other",
		"/wp-admin.php":                        "other",
		"/v1/users/abc/unknown":                "other",
		"/v1/users/:id/status":                 "/v1/users/:id/status",
		"/metrics":                             "/metrics",
		"/v1/users":                            "/v1/users",
		"/v1/users/01HZX3/status":              "/v1/users/:id/status",
		"/v1/users/01HZX3/permissions/reapply": "/v1/users/:id/permissions/reapply",
		"/v1/auth/login":                       "/v1/auth/login",
		"/v1/auth/password/reset?token=abc":    "/v1/auth/password/reset",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}

func TestInstrumentCountsRequests(t *testing.T) {
	Init()
	handler := Instrument(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/readyz", "418"))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/readyz", nil))

	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/readyz", "418"))
	if after-before != 1 {
		t.Fatalf("expected one request counted, got %v", after-before)
	}
}

func TestInstrumentFoldsUnknownPaths(t *testing.T) {
	Init()
	handler := Instrument(http.NotFoundHandler())
	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "other", "404"))

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/scan/"+strconv.Itoa(i), nil)
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}

	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "other", "404"))
	if after-before != 5 {
		t.Fatalf("expected unknown paths under one label, got %v", after-before)
	}
	if got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/scan/0", "404")); got != 0 {
		t.Fatalf("raw path leaked into labels: %v", got)
	}
}

func TestObserveDenied(t *testing.T) {
	Init()
	before := testutil.ToFloat64(gateDenied.WithLabelValues("access", "denied"))
	ObserveDenied("access", "denied")
	if got := testutil.ToFloat64(gateDenied.WithLabelValues("access", "denied")); got-before != 1 {
		t.Fatalf("expected counter increment, got %v", got-before)
	}
}
