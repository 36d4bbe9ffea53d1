package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Get("/v1/artisans/{id}/similar", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	r.Post("/v1/search", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	r.Delete("/v1/history", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return r
}

func serve(h http.Handler, method, path string) {
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(method, path, http.NoBody))
}

func TestMiddleware_LabelsByRoutePattern(t *testing.T) {
	r := newRouter()
	counter := httpRequestsTotal.WithLabelValues("GET", "/v1/artisans/{id}/similar", "200")
	before := testutil.ToFloat64(counter)

	serve(r, "GET", "/v1/artisans/a-1/similar")
	serve(r, "GET", "/v1/artisans/a-2/similar")

	if got := testutil.ToFloat64(counter) - before; got != 2 {
		t.Errorf("requests for one pattern: got %v, want 2", got)
	}
	if n := testutil.CollectAndCount(httpRequestDuration); n == 0 {
		t.Error("expected http_request_duration_seconds observations")
	}
}

func TestMiddleware_StatusAndMethod(t *testing.T) {
	r := newRouter()
	tests := []struct {
		method, path, route, status string
	}{
		{"POST", "/v1/search", "/v1/search", "503"},
		{"DELETE", "/v1/history", "/v1/history", "204"},
		{"GET", "/nope", unmatchedRoute, "404"},
	}

	for _, tc := range tests {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			counter := httpRequestsTotal.WithLabelValues(tc.method, tc.route, tc.status)
			before := testutil.ToFloat64(counter)
			serve(r, tc.method, tc.path)
			if got := testutil.ToFloat64(counter) - before; got != 1 {
				t.Errorf("requests_total{%s,%s,%s}: got %v, want 1", tc.method, tc.route, tc.status, got)
			}
		})
	}
}

func TestMiddleware_InFlightSettles(t *testing.T) {
	serve(newRouter(), "POST", "/v1/search")
	if got := testutil.ToFloat64(httpInFlight); got != 0 {
		t.Errorf("in-flight after completion: got %v, want 0", got)
	}
}

func TestMiddleware_OutsideChi(t *testing.T) {
	h := Middleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	counter := httpRequestsTotal.WithLabelValues("GET", unmatchedRoute, "418")
	before := testutil.ToFloat64(counter)

	serve(h, "GET", "/anything")

	if got := testutil.ToFloat64(counter) - before; got != 1 {
		t.Errorf("plain handler: got %v, want 1", got)
	}
}

func TestRegisterHTTPMetrics_ExposedViaPromhttp(t *testing.T) {
	RegisterHTTPMetrics()
	RegisterHTTPMetrics()
	serve(newRouter(), "DELETE", "/v1/history")

	rr := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", http.NoBody))

	if !strings.Contains(rr.Body.String(), "kalasarthi_http_requests_total") {
		t.Error("kalasarthi_http_requests_total missing from /metrics output")
	}
}
