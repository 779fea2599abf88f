package observe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// newAdminHandler wraps a trivial handler in the middleware with isolated
// metric and trace recorders.
func newAdminHandler(t *testing.T, status int) (http.Handler, *sdkmetric.ManualReader, *tracetest.InMemoryExporter) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	origTP := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(origTP) })

	h := Middleware(m)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
	}))
	return h, reader, exp
}

func TestRouteLabel(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/healthz", "/healthz"},
		{"/readyz", "/readyz"},
		{"/metrics", "/metrics"},
		{"/statusz", "/statusz"},
		{"/", "other"},
		{"/healthz/extra", "other"},
		{"/admin/secret", "other"},
	}
	for _, tt := range tests {
		if got := routeLabel(tt.path); got != tt.want {
			t.Errorf("routeLabel(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestMiddleware_RecordsNormalisedRoute(t *testing.T) {
	h, reader, _ := newAdminHandler(t, http.StatusOK)

	for _, path := range []string{"/readyz", "/some/random/path"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	met := findMetric(rm, "kanade.http.request.duration")
	if met == nil {
		t.Fatal("kanade.http.request.duration not recorded")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("metric is not a histogram")
	}

	routes := map[string]bool{}
	for _, dp := range hist.DataPoints {
		for _, kv := range dp.Attributes.ToSlice() {
			if string(kv.Key) == "route" {
				routes[kv.Value.AsString()] = true
			}
		}
	}
	if !routes["/readyz"] {
		t.Error("missing datapoint for route /readyz")
	}
	if !routes["other"] {
		t.Error("unknown path was not collapsed to route \"other\"")
	}
	if routes["/some/random/path"] {
		t.Error("raw path leaked into the route attribute")
	}
}

func TestMiddleware_CorrelationHeaderMatchesSpan(t *testing.T) {
	h, _, exp := newAdminHandler(t, http.StatusOK)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/statusz", nil))

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("recorded %d spans, want 1", len(spans))
	}
	if got := spans[0].Name; got != "admin GET /statusz" {
		t.Errorf("span name = %q, want %q", got, "admin GET /statusz")
	}
	cid := rec.Header().Get("X-Correlation-ID")
	if cid != spans[0].SpanContext.TraceID().String() {
		t.Errorf("X-Correlation-ID = %q, want trace ID %s", cid, spans[0].SpanContext.TraceID())
	}
}

func TestMiddleware_CapturesStatusCode(t *testing.T) {
	h, _, exp := newAdminHandler(t, http.StatusServiceUnavailable)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("response status = %d, want 503", rec.Code)
	}
	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("recorded %d spans, want 1", len(spans))
	}
	found := false
	for _, a := range spans[0].Attributes {
		if string(a.Key) == "http.response.status_code" && a.Value.AsInt64() == 503 {
			found = true
		}
	}
	if !found {
		t.Error("span missing http.response.status_code = 503")
	}
}

func TestMiddleware_ContinuesIncomingTrace(t *testing.T) {
	h, _, _ := newAdminHandler(t, http.StatusOK)

	const traceID = "4bf92f3577b34da6a3ce929d0e0e4736"
	req := httptest.NewRequest("GET", "/healthz", nil)
	req.Header.Set("traceparent", "00-"+traceID+"-00f067aa0ba902b7-01")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Correlation-ID"); got != traceID {
		t.Errorf("X-Correlation-ID = %q, want the inbound trace ID %q", got, traceID)
	}
}
