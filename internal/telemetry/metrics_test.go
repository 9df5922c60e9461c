package telemetry

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestMiddleware_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/v1/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	before := counterValue(t, httpReqs.WithLabelValues("/v1/items/{id}", http.MethodGet, http.StatusText(http.StatusTeapot)))
	for _, path := range []string{"/v1/items/1", "/v1/items/2"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}
	after := counterValue(t, httpReqs.WithLabelValues("/v1/items/{id}", http.MethodGet, http.StatusText(http.StatusTeapot)))
	if after-before != 2 {
		t.Fatalf("requests counted under route pattern = %v, want 2", after-before)
	}
}

func TestObserveStatus(t *testing.T) {
	before := counterValue(t, StatusEvaluations.WithLabelValues("none"))
	ObserveStatus("")
	if got := counterValue(t, StatusEvaluations.WithLabelValues("none")) - before; got != 1 {
		t.Fatalf("none evaluations = %v, want 1", got)
	}
}

func TestInitIsIdempotent(t *testing.T) {
	Init()
	Init()
}
