package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRegistryExposition(t *testing.T) {
	reg := NewRegistry()
	c := NewCounter("aegis_test_total", "test counter")
	g := NewGauge("aegis_test_gauge", "test gauge")
	h := NewHistogram("aegis_test_seconds", "test histogram", []float64{0.1, 1})
	lc := NewLabeledCounter("aegis_test_by_route", "per route", []string{"route", "outcome"})
	reg.Register(c)
	reg.RegisterGauge(g)
	reg.RegisterHistogram(h)
	reg.RegisterLabeledCounter(lc)

	c.Add(3)
	g.Set(7)
	h.Observe(0.05)
	h.Observe(2)
	lc.Inc(map[string]string{"route": "/zerotrust/authorize", "outcome": "deny"})
	lc.Inc(map[string]string{"route": "/zerotrust/authorize", "outcome": "deny"})

	rr := httptest.NewRecorder()
	reg.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rr.Body.String()

	for _, want := range []string{
		"aegis_test_total 3",
		"aegis_test_gauge 7",
		`aegis_test_seconds_bucket{le="0.1"} 1`,
		`aegis_test_seconds_bucket{le="+Inf"} 2`,
		"aegis_test_seconds_count 2",
		`aegis_test_by_route{route="/zerotrust/authorize",outcome="deny"} 2`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("exposition missing %q\n%s", want, body)
		}
	}
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	reg := NewRegistry()
	m := NewHTTPMetrics(reg, "aegis")
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/boom" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	for _, path := range []string{"/ok", "/ok", "/boom"} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	}

	if m.RequestsTotal.Value() != 3 {
		t.Errorf("requests = %d, want 3", m.RequestsTotal.Value())
	}
	if m.ErrorsTotal.Value() != 1 {
		t.Errorf("errors = %d, want 1", m.ErrorsTotal.Value())
	}
}
