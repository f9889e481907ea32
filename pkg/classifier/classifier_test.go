package classifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"aegis/pkg/profiler"
	"aegis/pkg/threat"
)

func TestClassifyRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/classify" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req["session_id"] != "s1" {
			t.Errorf("session_id = %v", req["session_id"])
		}
		json.NewEncoder(w).Encode(threat.Assessment{
			ThreatScore:       0.35,
			Suspicious:        false,
			Reason:            "within baseline",
			RecommendedAction: "none",
		})
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	a, err := c.Classify(context.Background(), profiler.Observation{SessionID: "s1", Path: "/x", Method: "GET"})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if a.ThreatScore != 0.35 || a.Reason != "within baseline" {
		t.Fatalf("unexpected assessment: %+v", a)
	}
}

func TestClassifyHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	if _, err := c.Classify(context.Background(), profiler.Observation{}); err == nil {
		t.Fatal("want error on 503")
	}
}

func TestClassifyHonorsContextDeadline(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	c := New(srv.URL, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if _, err := c.Classify(ctx, profiler.Observation{}); err == nil {
		t.Fatal("want deadline error")
	}
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	if err := New(srv.URL, nil).Health(context.Background()); err != nil {
		t.Fatalf("Health: %v", err)
	}
}
