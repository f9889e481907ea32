package threat

import (
	"context"
	"errors"
	"testing"
	"time"

	"aegis/pkg/profiler"
)

func TestHeuristicWeights(t *testing.T) {
	s := NewHeuristicScorer()

	cases := []struct {
		name string
		obs  profiler.Observation
		want float64
	}{
		{"clean", profiler.Observation{}, 0},
		{"new_ip", profiler.Observation{NewIP: true}, 0.2},
		{"new_ua", profiler.Observation{NewUserAgent: true}, 0.1},
		{"high_rate", profiler.Observation{RequestsPerSecond: 11}, 0.3},
		{"new_path", profiler.Observation{NewPath: true}, 0.1},
		{"new_method", profiler.Observation{NewMethod: true}, 0.2},
		{"size_deviation", profiler.Observation{SizeRatio: 3.5}, 0.2},
		{"admin_path", profiler.Observation{AdminPathNoAccess: true}, 0.4},
		{"injection", profiler.Observation{InjectionPatterns: []string{"script_tag"}}, 0.3},
		{"auth_rate", profiler.Observation{AuthPerMinute: 6}, 0.4},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := s.Score(context.Background(), tc.obs)
			if diff := a.ThreatScore - tc.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("score = %v, want %v", a.ThreatScore, tc.want)
			}
		})
	}
}

func TestHeuristicClampAndSuspicion(t *testing.T) {
	s := NewHeuristicScorer()
	obs := profiler.Observation{
		NewIP:             true,
		NewUserAgent:      true,
		RequestsPerSecond: 20,
		NewPath:           true,
		NewMethod:         true,
		SizeRatio:         10,
		AdminPathNoAccess: true,
		InjectionPatterns: []string{"eval_call"},
		AuthPerMinute:     10,
	}
	a := s.Score(context.Background(), obs)
	if a.ThreatScore != 1.0 {
		t.Errorf("score = %v, want clamp to 1.0", a.ThreatScore)
	}
	if !a.Suspicious {
		t.Error("expected suspicious")
	}
	if a.Reason != "Unusual behavior pattern detected" {
		t.Errorf("reason = %q", a.Reason)
	}
	if a.RecommendedAction != "enhanced_monitoring" {
		t.Errorf("recommended action = %q", a.RecommendedAction)
	}
}

func TestHeuristicBelowThresholdNotSuspicious(t *testing.T) {
	s := NewHeuristicScorer()
	a := s.Score(context.Background(), profiler.Observation{AdminPathNoAccess: true, NewPath: true, NewMethod: true})
	if a.ThreatScore != 0.7 {
		t.Errorf("score = %v, want 0.7", a.ThreatScore)
	}
	if a.Suspicious {
		t.Error("0.7 is not above the 0.75 threshold")
	}
}

type stubClassifier struct {
	a   Assessment
	err error
	sleep time.Duration
}

func (c *stubClassifier) Classify(ctx context.Context, _ profiler.Observation) (Assessment, error) {
	if c.sleep > 0 {
		select {
		case <-time.After(c.sleep):
		case <-ctx.Done():
			return Assessment{}, ctx.Err()
		}
	}
	return c.a, c.err
}

func TestDelegatedPassesThroughClassifier(t *testing.T) {
	want := Assessment{ThreatScore: 0.42, Suspicious: false, Reason: "ok"}
	s := NewDelegatedScorer(&stubClassifier{a: want}, time.Second)
	got := s.Score(context.Background(), profiler.Observation{})
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestDelegatedFailClosedOnError(t *testing.T) {
	s := NewDelegatedScorer(&stubClassifier{err: errors.New("boom")}, time.Second)
	got := s.Score(context.Background(), profiler.Observation{})
	if got.ThreatScore != 0.8 || !got.Suspicious {
		t.Errorf("got %+v, want fail-closed 0.8/suspicious", got)
	}
	if got.Reason != "Analysis error - assuming suspicious" {
		t.Errorf("reason = %q", got.Reason)
	}
}

func TestDelegatedFailClosedOnTimeout(t *testing.T) {
	s := NewDelegatedScorer(&stubClassifier{sleep: 500 * time.Millisecond}, 20*time.Millisecond)
	start := time.Now()
	got := s.Score(context.Background(), profiler.Observation{})
	if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
		t.Errorf("timeout not enforced, took %v", elapsed)
	}
	if got.ThreatScore != 0.8 || !got.Suspicious {
		t.Errorf("got %+v, want fail-closed", got)
	}
}

func TestDelegatedWithoutClassifierUsesHeuristics(t *testing.T) {
	s := NewDelegatedScorer(nil, time.Second)
	got := s.Score(context.Background(), profiler.Observation{NewIP: true})
	if got.ThreatScore != 0.2 {
		t.Errorf("score = %v, want heuristic 0.2", got.ThreatScore)
	}
}
