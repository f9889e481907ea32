// Package threat converts a behavioral observation into a 0-1 threat score.
// Young sessions are scored with fast additive heuristics; established ones
// are delegated to an external behavioral classifier with a fail-closed
// fallback.
package threat

import (
	"context"

	"aegis/pkg/profiler"
)

// Assessment is the scoring outcome for one request.
type Assessment struct {
	ThreatScore       float64 `json:"threat_score"`
	Suspicious        bool    `json:"suspicious"`
	Reason            string  `json:"reason,omitempty"`
	RecommendedAction string  `json:"recommended_action,omitempty"`
}

// Scorer scores one observation. Implementations must be safe for concurrent
// use.
type Scorer interface {
	Score(ctx context.Context, obs profiler.Observation) Assessment
}

// Classifier is the external behavioral-classification collaborator used in
// delegated mode. It may be anything from a rules engine to a hosted model.
type Classifier interface {
	Classify(ctx context.Context, obs profiler.Observation) (Assessment, error)
}

// HeuristicThreshold is the session maturity bound: sessions with at most
// this many requests are scored heuristically, older ones are delegated.
const HeuristicThreshold = 10

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
