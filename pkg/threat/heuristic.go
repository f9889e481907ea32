package threat

import (
	"context"

	"aegis/pkg/profiler"
)

// Additive feature weights for young sessions. The sum is clamped to [0,1].
const (
	weightNewIP         = 0.2
	weightNewUserAgent  = 0.1
	weightHighRate      = 0.3
	weightNewPath       = 0.1
	weightNewMethod     = 0.2
	weightSizeDeviation = 0.2
	weightAdminPath     = 0.4
	weightInjection     = 0.3
	weightAuthRate      = 0.4

	highRatePerSecond  = 10
	sizeDeviationRatio = 3
	authRatePerMinute  = 5

	suspicionThreshold = 0.75
)

// HeuristicScorer applies fixed additive weights to the observation features.
type HeuristicScorer struct{}

// NewHeuristicScorer returns the fast scorer used for young sessions.
func NewHeuristicScorer() *HeuristicScorer { return &HeuristicScorer{} }

func (s *HeuristicScorer) Score(_ context.Context, obs profiler.Observation) Assessment {
	score := 0.0
	if obs.NewIP {
		score += weightNewIP
	}
	if obs.NewUserAgent {
		score += weightNewUserAgent
	}
	if obs.RequestsPerSecond > highRatePerSecond {
		score += weightHighRate
	}
	if obs.NewPath {
		score += weightNewPath
	}
	if obs.NewMethod {
		score += weightNewMethod
	}
	if obs.SizeRatio > sizeDeviationRatio {
		score += weightSizeDeviation
	}
	if obs.AdminPathNoAccess {
		score += weightAdminPath
	}
	if len(obs.InjectionPatterns) > 0 {
		score += weightInjection
	}
	if obs.AuthPerMinute > authRatePerMinute {
		score += weightAuthRate
	}

	a := Assessment{ThreatScore: clamp01(score)}
	if a.ThreatScore > suspicionThreshold {
		a.Suspicious = true
		a.Reason = "Unusual behavior pattern detected"
		a.RecommendedAction = "enhanced_monitoring"
	}
	return a
}
