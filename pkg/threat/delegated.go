package threat

import (
	"context"
	"log"
	"time"

	"aegis/pkg/profiler"
)

// Fail-closed assessment used when the classifier errors or times out.
var failClosed = Assessment{
	ThreatScore:       0.8,
	Suspicious:        true,
	Reason:            "Analysis error - assuming suspicious",
	RecommendedAction: "enhanced_monitoring",
}

// DelegatedScorer hands the feature vector to the external classifier. The
// call is the engine's only suspension point, so it carries a hard timeout;
// any failure degrades to the fail-closed assessment rather than an error.
type DelegatedScorer struct {
	classifier Classifier
	timeout    time.Duration
}

// NewDelegatedScorer wraps the classifier with a bounded timeout. A zero
// timeout defaults to two seconds.
func NewDelegatedScorer(classifier Classifier, timeout time.Duration) *DelegatedScorer {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &DelegatedScorer{classifier: classifier, timeout: timeout}
}

func (s *DelegatedScorer) Score(ctx context.Context, obs profiler.Observation) Assessment {
	if s.classifier == nil {
		// No collaborator configured; fall back to heuristics.
		return NewHeuristicScorer().Score(ctx, obs)
	}
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	a, err := s.classifier.Classify(cctx, obs)
	if err != nil {
		log.Printf("[threat] classifier failed for session %s: %v", obs.SessionID, err)
		return failClosed
	}
	a.ThreatScore = clamp01(a.ThreatScore)
	return a
}
