// Package engine is the zero-trust authorization core. It wires the session
// profiler, honeypot detector, threat scorers, access matrix, and global
// protocol controller into one explicitly constructed instance with a
// start/stop lifecycle. There is no package-level state.
package engine

import (
	"context"
	"log"
	"sync"
	"time"

	"aegis/pkg/authz"
	"aegis/pkg/honeypot"
	"aegis/pkg/masteraccess"
	"aegis/pkg/profiler"
	"aegis/pkg/protocol"
	"aegis/pkg/securityevent"
	"aegis/pkg/threat"
)

// Deny reasons surfaced to callers. The host layer maps these to HTTP
// status codes.
const (
	ReasonSessionNotFound = "Session not found"
	ReasonThreatTooHigh   = "Threat level too high"
	ReasonAccessDenied    = "Access denied"
)

// Thresholds for the combined trust/threat check. Critical resources are
// admin*, security*, or any delete.
const (
	destroyThreshold     = 0.9
	criticalCombinedMin  = 0.4
	defaultCombinedMin   = 0.1
	trustAdjustFactor    = 0.05
	trustAdjustReference = 0.5
)

// Decision is the structured outcome of one authorization call.
type Decision struct {
	Authorized       bool    `json:"authorized"`
	Reason           string  `json:"reason,omitempty"`
	ThreatScore      float64 `json:"threat_score"`
	TrustScore       float64 `json:"trust_score"`
	Suspicious       bool    `json:"suspicious,omitempty"`
	SessionDestroyed bool    `json:"session_destroyed,omitempty"`
}

// Config assembles an engine. Registry, Matrix, Events, and Protocol are
// required; everything else has a working default.
type Config struct {
	Registry *profiler.Registry
	Matrix   *authz.Matrix
	Honeypot *honeypot.Detector
	Events   *securityevent.Emitter
	Protocol *protocol.Controller

	// Heuristic scores young sessions, Delegated established ones. Nil
	// values fall back to pure heuristics.
	Heuristic threat.Scorer
	Delegated threat.Scorer

	// Issuer validates the master tokens that authorize self destruct and
	// is revoked wholesale on lockdown. Without one, self destruct always
	// refuses.
	Issuer *masteraccess.Issuer

	// Rotator is called on the key-rotation interval; nil disables it.
	Rotator interface{ Rotate() string }

	SweepInterval       time.Duration
	KeyRotationInterval time.Duration
}

// Engine is safe for concurrent use.
type Engine struct {
	registry *profiler.Registry
	matrix   *authz.Matrix
	honeypot *honeypot.Detector
	events   *securityevent.Emitter
	proto    *protocol.Controller

	heuristic threat.Scorer
	delegated threat.Scorer

	issuer  *masteraccess.Issuer
	rotator interface{ Rotate() string }

	sweepInterval  time.Duration
	rotateInterval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New builds an engine from cfg.
func New(cfg Config) *Engine {
	if cfg.Honeypot == nil {
		cfg.Honeypot = honeypot.NewDetector(nil)
	}
	if cfg.Heuristic == nil {
		cfg.Heuristic = threat.NewHeuristicScorer()
	}
	if cfg.Delegated == nil {
		cfg.Delegated = cfg.Heuristic
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = 5 * time.Minute
	}
	if cfg.KeyRotationInterval == 0 {
		cfg.KeyRotationInterval = 24 * time.Hour
	}
	return &Engine{
		registry:       cfg.Registry,
		matrix:         cfg.Matrix,
		honeypot:       cfg.Honeypot,
		events:         cfg.Events,
		proto:          cfg.Protocol,
		heuristic:      cfg.Heuristic,
		delegated:      cfg.Delegated,
		issuer:         cfg.Issuer,
		rotator:        cfg.Rotator,
		sweepInterval:  cfg.SweepInterval,
		rotateInterval: cfg.KeyRotationInterval,
	}
}

// Start launches the idle-session sweeper and, when a rotator is configured,
// the periodic key rotation. Start is idempotent while running.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	done := make(chan struct{})
	e.done = done

	go func() {
		defer close(done)
		var rotate <-chan time.Time
		if e.rotator != nil {
			t := time.NewTicker(e.rotateInterval)
			defer t.Stop()
			rotate = t.C
		}
		sweep := time.NewTicker(e.sweepInterval)
		defer sweep.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-sweep.C:
				if n := e.registry.Sweep(); n > 0 {
					log.Printf("[engine] swept %d idle sessions", n)
				}
			case <-rotate:
				kid := e.rotator.Rotate()
				log.Printf("[engine] rotated sealing key, active kid=%s", kid)
			}
		}
	}()
}

// Stop halts the background loops and waits for them to exit.
func (e *Engine) Stop() {
	e.mu.Lock()
	cancel, done := e.cancel, e.done
	e.cancel, e.done = nil, nil
	e.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
}

// Observe folds one request into the session's behavioral profile, creating
// the profile on first sight, and returns a snapshot.
func (e *Engine) Observe(sessionID string, md profiler.RequestMetadata) profiler.SessionProfile {
	profile, _ := e.registry.Observe(sessionID, md)
	return profile
}

// CheckHoneypot reports whether path is a registered decoy route.
func (e *Engine) CheckHoneypot(path string) bool {
	return e.honeypot.Match(path)
}

// ScoreThreat assesses the current request for a known session without
// mutating its profile. The boolean is false when the session is unknown.
func (e *Engine) ScoreThreat(ctx context.Context, sessionID string, md profiler.RequestMetadata) (threat.Assessment, bool) {
	obs, ok := e.registry.Peek(sessionID, md)
	if !ok {
		return threat.Assessment{}, false
	}
	return e.assess(ctx, obs, md), true
}

// assess runs the honeypot short-circuit and then the maturity-selected
// scorer. A honeypot hit always emits its event, whatever happens next.
func (e *Engine) assess(ctx context.Context, obs profiler.Observation, md profiler.RequestMetadata) threat.Assessment {
	if e.honeypot.Match(md.Path) {
		e.events.Emit(&securityevent.Event{
			Type:     securityevent.TypeHoneytrapTrigger,
			Severity: securityevent.SeverityHigh,
			Source: securityevent.Source{
				IP:                md.IP,
				UserAgent:         md.UserAgent,
				UserID:            md.UserID,
				BehavioralPattern: "honeypot path " + md.Path,
			},
			Details:           map[string]any{"session_id": obs.SessionID, "path": md.Path, "method": md.Method},
			MitigationApplied: []string{"session_isolation", "enhanced_monitoring"},
		})
		return threat.Assessment{
			ThreatScore:       0.95,
			Suspicious:        true,
			Reason:            "Honeytrap triggered",
			RecommendedAction: "isolate_session",
		}
	}
	var assessment threat.Assessment
	if obs.RequestCount <= threat.HeuristicThreshold {
		assessment = e.heuristic.Score(ctx, obs)
	} else {
		assessment = e.delegated.Score(ctx, obs)
	}
	if assessment.Suspicious {
		e.events.Emit(&securityevent.Event{
			Type:     securityevent.TypeSuspiciousBehavior,
			Severity: suspicionSeverity(assessment.ThreatScore),
			Source: securityevent.Source{
				IP:                md.IP,
				UserAgent:         md.UserAgent,
				UserID:            md.UserID,
				BehavioralPattern: assessment.Reason,
			},
			Details: map[string]any{
				"session_id":         obs.SessionID,
				"path":               md.Path,
				"method":             md.Method,
				"threat_score":       assessment.ThreatScore,
				"recommended_action": assessment.RecommendedAction,
			},
		})
	}
	return assessment
}

// suspicionSeverity grades a suspicious assessment by its score.
func suspicionSeverity(score float64) securityevent.Severity {
	switch {
	case score > 0.9:
		return securityevent.SeverityCritical
	case score > 0.8:
		return securityevent.SeverityHigh
	default:
		return securityevent.SeverityMedium
	}
}

// Authorize decides one request for an already-observed session. The decision
// sequence is fixed: unknown session, global protocol gate, threat scoring
// with a destroy threshold, access matrix, then the combined trust/threat
// margin. Callers wanting fetch-or-create semantics use Process.
func (e *Engine) Authorize(ctx context.Context, sessionID, resource string, action authz.Action, md profiler.RequestMetadata) Decision {
	profile, ok := e.registry.Get(sessionID)
	if !ok {
		return Decision{Reason: ReasonSessionNotFound}
	}
	obs, ok := e.registry.Peek(sessionID, md)
	if !ok {
		// Swept between Get and Peek.
		return Decision{Reason: ReasonSessionNotFound}
	}
	return e.decide(ctx, sessionID, profile, obs, resource, action, md)
}

// Process is the normal request-path entry point: fold the request into the
// profile (creating it on first sight), then authorize. The profile update
// commits before scoring is attempted, so a scoring failure never leaves the
// profile half-written.
func (e *Engine) Process(ctx context.Context, sessionID, resource string, action authz.Action, md profiler.RequestMetadata) Decision {
	e.registry.Observe(sessionID, md)
	return e.Authorize(ctx, sessionID, resource, action, md)
}

func (e *Engine) decide(ctx context.Context, sessionID string, profile profiler.SessionProfile, obs profiler.Observation, resource string, action authz.Action, md profiler.RequestMetadata) Decision {
	if denied, reason := e.proto.Gate(); denied {
		return Decision{Reason: reason, TrustScore: profile.TrustScore}
	}

	assessment := e.assess(ctx, obs, md)

	if assessment.ThreatScore > destroyThreshold {
		e.registry.Destroy(sessionID)
		e.events.Emit(&securityevent.Event{
			Type:     securityevent.TypeZeroTrustViolation,
			Severity: securityevent.SeverityCritical,
			Source: securityevent.Source{
				IP:                md.IP,
				UserAgent:         md.UserAgent,
				UserID:            profile.UserID,
				BehavioralPattern: assessment.Reason,
			},
			Details: map[string]any{
				"session_id":   sessionID,
				"resource":     resource,
				"action":       string(action),
				"threat_score": assessment.ThreatScore,
			},
			MitigationApplied: []string{"access_denied", "session_terminated"},
		})
		return Decision{
			Reason:           ReasonThreatTooHigh,
			ThreatScore:      assessment.ThreatScore,
			TrustScore:       profile.TrustScore,
			Suspicious:       true,
			SessionDestroyed: true,
		}
	}

	allowed := e.matrix.Allowed(profile.AccessLevel, action, resource)
	combined := profile.TrustScore - assessment.ThreatScore
	minCombined := defaultCombinedMin
	if authz.Critical(action, resource) {
		minCombined = criticalCombinedMin
	}

	if !allowed || combined <= minCombined {
		e.events.Emit(&securityevent.Event{
			Type:     securityevent.TypeZeroTrustViolation,
			Severity: securityevent.SeverityMedium,
			Source: securityevent.Source{
				IP:        md.IP,
				UserAgent: md.UserAgent,
				UserID:    profile.UserID,
			},
			Details: map[string]any{
				"session_id":     sessionID,
				"resource":       resource,
				"action":         string(action),
				"access_level":   string(profile.AccessLevel),
				"matrix_allowed": allowed,
				"combined_score": combined,
				"threat_score":   assessment.ThreatScore,
			},
			MitigationApplied: []string{"access_denied"},
		})
		return Decision{
			Reason:      ReasonAccessDenied,
			ThreatScore: assessment.ThreatScore,
			TrustScore:  profile.TrustScore,
			Suspicious:  assessment.Suspicious,
		}
	}

	newTrust := e.registry.AdjustTrust(sessionID, (trustAdjustReference-assessment.ThreatScore)*trustAdjustFactor)
	return Decision{
		Authorized:  true,
		ThreatScore: assessment.ThreatScore,
		TrustScore:  newTrust,
		Suspicious:  assessment.Suspicious,
	}
}

// ActivateTimeLock freezes all authorization for d, clears every active
// session, and revokes outstanding master tokens. Returns false once the
// engine is destroyed.
func (e *Engine) ActivateTimeLock(d time.Duration, reason string) bool {
	expiry, err := e.proto.ActivateTimeLock(d, reason)
	if err != nil {
		return false
	}
	e.registry.Clear()
	if e.issuer != nil {
		e.issuer.RevokeAll()
	}
	e.events.Emit(&securityevent.Event{
		Type:     securityevent.TypeTimeLockActivated,
		Severity: securityevent.SeverityHigh,
		Details: map[string]any{
			"reason":      reason,
			"duration":    d.String(),
			"lock_expiry": expiry.UTC().Format(time.RFC3339),
		},
	})
	return true
}

// TriggerSelfDestruct permanently freezes the engine. The caller must present
// a live admin-level master token; anything else is refused and audited
// without a state change.
func (e *Engine) TriggerSelfDestruct(ctx context.Context, token, reason string) bool {
	var claims *masteraccess.Claims
	var err error
	if e.issuer != nil {
		claims, err = e.issuer.Validate(ctx, token)
	}
	if e.issuer == nil || err != nil || claims.AccessLevel != "admin" {
		detail := "no token issuer configured"
		if err != nil {
			detail = err.Error()
		} else if claims != nil {
			detail = "access level " + claims.AccessLevel + " is not admin"
		}
		e.events.Emit(&securityevent.Event{
			Type:     securityevent.TypeUnauthorizedAccess,
			Severity: securityevent.SeverityCritical,
			Details:  map[string]any{"operation": "self_destruct", "reason": reason, "denied": detail},
		})
		return false
	}

	e.proto.Destroy()
	e.registry.Clear()
	e.issuer.RevokeAll()
	e.events.Emit(&securityevent.Event{
		Type:     securityevent.TypeDataExfiltration,
		Severity: securityevent.SeverityCritical,
		Details: map[string]any{
			"operation":     "self_destruct",
			"reason":        reason,
			"credential_id": claims.CredentialID,
		},
		MitigationApplied: []string{"data_encryption", "connection_termination"},
	})
	return true
}

// State exposes the protocol state for health reporting.
func (e *Engine) State() protocol.State { return e.proto.Current() }

// ActiveSessions reports the live profile count.
func (e *Engine) ActiveSessions() int { return e.registry.Len() }
