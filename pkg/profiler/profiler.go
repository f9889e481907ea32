// Package profiler maintains one behavioral record per active session and
// derives the per-request feature observations the threat scorers consume.
//
// All mutations to a single session are serialized through a per-session
// lock; requests for different sessions never block each other. A background
// sweep removes sessions idle beyond the configured timeout using the same
// per-session locks, so a session is never removed out from under an
// in-flight update.
package profiler

import (
	"context"
	"sync"
	"time"

	"aegis/pkg/authz"
)

const (
	maxCommonPaths  = 20
	maxTimePatterns = 100
	maxRecentTimes  = 64
)

// RequestMetadata is what the host request layer hands the engine per request.
type RequestMetadata struct {
	Path        string
	Method      string
	IP          string
	UserAgent   string
	Query       string
	Body        string
	BodySize    int64
	UserID      string
	AccessLevel authz.Level // optional; derived from UserID when empty
}

// SessionProfile is the accumulated behavioral fingerprint for one session.
type SessionProfile struct {
	SessionID          string
	UserID             string
	AccessLevel        authz.Level
	CommonPaths        []string
	TypicalMethods     map[string]bool
	AverageRequestSize float64
	RequestCount       int64
	KnownIPs           map[string]bool
	KnownUserAgents    map[string]bool
	TimePatterns       []int
	TrustScore         float64
	LastActivity       time.Time

	recentTimes []time.Time
	recentAuth  []time.Time
}

type sessionEntry struct {
	mu      sync.Mutex
	profile *SessionProfile
	gone    bool
}

// Registry holds all active session profiles.
type Registry struct {
	mu          sync.RWMutex
	sessions    map[string]*sessionEntry
	idleTimeout time.Duration
	now         func() time.Time
}

// Config tunes the registry. Zero values get production defaults.
type Config struct {
	IdleTimeout time.Duration
}

// NewRegistry builds an empty session registry.
func NewRegistry(cfg Config) *Registry {
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = time.Hour
	}
	return &Registry{
		sessions:    make(map[string]*sessionEntry),
		idleTimeout: cfg.IdleTimeout,
		now:         time.Now,
	}
}

func (r *Registry) entry(sessionID string, create bool) *sessionEntry {
	for {
		r.mu.RLock()
		e, ok := r.sessions[sessionID]
		r.mu.RUnlock()
		if ok {
			return e
		}
		if !create {
			return nil
		}
		r.mu.Lock()
		if e, ok = r.sessions[sessionID]; !ok {
			e = &sessionEntry{}
			r.sessions[sessionID] = e
		}
		r.mu.Unlock()
		return e
	}
}

// Observe looks up or lazily creates the profile for sessionID, folds the
// request into it, and returns a snapshot plus the feature observation for
// scoring. The observation's novelty flags are computed against the profile
// state before this request was folded in. Observe never fails.
func (r *Registry) Observe(sessionID string, md RequestMetadata) (SessionProfile, Observation) {
	for {
		e := r.entry(sessionID, true)
		e.mu.Lock()
		if e.gone {
			e.mu.Unlock()
			continue
		}
		now := r.now()
		if e.profile == nil {
			e.profile = newProfile(sessionID, md, now)
		}
		p := e.profile
		if p.UserID == "" && md.UserID != "" {
			p.UserID = md.UserID
		}
		if md.AccessLevel != "" {
			p.AccessLevel = md.AccessLevel
		}

		obs := observe(p, md, now, false)
		fold(p, md, now)
		snap := p.snapshot()
		e.mu.Unlock()
		obs.Profile = snap
		obs.RequestCount = snap.RequestCount
		return snap, obs
	}
}

// Peek computes an observation against the current profile state without
// mutating it. The boolean is false when the session is unknown. Peek assumes
// the request described by md was already folded in, so the rate windows do
// not count it a second time.
func (r *Registry) Peek(sessionID string, md RequestMetadata) (Observation, bool) {
	e := r.entry(sessionID, false)
	if e == nil {
		return Observation{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gone || e.profile == nil {
		return Observation{}, false
	}
	obs := observe(e.profile, md, r.now(), true)
	obs.Profile = e.profile.snapshot()
	obs.RequestCount = obs.Profile.RequestCount
	return obs, true
}

// Get returns a snapshot of the profile, if present.
func (r *Registry) Get(sessionID string) (SessionProfile, bool) {
	e := r.entry(sessionID, false)
	if e == nil {
		return SessionProfile{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gone || e.profile == nil {
		return SessionProfile{}, false
	}
	return e.profile.snapshot(), true
}

// AdjustTrust shifts the session's trust score by delta, clamped to [0,1],
// and returns the new value.
func (r *Registry) AdjustTrust(sessionID string, delta float64) float64 {
	e := r.entry(sessionID, false)
	if e == nil {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gone || e.profile == nil {
		return 0
	}
	e.profile.TrustScore = clamp01(e.profile.TrustScore + delta)
	return e.profile.TrustScore
}

// Destroy removes one session immediately.
func (r *Registry) Destroy(sessionID string) {
	e := r.entry(sessionID, false)
	if e == nil {
		return
	}
	e.mu.Lock()
	e.gone = true
	e.mu.Unlock()
	r.mu.Lock()
	delete(r.sessions, sessionID)
	r.mu.Unlock()
}

// Clear drops every active session. Used by the global protocols.
func (r *Registry) Clear() {
	r.mu.Lock()
	old := r.sessions
	r.sessions = make(map[string]*sessionEntry)
	r.mu.Unlock()
	for _, e := range old {
		e.mu.Lock()
		e.gone = true
		e.mu.Unlock()
	}
}

// Len reports the number of active sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep removes sessions idle beyond the timeout and returns how many went.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.idleTimeout)

	r.mu.RLock()
	candidates := make(map[string]*sessionEntry, len(r.sessions))
	for id, e := range r.sessions {
		candidates[id] = e
	}
	r.mu.RUnlock()

	removed := 0
	for id, e := range candidates {
		e.mu.Lock()
		idle := !e.gone && e.profile != nil && e.profile.LastActivity.Before(cutoff)
		if idle {
			e.gone = true
		}
		e.mu.Unlock()
		if idle {
			r.mu.Lock()
			delete(r.sessions, id)
			r.mu.Unlock()
			removed++
		}
	}
	return removed
}

// RunSweeper sweeps on the interval until ctx is cancelled.
func (r *Registry) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.Sweep()
		case <-ctx.Done():
			return
		}
	}
}

func newProfile(sessionID string, md RequestMetadata, now time.Time) *SessionProfile {
	trust := 0.5
	level := authz.LevelGuest
	if md.UserID != "" {
		trust = 0.7
		level = authz.LevelUser
	}
	if md.AccessLevel != "" {
		level = md.AccessLevel
	}
	return &SessionProfile{
		SessionID:       sessionID,
		UserID:          md.UserID,
		AccessLevel:     level,
		TypicalMethods:  make(map[string]bool),
		KnownIPs:        make(map[string]bool),
		KnownUserAgents: make(map[string]bool),
		TrustScore:      trust,
		LastActivity:    now,
	}
}

// fold applies the per-request profile update in the documented order.
func fold(p *SessionProfile, md RequestMetadata, now time.Time) {
	if md.Path != "" && !containsString(p.CommonPaths, md.Path) {
		p.CommonPaths = appendBounded(p.CommonPaths, md.Path, maxCommonPaths)
	}
	if md.Method != "" {
		p.TypicalMethods[md.Method] = true
	}
	p.AverageRequestSize = (p.AverageRequestSize*float64(p.RequestCount) + float64(md.BodySize)) / float64(p.RequestCount+1)
	if md.IP != "" {
		p.KnownIPs[md.IP] = true
	}
	if md.UserAgent != "" {
		p.KnownUserAgents[md.UserAgent] = true
	}
	p.RequestCount++
	p.TimePatterns = appendBounded(p.TimePatterns, now.Hour(), maxTimePatterns)
	p.LastActivity = now

	p.recentTimes = appendBounded(p.recentTimes, now, maxRecentTimes)
	if isAuthPath(md.Path) {
		p.recentAuth = appendBounded(p.recentAuth, now, maxRecentTimes)
	}
}

func (p *SessionProfile) snapshot() SessionProfile {
	cp := *p
	cp.CommonPaths = append([]string(nil), p.CommonPaths...)
	cp.TimePatterns = append([]int(nil), p.TimePatterns...)
	cp.TypicalMethods = copySet(p.TypicalMethods)
	cp.KnownIPs = copySet(p.KnownIPs)
	cp.KnownUserAgents = copySet(p.KnownUserAgents)
	cp.recentTimes = nil
	cp.recentAuth = nil
	return cp
}

func appendBounded[T any](s []T, v T, bound int) []T {
	s = append(s, v)
	if len(s) > bound {
		s = s[len(s)-bound:]
	}
	return s
}

func containsString(s []string, v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

func copySet(m map[string]bool) map[string]bool {
	out := make(map[string]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
