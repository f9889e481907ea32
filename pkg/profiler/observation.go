package profiler

import (
	"regexp"
	"strings"
	"time"

	"aegis/pkg/authz"
)

// Observation is the per-request feature vector handed to the threat scorers.
// Novelty flags are relative to the profile before the request was folded in.
type Observation struct {
	SessionID    string
	Profile      SessionProfile
	RequestCount int64
	Path         string
	Method       string

	NewIP             bool
	NewUserAgent      bool
	NewPath           bool
	NewMethod         bool
	RequestsPerSecond float64
	SizeRatio         float64 // body size over running average; 0 when no history
	AdminPathNoAccess bool
	InjectionPatterns []string
	AuthPerMinute     int
}

var injectionPatterns = []struct {
	name string
	re   *regexp.Regexp
}{
	{"script_tag", regexp.MustCompile(`(?i)<\s*script`)},
	{"sql_keyword", regexp.MustCompile(`(?i)(union\s+select|insert\s+into|drop\s+table|delete\s+from|'\s*or\s+'1'\s*=\s*'1|--\s*$)`)},
	{"event_handler", regexp.MustCompile(`(?i)\bon[a-z]+\s*=`)},
	{"eval_call", regexp.MustCompile(`(?i)\b(eval|settimeout|setinterval|function)\s*\(`)},
}

var authPathPrefixes = []string{"/auth", "/login", "/signin", "/api/auth"}

// observe derives the feature vector for md against p. folded says whether
// the current request has already been folded into p's counters; when it has,
// the rate windows already contain it and must not count it again.
func observe(p *SessionProfile, md RequestMetadata, now time.Time, folded bool) Observation {
	obs := Observation{
		SessionID: p.SessionID,
		Path:      md.Path,
		Method:    md.Method,
	}

	obs.NewIP = md.IP != "" && !p.KnownIPs[md.IP]
	obs.NewUserAgent = md.UserAgent != "" && !p.KnownUserAgents[md.UserAgent]
	obs.NewPath = md.Path != "" && !containsString(p.CommonPaths, md.Path)
	obs.NewMethod = md.Method != "" && !p.TypicalMethods[md.Method]

	if p.AverageRequestSize > 0 {
		obs.SizeRatio = float64(md.BodySize) / p.AverageRequestSize
	}

	obs.RequestsPerSecond = countSince(p.recentTimes, now.Add(-time.Second))
	obs.AuthPerMinute = int(countSince(p.recentAuth, now.Add(-time.Minute)))
	if !folded {
		obs.RequestsPerSecond++
		if isAuthPath(md.Path) {
			obs.AuthPerMinute++
		}
	}

	obs.AdminPathNoAccess = isAdminPath(md.Path) && p.AccessLevel != authz.LevelAdmin

	serialized := md.Path + "?" + md.Query + " " + md.Body
	for _, pat := range injectionPatterns {
		if pat.re.MatchString(serialized) {
			obs.InjectionPatterns = append(obs.InjectionPatterns, pat.name)
		}
	}
	return obs
}

func isAdminPath(path string) bool {
	return strings.HasPrefix(path, "/admin") || strings.HasPrefix(path, "/management")
}

func isAuthPath(path string) bool {
	for _, prefix := range authPathPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func countSince(times []time.Time, cutoff time.Time) float64 {
	n := 0
	for _, t := range times {
		if t.After(cutoff) {
			n++
		}
	}
	return float64(n)
}
