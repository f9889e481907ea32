package main

import (
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"aegis/pkg/authz"
	"aegis/pkg/engine"
	"aegis/pkg/masteraccess"
	"aegis/pkg/metrics"
	"aegis/pkg/profiler"
	"aegis/pkg/securityevent"
)

const maxBodyBytes = 1 << 20

type server struct {
	eng       *engine.Engine
	verifier  *masteraccess.Verifier
	issuer    *masteraccess.Issuer
	store     securityevent.Store
	decisions *metrics.LabeledCounter

	// allows the first credential to be enrolled without a master token
	bootstrapRegister bool
}

type requestMetadata struct {
	Path        string `json:"path"`
	Method      string `json:"method"`
	IP          string `json:"ip,omitempty"`
	UserAgent   string `json:"user_agent,omitempty"`
	Query       string `json:"query,omitempty"`
	Body        string `json:"body,omitempty"`
	BodySize    int64  `json:"body_size,omitempty"`
	UserID      string `json:"user_id,omitempty"`
	AccessLevel string `json:"access_level,omitempty"`
}

func (m requestMetadata) toProfiler(r *http.Request) profiler.RequestMetadata {
	md := profiler.RequestMetadata{
		Path:      m.Path,
		Method:    m.Method,
		IP:        m.IP,
		UserAgent: m.UserAgent,
		Query:     m.Query,
		Body:      m.Body,
		BodySize:  m.BodySize,
		UserID:    m.UserID,
	}
	if m.AccessLevel != "" {
		md.AccessLevel = authz.ParseLevel(m.AccessLevel)
	}
	if md.IP == "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			md.IP = host
		} else {
			md.IP = r.RemoteAddr
		}
	}
	if md.UserAgent == "" {
		md.UserAgent = r.UserAgent()
	}
	if md.BodySize == 0 {
		md.BodySize = int64(len(m.Body))
	}
	return md
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[zerotrust] write response: %v", err)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return false
	}
	return true
}

func (s *server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string          `json:"session_id"`
		Resource  string          `json:"resource"`
		Action    string          `json:"action"`
		Metadata  requestMetadata `json:"metadata"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.SessionID == "" || req.Resource == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "session_id and resource are required"})
		return
	}
	action := authz.Action(req.Action)
	switch action {
	case authz.ActionRead, authz.ActionWrite, authz.ActionDelete:
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "action must be read, write, or delete"})
		return
	}

	d := s.eng.Process(r.Context(), req.SessionID, req.Resource, action, req.Metadata.toProfiler(r))
	outcome := "deny"
	if d.Authorized {
		outcome = "allow"
	}
	s.decisions.Inc(map[string]string{"action": string(action), "outcome": outcome})
	writeJSON(w, http.StatusOK, d)
}

func (s *server) handleObserve(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string          `json:"session_id"`
		Metadata  requestMetadata `json:"metadata"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.SessionID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "session_id is required"})
		return
	}
	p := s.eng.Observe(req.SessionID, req.Metadata.toProfiler(r))
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id":    p.SessionID,
		"user_id":       p.UserID,
		"access_level":  string(p.AccessLevel),
		"request_count": p.RequestCount,
		"trust_score":   p.TrustScore,
		"common_paths":  p.CommonPaths,
		"last_activity": p.LastActivity.UTC().Format(time.RFC3339),
	})
}

func (s *server) handleMasterVerify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BiometricType     string `json:"biometric_type"`
		Sample            []byte `json:"sample"` // base64 in JSON
		DeviceFingerprint string `json:"device_fingerprint"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.BiometricType == "" || len(req.Sample) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "biometric_type and sample are required"})
		return
	}
	res, err := s.verifier.Verify(r.Context(), masteraccess.BiometricSample{Type: req.BiometricType, Data: req.Sample}, req.DeviceFingerprint)
	if err != nil {
		log.Printf("[zerotrust] master verify: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "verification unavailable"})
		return
	}
	status := http.StatusOK
	if !res.Authorized {
		status = http.StatusUnauthorized
	}
	writeJSON(w, status, res)
}

func (s *server) handleMasterRegister(w http.ResponseWriter, r *http.Request) {
	if !s.bootstrapRegister && !s.requireAdminToken(w, r) {
		return
	}
	var req struct {
		AccessType    string     `json:"access_type"`
		AccessLevel   string     `json:"access_level"`
		BiometricType string     `json:"biometric_type"`
		Sample        []byte     `json:"sample"`
		ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	rec, err := s.verifier.Register(r.Context(), masteraccess.RegisterRequest{
		AccessType:  req.AccessType,
		AccessLevel: req.AccessLevel,
		Sample:      masteraccess.BiometricSample{Type: req.BiometricType, Data: req.Sample},
		ExpiresAt:   req.ExpiresAt,
	})
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *server) handleTimeLock(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdminToken(w, r) {
		return
	}
	var req struct {
		DurationHours float64 `json:"duration_hours"`
		Reason        string  `json:"reason"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.DurationHours <= 0 {
		req.DurationHours = 1
	}
	ok := s.eng.ActivateTimeLock(time.Duration(req.DurationHours*float64(time.Hour)), req.Reason)
	if !ok {
		writeJSON(w, http.StatusConflict, map[string]any{"activated": false, "error": "system is in secure shutdown mode"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"activated": true})
}

func (s *server) handleSelfDestruct(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token  string `json:"token"`
		Reason string `json:"reason"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Token == "" {
		req.Token = bearerToken(r)
	}
	if s.eng.TriggerSelfDestruct(r.Context(), req.Token, req.Reason) {
		writeJSON(w, http.StatusOK, map[string]any{"triggered": true})
		return
	}
	writeJSON(w, http.StatusForbidden, map[string]any{"triggered": false})
}

func (s *server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	events, err := s.store.ListRecentEvents(r.Context(), limit)
	if err != nil {
		log.Printf("[zerotrust] list events: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "event store unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events, "count": len(events)})
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "healthy",
		"service":         "zerotrust",
		"protocol_state":  s.eng.State().String(),
		"active_sessions": s.eng.ActiveSessions(),
	})
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

// requireAdminToken gates administrative endpoints on a live admin-level
// master token. It writes the error response itself when the check fails.
func (s *server) requireAdminToken(w http.ResponseWriter, r *http.Request) bool {
	token := bearerToken(r)
	if token == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "master token required"})
		return false
	}
	claims, err := s.issuer.Validate(r.Context(), token)
	if err != nil {
		status := http.StatusUnauthorized
		if errors.Is(err, masteraccess.ErrTokenRevoked) {
			status = http.StatusForbidden
		}
		writeJSON(w, status, map[string]string{"error": "invalid master token"})
		return false
	}
	if claims.AccessLevel != "admin" {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "admin access required"})
		return false
	}
	return true
}

func (s *server) routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /zerotrust/authorize", s.handleAuthorize)
	mux.HandleFunc("POST /zerotrust/observe", s.handleObserve)
	mux.HandleFunc("GET /zerotrust/events", s.handleEvents)
	mux.HandleFunc("POST /zerotrust/master/verify", s.handleMasterVerify)
	mux.HandleFunc("POST /zerotrust/master/register", s.handleMasterRegister)
	mux.HandleFunc("POST /zerotrust/protocol/timelock", s.handleTimeLock)
	mux.HandleFunc("POST /zerotrust/protocol/selfdestruct", s.handleSelfDestruct)
	mux.HandleFunc("GET /health", s.handleHealth)
}
