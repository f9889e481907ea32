// Package securityevent defines the append-only audit records produced by the
// engine and the narrow persistence interface they are written through.
package securityevent

import (
	"context"
	"time"
)

// Type classifies a security event.
type Type string

const (
	TypeHoneytrapTrigger    Type = "honeytrap_trigger"
	TypeSuspiciousBehavior  Type = "suspicious_behavior"
	TypeZeroTrustViolation  Type = "zero_trust_violation"
	TypeBiometricFailure    Type = "biometric_failure"
	TypeDataExfiltration    Type = "data_exfiltration_attempt"
	TypeUnauthorizedAccess  Type = "unauthorized_access"
	TypeTimeLockActivated   Type = "time_lock_activated"
	TypeMasterAccessGranted Type = "master_access_granted"
)

// Severity grades a security event.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Source identifies where an event originated. Sessions are ephemeral and
// events permanent, so the link is by IP and user, not a foreign key.
type Source struct {
	IP                string `json:"ip"`
	UserAgent         string `json:"user_agent"`
	UserID            string `json:"user_id,omitempty"`
	BehavioralPattern string `json:"behavioral_pattern,omitempty"`
}

// Event is immutable once persisted.
type Event struct {
	ID                string         `json:"id"`
	Type              Type           `json:"type"`
	Severity          Severity       `json:"severity"`
	Source            Source         `json:"source"`
	Details           map[string]any `json:"details,omitempty"`
	MitigationApplied []string       `json:"mitigation_applied,omitempty"`
	Resolved          bool           `json:"resolved"`
	Timestamp         time.Time      `json:"timestamp"`
}

// MasterAccess is a registered privileged biometric credential.
type MasterAccess struct {
	ID            string     `json:"id"`
	AccessType    string     `json:"access_type"`
	AccessLevel   string     `json:"access_level"`
	BiometricType string     `json:"biometric_type"` // face|fingerprint|retina|voice|multi
	BiometricHash string     `json:"-"`
	LastVerified  *time.Time `json:"last_verified,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"` // nil means no expiry
	Status        string     `json:"status"`               // active|revoked
}

const (
	StatusActive  = "active"
	StatusRevoked = "revoked"
)

// Store is the persistence collaborator. Event writes are best-effort audit,
// never a gate on the authorization decision already computed.
type Store interface {
	SaveSecurityEvent(ctx context.Context, evt *Event) error
	ListRecentEvents(ctx context.Context, limit int) ([]*Event, error)
	ListMasterAccessByBiometricType(ctx context.Context, biometricType string) ([]*MasterAccess, error)
	CreateMasterAccess(ctx context.Context, rec *MasterAccess) error
	UpdateMasterAccess(ctx context.Context, id string, rec *MasterAccess) error
}
