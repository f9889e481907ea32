// Package masteraccess verifies privileged biometric credentials and issues
// the short-lived tokens that gate the global protective protocols.
package masteraccess

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"aegis/pkg/securityevent"
)

// BiometricSample is a presented credential: the raw sample bytes plus the
// biometric type they claim to be.
type BiometricSample struct {
	Type string `json:"type"` // face|fingerprint|retina|voice|multi
	Data []byte `json:"data"`
}

// Result is the outcome of a verification attempt.
type Result struct {
	Authorized  bool   `json:"authorized"`
	AccessLevel string `json:"access_level,omitempty"`
	Token       string `json:"token,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// Gate is the slice of global protocol state the verifier needs.
type Gate interface {
	Gate() (denied bool, reason string)
}

// Verifier authorizes master identities against stored biometric hashes.
type Verifier struct {
	store  securityevent.Store
	events *securityevent.Emitter
	issuer *Issuer
	gate   Gate
}

// NewVerifier wires the verifier to its collaborators.
func NewVerifier(store securityevent.Store, events *securityevent.Emitter, issuer *Issuer, gate Gate) *Verifier {
	return &Verifier{store: store, events: events, issuer: issuer, gate: gate}
}

// Verify checks a presented sample against every active credential of the
// same biometric type. Verification is refused outright while a global
// protocol is active.
func (v *Verifier) Verify(ctx context.Context, sample BiometricSample, deviceFingerprint string) (Result, error) {
	if denied, reason := v.gate.Gate(); denied {
		return Result{Reason: reason}, nil
	}

	records, err := v.store.ListMasterAccessByBiometricType(ctx, sample.Type)
	if err != nil {
		return Result{}, fmt.Errorf("list master access records: %w", err)
	}
	if len(records) == 0 {
		v.emitFailure(securityevent.SeverityHigh, deviceFingerprint, "no registered credentials for biometric type "+sample.Type)
		return Result{Reason: "No matching biometric access records"}, nil
	}

	var matched *securityevent.MasterAccess
	for _, rec := range records {
		if rec.Status != securityevent.StatusActive {
			continue
		}
		if VerifySample(sample.Data, rec.BiometricHash) {
			matched = rec
			break
		}
	}
	if matched == nil {
		v.emitFailure(securityevent.SeverityHigh, deviceFingerprint, "sample did not match any active credential")
		return Result{Reason: "Biometric verification failed"}, nil
	}

	if matched.ExpiresAt != nil && matched.ExpiresAt.Before(time.Now()) {
		v.emitFailure(securityevent.SeverityMedium, deviceFingerprint, "credential "+matched.ID+" expired")
		return Result{Reason: "Biometric credentials expired"}, nil
	}

	now := time.Now().UTC()
	matched.LastVerified = &now
	if err := v.store.UpdateMasterAccess(ctx, matched.ID, matched); err != nil {
		// Audit bookkeeping only; the verification itself stands.
		v.events.Emit(&securityevent.Event{
			Type:     securityevent.TypeBiometricFailure,
			Severity: securityevent.SeverityLow,
			Source:   securityevent.Source{UserAgent: deviceFingerprint},
			Details:  map[string]any{"update_error": err.Error(), "credential_id": matched.ID},
			Resolved: true,
		})
	}

	token, err := v.issuer.Issue(matched.ID, matched.AccessLevel, deviceFingerprint)
	if err != nil {
		return Result{}, fmt.Errorf("issue master token: %w", err)
	}

	v.events.Emit(&securityevent.Event{
		Type:     securityevent.TypeMasterAccessGranted,
		Severity: securityevent.SeverityLow,
		Source:   securityevent.Source{UserAgent: deviceFingerprint},
		Details: map[string]any{
			"credential_id":  matched.ID,
			"biometric_type": matched.BiometricType,
			"access_level":   matched.AccessLevel,
		},
		Resolved: true,
	})

	return Result{Authorized: true, AccessLevel: matched.AccessLevel, Token: token}, nil
}

// RegisterRequest describes a credential to enroll.
type RegisterRequest struct {
	AccessType  string
	AccessLevel string
	Sample      BiometricSample
	ExpiresAt   *time.Time
}

// Register hashes the sample and persists a new active credential.
func (v *Verifier) Register(ctx context.Context, req RegisterRequest) (*securityevent.MasterAccess, error) {
	if req.Sample.Type == "" || len(req.Sample.Data) == 0 {
		return nil, errors.New("biometric sample is required")
	}
	hash, err := HashSample(req.Sample.Data)
	if err != nil {
		return nil, fmt.Errorf("hash biometric sample: %w", err)
	}
	rec := &securityevent.MasterAccess{
		ID:            uuid.New().String(),
		AccessType:    req.AccessType,
		AccessLevel:   req.AccessLevel,
		BiometricType: req.Sample.Type,
		BiometricHash: hash,
		ExpiresAt:     req.ExpiresAt,
		Status:        securityevent.StatusActive,
	}
	if err := v.store.CreateMasterAccess(ctx, rec); err != nil {
		return nil, fmt.Errorf("create master access record: %w", err)
	}
	return rec, nil
}

func (v *Verifier) emitFailure(severity securityevent.Severity, deviceFingerprint, pattern string) {
	v.events.Emit(&securityevent.Event{
		Type:     securityevent.TypeBiometricFailure,
		Severity: severity,
		Source:   securityevent.Source{UserAgent: deviceFingerprint, BehavioralPattern: pattern},
	})
}
