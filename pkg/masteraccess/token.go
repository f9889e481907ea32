package masteraccess

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid master token")
	ErrTokenRevoked = errors.New("master token has been revoked")
)

// Claims carried by a master-access token.
type Claims struct {
	CredentialID      string `json:"credential_id"`
	AccessLevel       string `json:"access_level"`
	DeviceFingerprint string `json:"device_fingerprint,omitempty"`
	jwt.RegisteredClaims
}

// Issuer mints and validates the short-lived HMAC tokens returned by a
// successful master verification. A revoke-all watermark invalidates every
// token issued before a global lockdown.
type Issuer struct {
	secret  []byte
	ttl     time.Duration
	issuer  string
	revoked RevokedTokenStore

	mu        sync.RWMutex
	notBefore time.Time
}

// NewIssuer builds an issuer. A zero ttl defaults to 15 minutes; a nil
// revoked store gets an in-memory one.
func NewIssuer(secret []byte, ttl time.Duration, revoked RevokedTokenStore) (*Issuer, error) {
	if len(secret) < 32 {
		return nil, errors.New("token secret too short")
	}
	if ttl == 0 {
		ttl = 15 * time.Minute
	}
	if revoked == nil {
		revoked = NewInMemoryRevokedStore()
	}
	return &Issuer{secret: secret, ttl: ttl, issuer: "aegis-master", revoked: revoked}, nil
}

// Issue mints a fresh token for the verified credential.
func (i *Issuer) Issue(credentialID, accessLevel, deviceFingerprint string) (string, error) {
	now := time.Now()
	claims := Claims{
		CredentialID:      credentialID,
		AccessLevel:       accessLevel,
		DeviceFingerprint: deviceFingerprint,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign master token: %w", err)
	}
	return signed, nil
}

// Validate parses and checks a token: signature, expiry, issuer, the
// revoke-all watermark, and per-token revocation.
func (i *Issuer) Validate(ctx context.Context, tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithIssuer(i.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	i.mu.RLock()
	watermark := i.notBefore
	i.mu.RUnlock()
	if claims.IssuedAt != nil && claims.IssuedAt.Time.Before(watermark) {
		return nil, ErrTokenRevoked
	}

	revoked, err := i.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		// Fail closed when the revocation store is unreachable.
		return nil, fmt.Errorf("%w: revocation check failed: %v", ErrTokenRevoked, err)
	}
	if revoked {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

// Revoke invalidates one token.
func (i *Issuer) Revoke(ctx context.Context, claims *Claims) error {
	exp := time.Now().Add(i.ttl)
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}
	return i.revoked.Revoke(ctx, claims.ID, exp)
}

// RevokeAll invalidates every token issued up to now. Used when a global
// protocol fires.
func (i *Issuer) RevokeAll() {
	i.mu.Lock()
	i.notBefore = time.Now()
	i.mu.Unlock()
}
