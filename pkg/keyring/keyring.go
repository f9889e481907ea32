// Package keyring manages the process-wide at-rest encryption key and its
// scheduled rotation. Payloads carry the ID of the key that sealed them, and
// retired keys stay resolvable for one rotation period so older records can
// still be opened.
package keyring

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

var (
	ErrUnknownKey = errors.New("unknown encryption key")
	ErrCorrupt    = errors.New("corrupt sealed payload")
)

// Keyring derives working keys from a master secret and rotates the active
// one on demand.
type Keyring struct {
	mu       sync.RWMutex
	master   []byte
	activeID string
	keys     map[string][]byte
	rotated  time.Time
}

type envelope struct {
	KeyID      string `json:"kid"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ct"`
}

// New builds a keyring from the master secret and derives the first key.
func New(master []byte) (*Keyring, error) {
	if len(master) < 16 {
		return nil, errors.New("master secret too short")
	}
	kr := &Keyring{
		master: append([]byte(nil), master...),
		keys:   make(map[string][]byte),
	}
	kr.rotateLocked()
	return kr, nil
}

// Rotate derives a fresh active key. The two most recent keys are kept; older
// derivations are dropped.
func (kr *Keyring) Rotate() string {
	kr.mu.Lock()
	defer kr.mu.Unlock()
	return kr.rotateLocked()
}

func (kr *Keyring) rotateLocked() string {
	previous := kr.activeID
	id := fmt.Sprintf("k-%d", time.Now().UnixNano())
	kr.keys[id] = argon2.IDKey(kr.master, []byte(id), 1, 64*1024, 4, chacha20poly1305.KeySize)
	for existing := range kr.keys {
		if existing != id && existing != previous {
			delete(kr.keys, existing)
		}
	}
	kr.activeID = id
	kr.rotated = time.Now()
	return id
}

// ActiveKeyID returns the ID of the key new payloads are sealed with.
func (kr *Keyring) ActiveKeyID() string {
	kr.mu.RLock()
	defer kr.mu.RUnlock()
	return kr.activeID
}

// LastRotated reports when the active key was derived.
func (kr *Keyring) LastRotated() time.Time {
	kr.mu.RLock()
	defer kr.mu.RUnlock()
	return kr.rotated
}

// Seal encrypts plaintext with the active key and returns a self-describing
// JSON envelope.
func (kr *Keyring) Seal(plaintext []byte) ([]byte, error) {
	kr.mu.RLock()
	id := kr.activeID
	key := kr.keys[id]
	kr.mu.RUnlock()

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	ct := aead.Seal(nil, nonce, plaintext, nil)
	return json.Marshal(envelope{
		KeyID:      id,
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(ct),
	})
}

// Open decrypts an envelope produced by Seal.
func (kr *Keyring) Open(sealed []byte) ([]byte, error) {
	var env envelope
	if err := json.Unmarshal(sealed, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	kr.mu.RLock()
	key, ok := kr.keys[env.KeyID]
	kr.mu.RUnlock()
	if !ok {
		return nil, ErrUnknownKey
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	nonce, err := base64.StdEncoding.DecodeString(env.Nonce)
	if err != nil {
		return nil, fmt.Errorf("%w: bad nonce", ErrCorrupt)
	}
	ct, err := base64.StdEncoding.DecodeString(env.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: bad ciphertext", ErrCorrupt)
	}
	pt, err := aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: open failed", ErrCorrupt)
	}
	return pt, nil
}
