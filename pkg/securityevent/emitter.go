package securityevent

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"

	"aegis/pkg/keyring"
	"aegis/pkg/ledger"
)

// Emitter assigns identity to events and writes them to the store and the
// local ledger. Both writes are best-effort: a failed write is logged and the
// caller's decision stands.
type Emitter struct {
	store        Store
	audit        *ledger.Ledger
	keys         *keyring.Keyring // when set, Details are sealed at rest
	writeTimeout time.Duration
}

// NewEmitter builds an emitter. audit and keys may be nil.
func NewEmitter(store Store, audit *ledger.Ledger, keys *keyring.Keyring) *Emitter {
	return &Emitter{store: store, audit: audit, keys: keys, writeTimeout: 3 * time.Second}
}

// Emit persists the event and returns it with ID and timestamp filled in.
func (e *Emitter) Emit(evt *Event) *Event {
	if evt.ID == "" {
		evt.ID = uuid.New().String()
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}

	if err := e.audit.Append("securityevent", string(evt.Type), evt); err != nil {
		log.Printf("[securityevent] ledger append failed: %v", err)
	}

	stored := evt
	if e.keys != nil && len(evt.Details) > 0 {
		if sealed, err := e.sealDetails(evt.Details); err == nil {
			cp := *evt
			cp.Details = map[string]any{"sealed": sealed}
			stored = &cp
		} else {
			log.Printf("[securityevent] seal details failed, storing plaintext: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.writeTimeout)
	defer cancel()
	if err := e.store.SaveSecurityEvent(ctx, stored); err != nil {
		log.Printf("[securityevent] store write failed for %s/%s: %v", evt.Type, evt.ID, err)
	}
	return evt
}

func (e *Emitter) sealDetails(details map[string]any) (string, error) {
	raw, err := json.Marshal(details)
	if err != nil {
		return "", err
	}
	sealed, err := e.keys.Seal(raw)
	if err != nil {
		return "", err
	}
	return string(sealed), nil
}
