// Package ledger appends JSON-line audit records to a local file. It is the
// forensic fallback trail kept alongside the security-event store.
package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Record is one append-only audit line.
type Record struct {
	Timestamp string `json:"ts"`
	Component string `json:"component"`
	Kind      string `json:"kind"`
	Data      any    `json:"data,omitempty"`
}

// Ledger serializes appends to a single file.
type Ledger struct {
	mu   sync.Mutex
	path string
}

// New returns a ledger writing to path. An empty path disables the ledger;
// Append becomes a no-op.
func New(path string) *Ledger {
	return &Ledger{path: path}
}

// Append writes one record, creating parent directories as needed.
func (l *Ledger) Append(component, kind string, data any) error {
	if l == nil || l.path == "" {
		return nil
	}
	if component == "" {
		return errors.New("component is empty")
	}
	rec := Record{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Component: component,
		Kind:      kind,
		Data:      data,
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal ledger record: %w", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(payload, '\n')); err != nil {
		return fmt.Errorf("write ledger: %w", err)
	}
	return nil
}
