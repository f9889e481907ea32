// Package protocol holds the process-wide lockdown state machine:
//
//	Normal -> TimeLocked -> Normal   (lapses at expiry, no explicit unlock)
//	Normal/TimeLocked -> Destroyed   (absorbing, lasts until process restart)
//
// Transitions are atomic with respect to concurrent authorization checks:
// once a transition commits, no subsequently evaluated request observes the
// previous state.
package protocol

import (
	"errors"
	"sync"
	"time"
)

// State is the current global protocol state.
type State int

const (
	StateNormal State = iota
	StateTimeLocked
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateTimeLocked:
		return "time_locked"
	case StateDestroyed:
		return "destroyed"
	default:
		return "normal"
	}
}

var ErrDestroyed = errors.New("system is in secure shutdown mode")

const (
	ReasonTimeLock     = "Time lock active"
	ReasonSelfDestruct = "System in secure shutdown mode"
)

// Controller guards the state transitions.
type Controller struct {
	mu         sync.Mutex
	state      State
	lockExpiry time.Time
	lockReason string
	now        func() time.Time
}

// NewController starts in the normal state.
func NewController() *Controller {
	return &Controller{now: time.Now}
}

// Current returns the state, lapsing an expired time lock first.
func (c *Controller) Current() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentLocked()
}

func (c *Controller) currentLocked() State {
	if c.state == StateTimeLocked && !c.now().Before(c.lockExpiry) {
		c.state = StateNormal
		c.lockReason = ""
	}
	return c.state
}

// Gate reports whether authorization is globally denied and why.
func (c *Controller) Gate() (denied bool, reason string) {
	switch c.Current() {
	case StateTimeLocked:
		return true, ReasonTimeLock
	case StateDestroyed:
		return true, ReasonSelfDestruct
	default:
		return false, ""
	}
}

// ActivateTimeLock freezes authorization for the duration. It fails once the
// system is destroyed; re-locking while locked extends the expiry.
func (c *Controller) ActivateTimeLock(d time.Duration, reason string) (time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.currentLocked() == StateDestroyed {
		return time.Time{}, ErrDestroyed
	}
	c.state = StateTimeLocked
	c.lockExpiry = c.now().Add(d)
	c.lockReason = reason
	return c.lockExpiry, nil
}

// Destroy moves to the absorbing terminal state. Idempotent.
func (c *Controller) Destroy() {
	c.mu.Lock()
	c.state = StateDestroyed
	c.mu.Unlock()
}

// LockExpiry returns the time-lock expiry, meaningful only while locked.
func (c *Controller) LockExpiry() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lockExpiry
}
