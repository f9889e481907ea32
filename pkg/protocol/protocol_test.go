package protocol

import (
	"testing"
	"time"
)

func TestTimeLockLapsesAutomatically(t *testing.T) {
	c := NewController()
	base := time.Now()
	c.now = func() time.Time { return base }

	if _, err := c.ActivateTimeLock(time.Hour, "maintenance"); err != nil {
		t.Fatalf("ActivateTimeLock: %v", err)
	}
	if denied, reason := c.Gate(); !denied || reason != ReasonTimeLock {
		t.Errorf("Gate during lock = %v/%q", denied, reason)
	}

	c.now = func() time.Time { return base.Add(61 * time.Minute) }
	if denied, _ := c.Gate(); denied {
		t.Error("lock should lapse after expiry with no explicit unlock")
	}
	if c.Current() != StateNormal {
		t.Errorf("state = %v, want normal", c.Current())
	}
}

func TestDestroyedIsAbsorbing(t *testing.T) {
	c := NewController()
	c.Destroy()

	if denied, reason := c.Gate(); !denied || reason != ReasonSelfDestruct {
		t.Errorf("Gate after destroy = %v/%q", denied, reason)
	}
	if _, err := c.ActivateTimeLock(time.Hour, "late"); err == nil {
		t.Error("time lock must be rejected once destroyed")
	}
	// Still destroyed regardless of time passing.
	if c.Current() != StateDestroyed {
		t.Error("destroyed state must never clear")
	}
}

func TestDestroyWinsOverTimeLock(t *testing.T) {
	c := NewController()
	if _, err := c.ActivateTimeLock(time.Hour, "first"); err != nil {
		t.Fatalf("ActivateTimeLock: %v", err)
	}
	c.Destroy()
	if _, reason := c.Gate(); reason != ReasonSelfDestruct {
		t.Errorf("reason = %q, want self-destruct to shadow time lock", reason)
	}
}
