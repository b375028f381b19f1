package project

import (
	"errors"
	"testing"
	"time"

	"github.com/inkwell-md/inkwell/internal/doc"
)

func TestAcquireOrRenewMutualExclusion(t *testing.T) {
	f := newFile(0, 0, "test", "", nil, "")
	now := time.Now()

	if err := f.AcquireOrRenew(1, now, time.Second); err != nil {
		t.Fatalf("First acquire should succeed: %v", err)
	}

	err := f.AcquireOrRenew(2, now.Add(100*time.Millisecond), time.Second)
	var locked *LockedError
	if !errors.As(err, &locked) {
		t.Fatalf("Expected LockedError, got %v", err)
	}
	if locked.Lock.By != 1 {
		t.Errorf("Lock should surface the holder, got editor %d", locked.Lock.By)
	}
	if locked.Lock.Remaining(now.Add(100*time.Millisecond)) <= 0 {
		t.Error("A live lock should report remaining TTL")
	}

	// The failed attempt must not steal the lock
	if f.lock.By != 1 {
		t.Errorf("Lock holder changed to %d after rejected acquire", f.lock.By)
	}
}

func TestAcquireOrRenewSameEditor(t *testing.T) {
	f := newFile(0, 0, "test", "", nil, "")
	now := time.Now()

	if err := f.AcquireOrRenew(1, now, time.Second); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if err := f.AcquireOrRenew(1, now.Add(500*time.Millisecond), time.Second); err != nil {
		t.Fatalf("Holder should renew its own lock: %v", err)
	}
	if got := f.lock.AcquiredAt; !got.Equal(now.Add(500 * time.Millisecond)) {
		t.Error("Renewal should restart the TTL window")
	}
}

func TestExpiredLockSelfHeals(t *testing.T) {
	f := newFile(0, 0, "test", "", nil, "")
	now := time.Now()

	if err := f.AcquireOrRenew(1, now, time.Second); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	// No release message needed: editor 2 preempts the expired lock
	later := now.Add(2 * time.Second)
	if err := f.AcquireOrRenew(2, later, time.Second); err != nil {
		t.Fatalf("Expired lock should yield to another editor: %v", err)
	}
	if f.lock.By != 2 {
		t.Errorf("Expected editor 2 to hold the lock, got %d", f.lock.By)
	}
}

func TestLockExpiryBoundary(t *testing.T) {
	now := time.Now()
	l := Lock{By: 1, AcquiredAt: now, TTL: time.Second}

	if !l.Live(now) {
		t.Error("Lock should be live at acquisition")
	}
	if !l.Live(now.Add(999 * time.Millisecond)) {
		t.Error("Lock should be live just before expiry")
	}
	// now >= acquired_at + ttl means expired
	if l.Live(now.Add(time.Second)) {
		t.Error("Lock should be expired exactly at acquired_at+ttl")
	}
}

func TestRejectedEditDoesNotMutateSource(t *testing.T) {
	f := newFile(0, 0, "test", "original", nil, "")
	now := time.Now()

	if err := f.AcquireOrRenew(1, now, time.Second); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	_, err := f.Edit(2, now.Add(10*time.Millisecond), "stolen", time.Second)
	var locked *LockedError
	if !errors.As(err, &locked) {
		t.Fatalf("Expected LockedError, got %v", err)
	}
	if f.src != "original" {
		t.Errorf("Rejected edit mutated source to %q", f.src)
	}
	if f.lastSourceChange != nil {
		t.Error("Rejected edit should not record a change")
	}
}

func TestCompiledStateMachine(t *testing.T) {
	var c Compiled

	if c.Status() != CompileAbsent {
		t.Errorf("New state should be absent, got %v", c.Status())
	}
	if _, ok := c.Tree(); ok {
		t.Error("Absent state should have no artifact")
	}

	// Absent stays absent on edit
	c.MarkStale()
	if c.Status() != CompileAbsent {
		t.Errorf("MarkStale on absent should stay absent, got %v", c.Status())
	}

	c.SetFresh(&doc.Tree{})
	if c.Status() != CompileFresh {
		t.Errorf("Expected fresh after compile, got %v", c.Status())
	}

	// An edit demotes fresh to stale but keeps the artifact displayable
	c.MarkStale()
	if c.Status() != CompileStale {
		t.Errorf("Expected stale after edit, got %v", c.Status())
	}
	if _, ok := c.Tree(); !ok {
		t.Error("Stale state should keep the previous artifact")
	}
}
