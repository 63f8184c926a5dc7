package txn

import (
	"testing"

	"github.com/yongfeilu/Disk-Oriented-Concurrency-Control-Storage-Manager/pkg/rid"
)

func TestIDOrderingReflectsCreationOrder(t *testing.T) {
	a := NewID()
	b := NewID()
	if !a.OlderThan(b) {
		t.Fatalf("expected %s to be older than %s", a, b)
	}
	if b.OlderThan(a) {
		t.Fatalf("%s must not be older than %s", b, a)
	}
}

func TestTransactionLockSetTracking(t *testing.T) {
	tx := New(RepeatableRead)
	r := rid.New(1, 0)

	if tx.HasSharedLock(r) {
		t.Fatalf("fresh transaction should not hold any lock")
	}

	tx.AddSharedLock(r)
	if !tx.HasSharedLock(r) {
		t.Fatalf("expected shared lock on %s", r)
	}

	tx.RemoveSharedLock(r)
	tx.AddExclusiveLock(r)
	if !tx.HasExclusiveLock(r) {
		t.Fatalf("expected exclusive lock on %s", r)
	}
	if tx.HasSharedLock(r) {
		t.Fatalf("shared lock should have been cleared on upgrade")
	}
}

func TestStateTransitions(t *testing.T) {
	tx := New(ReadCommitted)
	if tx.State() != Growing {
		t.Fatalf("new transaction state = %s, want GROWING", tx.State())
	}
	tx.SetState(Shrinking)
	if tx.State() != Shrinking {
		t.Fatalf("state after SetState(Shrinking) = %s", tx.State())
	}
}

func TestRegistryBeginGetRemove(t *testing.T) {
	reg := NewRegistry()
	tx := reg.Begin(RepeatableRead)

	got, err := reg.Get(tx.ID())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != tx {
		t.Fatalf("Get returned a different transaction")
	}

	reg.Remove(tx.ID())
	if _, err := reg.Get(tx.ID()); err == nil {
		t.Fatalf("expected error after Remove")
	}
}
