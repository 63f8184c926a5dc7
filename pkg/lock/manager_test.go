package lock

import (
	"testing"
	"time"

	"github.com/yongfeilu/Disk-Oriented-Concurrency-Control-Storage-Manager/pkg/dberrors"
	"github.com/yongfeilu/Disk-Oriented-Concurrency-Control-Storage-Manager/pkg/rid"
	"github.com/yongfeilu/Disk-Oriented-Concurrency-Control-Storage-Manager/pkg/txn"
)

func newManager() (*Manager, *txn.Registry) {
	reg := txn.NewRegistry()
	return NewManager(reg), reg
}

func TestSharedLocksAreCompatible(t *testing.T) {
	m, reg := newManager()
	r := rid.New(1, 0)

	t1 := reg.Begin(txn.RepeatableRead)
	t2 := reg.Begin(txn.RepeatableRead)

	if err := m.LockShared(t1, r); err != nil {
		t.Fatalf("t1 LockShared: %v", err)
	}
	if err := m.LockShared(t2, r); err != nil {
		t.Fatalf("t2 LockShared: %v", err)
	}
}

func TestExclusiveQueuesBehindExclusive(t *testing.T) {
	m, reg := newManager()
	r := rid.New(1, 0)

	t1 := reg.Begin(txn.RepeatableRead)
	t2 := reg.Begin(txn.RepeatableRead)

	if err := m.LockExclusive(t1, r); err != nil {
		t.Fatalf("t1 LockExclusive: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- m.LockExclusive(t2, r) }()

	select {
	case err := <-done:
		t.Fatalf("t2 LockExclusive returned early (err=%v) while t1 (older) still holds the lock", err)
	case <-time.After(50 * time.Millisecond):
	}

	if err := m.Unlock(t1, r); err != nil {
		t.Fatalf("t1 Unlock: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("t2 LockExclusive after t1 unlock: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("t2 never acquired the lock after t1 released it")
	}
}

func TestOlderTransactionWoundsYoungerHolder(t *testing.T) {
	m, reg := newManager()
	r := rid.New(1, 0)

	t1 := reg.Begin(txn.RepeatableRead) // older
	t3 := reg.Begin(txn.RepeatableRead) // younger

	if err := m.LockExclusive(t3, r); err != nil {
		t.Fatalf("t3 LockExclusive: %v", err)
	}

	err := m.LockExclusive(t1, r)
	if err != nil {
		t.Fatalf("older t1 LockExclusive should wound younger holder and proceed: %v", err)
	}
	if t3.State() != txn.Aborted {
		t.Fatalf("t3 state = %s, want ABORTED after being wounded", t3.State())
	}
}

func TestOlderTransactionWoundsYoungerQueuedWaiter(t *testing.T) {
	m, reg := newManager()
	r := rid.New(1, 0)

	t0 := reg.Begin(txn.RepeatableRead)     // oldest, holds the lock
	tOld := reg.Begin(txn.RepeatableRead)   // older of the two waiters
	tYoung := reg.Begin(txn.RepeatableRead) // younger of the two waiters

	if err := m.LockExclusive(t0, r); err != nil {
		t.Fatalf("t0 LockExclusive: %v", err)
	}

	youngDone := make(chan error, 1)
	go func() { youngDone <- m.LockExclusive(tYoung, r) }()
	time.Sleep(20 * time.Millisecond) // let tYoung queue behind t0, ungranted

	oldDone := make(chan error, 1)
	go func() { oldDone <- m.LockExclusive(tOld, r) }()

	// tOld must wound tYoung's still-queued (ungranted) request on sight,
	// not merely race it once t0 releases — two simultaneously queued,
	// mutually conflicting waiters must resolve deterministically in id
	// order rather than whoever's goroutine happens to be scheduled first.
	select {
	case err := <-youngDone:
		if _, ok := err.(*dberrors.TransactionAbortError); !ok {
			t.Fatalf("younger queued waiter should be wounded with an abort error, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("younger queued waiter was never wounded")
	}
	if tYoung.State() != txn.Aborted {
		t.Fatalf("tYoung state = %s, want ABORTED", tYoung.State())
	}

	if err := m.Unlock(t0, r); err != nil {
		t.Fatalf("t0 Unlock: %v", err)
	}
	select {
	case err := <-oldDone:
		if err != nil {
			t.Fatalf("tOld LockExclusive after t0 released: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("tOld never acquired the lock")
	}
}

func TestYoungerRequesterWaitsForOlderHolder(t *testing.T) {
	m, reg := newManager()
	r := rid.New(1, 0)

	t1 := reg.Begin(txn.RepeatableRead) // older
	t3 := reg.Begin(txn.RepeatableRead) // younger

	if err := m.LockExclusive(t1, r); err != nil {
		t.Fatalf("t1 LockExclusive: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- m.LockExclusive(t3, r) }()

	select {
	case <-done:
		t.Fatalf("younger t3 must not acquire the lock while older t1 holds it")
	case <-time.After(50 * time.Millisecond):
	}

	if err := m.Unlock(t1, r); err != nil {
		t.Fatalf("t1 Unlock: %v", err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("t3 LockExclusive after t1 released: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("t3 never acquired the lock")
	}
}

func TestSharedToExclusiveUpgrade(t *testing.T) {
	m, reg := newManager()
	r := rid.New(1, 0)

	t1 := reg.Begin(txn.RepeatableRead)
	if err := m.LockShared(t1, r); err != nil {
		t.Fatalf("LockShared: %v", err)
	}
	if err := m.LockUpgrade(t1, r); err != nil {
		t.Fatalf("LockUpgrade: %v", err)
	}
	if !t1.HasExclusiveLock(r) || t1.HasSharedLock(r) {
		t.Fatalf("after upgrade: shared=%v exclusive=%v, want shared=false exclusive=true",
			t1.HasSharedLock(r), t1.HasExclusiveLock(r))
	}
}

func TestConcurrentUpgradeConflict(t *testing.T) {
	m, reg := newManager()
	r := rid.New(1, 0)

	t1 := reg.Begin(txn.RepeatableRead)
	t2 := reg.Begin(txn.RepeatableRead)

	if err := m.LockShared(t1, r); err != nil {
		t.Fatalf("t1 LockShared: %v", err)
	}
	if err := m.LockShared(t2, r); err != nil {
		t.Fatalf("t2 LockShared: %v", err)
	}

	// The younger t2 upgrades first and waits behind the older t1's shared
	// lock, leaving its upgrade pending on r.
	errCh := make(chan error, 1)
	go func() { errCh <- m.LockUpgrade(t2, r) }()

	time.Sleep(20 * time.Millisecond)
	err := m.LockUpgrade(t1, r)
	abortErr, ok := err.(*dberrors.TransactionAbortError)
	if !ok {
		t.Fatalf("concurrent LockUpgrade should abort the second caller, got %v", err)
	}
	if abortErr.Reason != dberrors.UpgradeConflict {
		t.Fatalf("abort reason = %v, want UpgradeConflict", abortErr.Reason)
	}

	// A LockManager abort only marks the transaction aborted; releasing its
	// remaining locks is the caller's (transaction manager's) job, same as
	// every other abort path here.
	m.UnlockAll(t1)

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("t2 upgrade after t1's lock released: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("t2 upgrade never completed")
	}
}

func TestLockOnShrinkingAborts(t *testing.T) {
	m, reg := newManager()
	r1 := rid.New(1, 0)
	r2 := rid.New(1, 1)

	t1 := reg.Begin(txn.RepeatableRead)
	if err := m.LockExclusive(t1, r1); err != nil {
		t.Fatalf("LockExclusive r1: %v", err)
	}
	if err := m.Unlock(t1, r1); err != nil {
		t.Fatalf("Unlock r1: %v", err)
	}
	if t1.State() != txn.Shrinking {
		t.Fatalf("state after first unlock = %s, want SHRINKING", t1.State())
	}

	err := m.LockExclusive(t1, r2)
	abortErr, ok := err.(*dberrors.TransactionAbortError)
	if !ok {
		t.Fatalf("locking during SHRINKING should abort, got %v", err)
	}
	if abortErr.Reason != dberrors.LockOnShrinking {
		t.Fatalf("abort reason = %v, want LockOnShrinking", abortErr.Reason)
	}
}
