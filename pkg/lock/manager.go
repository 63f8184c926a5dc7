package lock

import (
	"fmt"
	"sync"

	"github.com/yongfeilu/Disk-Oriented-Concurrency-Control-Storage-Manager/pkg/dberrors"
	"github.com/yongfeilu/Disk-Oriented-Concurrency-Control-Storage-Manager/pkg/rid"
	"github.com/yongfeilu/Disk-Oriented-Concurrency-Control-Storage-Manager/pkg/txn"
)

// Manager grants and releases row-level shared/exclusive locks under 2PL
// with wound-wait deadlock prevention (see doc.go). It needs a *txn.Registry
// so that wounding a holder can reach into that holder's Transaction and
// force it into the Aborted state.
type Manager struct {
	mu       sync.Mutex
	queues   map[rid.RID]*requestQueue
	registry *txn.Registry
}

func NewManager(registry *txn.Registry) *Manager {
	return &Manager{
		queues:   make(map[rid.RID]*requestQueue),
		registry: registry,
	}
}

func (m *Manager) queueFor(r rid.RID) *requestQueue {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.queues[r]
	if !ok {
		q = newRequestQueue()
		m.queues[r] = q
	}
	return q
}

// LockShared acquires a shared lock on r for t, blocking until granted.
// READ_UNCOMMITTED transactions never take shared locks — calling this
// under that isolation level is a caller error, not a wait condition.
func (m *Manager) LockShared(t *txn.Transaction, r rid.RID) error {
	if t.Isolation() == txn.ReadUncommitted {
		return fmt.Errorf("lock: read-uncommitted transactions must not request shared locks")
	}
	if t.HasSharedLock(r) || t.HasExclusiveLock(r) {
		return nil
	}
	if t.State() == txn.Shrinking {
		t.SetState(txn.Aborted)
		return dberrors.NewTransactionAbortError(t.ID(), dberrors.LockOnShrinking)
	}

	q := m.queueFor(r)
	q.mu.Lock()
	defer q.mu.Unlock()

	req := &request{txnID: t.ID(), mode: Shared}
	q.requests = append(q.requests, req)

	for {
		if t.State() == txn.Aborted {
			q.removeRequest(req)
			q.cond.Broadcast()
			return dberrors.NewTransactionAbortError(t.ID(), dberrors.Deadlock)
		}
		if q.woundYoungerConflicting(t.ID(), Shared, m.registry) {
			q.cond.Broadcast()
		}
		if q.canGrant(req) {
			req.granted = true
			t.AddSharedLock(r)
			return nil
		}
		q.cond.Wait()
	}
}

// LockExclusive acquires an exclusive lock on r for t, blocking until
// granted.
func (m *Manager) LockExclusive(t *txn.Transaction, r rid.RID) error {
	if t.HasExclusiveLock(r) {
		return nil
	}
	if t.State() == txn.Shrinking {
		t.SetState(txn.Aborted)
		return dberrors.NewTransactionAbortError(t.ID(), dberrors.LockOnShrinking)
	}

	q := m.queueFor(r)
	q.mu.Lock()
	defer q.mu.Unlock()

	req := &request{txnID: t.ID(), mode: Exclusive}
	q.requests = append(q.requests, req)

	for {
		if t.State() == txn.Aborted {
			q.removeRequest(req)
			q.cond.Broadcast()
			return dberrors.NewTransactionAbortError(t.ID(), dberrors.Deadlock)
		}
		if q.woundYoungerConflicting(t.ID(), Exclusive, m.registry) {
			q.cond.Broadcast()
		}
		if q.canGrant(req) {
			req.granted = true
			t.AddExclusiveLock(r)
			return nil
		}
		q.cond.Wait()
	}
}

// LockUpgrade promotes t's shared lock on r to exclusive. At most one
// upgrade may be outstanding per row at a time; a second transaction trying
// to upgrade concurrently is aborted with UpgradeConflict rather than
// queued, since letting two upgrades both wait risks each forever blocking
// on the other's shared lock.
func (m *Manager) LockUpgrade(t *txn.Transaction, r rid.RID) error {
	if t.HasExclusiveLock(r) {
		return nil
	}
	if !t.HasSharedLock(r) {
		return fmt.Errorf("lock: %s has no shared lock on %s to upgrade", t.ID(), r)
	}
	if t.State() == txn.Shrinking {
		t.SetState(txn.Aborted)
		return dberrors.NewTransactionAbortError(t.ID(), dberrors.LockOnShrinking)
	}

	q := m.queueFor(r)
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.upgrading != 0 && q.upgrading != t.ID() {
		t.SetState(txn.Aborted)
		return dberrors.NewTransactionAbortError(t.ID(), dberrors.UpgradeConflict)
	}
	q.upgrading = t.ID()
	defer func() {
		if q.upgrading == t.ID() {
			q.upgrading = 0
		}
	}()

	req := &request{txnID: t.ID(), mode: Exclusive}
	q.requests = append(q.requests, req)

	for {
		if t.State() == txn.Aborted {
			q.removeRequest(req)
			q.cond.Broadcast()
			return dberrors.NewTransactionAbortError(t.ID(), dberrors.Deadlock)
		}
		if q.woundYoungerConflicting(t.ID(), Exclusive, m.registry) {
			q.cond.Broadcast()
		}
		if q.canGrant(req) {
			q.removeGrantedByTxn(t.ID())
			req.granted = true
			t.RemoveSharedLock(r)
			t.AddExclusiveLock(r)
			return nil
		}
		q.cond.Wait()
	}
}

// Unlock releases t's lock on r. Under REPEATABLE_READ, the first Unlock
// call of a transaction's lifetime moves it from GROWING to SHRINKING; no
// further locks may be acquired after that. READ_COMMITTED and
// READ_UNCOMMITTED transactions stay GROWING and may lock again.
func (m *Manager) Unlock(t *txn.Transaction, r rid.RID) error {
	if !t.HasSharedLock(r) && !t.HasExclusiveLock(r) {
		return fmt.Errorf("lock: %s holds no lock on %s to release", t.ID(), r)
	}

	q := m.queueFor(r)
	q.mu.Lock()
	q.removeGrantedByTxn(t.ID())
	q.cond.Broadcast()
	q.mu.Unlock()

	t.RemoveSharedLock(r)
	t.RemoveExclusiveLock(r)

	if t.State() == txn.Growing && t.Isolation() == txn.RepeatableRead {
		t.SetState(txn.Shrinking)
	}
	return nil
}

// UnlockAll releases every lock t currently holds, used on commit or
// abort.
func (m *Manager) UnlockAll(t *txn.Transaction) {
	for _, r := range t.SharedLockSet() {
		_ = m.Unlock(t, r)
	}
	for _, r := range t.ExclusiveLockSet() {
		_ = m.Unlock(t, r)
	}
}
