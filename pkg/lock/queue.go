package lock

import (
	"sync"

	"github.com/yongfeilu/Disk-Oriented-Concurrency-Control-Storage-Manager/pkg/dblog"
	"github.com/yongfeilu/Disk-Oriented-Concurrency-Control-Storage-Manager/pkg/txn"
)

// Mode is the granularity of a row lock.
type Mode int

const (
	Shared Mode = iota
	Exclusive
)

func (m Mode) String() string {
	if m == Shared {
		return "SHARED"
	}
	return "EXCLUSIVE"
}

// request is one transaction's pending or granted claim on a row.
type request struct {
	txnID   txn.ID
	mode    Mode
	granted bool
}

// requestQueue is the FIFO of requests — granted and pending — for a single
// RID. Apart from the brief map lookup in Manager.queueFor, every
// LockManager method that touches a row holds only the queue's own mutex,
// never the manager's, so rows with no contention between them never block
// each other while waiting.
type requestQueue struct {
	mu        sync.Mutex
	cond      *sync.Cond
	requests  []*request
	upgrading txn.ID // zero value means no upgrade currently in flight
}

func newRequestQueue() *requestQueue {
	q := &requestQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// removeRequest drops req from the queue. Caller must hold q.mu.
func (q *requestQueue) removeRequest(target *request) {
	for i, r := range q.requests {
		if r == target {
			q.requests = append(q.requests[:i], q.requests[i+1:]...)
			return
		}
	}
}

// removeGrantedByTxn drops the (at most one) granted request belonging to
// txnID, used when an upgrade replaces a shared grant with an exclusive
// one. Caller must hold q.mu.
func (q *requestQueue) removeGrantedByTxn(txnID txn.ID) {
	for i, r := range q.requests {
		if r.granted && r.txnID == txnID {
			q.requests = append(q.requests[:i], q.requests[i+1:]...)
			return
		}
	}
}

// canGrant reports whether req — not yet granted — is compatible with every
// other transaction's currently granted request.
func (q *requestQueue) canGrant(req *request) bool {
	for _, r := range q.requests {
		if r == req || !r.granted || r.txnID == req.txnID {
			continue
		}
		if conflicts(req.mode, r.mode) {
			return false
		}
	}
	return true
}

func conflicts(a, b Mode) bool {
	return a == Exclusive || b == Exclusive
}

// woundYoungerConflicting aborts every conflicting holder or waiter — granted
// or still queued — that is younger than the requester, releasing its queue
// entry immediately. This mirrors NeedWait's walk over every predecessor in
// the queue regardless of grant state: an ungranted younger waiter that
// conflicts must be wounded too, or it can still race the requester for the
// grant once whatever currently blocks both of them clears. Reports whether
// anything was wounded. Caller must hold q.mu.
func (q *requestQueue) woundYoungerConflicting(requester txn.ID, mode Mode, registry *txn.Registry) bool {
	wounded := false
	for i := 0; i < len(q.requests); i++ {
		r := q.requests[i]
		if r.txnID == requester {
			continue
		}
		if !conflicts(mode, r.mode) {
			continue
		}
		if !requester.OlderThan(r.txnID) {
			continue
		}
		if tx, err := registry.Get(r.txnID); err == nil {
			tx.SetState(txn.Aborted)
		}
		dblog.WithComponent("lock").Debug("wounded transaction", "wounded_txn", r.txnID.String(), "requester_txn", requester.String(), "mode", mode.String())
		q.requests = append(q.requests[:i], q.requests[i+1:]...)
		i--
		wounded = true
	}
	return wounded
}
