// Package wal is a minimal stand-in for write-ahead logging: it hands out
// monotonically increasing LSNs and remembers each transaction's
// first/last LSN, but it performs no durable I/O and no recovery. The
// buffer pool, hash index, and lock manager never touch it directly — it
// exists only so a caller wiring a transaction's lifecycle together has
// somewhere to register begin/commit/abort the way the teacher's full WAL
// does, without pulling in record serialization, log readers, or recovery
// that are out of scope for this subsystem.
package wal

import (
	"sync"

	"github.com/yongfeilu/Disk-Oriented-Concurrency-Control-Storage-Manager/pkg/txn"
)

// LSN is a log sequence number: a strictly increasing position in the
// (notional) log.
type LSN int64

const InvalidLSN LSN = 0

// Log is the stub write-ahead log.
type Log struct {
	mu      sync.Mutex
	nextLSN LSN
	first   map[txn.ID]LSN
	last    map[txn.ID]LSN
}

func New() *Log {
	return &Log{
		nextLSN: InvalidLSN + 1,
		first:   make(map[txn.ID]LSN),
		last:    make(map[txn.ID]LSN),
	}
}

func (l *Log) record(id txn.ID) LSN {
	l.mu.Lock()
	defer l.mu.Unlock()

	lsn := l.nextLSN
	l.nextLSN++
	if _, ok := l.first[id]; !ok {
		l.first[id] = lsn
	}
	l.last[id] = lsn
	return lsn
}

// LogBegin, LogCommit, and LogAbort each allocate a fresh LSN for id and
// record it as that transaction's latest. A real WAL would also persist a
// record to disk here; this stub does not.
func (l *Log) LogBegin(id txn.ID) LSN  { return l.record(id) }
func (l *Log) LogCommit(id txn.ID) LSN { return l.record(id) }
func (l *Log) LogAbort(id txn.ID) LSN  { return l.record(id) }

func (l *Log) FirstLSN(id txn.ID) LSN {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.first[id]
}

func (l *Log) LastLSN(id txn.ID) LSN {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.last[id]
}

// Force is a no-op: there is no durable log to flush.
func (l *Log) Force() error { return nil }
