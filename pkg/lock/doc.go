// Package lock implements row-level Two-Phase Locking (2PL) for this
// module's concurrency control layer.
//
// # Overview
//
// The package enforces standard 2PL: a transaction acquires every lock it
// needs during its GROWING phase and releases all of them during its
// SHRINKING phase, which begins at the first Unlock call and never reverts.
// Only REPEATABLE_READ transactions enter SHRINKING on Unlock; under
// READ_COMMITTED and READ_UNCOMMITTED a transaction stays GROWING across
// unlocks and may lock again.
// Two lock modes are supported:
//
//   - Shared    — required to read a row; compatible with other shared locks.
//   - Exclusive — required to write a row; incompatible with every other lock.
//
// A transaction holding a shared lock may call LockUpgrade to obtain an
// exclusive lock on the same row; downgrading is never permitted, and at
// most one upgrade may be in flight per row at a time.
//
// # Deadlock prevention
//
// Instead of building a wait-for graph and detecting cycles, LockManager
// prevents deadlock up front with the wound-wait scheme: transaction ids are
// allocated in creation order, so comparing two ids tells you which
// transaction is older.
//
//   - An older transaction requesting a lock held by a younger one wounds
//     it: the younger transaction is aborted and its lock released
//     immediately, and the older requester proceeds (or keeps waiting for
//     any remaining, older holders).
//   - A younger transaction requesting a lock held by an older one waits.
//
// Shared and exclusive requesters wound asymmetrically: a shared requester
// only conflicts with — and so only wounds — younger exclusive holders;
// an exclusive requester conflicts with, and wounds, any younger holder.
//
// Every LockRequestQueue is a per-row FIFO of pending and granted requests
// guarded by a sync.Cond: a blocked request wakes whenever the queue's
// granted set changes (a holder unlocks, or a wound removes a holder) and
// re-evaluates whether it can now be granted or whether it was itself the
// one wounded.
package lock
