package txn

import (
	"fmt"
	"sync"

	"github.com/yongfeilu/Disk-Oriented-Concurrency-Control-Storage-Manager/pkg/utils/functools"
)

// Registry is the single map of live transactions a lock manager or caller
// consults by id, replacing any scattered per-component bookkeeping.
type Registry struct {
	mu   sync.RWMutex
	txns map[ID]*Transaction
}

func NewRegistry() *Registry {
	return &Registry{txns: make(map[ID]*Transaction)}
}

// Begin creates and registers a new transaction at the given isolation
// level.
func (r *Registry) Begin(isolation Isolation) *Transaction {
	t := New(isolation)
	r.mu.Lock()
	r.txns[t.id] = t
	r.mu.Unlock()
	return t
}

func (r *Registry) Get(id ID) (*Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.txns[id]
	if !ok {
		return nil, fmt.Errorf("txn: %s not found in registry", id)
	}
	return t, nil
}

// Remove drops a transaction once it has committed or aborted and every
// lock it held has been released.
func (r *Registry) Remove(id ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.txns, id)
}

func (r *Registry) Active() []*Transaction {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := make([]*Transaction, 0, len(r.txns))
	for _, t := range r.txns {
		all = append(all, t)
	}
	return functools.Filter(all, func(t *Transaction) bool {
		s := t.State()
		return s == Growing || s == Shrinking
	})
}
