// Package buffer implements the buffer pool: the fixed-size in-memory cache
// of disk pages that every other storage component reads and writes through.
package buffer

import "container/list"

// frameID indexes a slot in the buffer pool's frame array. Distinct from
// page.ID: a frame can hold any page over its lifetime.
type frameID int

// replacer picks an eviction victim among the frames currently unpinned.
// Victim returns the least-recently-unpinned frame, matching the teacher's
// cache.LRUPageCache doubly-linked-list technique: every Unpin pushes a
// frame to the front, Victim pops from the back, both O(1).
type replacer struct {
	list *list.List
	pos  map[frameID]*list.Element
}

func newReplacer() *replacer {
	return &replacer{
		list: list.New(),
		pos:  make(map[frameID]*list.Element),
	}
}

// Unpin marks fid as evictable, placing it at the most-recently-unpinned
// end. A frame already tracked is a no-op: Unpin is called once per
// unpin-to-zero transition by the caller, never speculatively.
func (r *replacer) Unpin(fid frameID) {
	if _, ok := r.pos[fid]; ok {
		return
	}
	r.pos[fid] = r.list.PushFront(fid)
}

// Pin removes fid from victim consideration, called when a frame is pinned
// or chosen as an eviction victim.
func (r *replacer) Pin(fid frameID) {
	el, ok := r.pos[fid]
	if !ok {
		return
	}
	r.list.Remove(el)
	delete(r.pos, fid)
}

// Victim evicts and returns the least-recently-unpinned frame, or false if
// every frame is currently pinned.
func (r *replacer) Victim() (frameID, bool) {
	el := r.list.Back()
	if el == nil {
		return 0, false
	}
	fid := el.Value.(frameID)
	r.list.Remove(el)
	delete(r.pos, fid)
	return fid, true
}

// Size reports the number of frames currently evictable.
func (r *replacer) Size() int {
	return r.list.Len()
}
