package hashindex

import "github.com/yongfeilu/Disk-Oriented-Concurrency-Control-Storage-Manager/pkg/page"

// Entry is one (key,value) pair yielded by an Iterator.
type Entry[K any, V any] struct {
	Key   K
	Value V
}

// Iterator walks every entry in a Table in directory order: each distinct
// bucket page is visited once (multiple directory slots pointing at the
// same bucket after a grow() are skipped on repeat), and within a bucket,
// slots are visited in slot order.
type Iterator[K any, V any] struct {
	t *Table[K, V]

	dirIdx  uint32
	dirSize uint32
	seen    map[page.ID]struct{}

	curBucket page.ID
	curSlot   int
	curValid  bool
}

// NewIterator returns an iterator positioned before the first entry.
func (t *Table[K, V]) NewIterator() *Iterator[K, V] {
	t.mu.RLock()
	_, dir, err := t.fetchDirectory()
	var size uint32 = 1
	if err == nil {
		size = dir.size()
	}
	t.bpm.UnpinPage(t.dirPageID, false)
	t.mu.RUnlock()

	return &Iterator[K, V]{
		t:       t,
		dirSize: size,
		seen:    make(map[page.ID]struct{}),
	}
}

// Next advances the iterator and reports whether a new entry is available.
func (it *Iterator[K, V]) Next() bool {
	t := it.t
	t.mu.RLock()
	defer t.mu.RUnlock()

	for {
		if it.curValid {
			if it.advanceWithinBucket() {
				return true
			}
			it.curValid = false
		}

		// advanceToNextBucket already leaves the iterator on the first
		// readable slot of the next non-empty bucket.
		return it.advanceToNextBucket()
	}
}

// advanceWithinBucket scans forward from curSlot+1 in curBucket for the
// next readable slot, leaving the iterator positioned there on success.
func (it *Iterator[K, V]) advanceWithinBucket() bool {
	bp, err := it.t.bpm.FetchPage(it.curBucket)
	if err != nil {
		return false
	}
	defer it.t.bpm.UnpinPage(it.curBucket, false)

	bp.RLock()
	defer bp.RUnlock()

	for slot := it.curSlot + 1; slot < it.t.layout.numSlots; slot++ {
		if it.t.layout.isReadable(&bp.Data, slot) {
			it.curSlot = slot
			return true
		}
	}
	return false
}

// advanceToNextBucket moves to the next not-yet-visited bucket page,
// positioning curSlot at -1 so advanceWithinBucket starts from slot 0.
func (it *Iterator[K, V]) advanceToNextBucket() bool {
	_, dir, err := it.t.fetchDirectory()
	if err != nil {
		return false
	}
	defer it.t.bpm.UnpinPage(it.t.dirPageID, false)

	for it.dirIdx < it.dirSize {
		idx := it.dirIdx
		it.dirIdx++

		bucketID := dir.bucketPageID(idx)
		if _, dup := it.seen[bucketID]; dup {
			continue
		}
		it.seen[bucketID] = struct{}{}

		it.curBucket = bucketID
		it.curSlot = -1
		it.curValid = true
		if it.advanceWithinBucket() {
			return true
		}
		it.curValid = false
	}
	return false
}

// Entry returns the key/value pair at the iterator's current position.
// Valid only after a call to Next returned true.
func (it *Iterator[K, V]) Entry() Entry[K, V] {
	t := it.t
	t.mu.RLock()
	defer t.mu.RUnlock()

	bp, err := t.bpm.FetchPage(it.curBucket)
	if err != nil {
		var zero Entry[K, V]
		return zero
	}
	defer t.bpm.UnpinPage(it.curBucket, false)

	bp.RLock()
	defer bp.RUnlock()

	entry := t.layout.entryBytes(&bp.Data, it.curSlot)
	return Entry[K, V]{
		Key:   t.keyCodec.Decode(entry[:t.keyCodec.Size]),
		Value: t.valCodec.Decode(entry[t.keyCodec.Size:]),
	}
}
