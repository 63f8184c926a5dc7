package buffer

import (
	"fmt"
	"sync"

	"github.com/yongfeilu/Disk-Oriented-Concurrency-Control-Storage-Manager/pkg/dblog"
	"github.com/yongfeilu/Disk-Oriented-Concurrency-Control-Storage-Manager/pkg/disk"
	"github.com/yongfeilu/Disk-Oriented-Concurrency-Control-Storage-Manager/pkg/page"
)

// Manager is a fixed-capacity cache of disk pages backed by a DiskManager.
// It owns the only path by which any other component may touch a page's
// bytes: NewPage, FetchPage, UnpinPage, FlushPage, FlushAllPages, DeletePage.
//
// Sharding: a deployment may run several independent Managers over the same
// DiskManager, each given a distinct instanceIndex in [0, numInstances). Page
// ids this Manager allocates are then instanceIndex, instanceIndex+numInstances,
// instanceIndex+2*numInstances, ... so no two instances ever allocate the
// same id. A single-instance deployment passes numInstances=1, instanceIndex=0
// and gets the plain counting sequence 0,1,2,...
type Manager struct {
	mu sync.Mutex

	disk     disk.Manager
	replacer *replacer

	frames    []page.Page
	pageTable map[page.ID]frameID
	freeList  []frameID

	nextPageID    int64
	numInstances  int64
	instanceIndex int64
}

// NewManager builds a buffer pool of the given frame capacity (poolSize)
// over disk. numInstances/instanceIndex default to 1/0 when numInstances <= 0.
func NewManager(poolSize int, d disk.Manager, numInstances, instanceIndex int) *Manager {
	if numInstances <= 0 {
		numInstances = 1
		instanceIndex = 0
	}

	free := make([]frameID, poolSize)
	for i := range free {
		free[i] = frameID(i)
	}
	frames := make([]page.Page, poolSize)
	for i := range frames {
		frames[i].ID = page.InvalidID
	}

	return &Manager{
		disk:          d,
		replacer:      newReplacer(),
		frames:        frames,
		pageTable:     make(map[page.ID]frameID),
		freeList:      free,
		nextPageID:    int64(instanceIndex),
		numInstances:  int64(numInstances),
		instanceIndex: int64(instanceIndex),
	}
}

// allocatePageID returns the next id owned by this instance's stride and
// advances the counter. Caller must hold mu.
func (m *Manager) allocatePageID() page.ID {
	id := page.ID(m.nextPageID)
	m.nextPageID += m.numInstances
	return id
}

// victimFrame finds a usable frame: the free list first, then the replacer.
// Caller must hold mu. Returns false if every frame is pinned.
func (m *Manager) victimFrame() (frameID, bool) {
	if n := len(m.freeList); n > 0 {
		fid := m.freeList[n-1]
		m.freeList = m.freeList[:n-1]
		return fid, true
	}
	return m.replacer.Victim()
}

// evict writes back fid's current occupant if dirty and removes it from the
// page table. Caller must hold mu.
func (m *Manager) evict(fid frameID) error {
	fr := &m.frames[fid]
	if fr.ID == page.InvalidID {
		return nil
	}
	if fr.IsDirty {
		if err := m.disk.WritePage(fr.ID, &fr.Data); err != nil {
			return fmt.Errorf("buffer: evict page %d: %w", fr.ID, err)
		}
	}
	dblog.WithComponent("buffer").Debug("evicted page", "page_id", int32(fr.ID), "was_dirty", fr.IsDirty)
	delete(m.pageTable, fr.ID)
	return nil
}

// NewPage allocates a fresh page, pins it, and returns it zeroed. Returns
// ErrNoFreeFrame if every frame is pinned.
func (m *Manager) NewPage() (*page.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fid, ok := m.victimFrame()
	if !ok {
		return nil, ErrNoFreeFrame
	}
	if err := m.evict(fid); err != nil {
		return nil, err
	}

	id := m.allocatePageID()
	fr := &m.frames[fid]
	fr.Reset(id)
	fr.PinCount = 1

	m.pageTable[id] = fid
	m.replacer.Pin(fid)

	return fr, nil
}

// FetchPage pins and returns the page with the given id, reading it from
// disk into a frame if it isn't already resident. Returns ErrNoFreeFrame if
// the page is absent and every frame is pinned.
func (m *Manager) FetchPage(id page.ID) (*page.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if fid, ok := m.pageTable[id]; ok {
		fr := &m.frames[fid]
		if fr.PinCount == 0 {
			m.replacer.Pin(fid)
		}
		fr.PinCount++
		return fr, nil
	}

	fid, ok := m.victimFrame()
	if !ok {
		return nil, ErrNoFreeFrame
	}
	if err := m.evict(fid); err != nil {
		return nil, err
	}

	fr := &m.frames[fid]
	fr.Reset(id)
	if err := m.disk.ReadPage(id, &fr.Data); err != nil {
		return nil, fmt.Errorf("buffer: fetch page %d: %w", id, err)
	}
	fr.PinCount = 1

	m.pageTable[id] = fid
	return fr, nil
}

// UnpinPage decrements a page's pin count, marking it dirty if the caller
// modified it. Once the pin count reaches zero the frame becomes an
// eviction candidate. Returns ErrPageNotFound if id isn't resident, and
// ErrNotPinned if the pin count is already zero.
func (m *Manager) UnpinPage(id page.ID, isDirty bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	fid, ok := m.pageTable[id]
	if !ok {
		return ErrPageNotFound
	}
	fr := &m.frames[fid]
	if fr.PinCount <= 0 {
		return ErrNotPinned
	}

	if isDirty {
		fr.IsDirty = true
	}
	fr.PinCount--
	if fr.PinCount == 0 {
		m.replacer.Unpin(fid)
	}
	return nil
}

// FlushPage writes a resident page back to disk regardless of pin count,
// clearing its dirty bit. Returns ErrPageNotFound if id isn't resident.
func (m *Manager) FlushPage(id page.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	fid, ok := m.pageTable[id]
	if !ok {
		return ErrPageNotFound
	}
	fr := &m.frames[fid]
	if err := m.disk.WritePage(fr.ID, &fr.Data); err != nil {
		return fmt.Errorf("buffer: flush page %d: %w", id, err)
	}
	fr.IsDirty = false
	return nil
}

// FlushAllPages flushes every resident page, stopping at the first error.
func (m *Manager) FlushAllPages() error {
	m.mu.Lock()
	ids := make([]page.ID, 0, len(m.pageTable))
	for id := range m.pageTable {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		if err := m.FlushPage(id); err != nil {
			return err
		}
	}
	return nil
}

// DeletePage removes a page from the pool and frees its disk-side storage.
// Returns ErrPagePinned if the page is currently pinned by anyone; a pinned
// page must never be deleted out from under its holder.
func (m *Manager) DeletePage(id page.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	fid, ok := m.pageTable[id]
	if !ok {
		m.disk.DeallocatePage(id)
		return nil
	}
	fr := &m.frames[fid]
	if fr.PinCount > 0 {
		return ErrPagePinned
	}

	if fr.IsDirty {
		if err := m.disk.WritePage(fr.ID, &fr.Data); err != nil {
			return fmt.Errorf("buffer: flush page %d before delete: %w", fr.ID, err)
		}
	}

	m.replacer.Pin(fid)
	delete(m.pageTable, id)
	fr.Reset(page.InvalidID)
	m.freeList = append(m.freeList, fid)

	m.disk.DeallocatePage(id)
	return nil
}
