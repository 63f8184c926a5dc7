package buffer

import (
	"testing"

	"github.com/yongfeilu/Disk-Oriented-Concurrency-Control-Storage-Manager/pkg/disk"
	"github.com/yongfeilu/Disk-Oriented-Concurrency-Control-Storage-Manager/pkg/page"
	"golang.org/x/sync/errgroup"
)

func newTestManager(t *testing.T, poolSize int) *Manager {
	t.Helper()
	d := disk.NewMemoryManager()
	return NewManager(poolSize, d, 1, 0)
}

func TestNewPageAndFetch(t *testing.T) {
	m := newTestManager(t, 2)

	p, err := m.NewPage()
	if err != nil {
		t.Fatalf("NewPage: %v", err)
	}
	id := p.ID
	copy(p.Data[:], []byte("hello"))

	if err := m.UnpinPage(id, true); err != nil {
		t.Fatalf("UnpinPage: %v", err)
	}

	got, err := m.FetchPage(id)
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	if string(got.Data[:5]) != "hello" {
		t.Fatalf("fetched page data = %q, want %q", got.Data[:5], "hello")
	}
}

func TestEvictionPicksLeastRecentlyUnpinned(t *testing.T) {
	m := newTestManager(t, 2)

	p0, err := m.NewPage()
	if err != nil {
		t.Fatalf("NewPage: %v", err)
	}
	id0 := p0.ID
	p1, err := m.NewPage()
	if err != nil {
		t.Fatalf("NewPage: %v", err)
	}
	id1 := p1.ID

	// Unpin page 0 before page 1: page 0 is the least recently unpinned, so
	// allocating a third page in this 2-frame pool must evict page 0.
	if err := m.UnpinPage(id0, false); err != nil {
		t.Fatalf("UnpinPage: %v", err)
	}
	if err := m.UnpinPage(id1, false); err != nil {
		t.Fatalf("UnpinPage: %v", err)
	}

	p2, err := m.NewPage()
	if err != nil {
		t.Fatalf("NewPage: %v", err)
	}
	if _, ok := m.pageTable[id0]; ok {
		t.Fatalf("page %d still resident, want it evicted as least recently unpinned", id0)
	}
	if _, ok := m.pageTable[id1]; !ok {
		t.Fatalf("page %d was evicted, want it kept as most recently unpinned", id1)
	}
	if err := m.UnpinPage(p2.ID, false); err != nil {
		t.Fatalf("UnpinPage: %v", err)
	}

	if _, err := m.FetchPage(id0); err != nil {
		t.Fatalf("FetchPage(id0) after eviction and re-read: %v", err)
	}
}

func TestNoFreeFrameWhenAllPinned(t *testing.T) {
	m := newTestManager(t, 1)

	if _, err := m.NewPage(); err != nil {
		t.Fatalf("NewPage: %v", err)
	}

	if _, err := m.NewPage(); err != ErrNoFreeFrame {
		t.Fatalf("NewPage on full pinned pool: got err %v, want ErrNoFreeFrame", err)
	}
}

func TestDeletePageRejectsPinned(t *testing.T) {
	m := newTestManager(t, 2)

	p, err := m.NewPage()
	if err != nil {
		t.Fatalf("NewPage: %v", err)
	}
	id := p.ID

	if err := m.DeletePage(id); err != ErrPagePinned {
		t.Fatalf("DeletePage on pinned page: got err %v, want ErrPagePinned", err)
	}

	if err := m.UnpinPage(id, false); err != nil {
		t.Fatalf("UnpinPage: %v", err)
	}
	if err := m.DeletePage(id); err != nil {
		t.Fatalf("DeletePage after unpin: %v", err)
	}
}

func TestFlushWritesDirtyPageBack(t *testing.T) {
	d := disk.NewMemoryManager()
	m := NewManager(1, d, 1, 0)

	p, err := m.NewPage()
	if err != nil {
		t.Fatalf("NewPage: %v", err)
	}
	id := p.ID
	copy(p.Data[:], []byte("durable"))

	if err := m.UnpinPage(id, true); err != nil {
		t.Fatalf("UnpinPage: %v", err)
	}
	if err := m.FlushPage(id); err != nil {
		t.Fatalf("FlushPage: %v", err)
	}

	var dst [page.Size]byte
	if err := d.ReadPage(id, &dst); err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	if string(dst[:7]) != "durable" {
		t.Fatalf("disk contents = %q, want %q", dst[:7], "durable")
	}
}

// writeRecorder is a MemoryManager that also keeps a copy of every page
// written through it, so a test can see what reached disk even after the
// page has been deallocated (MemoryManager.DeallocatePage drops the data).
type writeRecorder struct {
	*disk.MemoryManager
	written map[page.ID][page.Size]byte
}

func (w *writeRecorder) WritePage(id page.ID, src *[page.Size]byte) error {
	w.written[id] = *src
	return w.MemoryManager.WritePage(id, src)
}

func TestDeletePageFlushesDirtyPageFirst(t *testing.T) {
	d := &writeRecorder{MemoryManager: disk.NewMemoryManager(), written: make(map[page.ID][page.Size]byte)}
	m := NewManager(1, d, 1, 0)

	p, err := m.NewPage()
	if err != nil {
		t.Fatalf("NewPage: %v", err)
	}
	id := p.ID
	copy(p.Data[:], []byte("dirty bytes"))

	if err := m.UnpinPage(id, true); err != nil {
		t.Fatalf("UnpinPage: %v", err)
	}
	if err := m.DeletePage(id); err != nil {
		t.Fatalf("DeletePage: %v", err)
	}

	dst, ok := d.written[id]
	if !ok {
		t.Fatalf("DeletePage never wrote dirty page %d to disk", id)
	}
	if string(dst[:11]) != "dirty bytes" {
		t.Fatalf("disk contents after DeletePage = %q, want %q (dirty page must be flushed before delete)", dst[:11], "dirty bytes")
	}
}

func TestConcurrentFetchUnpinIsRace3Free(t *testing.T) {
	m := newTestManager(t, 4)

	seed, err := m.NewPage()
	if err != nil {
		t.Fatalf("NewPage: %v", err)
	}
	id := seed.ID
	if err := m.UnpinPage(id, false); err != nil {
		t.Fatalf("UnpinPage: %v", err)
	}

	var g errgroup.Group
	for i := 0; i < 16; i++ {
		g.Go(func() error {
			p, err := m.FetchPage(id)
			if err != nil {
				return err
			}
			return m.UnpinPage(p.ID, false)
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent fetch/unpin: %v", err)
	}
}
