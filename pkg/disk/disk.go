// Package disk provides the on-disk page I/O primitive the buffer pool
// fetches and flushes pages through. It is an external collaborator to the
// buffer pool / hash index / lock manager cores (see DESIGN.md for the
// component boundary) — kept deliberately thin: synchronous block I/O,
// nothing else. No WAL interaction, no catalog, no multi-file bookkeeping.
// Page-id allocation is the BufferPoolManager's job (see pkg/buffer), not
// this package's — a disk manager only knows how to read and write whatever
// id it's handed.
package disk

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/yongfeilu/Disk-Oriented-Concurrency-Control-Storage-Manager/pkg/page"
)

// Manager is the contract the BufferPoolManager depends on. Swappable in
// tests for an in-memory fake (see NewMemoryManager below).
type Manager interface {
	ReadPage(id page.ID, dst *[page.Size]byte) error
	WritePage(id page.ID, src *[page.Size]byte) error
	DeallocatePage(id page.ID)
}

// FileManager is a single-file, fixed-block DiskManager. Each page occupies
// a page.Size-byte slot at offset pageID*page.Size.
type FileManager struct {
	mu   sync.Mutex
	file *os.File
}

func NewFileManager(path string) (*FileManager, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("disk: open %s: %w", path, err)
	}

	return &FileManager{file: f}, nil
}

func (m *FileManager) Close() error {
	return m.file.Close()
}

func (m *FileManager) ReadPage(id page.ID, dst *[page.Size]byte) error {
	if id == page.InvalidID {
		return fmt.Errorf("disk: cannot read invalid page id")
	}
	offset := int64(id) * page.Size
	n, err := m.file.ReadAt(dst[:], offset)
	if err != nil && err != io.EOF {
		return fmt.Errorf("disk: read page %d: %w", id, err)
	}
	for i := n; i < page.Size; i++ {
		dst[i] = 0
	}
	return nil
}

func (m *FileManager) WritePage(id page.ID, src *[page.Size]byte) error {
	if id == page.InvalidID {
		return fmt.Errorf("disk: cannot write invalid page id")
	}
	offset := int64(id) * page.Size
	if _, err := m.file.WriteAt(src[:], offset); err != nil {
		return fmt.Errorf("disk: write page %d: %w", id, err)
	}
	return nil
}

// DeallocatePage is a bookkeeping hook only; this DiskManager never reuses
// disk space within a run, matching the teacher's disk manager (which also
// never shrinks its backing file).
func (m *FileManager) DeallocatePage(id page.ID) {}

// MemoryManager is an in-memory DiskManager fake for tests — no file
// descriptor, just a map of page id to bytes.
type MemoryManager struct {
	mu    sync.Mutex
	pages map[page.ID]*[page.Size]byte
}

func NewMemoryManager() *MemoryManager {
	return &MemoryManager{pages: make(map[page.ID]*[page.Size]byte)}
}

func (m *MemoryManager) ReadPage(id page.ID, dst *[page.Size]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.pages[id]
	if !ok {
		*dst = [page.Size]byte{}
		return nil
	}
	*dst = *data
	return nil
}

func (m *MemoryManager) WritePage(id page.ID, src *[page.Size]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *src
	m.pages[id] = &cp
	return nil
}

func (m *MemoryManager) DeallocatePage(id page.ID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pages, id)
}
