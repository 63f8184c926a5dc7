package disk

import (
	"os"
	"testing"

	"github.com/yongfeilu/Disk-Oriented-Concurrency-Control-Storage-Manager/pkg/page"
)

func TestFileManagerRoundTrip(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "disk-test-*.db")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	f.Close()

	m, err := NewFileManager(f.Name())
	if err != nil {
		t.Fatalf("NewFileManager: %v", err)
	}
	defer m.Close()

	var src [page.Size]byte
	copy(src[:], []byte("hello disk"))

	if err := m.WritePage(3, &src); err != nil {
		t.Fatalf("WritePage: %v", err)
	}

	var dst [page.Size]byte
	if err := m.ReadPage(3, &dst); err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	if string(dst[:10]) != "hello disk" {
		t.Fatalf("read back %q, want %q", dst[:10], "hello disk")
	}
}

func TestFileManagerReadUnwrittenPageIsZero(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "disk-test-*.db")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	f.Close()

	m, err := NewFileManager(f.Name())
	if err != nil {
		t.Fatalf("NewFileManager: %v", err)
	}
	defer m.Close()

	var dst [page.Size]byte
	for i := range dst {
		dst[i] = 0xFF
	}
	if err := m.ReadPage(5, &dst); err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	for i, b := range dst {
		if b != 0 {
			t.Fatalf("byte %d = %x, want 0 for a never-written page", i, b)
		}
	}
}

func TestMemoryManagerRoundTrip(t *testing.T) {
	m := NewMemoryManager()

	var src [page.Size]byte
	copy(src[:], []byte("in memory"))
	if err := m.WritePage(1, &src); err != nil {
		t.Fatalf("WritePage: %v", err)
	}

	var dst [page.Size]byte
	if err := m.ReadPage(1, &dst); err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	if string(dst[:9]) != "in memory" {
		t.Fatalf("read back %q, want %q", dst[:9], "in memory")
	}
}
