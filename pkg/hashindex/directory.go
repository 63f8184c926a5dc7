package hashindex

import (
	"encoding/binary"

	"github.com/yongfeilu/Disk-Oriented-Concurrency-Control-Storage-Manager/pkg/page"
)

// hardMaxGlobalDepth is the structural ceiling on the directory's fixed
// arrays: 512 buckets, the same ceiling the original bustub-style fixed
// directory page uses (2^9 bucket pointers plus one local-depth byte each
// fits comfortably in one page.Size page). A Table's own maxGlobalDepth
// tunable (see table.go) may be set lower than this but never higher.
const hardMaxGlobalDepth = 9
const dirSize = 1 << hardMaxGlobalDepth

// defaultMaxGlobalDepth and defaultMaxBucketDepth are the tunables
// NewIntTable/NewStringTable use when the caller doesn't need anything
// tighter than the structural ceiling.
const defaultMaxGlobalDepth = hardMaxGlobalDepth
const defaultMaxBucketDepth = hardMaxGlobalDepth

// directoryPage is the single fixed-size page recording every bucket
// pointer and every bucket's local depth. It never grows a new page of its
// own: "doubling the directory" only means incrementing globalDepth and
// duplicating the first half of the arrays into the second half, all
// within this one page.
type directoryPage struct {
	globalDepth uint32
	bucketIDs   [dirSize]int32
	localDepths [dirSize]uint8
}

func loadDirectory(data *[page.Size]byte) *directoryPage {
	d := &directoryPage{}
	d.globalDepth = binary.LittleEndian.Uint32(data[0:4])
	off := 4
	for i := 0; i < dirSize; i++ {
		d.bucketIDs[i] = int32(binary.LittleEndian.Uint32(data[off+i*4 : off+i*4+4]))
	}
	off += dirSize * 4
	for i := 0; i < dirSize; i++ {
		d.localDepths[i] = data[off+i]
	}
	return d
}

func (d *directoryPage) store(data *[page.Size]byte) {
	binary.LittleEndian.PutUint32(data[0:4], d.globalDepth)
	off := 4
	for i := 0; i < dirSize; i++ {
		binary.LittleEndian.PutUint32(data[off+i*4:off+i*4+4], uint32(d.bucketIDs[i]))
	}
	off += dirSize * 4
	for i := 0; i < dirSize; i++ {
		data[off+i] = d.localDepths[i]
	}
}

func (d *directoryPage) size() uint32 {
	return 1 << d.globalDepth
}

func (d *directoryPage) indexOf(h uint32) uint32 {
	return h & (d.size() - 1)
}

func (d *directoryPage) bucketPageID(idx uint32) page.ID {
	return page.ID(d.bucketIDs[idx])
}

func (d *directoryPage) setBucketPageID(idx uint32, id page.ID) {
	d.bucketIDs[idx] = int32(id)
}

func (d *directoryPage) localDepth(idx uint32) uint8 {
	return d.localDepths[idx]
}

func (d *directoryPage) setLocalDepth(idx uint32, depth uint8) {
	d.localDepths[idx] = depth
}

// splitImageIndex returns the directory index sharing idx's low oldLocalDepth
// bits but differing in the next bit up — the sibling bucket a split
// distributes entries into.
func splitImageIndex(idx uint32, oldLocalDepth uint8) uint32 {
	return idx ^ (1 << oldLocalDepth)
}

// grow doubles the directory: global depth increments and every pointer and
// local depth is duplicated into the newly addressable upper half.
func (d *directoryPage) grow() {
	oldSize := d.size()
	d.globalDepth++
	for i := uint32(0); i < oldSize; i++ {
		d.bucketIDs[i+oldSize] = d.bucketIDs[i]
		d.localDepths[i+oldSize] = d.localDepths[i]
	}
}

// canShrink reports whether every bucket's local depth is strictly less
// than the global depth — the condition under which halving the directory
// drops no distinguishing bit any bucket still needs.
func (d *directoryPage) canShrink() bool {
	if d.globalDepth == 0 {
		return false
	}
	size := d.size()
	for i := uint32(0); i < size; i++ {
		if d.localDepths[i] == uint8(d.globalDepth) {
			return false
		}
	}
	return true
}

func (d *directoryPage) shrink() {
	d.globalDepth--
}
