package hashindex

import "github.com/yongfeilu/Disk-Oriented-Concurrency-Control-Storage-Manager/pkg/page"

// bucketLayout describes how (key,value) slots are packed into one bucket
// page for a given fixed key/value width. It's computed once per Table
// instantiation, since the width depends on the K/V codecs the caller
// supplies, not on any compile-time constant.
type bucketLayout struct {
	entrySize int
	numSlots  int
	occOffset int
	rdOffset  int
	entOffset int
}

func newBucketLayout(keySize, valSize int) bucketLayout {
	entrySize := keySize + valSize

	// numSlots*entrySize (entry bytes) + 2*ceil(numSlots/8) (occupied +
	// readable bitmaps) must fit in page.Size.
	numSlots := page.Size / entrySize
	for numSlots > 0 {
		bitmapBytes := (numSlots + 7) / 8
		if numSlots*entrySize+2*bitmapBytes <= page.Size {
			break
		}
		numSlots--
	}

	bitmapBytes := (numSlots + 7) / 8
	return bucketLayout{
		entrySize: entrySize,
		numSlots:  numSlots,
		occOffset: 0,
		rdOffset:  bitmapBytes,
		entOffset: 2 * bitmapBytes,
	}
}

func getBit(data *[page.Size]byte, byteOffset, slot int) bool {
	b := data[byteOffset+slot/8]
	return b&(1<<uint(slot%8)) != 0
}

func setBit(data *[page.Size]byte, byteOffset, slot int, v bool) {
	idx := byteOffset + slot/8
	mask := byte(1 << uint(slot%8))
	if v {
		data[idx] |= mask
	} else {
		data[idx] &^= mask
	}
}

func (l bucketLayout) isOccupied(data *[page.Size]byte, slot int) bool {
	return getBit(data, l.occOffset, slot)
}

func (l bucketLayout) isReadable(data *[page.Size]byte, slot int) bool {
	return getBit(data, l.rdOffset, slot)
}

func (l bucketLayout) setOccupied(data *[page.Size]byte, slot int, v bool) {
	setBit(data, l.occOffset, slot, v)
}

func (l bucketLayout) setReadable(data *[page.Size]byte, slot int, v bool) {
	setBit(data, l.rdOffset, slot, v)
}

func (l bucketLayout) entryBytes(data *[page.Size]byte, slot int) []byte {
	off := l.entOffset + slot*l.entrySize
	return data[off : off+l.entrySize]
}

func (l bucketLayout) isFull(data *[page.Size]byte) bool {
	for i := 0; i < l.numSlots; i++ {
		if !l.isReadable(data, i) {
			return false
		}
	}
	return true
}

func (l bucketLayout) isEmpty(data *[page.Size]byte) bool {
	for i := 0; i < l.numSlots; i++ {
		if l.isReadable(data, i) {
			return false
		}
	}
	return true
}

func (l bucketLayout) numReadable(data *[page.Size]byte) int {
	n := 0
	for i := 0; i < l.numSlots; i++ {
		if l.isReadable(data, i) {
			n++
		}
	}
	return n
}
