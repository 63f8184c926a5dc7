package hashindex

import (
	"encoding/binary"
	"hash/fnv"
)

// Comparator orders two keys of the same type, returning <0, 0, or >0 the
// way a Go comparison function conventionally does. A Table never imposes
// its own ordering — callers own it through this function, the same way
// the teacher's generic slice helpers in pkg/utils/functools take their
// comparison/predicate function as a parameter rather than assuming one.
type Comparator[K any] func(a, b K) int

// codec is how a Table turns one K or V into the fixed-width bytes a bucket
// page slot holds, and back. Size must be constant across every value the
// codec ever encodes — bucket layout is computed once from it.
type codec[T any] struct {
	Size   int
	Encode func(T, []byte)
	Decode func([]byte) T
}

// IntKey is a fixed-width signed integer key.
type IntKey int64

func IntComparator(a, b IntKey) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func intKeyCodec() codec[IntKey] {
	return codec[IntKey]{
		Size: 8,
		Encode: func(k IntKey, buf []byte) {
			binary.BigEndian.PutUint64(buf, uint64(k))
		},
		Decode: func(buf []byte) IntKey {
			return IntKey(binary.BigEndian.Uint64(buf))
		},
	}
}

// StringKeySize is the fixed slot width reserved for a StringKey. Longer
// keys are truncated to their first StringKeySize bytes when encoded;
// Table.Insert does not reject them.
const StringKeySize = 32

// StringKey is a fixed-width string key, zero-padded to StringKeySize bytes
// on disk.
type StringKey string

func StringComparator(a, b StringKey) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func stringKeyCodec() codec[StringKey] {
	return codec[StringKey]{
		Size: StringKeySize,
		Encode: func(k StringKey, buf []byte) {
			clear(buf)
			copy(buf, k)
		},
		Decode: func(buf []byte) StringKey {
			n := 0
			for n < len(buf) && buf[n] != 0 {
				n++
			}
			return StringKey(buf[:n])
		},
	}
}

// hashBytes is the single hash function every Table instantiation uses to
// map an encoded key to a directory index. fnv-1a (stdlib hash/fnv) is used
// rather than a third-party hasher: the only hashing library anywhere in
// the example pack is xxhash, and it arrives solely as ristretto's indirect
// dependency — ristretto itself was never wired in (see DESIGN.md), so
// pulling xxhash in on its own, with nothing else exercising it, would be
// an unjustified direct dependency rather than reuse of something already
// wired for a reason.
func hashBytes(b []byte) uint32 {
	h := fnv.New32a()
	h.Write(b)
	return h.Sum32()
}
