package hashindex

import (
	"github.com/yongfeilu/Disk-Oriented-Concurrency-Control-Storage-Manager/pkg/buffer"
	"github.com/yongfeilu/Disk-Oriented-Concurrency-Control-Storage-Manager/pkg/rid"
)

// NewIntTable builds an extendible hash table keyed by IntKey, valued by
// rid.RID — the shape a primary-key or integer secondary index needs.
func NewIntTable(bpm *buffer.Manager) (*Table[IntKey, rid.RID], error) {
	return New[IntKey, rid.RID](bpm, IntComparator, intKeyCodec(), ridValueCodec(), defaultMaxGlobalDepth, defaultMaxBucketDepth)
}

// NewStringTable builds an extendible hash table keyed by StringKey (up to
// StringKeySize bytes), valued by rid.RID.
func NewStringTable(bpm *buffer.Manager) (*Table[StringKey, rid.RID], error) {
	return New[StringKey, rid.RID](bpm, StringComparator, stringKeyCodec(), ridValueCodec(), defaultMaxGlobalDepth, defaultMaxBucketDepth)
}

// NewIntTableWithDepthLimits is NewIntTable with explicit (lower)
// maxGlobalDepth/maxBucketDepth tunables, for callers that want to bound a
// table's growth tighter than the structural ceiling.
func NewIntTableWithDepthLimits(bpm *buffer.Manager, maxGlobalDepth, maxBucketDepth uint8) (*Table[IntKey, rid.RID], error) {
	return New[IntKey, rid.RID](bpm, IntComparator, intKeyCodec(), ridValueCodec(), maxGlobalDepth, maxBucketDepth)
}
