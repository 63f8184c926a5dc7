package hashindex

import (
	"encoding/binary"

	"github.com/yongfeilu/Disk-Oriented-Concurrency-Control-Storage-Manager/pkg/page"
	"github.com/yongfeilu/Disk-Oriented-Concurrency-Control-Storage-Manager/pkg/rid"
)

// ridCodecSize is the fixed width of a serialized rid.RID: a page.ID
// (int32) plus a slot number (uint32).
const ridCodecSize = 8

func ridValueCodec() codec[rid.RID] {
	return codec[rid.RID]{
		Size: ridCodecSize,
		Encode: func(r rid.RID, buf []byte) {
			binary.BigEndian.PutUint32(buf[0:4], uint32(r.PageID))
			binary.BigEndian.PutUint32(buf[4:8], r.SlotNum)
		},
		Decode: func(buf []byte) rid.RID {
			return rid.RID{
				PageID:  page.ID(binary.BigEndian.Uint32(buf[0:4])),
				SlotNum: binary.BigEndian.Uint32(buf[4:8]),
			}
		},
	}
}
