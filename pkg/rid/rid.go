// Package rid defines the record identifier shared by the hash index (as a
// bucket value) and the lock manager (as the granularity locks are taken
// at): a page id plus a slot number within that page.
package rid

import (
	"fmt"

	"github.com/yongfeilu/Disk-Oriented-Concurrency-Control-Storage-Manager/pkg/page"
)

// RID identifies one slot within one page.
type RID struct {
	PageID  page.ID
	SlotNum uint32
}

func New(pageID page.ID, slot uint32) RID {
	return RID{PageID: pageID, SlotNum: slot}
}

func (r RID) String() string {
	return fmt.Sprintf("%d:%d", r.PageID, r.SlotNum)
}
