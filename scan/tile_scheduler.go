package scan

import (
	"sync/atomic"

	"github.com/LynnColeArt/gudaprim"
)

// TileScheduler hands out logical tile indices in the order work-groups
// actually start running, independent of the device dispatch order. A
// tile can therefore only wait on tiles whose work-groups are already
// resident.
//
// Exactly NumTiles work-groups must be launched; this is not checked.
type TileScheduler struct {
	counter *uint64
}

// NewTileScheduler returns a scheduler using the counter slot of flags.
func NewTileScheduler(flags StatusFlags) TileScheduler {
	return TileScheduler{counter: flags.counter()}
}

// ObtainTileID returns the tile index of the calling work-group. Every
// item of the group must call it; the leader performs one fetch-add and
// the result is broadcast over a group barrier.
func (s TileScheduler) ObtainTileID(it *gudaprim.Item) int {
	var id int
	if it.IsLeader() {
		id = int(atomic.AddUint64(s.counter, 1) - 1)
	}
	return gudaprim.Broadcast(it, id, 0)
}
