package scan

import (
	"testing"

	"github.com/LynnColeArt/gudaprim"
	"github.com/LynnColeArt/gudaprim/async"
	"github.com/LynnColeArt/gudaprim/radix"
	"github.com/stretchr/testify/require"
)

func TestSortThenScanPipeline(t *testing.T) {
	ctx := gudaprim.NewContextOrFail(t, gudaprim.Config{DispatchOrder: gudaprim.DispatchReversed})
	sortStream, scanStream := ctx.CreateStream(), ctx.CreateStream()

	keys := []int32{5, 3, 5, 1, 4, 1, 2, 9, 0, 7}
	out := make([]int32, len(keys))

	sorted := async.FromEvent(radix.SortOneWorkGroup(sortStream, keys, true, radix.Config{}))
	scanned := async.After(sorted, Submit(scanStream, keys, out, Max[int32], Config{WorkGroupSize: 4}, sorted.Event()))

	// One host synchronisation covers both stages.
	require.NoError(t, scanned.Wait())
	require.Equal(t, []int32{0, 1, 1, 2, 3, 4, 5, 5, 7, 9}, keys)
	require.Equal(t, keys, out)

	allocated, _ := ctx.MemoryStats()
	require.Zero(t, allocated)
}
