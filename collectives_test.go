package gudaprim

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBarrierPhases(t *testing.T) {
	ctx := NewContextOrFail(t, Config{})
	const size = 16
	const phases = 5

	var mismatches int32
	ev := ctx.DefaultStream().Launch("phases", func(it *Item) {
		buf := Shared[int](it, 0, size)
		for p := 1; p <= phases; p++ {
			buf[it.LocalID()] = p
			it.Barrier()
			for _, v := range buf {
				if v != p {
					atomic.AddInt32(&mismatches, 1)
				}
			}
			it.Barrier()
		}
	}, Linear(3), Linear(size))
	WaitOrFail(t, ev)
	require.Zero(t, mismatches)
}

func TestCollectives(t *testing.T) {
	ctx := NewContextOrFail(t, Config{})
	const size = 8
	const groups = 4
	plus := func(a, b int) int { return a + b }
	maxOp := func(a, b int) int { return max(a, b) }

	type result struct {
		broadcast, reduce, maxReduce, inclusive, exclusive int
	}
	results := make([]result, groups*size)

	ev := ctx.DefaultStream().Launch("collectives", func(it *Item) {
		v := it.LocalID() + 1
		r := &results[it.GroupID()*size+it.LocalID()]
		r.broadcast = Broadcast(it, v*10, size-1)
		r.reduce = ReduceOver(it, v, plus)
		r.maxReduce = ReduceOver(it, v, maxOp)
		r.inclusive = InclusiveScanOver(it, v, plus)
		r.exclusive = ExclusiveScanOver(it, v, 0, plus)
	}, Linear(groups), Linear(size))
	WaitOrFail(t, ev)

	for i, r := range results {
		local := i % size
		require.Equal(t, size*10, r.broadcast)
		require.Equal(t, size*(size+1)/2, r.reduce)
		require.Equal(t, size, r.maxReduce)
		require.Equal(t, (local+1)*(local+2)/2, r.inclusive)
		require.Equal(t, local*(local+1)/2, r.exclusive)
	}
}

func TestScanOverIsOrdered(t *testing.T) {
	// A non-commutative operator reveals the combination order.
	ctx := NewContextOrFail(t, Config{})
	const size = 6
	concat := func(a, b string) string { return a + b }
	got := make([]string, size)

	ev := ctx.DefaultStream().Launch("concat", func(it *Item) {
		s := string(rune('a' + it.LocalID()))
		got[it.LocalID()] = InclusiveScanOver(it, s, concat)
	}, Linear(1), Linear(size))
	WaitOrFail(t, ev)
	require.Equal(t, []string{"a", "ab", "abc", "abcd", "abcde", "abcdef"}, got)
}
