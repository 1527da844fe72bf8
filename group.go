package gudaprim

import (
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	"github.com/cockroachdb/errors"
)

// barrier is a reusable group barrier. Once broken every current and
// future waiter panics with ErrBarrierBroken.
type barrier struct {
	mu      sync.Mutex
	cond    *sync.Cond
	n       int
	arrived int
	gen     uint64
	broken  bool
}

func newBarrier(n int) *barrier {
	b := &barrier{n: n}
	b.cond = sync.NewCond(&b.mu)
	return b
}

func (b *barrier) await() {
	b.mu.Lock()
	if b.broken {
		b.mu.Unlock()
		panic(ErrBarrierBroken)
	}
	gen := b.gen
	b.arrived++
	if b.arrived == b.n {
		b.arrived = 0
		b.gen++
		b.cond.Broadcast()
		b.mu.Unlock()
		return
	}
	for gen == b.gen && !b.broken {
		b.cond.Wait()
	}
	broken := gen == b.gen
	b.mu.Unlock()
	if broken {
		panic(ErrBarrierBroken)
	}
}

func (b *barrier) breakAll() {
	b.mu.Lock()
	b.broken = true
	b.cond.Broadcast()
	b.mu.Unlock()
}

// workGroup is the state shared by the items of one work-group: the
// barrier, the exchange slots used by collectives and local memory.
type workGroup struct {
	launch  *launch
	id      int
	size    int
	barrier *barrier

	// exchange holds one value per item for collectives; result holds
	// the value computed by the leader.
	exchange []any
	result   any

	mu        sync.Mutex
	shared    map[int]any
	localUsed int
	err       error
}

func newWorkGroup(l *launch, id, size int) *workGroup {
	return &workGroup{
		launch:   l,
		id:       id,
		size:     size,
		barrier:  newBarrier(size),
		exchange: make([]any, size),
		shared:   make(map[int]any),
	}
}

// fail handles a panic recovered from one of the group's items.
func (g *workGroup) fail(r any) {
	err, ok := r.(error)
	if !ok {
		err = errors.Newf("kernel panic: %v", r)
	}
	g.barrier.breakAll()
	if errors.Is(err, ErrBarrierBroken) || errors.Is(err, ErrLaunchAborted) {
		// Secondary: a sibling or another group already failed.
		return
	}
	err = errors.Wrapf(err, "work-group %d", g.id)
	g.mu.Lock()
	if g.err == nil {
		g.err = err
	}
	g.mu.Unlock()
	g.launch.fail(err)
}

// Item is the handle a kernel receives for one work-item.
type Item struct {
	ThreadID
	local int
	group *workGroup
}

// LocalID returns the linear index of the item within its work-group.
func (it *Item) LocalID() int { return it.local }

// GroupID returns the linear index of the work-group in the grid. It is
// the hardware dispatch index, not a logical tile index.
func (it *Item) GroupID() int { return it.group.id }

// GroupSize returns the number of items in the work-group.
func (it *Item) GroupSize() int { return it.group.size }

// NumGroups returns the number of work-groups in the launch.
func (it *Item) NumGroups() int { return it.GridDim.Size() }

// IsLeader reports whether this is item 0 of its work-group.
func (it *Item) IsLeader() bool { return it.local == 0 }

// Barrier blocks until every item of the work-group has reached it.
func (it *Item) Barrier() {
	it.group.barrier.await()
}

// Spin is called by an item polling device memory that another work-group
// has not written yet. attempt counts consecutive failed polls. The first
// SpinBudget polls run hot, later ones yield the processor. If the launch
// has been aborted the item is unwound with ErrLaunchAborted.
func (it *Item) Spin(attempt int) {
	l := it.group.launch
	l.ctx.metrics.SpinPolls.Inc()
	if l.aborted.Load() {
		panic(ErrLaunchAborted)
	}
	if attempt >= SpinBudget {
		runtime.Gosched()
	}
}

// Shared returns the work-group local memory block identified by slot,
// allocating n zeroed elements on first use. Every item that asks for the
// same slot gets the same slice. Exceeding the device local memory is a
// launch failure.
func Shared[T any](it *Item, slot int, n int) []T {
	g := it.group
	g.mu.Lock()
	defer g.mu.Unlock()
	if v, ok := g.shared[slot]; ok {
		return v.([]T)
	}
	var zero T
	bytes := n * int(unsafe.Sizeof(zero))
	limit := g.launch.ctx.device.LocalMemSize
	if g.localUsed+bytes > limit {
		panic(NewLaunchError(g.launch.name,
			fmt.Sprintf("work-group needs %d bytes of local memory, device has %d", g.localUsed+bytes, limit),
			ErrLocalMemoryExceeded))
	}
	s := make([]T, n)
	g.shared[slot] = s
	g.localUsed += bytes
	return s
}
