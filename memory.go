package gudaprim

import (
	"sync"
	"unsafe"
)

// MemoryPool manages device scratch allocation with efficient reuse.
// It maintains a free list of previously allocated blocks to reduce
// allocation overhead across invocations. Blocks are slices of 64-bit
// words so that every word can be used with sync/atomic.
type MemoryPool struct {
	mu         sync.Mutex
	allocated  map[*uint64]*allocation
	freeList   []*allocation
	totalAlloc int64
	peakAlloc  int64
	metrics    *Metrics
}

type allocation struct {
	words []uint64
	used  bool
}

const wordSize = int64(unsafe.Sizeof(uint64(0)))

// NewMemoryPool creates a new memory pool for scratch management.
// The pool tracks allocations and provides statistics on memory usage.
func NewMemoryPool() *MemoryPool {
	return &MemoryPool{
		allocated: make(map[*uint64]*allocation),
	}
}

// Allocate returns a zero-initialised block of n words.
func (mp *MemoryPool) Allocate(n int) ([]uint64, error) {
	if n <= 0 {
		return nil, NewInvalidArgError("Allocate", "size must be positive")
	}
	mp.mu.Lock()
	defer mp.mu.Unlock()

	// Round up to the minimum block
	size := n
	if size < MinAllocationWords {
		size = MinAllocationWords
	}

	// Try to reuse from free list
	for i, alloc := range mp.freeList {
		if len(alloc.words) >= size {
			mp.freeList = append(mp.freeList[:i], mp.freeList[i+1:]...)
			alloc.used = true
			clear(alloc.words[:n])
			mp.track(int64(len(alloc.words)))
			return alloc.words[:n:n], nil
		}
	}

	words := make([]uint64, size)
	alloc := &allocation{words: words, used: true}
	mp.allocated[&words[0]] = alloc
	mp.track(int64(size))
	return words[:n:n], nil
}

// Free returns a block to the pool
func (mp *MemoryPool) Free(words []uint64) error {
	if len(words) == 0 {
		return nil
	}
	mp.mu.Lock()
	defer mp.mu.Unlock()

	alloc, ok := mp.allocated[&words[0]]
	if !ok {
		return NewMemoryError("Free", "block not found in allocation pool", nil)
	}
	if !alloc.used {
		return NewMemoryError("Free", "double free detected", nil)
	}

	alloc.used = false
	if len(mp.freeList) < FreeListThreshold {
		mp.freeList = append(mp.freeList, alloc)
	} else {
		delete(mp.allocated, &alloc.words[0])
	}
	mp.track(-int64(len(alloc.words)))
	return nil
}

// track must be called with mp.mu held.
func (mp *MemoryPool) track(deltaWords int64) {
	mp.totalAlloc += deltaWords * wordSize
	if mp.totalAlloc > mp.peakAlloc {
		mp.peakAlloc = mp.totalAlloc
	}
	if mp.metrics != nil {
		mp.metrics.ScratchInUse.Set(float64(mp.totalAlloc))
		mp.metrics.ScratchPeak.Set(float64(mp.peakAlloc))
	}
}

// GetStats returns memory pool statistics in bytes
func (mp *MemoryPool) GetStats() (allocated, peak int64) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return mp.totalAlloc, mp.peakAlloc
}

// Arena is the scratch owned by a single invocation of a primitive. All of
// its blocks are zero-initialised when handed out and go back to the pool
// together on Release.
type Arena struct {
	mu       sync.Mutex
	pool     *MemoryPool
	blocks   [][]uint64
	released bool
}

// NewArena creates an empty arena drawing from the context's pool.
func (ctx *Context) NewArena() *Arena {
	return &Arena{pool: ctx.memory}
}

// Words allocates a zeroed block of n words owned by the arena.
func (a *Arena) Words(n int) ([]uint64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.released {
		return nil, NewMemoryError("Arena.Words", "arena already released", nil)
	}
	words, err := a.pool.Allocate(n)
	if err != nil {
		return nil, err
	}
	a.blocks = append(a.blocks, words)
	return words, nil
}

// Release returns every block to the pool. It is safe to call more than
// once.
func (a *Arena) Release() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.released {
		return
	}
	a.released = true
	for _, b := range a.blocks {
		// Blocks came from this pool, Free cannot miss.
		_ = a.pool.Free(b)
	}
	a.blocks = nil
}
