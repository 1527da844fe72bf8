// Package radix sorts inputs that fit in one work-group entirely in local
// memory with a least-significant-digit radix sort.
package radix

import (
	"fmt"

	"github.com/LynnColeArt/gudaprim"
	"github.com/hashicorp/go-multierror"
)

// KernelName labels sort launches in logs and metrics.
const KernelName = "radix.one_workgroup"

const (
	// DefaultGroupSize is the default number of work-items.
	DefaultGroupSize = 64
	// DefaultBlockSize is the default number of keys per work-item.
	DefaultBlockSize = 16
	// DefaultRadixBits is the default number of key bits per pass.
	DefaultRadixBits = 4
	// MaxRadixBits bounds the bucket count at 256.
	MaxRadixBits = 8
)

// Local memory slots used by the kernel.
const (
	slotKeys = iota
	slotKeyExchange
	slotValues
	slotValueExchange
	slotCounters
)

// Config encapsulates the settings of a one-work-group sort.
type Config struct {
	// Work-items in the work-group. If not specified, DefaultGroupSize is
	// used.
	GroupSize int

	// Keys loaded by each work-item. If not specified, DefaultBlockSize is
	// used.
	BlockSize int

	// Key bits consumed per pass; the pass uses 2^RadixBits buckets. If
	// not specified, DefaultRadixBits is used.
	RadixBits int
}

func (cfg *Config) validate() error {
	var err error
	if cfg.GroupSize == 0 {
		cfg.GroupSize = DefaultGroupSize
	}
	if cfg.BlockSize == 0 {
		cfg.BlockSize = DefaultBlockSize
	}
	if cfg.RadixBits == 0 {
		cfg.RadixBits = DefaultRadixBits
	}
	if cfg.GroupSize < 0 || cfg.GroupSize > gudaprim.MaxThreadsPerBlock {
		err = multierror.Append(err, gudaprim.ErrInvalidWorkGroupSize)
	}
	if cfg.BlockSize < 0 {
		err = multierror.Append(err, gudaprim.NewInvalidArgError("radix.Config", "block size must not be negative"))
	}
	if cfg.RadixBits < 0 || cfg.RadixBits > MaxRadixBits {
		err = multierror.Append(err, gudaprim.NewInvalidArgError("radix.Config",
			fmt.Sprintf("radix bits must be in [1, %d]", MaxRadixBits)))
	}
	return err
}

// Capacity returns the largest input one work-group sorts with cfg.
func Capacity(cfg Config) int {
	if err := cfg.validate(); err != nil {
		return 0
	}
	return cfg.GroupSize * cfg.BlockSize
}

// SortOneWorkGroup sorts keys in place, in ascending or descending order,
// with a single work-group. The sort is stable. Inputs larger than
// Capacity(cfg) fail with a launch error on the returned event.
func SortOneWorkGroup[K Key](s *gudaprim.Stream, keys []K, ascending bool, cfg Config, deps ...*gudaprim.Event) *gudaprim.Event {
	return submit[K, struct{}](s, keys, nil, ascending, cfg, deps)
}

// SortByKeyOneWorkGroup sorts keys in place and applies the same
// permutation to values, which must be at least as long as keys.
func SortByKeyOneWorkGroup[K Key, V any](s *gudaprim.Stream, keys []K, values []V, ascending bool, cfg Config, deps ...*gudaprim.Event) *gudaprim.Event {
	if len(values) < len(keys) {
		return gudaprim.FailedEvent(gudaprim.NewInvalidArgError("radix.SortByKeyOneWorkGroup",
			fmt.Sprintf("values holds %d elements, keys has %d", len(values), len(keys))))
	}
	return submit(s, keys, values, ascending, cfg, deps)
}

func submit[K Key, V any](s *gudaprim.Stream, keys []K, values []V, ascending bool, cfg Config, deps []*gudaprim.Event) *gudaprim.Event {
	if err := cfg.validate(); err != nil {
		return gudaprim.FailedEvent(gudaprim.NewConfigError(KernelName, err))
	}
	n := len(keys)
	if n == 0 {
		return s.Launch(KernelName, func(*gudaprim.Item) {}, gudaprim.Linear(0), gudaprim.Linear(1), deps...)
	}
	if capacity := cfg.GroupSize * cfg.BlockSize; n > capacity {
		return gudaprim.FailedEvent(gudaprim.NewLaunchError(KernelName,
			fmt.Sprintf("%d keys do not fit in one work-group of capacity %d", n, capacity),
			gudaprim.ErrCapacityExceeded))
	}

	k := sortKernel[K, V]{
		keys:      keys,
		values:    values,
		n:         n,
		blockSize: cfg.BlockSize,
		radixBits: cfg.RadixBits,
		codec:     newCodec[K](ascending),
	}
	return s.Launch(KernelName, k.run, gudaprim.Linear(1), gudaprim.Linear(cfg.GroupSize), deps...)
}

// sortKernel holds the parameters of one sort launch.
type sortKernel[K Key, V any] struct {
	keys      []K
	values    []V
	n         int
	blockSize int
	radixBits int
	codec     codec[K]
}

func (k sortKernel[K, V]) run(it *gudaprim.Item) {
	groupSize := it.GroupSize()
	capacity := groupSize * k.blockSize
	bins := 1 << k.radixBits
	hasValues := k.values != nil

	keys := gudaprim.Shared[uint64](it, slotKeys, capacity)
	keyExchange := gudaprim.Shared[uint64](it, slotKeyExchange, capacity)
	counters := gudaprim.Shared[uint32](it, slotCounters, bins*groupSize)
	var values, valueExchange []V
	if hasValues {
		values = gudaprim.Shared[V](it, slotValues, capacity)
		valueExchange = gudaprim.Shared[V](it, slotValueExchange, capacity)
	}

	// Blocked arrangement: item id owns slots [first, first+blockSize).
	id := it.LocalID()
	first := id * k.blockSize
	for j := 0; j < k.blockSize; j++ {
		i := first + j
		if i < k.n {
			keys[i] = k.codec.encode(k.keys[i])
			if hasValues {
				values[i] = k.values[i]
			}
		} else {
			keys[i] = k.codec.padding()
		}
	}

	ranks := make([]uint32, k.blockSize)
	mask := uint64(bins - 1)
	for begin := 0; begin < k.codec.bits; begin += k.radixBits {
		last := begin+k.radixBits >= k.codec.bits

		// Count this item's keys per digit; the counter of (digit, item)
		// lives at digit*groupSize+item so one digit's counts are
		// contiguous in item order.
		for d := 0; d < bins; d++ {
			counters[d*groupSize+id] = 0
		}
		for j := 0; j < k.blockSize; j++ {
			d := int((keys[first+j] >> begin) & mask)
			ranks[j] = counters[d*groupSize+id]
			counters[d*groupSize+id]++
		}
		it.Barrier()

		// Exclusive scan over all counters: each item sums a contiguous
		// chunk, the chunk sums are scanned across the group, then each
		// item writes the offsets of its chunk.
		chunk := counters[id*bins : (id+1)*bins]
		var sum uint32
		for _, c := range chunk {
			sum += c
		}
		offset := gudaprim.ExclusiveScanOver(it, sum, 0, func(a, b uint32) uint32 { return a + b })
		for i, c := range chunk {
			chunk[i] = offset
			offset += c
		}
		it.Barrier()

		for j := 0; j < k.blockSize; j++ {
			key := keys[first+j]
			d := int((key >> begin) & mask)
			dest := int(counters[d*groupSize+id] + ranks[j])
			if last {
				// Padding always lands at or past n.
				if dest < k.n {
					k.keys[dest] = k.codec.decode(key)
					if hasValues {
						k.values[dest] = values[first+j]
					}
				}
				continue
			}
			keyExchange[dest] = key
			if hasValues {
				valueExchange[dest] = values[first+j]
			}
		}
		if last {
			break
		}
		it.Barrier()

		copy(keys[first:first+k.blockSize], keyExchange[first:first+k.blockSize])
		if hasValues {
			copy(values[first:first+k.blockSize], valueExchange[first:first+k.blockSize])
		}
	}
}
