// Package scan implements a single-pass inclusive prefix scan with
// decoupled look-back. Each work-group scans one tile; a tile learns the
// prefix of everything before it by reading the status words its
// predecessors publish, so no second pass and no host round trip between
// tiles is needed.
package scan

import (
	"fmt"

	"github.com/LynnColeArt/gudaprim"
	"github.com/LynnColeArt/gudaprim/async"
	"github.com/cockroachdb/errors"
	"github.com/hashicorp/go-multierror"
)

// KernelName labels scan launches in logs and metrics.
const KernelName = "scan.lookback"

// Config encapsulates the settings of a scan invocation.
type Config struct {
	// Work-items per work-group; also the tile size. If not specified,
	// gudaprim.DefaultBlockSize is used.
	WorkGroupSize int
}

func (cfg *Config) validate() error {
	var err error
	if cfg.WorkGroupSize == 0 {
		cfg.WorkGroupSize = gudaprim.DefaultBlockSize
	}
	if cfg.WorkGroupSize < 0 || cfg.WorkGroupSize > gudaprim.MaxThreadsPerBlock {
		err = multierror.Append(err, gudaprim.ErrInvalidWorkGroupSize)
	}
	return err
}

// Inclusive computes out[i] = in[0] op ... op in[i] and blocks until the
// scan has completed. op must be associative. in and out may be the same
// slice.
func Inclusive[T Element](s *gudaprim.Stream, in, out []T, op func(a, b T) T, cfg Config) error {
	return Submit(s, in, out, op, cfg).Wait()
}

// Submit launches the scan after deps and returns a future owning the
// status-word scratch of the invocation. The scratch is released when
// the future, or a future chained after it, is fulfilled.
func Submit[T Element](s *gudaprim.Stream, in, out []T, op func(a, b T) T, cfg Config, deps ...*gudaprim.Event) *async.Future[async.Void] {
	if err := cfg.validate(); err != nil {
		return async.Failed[async.Void](gudaprim.NewConfigError("scan.Submit", err))
	}
	if len(out) < len(in) {
		return async.Failed[async.Void](gudaprim.NewInvalidArgError("scan.Submit",
			fmt.Sprintf("output holds %d elements, input has %d", len(out), len(in))))
	}
	n := len(in)
	if n == 0 {
		// An empty grid still orders after deps.
		ev := s.Launch(KernelName, func(*gudaprim.Item) {}, gudaprim.Linear(0), gudaprim.Linear(cfg.WorkGroupSize), deps...)
		return async.FromEvent(ev)
	}

	numTiles := (n + cfg.WorkGroupSize - 1) / cfg.WorkGroupSize
	arena := s.Context().NewArena()
	words, err := arena.Words(FlagWords(numTiles))
	if err != nil {
		arena.Release()
		return async.Failed[async.Void](err)
	}
	flags := NewStatusFlags(words, numTiles)

	k := tileKernel[T]{
		in:    in[:n],
		out:   out[:n],
		op:    op,
		n:     n,
		flags: flags,
		sched: NewTileScheduler(flags),
	}
	ev := s.Launch(KernelName, k.run, gudaprim.Linear(numTiles), gudaprim.Linear(cfg.WorkGroupSize), deps...)
	return async.FromEvent(ev, arena)
}

// tileKernel holds the parameters of one scan launch.
type tileKernel[T Element] struct {
	in, out []T
	op      func(a, b T) T
	n       int
	flags   StatusFlags
	sched   TileScheduler
}

func (k tileKernel[T]) run(it *gudaprim.Item) {
	tile := k.sched.ObtainTileID(it)
	size := it.GroupSize()
	base := tile * size
	idx := base + it.LocalID()

	// Items past the end only ever feed scan positions after the last
	// valid one, which are never read.
	var x T
	valid := idx < k.n
	if valid {
		x = k.in[idx]
	}
	local := gudaprim.InclusiveScanOver(it, x, k.op)
	last := min(k.n-base, size) - 1
	aggregate := gudaprim.Broadcast(it, local, last)

	var prefix T
	if it.IsLeader() {
		prefix = k.lookback(it, tile, aggregate)
	}
	prefix = gudaprim.Broadcast(it, prefix, 0)

	if valid {
		if tile > 0 {
			local = k.op(prefix, local)
		}
		k.out[idx] = local
	}
}

// lookback publishes the tile aggregate, derives the exclusive prefix
// from the predecessors and publishes the inclusive prefix. Only the
// leader calls it.
func (k tileKernel[T]) lookback(it *gudaprim.Item, tile int, aggregate T) T {
	k.flags.Publish(tile, Pack(Partial, aggregate))

	var prefix T
	found := false
	for j := tile - 1; j >= 0; j-- {
		f := k.flags.Load(j)
		for attempt := 0; f.State() == Invalid; attempt++ {
			it.Spin(attempt)
			f = k.flags.Load(j)
		}
		if st := f.State(); st != Partial && st != Full {
			panic(errors.AssertionFailedf("tile %d: corrupt status word %#x", j, uint64(f)))
		}
		v := Value[T](f)
		if found {
			prefix = k.op(v, prefix)
		} else {
			prefix, found = v, true
		}
		if f.State() == Full {
			break
		}
	}

	inclusive := aggregate
	if found {
		inclusive = k.op(prefix, aggregate)
	}
	k.flags.Publish(tile, Pack(Full, inclusive))
	return prefix
}
