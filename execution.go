package gudaprim

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Launch submits kernel over grid work-groups of block work-items. The
// kernel starts once every event in deps has completed; if any of them
// failed the kernel is skipped and the returned event carries an
// execution error wrapping the upstream cause. The host is never blocked
// by Launch.
//
// Example:
//
//	ev := stream.Launch("add", kernel, gudaprim.Linear(groups), gudaprim.Linear(256), prev)
//	if err := ev.Wait(); err != nil {
//		return err
//	}
func (s *Stream) Launch(name string, kernel KernelFunc, grid, block Dim3, deps ...*Event) *Event {
	ctx := s.ctx
	grid, block = grid.norm(), block.norm()
	ev := newEvent(ctx.clock.Now())
	ctx.metrics.KernelLaunches.WithLabelValues(name).Inc()

	if err := ctx.checkLaunch(name, grid, block); err != nil {
		ctx.finish(name, ev, ev.profile.Submitted, err)
		return ev
	}

	submitted := s.Submit(func() {
		for _, dep := range deps {
			if dep == nil {
				continue
			}
			if err := dep.Wait(); err != nil {
				ctx.finish(name, ev, ctx.clock.Now(),
					NewExecutionError(name, "dependency failed", errors.Mark(err, ErrDependencyFailed)))
				return
			}
		}
		start := ctx.clock.Now()
		ctx.finish(name, ev, start, ctx.launchInternal(name, kernel, grid, block))
	})
	if !submitted {
		ctx.finish(name, ev, ev.profile.Submitted, ErrContextDestroyed)
	}
	return ev
}

func (ctx *Context) checkLaunch(name string, grid, block Dim3) error {
	if grid.X < 0 || grid.Y < 0 || grid.Z < 0 {
		return NewLaunchError(name, fmt.Sprintf("invalid grid %+v", grid), nil)
	}
	if n := block.Size(); n <= 0 || n > MaxThreadsPerBlock || block.X <= 0 || block.Y <= 0 || block.Z <= 0 {
		return NewLaunchError(name, fmt.Sprintf("invalid block %+v", block), ErrInvalidWorkGroupSize)
	}
	return nil
}

func (ctx *Context) finish(name string, ev *Event, start time.Time, err error) {
	end := ctx.clock.Now()
	if err != nil {
		ctx.metrics.KernelFailures.WithLabelValues(name).Inc()
		ctx.logger.WithFields(logrus.Fields{
			"kernel": name,
			"err":    err,
		}).Warn("kernel failed")
	} else {
		ctx.metrics.KernelDuration.WithLabelValues(name).Observe(end.Sub(start).Seconds())
	}
	ev.complete(start, end, err)
}

// launch is the state shared by every work-group of one kernel launch.
type launch struct {
	ctx    *Context
	name   string
	kernel KernelFunc
	grid   Dim3
	block  Dim3

	aborted   atomic.Bool
	causeOnce sync.Once
	cause     error
}

// fail records the first failure of the launch and tells every other
// work-group to stop.
func (l *launch) fail(err error) {
	l.causeOnce.Do(func() { l.cause = err })
	l.aborted.Store(true)
}

// launchInternal implements the core kernel execution logic
func (ctx *Context) launchInternal(name string, kernel KernelFunc, grid, block Dim3) error {
	gridSize := grid.Size()
	if gridSize == 0 {
		return nil
	}

	ctx.logger.WithFields(logrus.Fields{
		"kernel":     name,
		"groups":     gridSize,
		"group_size": block.Size(),
	}).Debug("launching kernel")

	l := &launch{
		ctx:    ctx,
		name:   name,
		kernel: kernel,
		grid:   grid,
		block:  block,
	}

	// At most MaxResidentGroups work-groups run at once, and they are
	// handed out in dispatch order. A group that is waiting for a slot has
	// not started, which is what lets schedule-sensitive kernels be tested.
	var g errgroup.Group
	g.SetLimit(ctx.device.MaxResidentGroups)
	for _, groupID := range ctx.dispatchOrder(gridSize) {
		if l.aborted.Load() {
			break
		}
		groupID := groupID
		g.Go(func() error {
			return l.runGroup(groupID)
		})
	}
	_ = g.Wait()

	if l.cause == nil {
		return nil
	}
	var typed *Error
	if errors.As(l.cause, &typed) && typed.Type == ErrTypeLaunch {
		return l.cause
	}
	return NewExecutionError(name, "kernel failed", l.cause)
}

// dispatchOrder returns the order in which work-group ids are handed to
// the device.
func (ctx *Context) dispatchOrder(n int) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	switch ctx.cfg.DispatchOrder {
	case DispatchReversed:
		for i, j := 0, n-1; i < j; i, j = i+1, j-1 {
			order[i], order[j] = order[j], order[i]
		}
	case DispatchShuffled:
		ctx.rngMu.Lock()
		ctx.rng.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })
		ctx.rngMu.Unlock()
	}
	return order
}

// runGroup executes every work-item of one work-group and waits for them.
func (l *launch) runGroup(groupID int) error {
	blockSize := l.block.Size()
	group := newWorkGroup(l, groupID, blockSize)
	blockIdx := linearTo3D(groupID, l.grid)

	var wg sync.WaitGroup
	wg.Add(blockSize)
	for local := 0; local < blockSize; local++ {
		it := &Item{
			ThreadID: ThreadID{
				BlockIdx:  blockIdx,
				ThreadIdx: linearTo3D(local, l.block),
				BlockDim:  l.block,
				GridDim:   l.grid,
			},
			local: local,
			group: group,
		}
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					group.fail(r)
				}
			}()
			l.kernel(it)
		}()
	}
	wg.Wait()
	return group.err
}

// norm treats unset Y and Z extents as 1.
func (d Dim3) norm() Dim3 {
	if d.Y == 0 {
		d.Y = 1
	}
	if d.Z == 0 {
		d.Z = 1
	}
	return d
}

// linearTo3D converts a linear index to 3D coordinates
func linearTo3D(linear int, dim Dim3) Dim3 {
	z := linear / (dim.X * dim.Y)
	y := (linear % (dim.X * dim.Y)) / dim.X
	x := linear % dim.X
	return Dim3{X: x, Y: y, Z: z}
}
