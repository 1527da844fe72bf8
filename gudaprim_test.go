package gudaprim

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/juju/clock/testclock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewContextDefaults(t *testing.T) {
	ctx := NewContextOrFail(t, Config{})

	dev := ctx.Device()
	require.Equal(t, "CPU", dev.Name)
	require.Positive(t, dev.NumCores)
	require.Equal(t, dev.NumCores*DefaultGroupsPerCore, dev.MaxResidentGroups)
	require.Equal(t, DefaultLocalMemSize, dev.LocalMemSize)
	require.Positive(t, dev.SubGroupSize)
	require.Equal(t, dev.Features.SubGroupSize(), dev.SubGroupSize)
	require.Positive(t, dev.TotalMem)
	require.NotNil(t, ctx.DefaultStream())
	require.Same(t, ctx, ctx.DefaultStream().Context())
}

func TestDefaultContext(t *testing.T) {
	a, err := DefaultContext()
	require.NoError(t, err)
	b, err := DefaultContext()
	require.NoError(t, err)
	require.Same(t, a, b)
}

func TestVersion(t *testing.T) {
	// Test binaries are built from this module, so the main module
	// version is reported.
	version, _ := Version()
	require.NotEmpty(t, version)
}

func TestCPUFeaturesString(t *testing.T) {
	require.Equal(t, "No SIMD extensions detected", CPUFeatures{}.String())
	f := CPUFeatures{HasAVX: true, HasAVX2: true, HasFMA: true}
	require.Equal(t, "CPU features: AVX, AVX2, FMA", f.String())
	require.Equal(t, 8, f.SubGroupSize())
	require.Equal(t, 1, CPUFeatures{}.SubGroupSize())
}

func TestContextLogging(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	ctx := NewContextOrFail(t, Config{Logger: logrus.NewEntry(logger)})

	ev := ctx.DefaultStream().Launch("boom", func(it *Item) {
		panic("boom")
	}, Linear(1), Linear(2))
	require.Error(t, ev.Wait())

	var messages []string
	for _, e := range hook.AllEntries() {
		messages = append(messages, e.Message)
	}
	require.Contains(t, messages, "device context created")
	require.Contains(t, messages, "launching kernel")
	require.Contains(t, messages, "kernel failed")
	require.Equal(t, "boom", hook.LastEntry().Data["kernel"])
}

func TestLaunchCoversGrid(t *testing.T) {
	ctx := NewContextOrFail(t, Config{})
	grid := Dim3{X: 3, Y: 2, Z: 2}
	block := Dim3{X: 4, Y: 2, Z: 1}
	n := grid.Size() * block.Size()

	visits := make([]int32, n)
	ev := ctx.DefaultStream().Launch("cover", func(it *Item) {
		assert.Equal(t, block, it.BlockDim)
		assert.Equal(t, grid, it.GridDim)
		assert.Equal(t, grid.Size(), it.NumGroups())
		g := it.GroupID()*it.GroupSize() + it.LocalID()
		atomic.AddInt32(&visits[g], 1)
	}, grid, block)
	WaitOrFail(t, ev)

	for i, v := range visits {
		require.EqualValues(t, 1, v, "work-item %d", i)
	}
}

func TestLaunchNormalizesDims(t *testing.T) {
	ctx := NewContextOrFail(t, Config{})
	var count int32
	ev := ctx.DefaultStream().Launch("flat", func(it *Item) {
		atomic.AddInt32(&count, 1)
	}, Dim3{X: 4}, Dim3{X: 8})
	WaitOrFail(t, ev)
	require.EqualValues(t, 32, count)
}

func TestLaunchInvalidConfiguration(t *testing.T) {
	ctx := NewContextOrFail(t, Config{})
	tests := []struct {
		name  string
		grid  Dim3
		block Dim3
	}{
		{"empty block", Linear(1), Linear(0)},
		{"oversized block", Linear(1), Linear(MaxThreadsPerBlock + 1)},
		{"negative block", Linear(1), Dim3{X: 4, Y: -1, Z: 1}},
		{"negative grid", Linear(-1), Linear(4)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ran := false
			ev := ctx.DefaultStream().Launch("bad", func(it *Item) { ran = true }, tt.grid, tt.block)
			err := ev.Wait()
			require.Error(t, err)
			require.True(t, IsLaunchError(err), "got %v", err)
			require.False(t, ran)
		})
	}
}

func TestEmptyGrid(t *testing.T) {
	ctx := NewContextOrFail(t, Config{})
	ev := ctx.DefaultStream().Launch("empty", func(it *Item) {
		t.Error("kernel ran on an empty grid")
	}, Linear(0), Linear(32))
	WaitOrFail(t, ev)
}

func TestStreamOrdering(t *testing.T) {
	ctx := NewContextOrFail(t, Config{})
	s := ctx.DefaultStream()
	const n = 1024
	data := make([]int, n)

	fill := s.Launch("fill", func(it *Item) {
		data[it.Global()] = it.Global()
	}, Linear(n/64), Linear(64))
	double := s.Launch("double", func(it *Item) {
		data[it.Global()] *= 2
	}, Linear(n/64), Linear(64))

	WaitOrFail(t, double)
	require.True(t, fill.IsComplete())
	for i, v := range data {
		require.Equal(t, 2*i, v)
	}
}

func TestCrossStreamDependency(t *testing.T) {
	ctx := NewContextOrFail(t, Config{})
	a, b := ctx.CreateStream(), ctx.CreateStream()

	release := make(chan struct{})
	var first atomic.Bool
	evA := a.Launch("first", func(it *Item) {
		<-release
		first.Store(true)
	}, Linear(1), Linear(1))

	var sawFirst atomic.Bool
	evB := b.Launch("second", func(it *Item) {
		sawFirst.Store(first.Load())
	}, Linear(1), Linear(1), evA, nil)

	require.False(t, evB.IsComplete())
	close(release)
	WaitOrFail(t, evB)
	require.True(t, sawFirst.Load())
	require.NoError(t, WaitAll(evA, evB))
}

func TestDependencyFailurePropagates(t *testing.T) {
	ctx := NewContextOrFail(t, Config{})
	s := ctx.DefaultStream()

	failed := s.Launch("fails", func(it *Item) {
		panic(errors.New("device fault"))
	}, Linear(2), Linear(4))

	ran := false
	skipped := s.Launch("skipped", func(it *Item) { ran = true }, Linear(1), Linear(1), failed)
	err := skipped.Wait()
	require.Error(t, err)
	require.False(t, ran)
	require.True(t, IsExecutionError(err))
	require.True(t, errors.Is(err, ErrDependencyFailed))
	require.Contains(t, err.Error(), "device fault")

	// Dependencies on a failed event that is already known fail the same way.
	again := s.Launch("again", func(it *Item) { ran = true }, Linear(1), Linear(1),
		FailedEvent(NewInvalidArgError("test", "bad input")))
	err = again.Wait()
	require.True(t, errors.Is(err, ErrDependencyFailed))
	require.True(t, IsInvalidArgError(err))
	require.False(t, ran)
}

func TestKernelPanicUnblocksBarrier(t *testing.T) {
	ctx := NewContextOrFail(t, Config{})
	ev := ctx.DefaultStream().Launch("partial-barrier", func(it *Item) {
		if it.LocalID() == 3 {
			panic("item 3 failed")
		}
		// Every other item parks here and must be released.
		it.Barrier()
	}, Linear(4), Linear(8))

	err := WaitTimeout(t, ev, 10*time.Second)
	require.Error(t, err)
	require.True(t, IsExecutionError(err))
	require.Contains(t, err.Error(), "item 3 failed")
}

func TestSpinAbortsOnLaunchFailure(t *testing.T) {
	ctx := NewContextOrFail(t, Config{MaxResidentGroups: 2})
	ev := ctx.DefaultStream().Launch("deadlock", func(it *Item) {
		if it.GroupID() == 1 {
			panic("group 1 failed")
		}
		// Group 0 waits on a value nobody will ever publish.
		for attempt := 0; ; attempt++ {
			it.Spin(attempt)
		}
	}, Linear(2), Linear(1))

	err := WaitTimeout(t, ev, 10*time.Second)
	require.Error(t, err)
	require.Contains(t, err.Error(), "group 1 failed")
	require.False(t, errors.Is(err, ErrLaunchAborted))
}

func TestSharedMemory(t *testing.T) {
	ctx := NewContextOrFail(t, Config{LocalMemSize: 1024})

	ev := ctx.DefaultStream().Launch("shared", func(it *Item) {
		buf := Shared[int32](it, 0, it.GroupSize())
		buf[it.LocalID()] = int32(it.LocalID())
		it.Barrier()
		var sum int32
		for _, v := range buf {
			sum += v
		}
		assert.EqualValues(t, 8*7/2, sum)
	}, Linear(4), Linear(8))
	WaitOrFail(t, ev)

	ev = ctx.DefaultStream().Launch("too-much", func(it *Item) {
		_ = Shared[uint64](it, 0, 64)
		_ = Shared[uint64](it, 1, 128)
	}, Linear(2), Linear(4))
	err := ev.Wait()
	require.Error(t, err)
	require.True(t, IsLaunchError(err), "got %v", err)
	require.True(t, errors.Is(err, ErrLocalMemoryExceeded))
}

func TestDispatchOrder(t *testing.T) {
	const groups = 8
	record := func(t *testing.T, cfg Config) []int {
		cfg.MaxResidentGroups = 1
		ctx := NewContextOrFail(t, cfg)
		var mu sync.Mutex
		var order []int
		ev := ctx.DefaultStream().Launch("order", func(it *Item) {
			mu.Lock()
			order = append(order, it.GroupID())
			mu.Unlock()
		}, Linear(groups), Linear(1))
		WaitOrFail(t, ev)
		return order
	}

	require.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7}, record(t, Config{DispatchOrder: DispatchInOrder}))
	require.Equal(t, []int{7, 6, 5, 4, 3, 2, 1, 0}, record(t, Config{DispatchOrder: DispatchReversed}))

	shuffled := record(t, Config{DispatchOrder: DispatchShuffled, DispatchSeed: 42})
	require.ElementsMatch(t, []int{0, 1, 2, 3, 4, 5, 6, 7}, shuffled)
	require.Equal(t, shuffled, record(t, Config{DispatchOrder: DispatchShuffled, DispatchSeed: 42}))
}

func TestParseDispatchOrder(t *testing.T) {
	for _, o := range []DispatchOrder{DispatchInOrder, DispatchReversed, DispatchShuffled} {
		got, err := ParseDispatchOrder(o.String())
		require.NoError(t, err)
		require.Equal(t, o, got)
	}
}

func TestEventProfile(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clk := testclock.NewClock(start)
	ctx := NewContextOrFail(t, Config{Clock: clk})

	ev := ctx.DefaultStream().Launch("timed", func(it *Item) {
		clk.Advance(time.Second)
	}, Linear(1), Linear(1))
	WaitOrFail(t, ev)

	p := ev.Profile()
	require.Equal(t, start, p.Submitted)
	require.Equal(t, start, p.Started)
	require.Equal(t, start.Add(time.Second), p.Ended)
	require.Equal(t, time.Second, p.Duration())
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	ctx := NewContextOrFail(t, Config{Registerer: reg})
	s := ctx.DefaultStream()

	WaitOrFail(t, s.Launch("ok", func(it *Item) {}, Linear(2), Linear(2)))
	require.Error(t, s.Launch("bad", func(it *Item) { panic("x") }, Linear(1), Linear(1)).Wait())

	m := ctx.Metrics()
	require.Equal(t, 1.0, testutil.ToFloat64(m.KernelLaunches.WithLabelValues("ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.KernelLaunches.WithLabelValues("bad")))
	require.Equal(t, 0.0, testutil.ToFloat64(m.KernelFailures.WithLabelValues("ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.KernelFailures.WithLabelValues("bad")))
	require.Equal(t, 1, testutil.CollectAndCount(m.KernelDuration))
}

func TestDestroy(t *testing.T) {
	ctx, err := NewContext(Config{})
	require.NoError(t, err)
	s := ctx.CreateStream()

	var count int32
	ev := s.Launch("before", func(it *Item) { atomic.AddInt32(&count, 1) }, Linear(4), Linear(4))
	ctx.Destroy()
	require.True(t, ev.IsComplete())
	require.EqualValues(t, 16, count)

	err = s.Launch("after", func(it *Item) {}, Linear(1), Linear(1)).Wait()
	require.True(t, errors.Is(err, ErrContextDestroyed))

	// Destroy is idempotent.
	ctx.Destroy()
}

func TestCreateStreamAfterDestroy(t *testing.T) {
	ctx, err := NewContext(Config{})
	require.NoError(t, err)
	ctx.Destroy()

	s := ctx.CreateStream()
	ran := false
	err = s.Launch("late", func(it *Item) { ran = true }, Linear(1), Linear(1)).Wait()
	require.True(t, errors.Is(err, ErrContextDestroyed))
	require.False(t, ran)

	// The stream has no worker and is not tracked by the context.
	s.Synchronize()
	require.NoError(t, ctx.Synchronize())
	ctx.mu.Lock()
	require.Empty(t, ctx.streams)
	ctx.mu.Unlock()
}
