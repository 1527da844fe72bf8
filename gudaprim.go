package gudaprim

import (
	"math/rand"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/juju/clock"
	"github.com/sirupsen/logrus"
)

// Used when the platform does not report its memory size.
const fallbackSystemMemory = 16 * 1024 * 1024 * 1024

// Device represents a compute device. In gudaprim, this is the CPU with its
// cores and available memory.
type Device struct {
	ID                int         // Unique device identifier
	Name              string      // Human-readable device name
	TotalMem          uint64      // Total available memory in bytes
	NumCores          int         // Number of CPU cores
	MaxResidentGroups int         // Work-groups executing at once
	LocalMemSize      int         // Local memory per work-group in bytes
	SubGroupSize      int         // Vector lanes per core
	Features          CPUFeatures // Detected SIMD extensions
}

// Context represents an execution context for gudaprim operations.
// It manages device resources, scratch allocation and stream execution.
// A Context must be created before launching kernels and should be
// destroyed when no longer needed.
type Context struct {
	device        *Device
	cfg           Config
	clock         clock.Clock
	logger        *logrus.Entry
	metrics       *Metrics
	memory        *MemoryPool
	mu            sync.Mutex
	streams       map[int]*Stream
	streamID      int32
	defaultStream *Stream
	destroyed     bool
	rngMu         sync.Mutex
	rng           *rand.Rand
}

// Stream represents an ordered sequence of submissions. A submission
// starts once every event it depends on has completed; submissions on
// different streams may execute concurrently.
type Stream struct {
	id     int
	ctx    *Context
	tasks  chan func()
	done   chan struct{}
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

// Dim3 represents 3D dimensions for grid and block configurations.
type Dim3 struct {
	X, Y, Z int
}

// ThreadID identifies a work-item's position within the execution
// hierarchy.
type ThreadID struct {
	BlockIdx  Dim3 // Work-group index within the grid
	ThreadIdx Dim3 // Work-item index within the work-group
	BlockDim  Dim3 // Dimensions of the work-group
	GridDim   Dim3 // Dimensions of the grid
}

// KernelFunc is the body executed by every work-item of a launch.
// Per-launch parameters are captured by value in the closure.
type KernelFunc func(it *Item)

var (
	defaultContext *Context
	defaultErr     error
	initOnce       sync.Once
)

// DefaultContext returns a process-wide context created with the default
// Config on first use.
func DefaultContext() (*Context, error) {
	initOnce.Do(func() {
		defaultContext, defaultErr = NewContext(Config{})
	})
	return defaultContext, defaultErr
}

// NewContext creates a context for the CPU device.
func NewContext(cfg Config) (*Context, error) {
	if err := cfg.validate(); err != nil {
		return nil, NewConfigError("NewContext", err)
	}

	features := detectCPUFeatures()
	device := &Device{
		ID:                0,
		Name:              "CPU",
		TotalMem:          getSystemMemory(),
		NumCores:          runtime.NumCPU(),
		MaxResidentGroups: cfg.MaxResidentGroups,
		LocalMemSize:      cfg.LocalMemSize,
		SubGroupSize:      features.SubGroupSize(),
		Features:          features,
	}

	ctx := &Context{
		device:  device,
		cfg:     cfg,
		clock:   cfg.Clock,
		logger:  cfg.Logger,
		metrics: newMetrics(cfg.Registerer),
		memory:  NewMemoryPool(),
		streams: make(map[int]*Stream),
		rng:     rand.New(rand.NewSource(cfg.DispatchSeed)),
	}
	ctx.memory.metrics = ctx.metrics
	ctx.defaultStream = ctx.CreateStream()

	ctx.logger.WithFields(logrus.Fields{
		"device":          device.Name,
		"cores":           device.NumCores,
		"resident_groups": device.MaxResidentGroups,
		"local_mem":       device.LocalMemSize,
		"sub_group":       device.SubGroupSize,
		"dispatch":        cfg.DispatchOrder.String(),
		"features":        features.String(),
	}).Info("device context created")
	return ctx, nil
}

// Device returns the device information.
func (ctx *Context) Device() *Device {
	return ctx.device
}

// Metrics returns the collectors the context reports to.
func (ctx *Context) Metrics() *Metrics {
	return ctx.metrics
}

// Logger returns the context logger.
func (ctx *Context) Logger() *logrus.Entry {
	return ctx.logger
}

// MemoryStats returns the scratch bytes in use and the peak.
func (ctx *Context) MemoryStats() (allocated, peak int64) {
	return ctx.memory.GetStats()
}

// DefaultStream returns the stream created with the context.
func (ctx *Context) DefaultStream() *Stream {
	return ctx.defaultStream
}

// CreateStream creates a new execution stream. On a destroyed context the
// stream is returned already closed and every launch on it fails with
// ErrContextDestroyed.
func (ctx *Context) CreateStream() *Stream {
	id := int(atomic.AddInt32(&ctx.streamID, 1))
	stream := &Stream{
		id:    id,
		ctx:   ctx,
		tasks: make(chan func(), 1000),
		done:  make(chan struct{}),
	}

	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	if ctx.destroyed {
		stream.closed = true
		close(stream.done)
		return stream
	}

	// Start worker goroutine for stream
	go stream.worker()
	ctx.streams[id] = stream
	return stream
}

// Synchronize waits for all streams to complete
func (ctx *Context) Synchronize() error {
	ctx.mu.Lock()
	streams := make([]*Stream, 0, len(ctx.streams))
	for _, s := range ctx.streams {
		streams = append(streams, s)
	}
	ctx.mu.Unlock()

	for _, s := range streams {
		s.Synchronize()
	}
	return nil
}

// Destroy waits for outstanding work and shuts the streams down. Launches
// on a destroyed context fail with ErrContextDestroyed.
func (ctx *Context) Destroy() {
	ctx.mu.Lock()
	if ctx.destroyed {
		ctx.mu.Unlock()
		return
	}
	ctx.destroyed = true
	streams := ctx.streams
	ctx.streams = make(map[int]*Stream)
	ctx.mu.Unlock()

	for _, s := range streams {
		s.Synchronize()
		s.mu.Lock()
		s.closed = true
		close(s.tasks)
		s.mu.Unlock()
		<-s.done
	}
	ctx.logger.Info("device context destroyed")
}

// Stream methods

// worker processes tasks for a stream
func (s *Stream) worker() {
	for task := range s.tasks {
		task()
		s.wg.Done()
	}
	close(s.done)
}

// Synchronize waits for all tasks in the stream to complete
func (s *Stream) Synchronize() {
	s.wg.Wait()
}

// Submit adds a task to the stream. It reports false if the stream has
// been shut down.
func (s *Stream) Submit(task func()) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false
	}
	s.wg.Add(1)
	s.tasks <- task
	return true
}

// Context returns the context that owns the stream.
func (s *Stream) Context() *Context {
	return s.ctx
}

// Helper functions

// Global returns the global thread index
func (tid ThreadID) Global() int {
	return tid.BlockIdx.X*tid.BlockDim.X + tid.ThreadIdx.X
}

// GlobalX returns the global X index
func (tid ThreadID) GlobalX() int {
	return tid.BlockIdx.X*tid.BlockDim.X + tid.ThreadIdx.X
}

// GlobalY returns the global Y index
func (tid ThreadID) GlobalY() int {
	return tid.BlockIdx.Y*tid.BlockDim.Y + tid.ThreadIdx.Y
}

// GlobalZ returns the global Z index
func (tid ThreadID) GlobalZ() int {
	return tid.BlockIdx.Z*tid.BlockDim.Z + tid.ThreadIdx.Z
}

// Size returns the total number of elements
func (d Dim3) Size() int {
	return d.X * d.Y * d.Z
}

// Linear returns a 1D grid or block of n.
func Linear(n int) Dim3 {
	return Dim3{X: n, Y: 1, Z: 1}
}
