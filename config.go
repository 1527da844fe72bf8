// Package gudaprim configuration constants
package gudaprim

import (
	"io"
	"runtime"

	"github.com/hashicorp/go-multierror"
	"github.com/juju/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// Thread and block dimensions
const (
	// Default work-group size for kernels
	DefaultBlockSize = 256

	// Maximum work-items per work-group
	MaxThreadsPerBlock = 1024
)

// Device limits
const (
	// Local (work-group shared) memory available to one work-group
	DefaultLocalMemSize = 128 * 1024 // 128KB

	// Resident work-groups per core when MaxResidentGroups is not set
	DefaultGroupsPerCore = 2
)

// Memory pool parameters
const (
	// Minimum allocation size in 64-bit words to prevent fragmentation
	MinAllocationWords = 8

	// Free list size threshold for reuse
	FreeListThreshold = 100
)

// Spin-wait parameters for polling device memory
const (
	// Polls that run hot before the poller starts yielding
	SpinBudget = 64
)

// DispatchOrder selects the order in which a launch hands work-groups to
// the device. Hardware leaves it unspecified; the emulation lets callers
// pick one so schedule-sensitive algorithms can be exercised.
type DispatchOrder int

const (
	// DispatchInOrder dispatches group 0 first.
	DispatchInOrder DispatchOrder = iota
	// DispatchReversed dispatches the last group first.
	DispatchReversed
	// DispatchShuffled dispatches groups in a seeded random permutation.
	DispatchShuffled
)

// String returns the dispatch order name
func (o DispatchOrder) String() string {
	switch o {
	case DispatchInOrder:
		return "in-order"
	case DispatchReversed:
		return "reversed"
	case DispatchShuffled:
		return "shuffled"
	default:
		return "unknown"
	}
}

// ParseDispatchOrder maps a dispatch order name back to its value.
func ParseDispatchOrder(s string) (DispatchOrder, error) {
	switch s {
	case "in-order", "":
		return DispatchInOrder, nil
	case "reversed":
		return DispatchReversed, nil
	case "shuffled":
		return DispatchShuffled, nil
	}
	return 0, NewInvalidArgError("ParseDispatchOrder", "unknown dispatch order "+s)
}

// Config encapsulates the settings for creating a Context.
type Config struct {
	// The maximum number of work-groups resident on the device at once. If
	// not specified, DefaultGroupsPerCore per CPU core is used.
	MaxResidentGroups int

	// Local memory per work-group in bytes. If not specified,
	// DefaultLocalMemSize is used.
	LocalMemSize int

	// Order in which launched work-groups are dispatched.
	DispatchOrder DispatchOrder

	// Seed for DispatchShuffled.
	DispatchSeed int64

	// A clock instance for event profiling timestamps. If not specified,
	// the default wall-clock will be used instead.
	Clock clock.Clock

	// Registerer for the context metrics. If not specified, a private
	// registry is created.
	Registerer prometheus.Registerer

	// The logger to use. If not defined an output-discarding logger will
	// be used instead.
	Logger *logrus.Entry
}

func (cfg *Config) validate() error {
	var err error
	if cfg.MaxResidentGroups < 0 {
		err = multierror.Append(err, NewInvalidArgError("Config", "max resident groups must not be negative"))
	}
	if cfg.MaxResidentGroups == 0 {
		cfg.MaxResidentGroups = runtime.NumCPU() * DefaultGroupsPerCore
	}
	if cfg.LocalMemSize < 0 {
		err = multierror.Append(err, NewInvalidArgError("Config", "local memory size must not be negative"))
	}
	if cfg.LocalMemSize == 0 {
		cfg.LocalMemSize = DefaultLocalMemSize
	}
	if cfg.DispatchOrder < DispatchInOrder || cfg.DispatchOrder > DispatchShuffled {
		err = multierror.Append(err, NewInvalidArgError("Config", "unknown dispatch order"))
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.WallClock
	}
	if cfg.Registerer == nil {
		cfg.Registerer = prometheus.NewRegistry()
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.NewEntry(&logrus.Logger{Out: io.Discard})
	}
	return err
}
