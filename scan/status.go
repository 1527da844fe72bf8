package scan

import (
	"sync/atomic"
	"unsafe"
)

// Element is a scan element type. Its value must fit in the payload bits
// of a status word so that state and aggregate are published together.
type Element interface {
	~int8 | ~int16 | ~int32 | ~uint8 | ~uint16 | ~uint32 | ~float32
}

// State is the publication state of a tile.
type State uint64

const (
	// Invalid means the tile has published nothing yet.
	Invalid State = 0
	// Partial means the payload is the tile's own reduction.
	Partial State = 1 << 62
	// Full means the payload is the inclusive prefix up to and including
	// the tile.
	Full State = 1 << 63

	stateMask   = uint64(Partial | Full)
	payloadMask = ^stateMask
)

// String returns the state name
func (s State) String() string {
	switch s {
	case Invalid:
		return "invalid"
	case Partial:
		return "partial"
	case Full:
		return "full"
	default:
		return "corrupt"
	}
}

// StatusFlag is one packed tile status word: the state in the two high
// bits and the aggregate in the low 32 bits.
type StatusFlag uint64

// Pack builds a status word.
func Pack[T Element](s State, v T) StatusFlag {
	var bits uint32
	*(*T)(unsafe.Pointer(&bits)) = v
	return StatusFlag(uint64(s) | uint64(bits))
}

// State returns the state encoded in the word.
func (f StatusFlag) State() State {
	return State(uint64(f) & stateMask)
}

// Value decodes the aggregate carried by the word.
func Value[T Element](f StatusFlag) T {
	bits := uint32(uint64(f) & payloadMask)
	return *(*T)(unsafe.Pointer(&bits))
}

// StatusFlags is the coordination buffer of one scan invocation: one
// status word per tile followed by the tile-id counter. All accesses go
// through sync/atomic; the buffer must be zeroed before launch.
type StatusFlags struct {
	words    []uint64
	numTiles int
}

// NewStatusFlags wraps words, which must hold numTiles+1 zeroed words.
func NewStatusFlags(words []uint64, numTiles int) StatusFlags {
	return StatusFlags{words: words[:numTiles+1], numTiles: numTiles}
}

// FlagWords returns the number of words needed for numTiles tiles.
func FlagWords(numTiles int) int {
	return numTiles + 1
}

// NumTiles returns the number of tile slots.
func (s StatusFlags) NumTiles() int { return s.numTiles }

// Load reads the status word of tile.
func (s StatusFlags) Load(tile int) StatusFlag {
	return StatusFlag(atomic.LoadUint64(&s.words[tile]))
}

// Publish stores the status word of tile. The value written is the
// synchronisation payload; readers need nothing else to observe it.
func (s StatusFlags) Publish(tile int, f StatusFlag) {
	atomic.StoreUint64(&s.words[tile], uint64(f))
}

func (s StatusFlags) counter() *uint64 {
	return &s.words[s.numTiles]
}
