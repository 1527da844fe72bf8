package gudaprim

import (
	"strings"

	"golang.org/x/sys/cpu"
)

// CPUFeatures tracks available CPU instruction set extensions
type CPUFeatures struct {
	HasAVX     bool
	HasAVX2    bool
	HasAVX512F bool
	HasFMA     bool
	HasSSE4    bool
	HasASIMD   bool // arm64 Advanced SIMD
	HasAtomics bool // arm64 LSE atomics
	HasSVE     bool
}

func detectCPUFeatures() CPUFeatures {
	return CPUFeatures{
		HasSSE4:    cpu.X86.HasSSE41 || cpu.X86.HasSSE42,
		HasAVX:     cpu.X86.HasAVX,
		HasAVX2:    cpu.X86.HasAVX2,
		HasAVX512F: cpu.X86.HasAVX512F,
		HasFMA:     cpu.X86.HasFMA,
		HasASIMD:   cpu.ARM64.HasASIMD,
		HasAtomics: cpu.ARM64.HasATOMICS,
		HasSVE:     cpu.ARM64.HasSVE,
	}
}

// SubGroupSize returns the number of 32-bit lanes in the widest vector
// unit. It is reported as the device sub-group width.
func (f CPUFeatures) SubGroupSize() int {
	switch {
	case f.HasAVX512F:
		return 16
	case f.HasAVX2, f.HasAVX:
		return 8
	case f.HasSSE4, f.HasASIMD:
		return 4
	default:
		return 1
	}
}

// List returns the names of the detected features.
func (f CPUFeatures) List() []string {
	var features []string
	add := func(ok bool, name string) {
		if ok {
			features = append(features, name)
		}
	}
	add(f.HasSSE4, "SSE4")
	add(f.HasAVX, "AVX")
	add(f.HasAVX2, "AVX2")
	add(f.HasFMA, "FMA")
	add(f.HasAVX512F, "AVX512F")
	add(f.HasASIMD, "ASIMD")
	add(f.HasAtomics, "LSE")
	add(f.HasSVE, "SVE")
	return features
}

// String returns a string describing available CPU features
func (f CPUFeatures) String() string {
	features := f.List()
	if len(features) == 0 {
		return "No SIMD extensions detected"
	}
	return "CPU features: " + strings.Join(features, ", ")
}
