package flowinter

import (
	"fmt"
	"strings"

	"github.com/klauspost/cpuid/v2"
)

// Level is an instruction-set tier. Each tier maps to one registered kernel
// implementation; all of them produce identical output. The kernels are
// portable Go: sse2 and avx2 select row loops unrolled by 4 and 8 pixels
// rather than vector instructions, and generic processes one pixel at a time.
type Level int

const (
	LevelAuto Level = iota
	LevelGeneric
	LevelSSE2
	LevelAVX2
)

var levelNames = map[Level]string{
	LevelAuto:    "auto",
	LevelGeneric: "generic",
	LevelSSE2:    "sse2",
	LevelAVX2:    "avx2",
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// ParseLevel accepts the names printed by Level.String.
func ParseLevel(s string) (Level, error) {
	for l, name := range levelNames {
		if strings.EqualFold(s, name) {
			return l, nil
		}
	}
	return LevelAuto, fmt.Errorf("unknown instruction level %q", s)
}

// DetectLevel returns the best tier the running CPU supports.
func DetectLevel() Level {
	switch {
	case cpuid.CPU.Supports(cpuid.AVX2):
		return LevelAVX2
	case cpuid.CPU.Supports(cpuid.SSE2):
		return LevelSSE2
	default:
		return LevelGeneric
	}
}

// unroll is the number of pixels a row loop handles per iteration.
var unroll = map[Level]int{
	LevelGeneric: 1,
	LevelSSE2:    4,
	LevelAVX2:    8,
}

// resolve turns LevelAuto into the detected tier and caps a requested tier at
// what the CPU supports.
func (l Level) resolve() Level {
	best := DetectLevel()
	if l == LevelAuto || l > best {
		return best
	}
	return l
}

// kernelsFor looks up the kernel set of pixel type P for tier l.
func kernelsFor[P Pixel](l Level) kernelSet[P] {
	n := unroll[l.resolve()]

	var zero P
	switch any(zero).(type) {
	case uint8:
		return any(buildKernels[uint8, fixed[uint8]](n)).(kernelSet[P])
	case uint16:
		return any(buildKernels[uint16, fixed[uint16]](n)).(kernelSet[P])
	default:
		return any(buildKernels[float32, floating](n)).(kernelSet[P])
	}
}
