package flowinter

import (
	"math/rand"
	"sort"
	"testing"
)

func TestMedian3r(t *testing.T) {
	for a := -2; a <= 3; a++ {
		for c := a; c <= 3; c++ {
			for b := -4; b <= 5; b++ {
				var want int
				switch {
				case b <= a:
					want = a
				case b >= c:
					want = c
				default:
					want = b
				}
				if got := Median3r(a, b, c); got != want {
					t.Errorf("Median3r(%d,%d,%d): got %d, want %d", a, b, c, got, want)
				}
			}
		}
	}
}

func TestMedian3(t *testing.T) {
	for a := 0; a < 4; a++ {
		for b := 0; b < 4; b++ {
			for c := 0; c < 4; c++ {
				s := []int{a, b, c}
				sort.Ints(s)
				if got := Median3(a, b, c); got != s[1] {
					t.Errorf("Median3(%d,%d,%d): got %d, want %d", a, b, c, got, s[1])
				}
			}
		}
	}
}

func TestFixedPolicy(t *testing.T) {
	var f fixed[uint8]

	tests := []struct {
		name string
		got  uint8
		want uint8
	}{
		{"toward no mask", f.toward(100, 200, 0), 100},
		{"toward full mask", f.toward(100, 200, 255), 200},
		{"toward max", f.toward(255, 255, 128), 255},
		{"fallback no mask", f.fallback(37, 90, 12, 0, 0), 37},
		{"fallback both masks", f.fallback(37, 90, 12, 255, 255), 12},
		{"lerp 0", f.lerp(10, 250, 0), 10},
		{"lerp 256", f.lerp(10, 250, 256), 250},
		{"lerp 64", f.lerp(0, 255, 64), 63},
		{"half", f.half(3, 6), 4},
	}

	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: got %d, want %d", tt.name, tt.got, tt.want)
		}
	}
}

func TestFixedPolicyWide(t *testing.T) {
	var f fixed[uint16]
	if got := f.fallback(65535, 65535, 65535, 255, 255); got > 65535 || got < 65000 {
		t.Errorf("fallback at full range: got %d", got)
	}
	if got := f.lerp(65535, 65535, 128); got != 65535 {
		t.Errorf("lerp at full range: got %d, want 65535", got)
	}
}

func TestHalfEqualsLerp(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	var f8 fixed[uint8]
	var f16 fixed[uint16]
	var ff floating
	for i := 0; i < 10000; i++ {
		a8, b8 := uint8(rng.Intn(256)), uint8(rng.Intn(256))
		if f8.half(a8, b8) != f8.lerp(a8, b8, 128) {
			t.Fatalf("uint8 %d %d: half %d, lerp %d", a8, b8, f8.half(a8, b8), f8.lerp(a8, b8, 128))
		}

		a16, b16 := uint16(rng.Intn(65536)), uint16(rng.Intn(65536))
		if f16.half(a16, b16) != f16.lerp(a16, b16, 128) {
			t.Fatalf("uint16 %d %d: half %d, lerp %d", a16, b16, f16.half(a16, b16), f16.lerp(a16, b16, 128))
		}

		af, bf := rng.Float32(), rng.Float32()
		if ff.half(af, bf) != ff.lerp(af, bf, 128) {
			t.Fatalf("float32 %v %v: half %v, lerp %v", af, bf, ff.half(af, bf), ff.lerp(af, bf, 128))
		}
	}
}
