package nco

import (
	"math/bits"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

// referenceSamples is the bit-for-bit per-sample loop, independent of the
// quadrant-shortcut machinery under test.
func referenceSamples(phase, step uint32, n int) (sine, cosine uint32) {
	for i := 0; i < n; i++ {
		switch phase >> 30 {
		case 0:
			sine = sine<<1 | 1
			cosine = cosine<<1 | 1
		case 1:
			sine = sine<<1 | 1
			cosine = cosine << 1
		case 2:
			sine = sine << 1
			cosine = cosine << 1
		default:
			sine = sine << 1
			cosine = cosine<<1 | 1
		}
		phase += step
	}
	return sine, cosine
}

func TestSamplesMatchesReferenceLoop(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		phase := rapid.Uint32().Draw(rt, "phase")
		step := rapid.Uint32().Draw(rt, "step")
		wantS, wantC := referenceSamples(phase, step, 32)
		gotS, gotC := Samples(phase, step)
		if wantS != gotS || wantC != gotC {
			rt.Fatalf("phase=%#x step=%#x: want (%#x,%#x) got (%#x,%#x)", phase, step, wantS, wantC, gotS, gotC)
		}
	})
}

func TestSamplesSplitConsistency(t *testing.T) {
	// Invariant 4: concatenating nco(phase,step) and nco(phase+k*step,step)
	// (first k bits from the first call, remaining from the second) must
	// match the reference per-sample loop, for k in {8,16,32}.
	rapid.Check(t, func(rt *rapid.T) {
		phase := rapid.Uint32().Draw(rt, "phase")
		step := rapid.Uint32().Draw(rt, "step")
		k := rapid.SampledFrom([]int{8, 16, 32}).Draw(rt, "k")

		wantS, wantC := referenceSamples(phase, step, 32)

		sHi, cHi := window(phase, step, k)
		sLo, cLo := window(phase+step*uint32(k), step, 32-k)
		var gotS, gotC uint32
		if k == 32 {
			gotS, gotC = sHi, cHi
		} else {
			gotS = sHi<<uint(32-k) | sLo
			gotC = cHi<<uint(32-k) | cLo
		}
		if gotS != wantS || gotC != wantC {
			rt.Fatalf("k=%d: want (%#x,%#x) got (%#x,%#x)", k, wantS, wantC, gotS, gotC)
		}
	})
}

func TestPopcount(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		x := rapid.Uint32().Draw(rt, "x")
		assert.Equal(t, uint32(bits.OnesCount32(x)), Popcount(x))
	})
	assert.Equal(t, uint32(0), Popcount(0))
	assert.Equal(t, uint32(32), Popcount(0xFFFFFFFF))
}
