package goldcode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestBalance(t *testing.T) {
	// Invariant 1: every SV's 1023-chip code has exactly 512 ones, 511 zeros.
	for sv := 1; sv <= MaxSVID; sv++ {
		c := New(sv)
		ones := 0
		for i := 0; i < ChipsPerCode; i++ {
			if c.Chips[i] != 0 {
				ones++
			}
		}
		assert.Equalf(t, 512, ones, "sv %d: expected 512 ones", sv)
		assert.Equalf(t, 511, ChipsPerCode-ones, "sv %d: expected 511 zeros", sv)
	}
}

func TestAutocorrelationThreeValued(t *testing.T) {
	// Invariant 2: circular autocorrelation at nonzero shift takes one of the
	// three values the L1 C/A Gold code family is known for: -1, -65, +63.
	rapid.Check(t, func(rt *rapid.T) {
		sv := rapid.IntRange(1, MaxSVID).Draw(rt, "sv")
		shift := rapid.IntRange(1, ChipsPerCode-1).Draw(rt, "shift")
		c := New(sv)
		sum := 0
		for i := 0; i < ChipsPerCode; i++ {
			a := chipSign(c.Chips[i])
			b := chipSign(c.Chips[(i+shift)%ChipsPerCode])
			sum += a * b
		}
		if sum != -1 && sum != -65 && sum != 63 {
			rt.Fatalf("sv %d shift %d: autocorrelation %d not in {-65,-1,63}", sv, shift, sum)
		}
	})
}

func chipSign(b byte) int {
	if b != 0 {
		return -1
	}
	return 1
}

func TestPackedCoherence(t *testing.T) {
	// Invariant 3: bit j of packed[i] equals chips[((i+j)>>4) mod 1023].
	c := New(1)
	rapid.Check(t, func(rt *rapid.T) {
		i := rapid.IntRange(0, ChipsPerCode*Oversample-1).Draw(rt, "i")
		j := rapid.IntRange(0, 31).Draw(rt, "j")
		want := c.Chips[((i+j)>>4)%ChipsPerCode]
		got := byte((c.Packed[i] >> (31 - j)) & 1)
		if want != got {
			rt.Fatalf("i=%d j=%d: want %d got %d", i, j, want, got)
		}
	})
}

func TestBuildTableCoversAllSVs(t *testing.T) {
	tbl := BuildTable()
	require.NotNil(t, tbl)
	for sv := 1; sv <= MaxSVID; sv++ {
		require.NotNilf(t, tbl.Code(sv), "sv %d", sv)
	}
	assert.Nil(t, tbl.Code(0))
	assert.Nil(t, tbl.Code(33))
}

func TestChipsWraparoundDuplicate(t *testing.T) {
	c := New(5)
	assert.Equal(t, c.Chips[0], c.Chips[ChipsPerCode])
	assert.Equal(t, c.Chips[1], c.Chips[ChipsPerCode+1])
	assert.Equal(t, c.Chips[2], c.Chips[ChipsPerCode+2])
}
