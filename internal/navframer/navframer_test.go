package navframer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

// encodeParity builds a valid 30-bit word (as the low 30 bits of the
// returned 32-bit value, top two bits zero) whose data bits are `data`
// (24 bits) by computing the correct 6 parity bits the same way the
// reference decoder checks them, so TestParityAcceptsEncodedWords exercises
// testParity against self-consistent input instead of a fixed literal.
func encodeParity(data uint32) uint32 {
	d := (data & 0xFFFFFF) << 6
	for i := 6; i < 30; i++ {
		if d&(1<<uint(i)) != 0 {
			d ^= parity[i]
		}
	}
	return d
}

func TestParityAcceptsEncodedWords(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		data := rapid.Uint32Range(0, 1<<24-1).Draw(rt, "data")
		word := encodeParity(data)
		assert.True(t, testParity(word), "encoded word should pass parity")
	})
}

func TestParityRejectsSingleBitFlip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		data := rapid.Uint32Range(0, 1<<24-1).Draw(rt, "data")
		word := encodeParity(data)
		bit := rapid.IntRange(0, 29).Draw(rt, "bit")
		flipped := word ^ (1 << uint(bit))
		if flipped == word {
			return
		}
		assert.False(t, testParity(flipped), "single-bit flip should fail parity")
	})
}

func TestWeekNumberRolloverRule(t *testing.T) {
	cases := []struct {
		raw  uint32
		want int
	}{
		{0, 2048},
		{523, 523 + 2048},
		{524, 524 + 1024},
		{1000, 1000 + 1024},
	}
	for _, tc := range cases {
		ch := New(1, nil)
		ch.Subframes[1][2] = tc.raw << 20
		ch.extractTime()
		assert.Equal(t, tc.want, ch.Time.WeekNum)
	}
}

func TestJoinBitsSignExtension(t *testing.T) {
	assert.Equal(t, int32(-1), joinBitsS(0, 0, 0, 0xFFFFFFFF, 0, 8))
	assert.Equal(t, int32(1), joinBitsS(0, 0, 0, 1, 0, 8))
}

func TestOrbitRequiresMatchingIODE(t *testing.T) {
	ch := New(1, nil)
	ch.ValidSubframe[2] = true
	ch.ValidSubframe[3] = true
	ch.Subframes[2][2] = 1 << 22 // iode2 = 1
	ch.Subframes[3][9] = 2 << 22 // iode3 = 2, mismatched
	ch.tryExtractOrbit()
	assert.False(t, ch.Orbit.Valid)

	ch.Subframes[3][9] = 1 << 22 // now matches
	ch.tryExtractOrbit()
	assert.True(t, ch.Orbit.Valid)
	assert.Equal(t, uint32(1), ch.Orbit.IODE)
}

type fakeCache struct {
	saved map[int][10]uint32
}

func (f *fakeCache) SaveSubframe(svID, frameType int, words [10]uint32) {
	if f.saved == nil {
		f.saved = map[int][10]uint32{}
	}
	f.saved[frameType] = words
}

// TestIdempotentSubframeDelivery feeds the same valid 300-bit subframe
// (10 already-flipped words assembled directly, bypassing the 20ms bit
// integrator) twice to the same framer and checks the decoded fields agree,
// per the NAV framer idempotence property.
func TestIdempotentSubframeDelivery(t *testing.T) {
	ch := New(3, &fakeCache{})
	ch.synced = true
	ch.subframeInFrame = 1

	// A minimal, internally consistent frame-1 subframe: parity bits are
	// irrelevant here since saveFrame is invoked directly (validSubframes'
	// parity/telemetry gating is exercised separately above).
	var words [10]uint32
	words[2] = 42 << 20 // week_num raw field
	ch.newSubframe = words
	ch.newSubframe[1] = 1<<13 | 1<<8 // handover: subframe_of_week bit + frame_type=1
	ch.newSubframe[0] = 0            // LSB clear -> word 1 is not inverted

	ch.saveFrame()
	first := ch.Time
	assert.True(t, first.Valid, "frame 1 should have been decoded")

	// Deliver the identical subframe a second time to the same framer.
	ch.newSubframe = words
	ch.newSubframe[1] = 1<<13 | 1<<8
	ch.newSubframe[0] = 0
	ch.saveFrame()
	second := ch.Time

	assert.Equal(t, first, second)
}
