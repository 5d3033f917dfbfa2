// Package channel implements the per-satellite tracking channel: a
// delay-locked loop (DLL) for code phase and a phase-locked loop (PLL,
// driven by an atan2 lookup) for carrier phase, fed by early/prompt/late
// correlators evaluated from the bit-parallel NCO and Gold-code windows.
package channel

import (
	"math"

	"github.com/hamsternz/Full-Stack-GPS-Receiver/internal/goldcode"
	"github.com/hamsternz/Full-Stack-GPS-Receiver/internal/nco"
)

// MaxChannels bounds the tracking pool. spec.md fixes this at 16; the
// original source's channel.c uses 8 (see DESIGN.md for the discrepancy and
// the decision to follow the spec's larger figure).
const MaxChannels = 16

const (
	lateEarlyIIRFactor = 8
	lockDeltaIIRFactor = 8
	lockAngleIIRFactor = 8
	atan2Size          = 128

	defaultStepCode = 0x00040000
)

// PhaseFunc is invoked once per millisecond per channel with the sign of the
// prompt correlator's cosine accumulator (feeds the NAV bit synchroniser).
type PhaseFunc func(svID int, promptCosine int32)

var atan2Table = buildAtan2Table()

func buildAtan2Table() [atan2Size][atan2Size]uint8 {
	var t [atan2Size][atan2Size]uint8
	const pi = 3.1415926535898
	for x := -(atan2Size - 1) / 2; x <= atan2Size/2-1; x++ {
		for y := -(atan2Size - 1) / 2; y <= atan2Size/2-1; y++ {
			a := math.Atan2(float64(x), float64(y))
			a *= 256.0 / pi
			a += 0.5
			if a < 0 {
				a += 256
			}
			t[y&(atan2Size-1)][x&(atan2Size-1)] = uint8(int(a))
		}
	}
	return t
}

// Channel is one tracked satellite's DLL+PLL state.
type Channel struct {
	SVID int

	ncoIF  uint32
	stepIF uint32

	ncoCode  uint32
	stepCode uint32
	codeTune int32

	earlySine, earlyCosine, earlySample    int32
	promptSine, promptCosine, promptSample int32
	lateSine, lateCosine, lateSample       int32

	earlyPowerFiltered  uint32
	promptPowerFiltered uint32
	latePowerFiltered   uint32

	earlyPowerFilteredNotReset uint32
	latePowerFilteredNotReset  uint32

	lastAngle      uint8
	deltaFiltered  int32
	angleFiltered  int32
	noAdjust       bool
	disableTrack   bool

	onPhase PhaseFunc
}

// New creates a tracking channel seeded from an acquisition result:
// stepIF is the carrier Doppler step found by the search, ncoCode/codeTune
// seed the code phase NCO (the original starts both at zero with
// codeTune=0; acquisition reports only frequency, not code phase, as the
// tracker's own DLL converges code phase quickly once an early lock forms).
func New(svID int, stepIF uint32, ncoCode uint32, codeTune int32, onPhase PhaseFunc) *Channel {
	return &Channel{
		SVID:     svID,
		stepIF:   stepIF,
		ncoCode:  ncoCode,
		codeTune: codeTune,
		stepCode: defaultStepCode,
		onPhase:  onPhase,
	}
}

// EnableTrack/DisableTrack gate whether the DLL adjusts code phase; a
// disabled channel still accumulates correlator power (used while waiting
// for the carrier loop to settle before trusting the DLL).
func (c *Channel) EnableTrack()  { c.disableTrack = false }
func (c *Channel) DisableTrack() { c.disableTrack = true }

// Powers returns the filtered early/prompt/late correlator powers, as
// published to the status snapshot.
func (c *Channel) Powers() (early, prompt, late uint32) {
	return c.earlyPowerFilteredNotReset, c.promptPowerFiltered, c.latePowerFilteredNotReset
}

// CodePhase returns the raw Q10.22 code NCO phase.
func (c *Channel) CodePhase() uint32 { return c.ncoCode }

// codeWindow is the result of fastCodeNCO for one 32-sample word: the three
// early/prompt/late bitmaps, and for each, whether this word crosses a code
// repetition boundary and, if so, the mask of bits belonging to the next
// repetition.
type codeWindow struct {
	earlyCode, promptCode, lateCode uint32
	earlyMask, promptMask, lateMask uint32
	earlyEOR, promptEOR, lateEOR    bool
}

// fastCodeNCO derives the early (+1 chip), prompt, and late (-1 chip) 32-bit
// code bitmaps for one word, given the Q10.22 code phase and step, by
// splitting the 32-sample window into up to three chip segments (at the
// nominal step of 16 samples per chip a word covers about two chips, so it
// touches at most three distinct chips). gc is the code's raw chip array with 3
// chips of wraparound (goldcode.Code.Chips).
func fastCodeNCO(gc *[goldcode.ChipsPerCode + 3]byte, phase, step uint32) codeWindow {
	i := int(phase >> 22)

	wrap0 := i == 0
	wrap1 := i == 1022
	wrap2 := i == 1021
	wrap3 := i == 1020

	prev := i - 1
	if i == 0 {
		prev = 1022
	}
	codeSub1 := gc[prev]
	code0 := gc[i+0]
	code1 := gc[i+1]
	code2 := gc[i+2]
	code3 := gc[i+3]

	frac := phase & ((1 << 22) - 1)
	n0 := int((uint32(1<<22) + step - 1 - frac) / step)
	n1 := int((uint32(2<<22)+step-1-frac)/step) - n0
	if n0+n1 > 32 {
		n1 = 32 - n0
	}
	n2 := 32 - n1 - n0

	frac += step * 32

	var earlyCode, promptCode, lateCode uint32
	if codeSub1 != 0 {
		lateCode = 0xFFFFFFFF
	}
	if code0 != 0 {
		promptCode = 0xFFFFFFFF
	}
	if code1 != 0 {
		earlyCode = 0xFFFFFFFF
	}

	lateCode <<= uint(n1)
	promptCode <<= uint(n1)
	earlyCode <<= uint(n1)
	mask := uint32(1)<<uint(n1) - 1
	if code0 != 0 {
		lateCode |= mask
	}
	if code1 != 0 {
		promptCode |= mask
	}
	if code2 != 0 {
		earlyCode |= mask
	}

	if n2 > 0 {
		lateCode <<= uint(n2)
		promptCode <<= uint(n2)
		earlyCode <<= uint(n2)
		mask = uint32(1)<<uint(n2) - 1
		if code1 != 0 {
			lateCode |= mask
		}
		if code2 != 0 {
			promptCode |= mask
		}
		if code3 != 0 {
			earlyCode |= mask
		}
	}

	var w codeWindow
	w.earlyCode, w.promptCode, w.lateCode = earlyCode, promptCode, lateCode

	if wrap0 {
		w.lateMask = 0xFFFFFFFF >> uint(n0)
		w.lateEOR = true
	} else if wrap1 && frac >= (2<<22) {
		w.lateMask = (0xFFFFFFFF >> uint(n0)) >> uint(n1)
		w.lateEOR = true
	}

	if wrap1 {
		w.promptMask = 0xFFFFFFFF >> uint(n0)
		w.promptEOR = true
	} else if wrap2 && frac >= (2<<22) {
		w.promptMask = (0xFFFFFFFF >> uint(n0)) >> uint(n1)
		w.promptEOR = true
	}

	if wrap2 {
		w.earlyMask = 0xFFFFFFFF >> uint(n0)
		w.earlyEOR = true
	} else if wrap3 && frac >= (2<<22) {
		w.earlyMask = (0xFFFFFFFF >> uint(n0)) >> uint(n1)
		w.earlyEOR = true
	}

	return w
}

// adjustPrompt runs the PLL update once per completed prompt code
// repetition (roughly once per millisecond): it rescales the prompt
// correlator into an atan2-table-sized range, updates the delta/angle IIR
// filters, steers the carrier NCO step, and reports the bit sign upstream.
func (c *Channel) adjustPrompt() {
	s := int(c.promptSine)
	cc := int(c.promptCosine)
	for cc > 15 || cc < -15 || s > 15 || s < -15 {
		cc /= 2
		s /= 2
	}
	s &= atan2Size - 1
	cc &= atan2Size - 1
	angle := atan2Table[cc][s]
	delta := int8(angle - c.lastAngle)
	c.lastAngle = angle

	c.deltaFiltered -= c.deltaFiltered / lockDeltaIIRFactor
	c.deltaFiltered += int32(delta)

	c.angleFiltered -= c.angleFiltered / lockAngleIIRFactor
	c.angleFiltered += int32(angle)
	if angle >= 128 {
		c.angleFiltered -= 256
	}

	adjust := c.angleFiltered / 8
	adjust += (int32(1) << 24) / 32 / lockDeltaIIRFactor / 16368 * c.deltaFiltered
	c.stepIF -= uint32(adjust)

	if c.onPhase != nil {
		c.onPhase(c.SVID, c.promptCosine)
	}
}

// Update processes one 32-sample word: advances the carrier and code NCOs,
// mixes each of early/prompt/late against the local replicas, accumulates
// correlator power, runs the PLL on prompt code-repetition boundaries, and
// runs the DLL on late code-repetition boundaries.
func (c *Channel) Update(code *goldcode.Code, data uint32) {
	loS, loC := nco.Samples(c.ncoIF, c.stepIF)
	c.ncoIF += c.stepIF * 32

	w := fastCodeNCO(&code.Chips, c.ncoCode, c.stepCode)
	newNCOCode := c.ncoCode + c.stepCode*32
	if newNCOCode < c.ncoCode {
		newNCOCode += 1 << 22
	}
	if newNCOCode >= uint32(1023<<22) {
		newNCOCode -= uint32(1023 << 22)
	}
	c.ncoCode = newNCOCode

	// Early.
	mixS := data ^ w.earlyCode ^ loS
	mixC := data ^ w.earlyCode ^ loC
	c.earlySine += int32(nco.Popcount(mixS))
	c.earlyCosine += int32(nco.Popcount(mixC))
	c.earlySample += 32
	if w.earlyEOR {
		nextSine := int32(nco.Popcount(mixS & w.earlyMask))
		nextCosine := int32(nco.Popcount(mixC & w.earlyMask))
		nextSampleCount := int32(nco.Popcount(w.earlyMask))
		c.earlySample -= nextSampleCount
		c.earlySine -= nextSine + c.earlySample/2
		c.earlyCosine -= nextCosine + c.earlySample/2
		power := uint32(c.earlySine*c.earlySine + c.earlyCosine*c.earlyCosine)
		c.earlyPowerFiltered -= c.earlyPowerFiltered / lateEarlyIIRFactor
		c.earlyPowerFiltered += power
		c.earlyPowerFilteredNotReset -= c.earlyPowerFilteredNotReset / lateEarlyIIRFactor
		c.earlyPowerFilteredNotReset += power
		c.earlySine, c.earlyCosine, c.earlySample = nextSine, nextCosine, nextSampleCount
	}

	// Prompt.
	mixS = data ^ w.promptCode ^ loS
	mixC = data ^ w.promptCode ^ loC
	c.promptSine += int32(nco.Popcount(mixS))
	c.promptCosine += int32(nco.Popcount(mixC))
	c.promptSample += 32
	if w.promptEOR {
		nextSine := int32(nco.Popcount(mixS & w.promptMask))
		nextCosine := int32(nco.Popcount(mixC & w.promptMask))
		nextSampleCount := int32(nco.Popcount(w.promptMask))
		c.promptSample -= nextSampleCount
		c.promptSine -= nextSine + c.promptSample/2
		c.promptCosine -= nextCosine + c.promptSample/2
		c.promptPowerFiltered -= c.promptPowerFiltered / lateEarlyIIRFactor
		c.promptPowerFiltered += uint32(c.promptSine*c.promptSine + c.promptCosine*c.promptCosine)
		c.adjustPrompt()
		c.promptSine, c.promptCosine, c.promptSample = nextSine, nextCosine, nextSampleCount
	}

	// Late.
	mixS = data ^ w.lateCode ^ loS
	mixC = data ^ w.lateCode ^ loC
	c.lateSine += int32(nco.Popcount(mixS))
	c.lateCosine += int32(nco.Popcount(mixC))
	c.lateSample += 32
	if w.lateEOR && !c.noAdjust {
		nextSine := int32(nco.Popcount(mixS & w.lateMask))
		nextCosine := int32(nco.Popcount(mixC & w.lateMask))
		nextSampleCount := int32(nco.Popcount(w.lateMask))
		c.lateSample -= nextSampleCount
		c.lateSine -= nextSine + c.lateSample/2
		c.lateCosine -= nextCosine + c.lateSample/2
		power := uint32(c.lateSine*c.lateSine + c.lateCosine*c.lateCosine)
		c.latePowerFiltered -= c.latePowerFiltered / lateEarlyIIRFactor
		c.latePowerFiltered += power
		c.latePowerFilteredNotReset -= c.latePowerFilteredNotReset / lateEarlyIIRFactor
		c.latePowerFilteredNotReset += power
		c.lateSine, c.lateCosine, c.lateSample = nextSine, nextCosine, nextSampleCount

		if !c.disableTrack {
			adjust := c.codeTune
			if c.earlyPowerFiltered/5 > c.latePowerFiltered/4 {
				c.earlyPowerFiltered = (c.earlyPowerFiltered*7 + c.latePowerFiltered) / 8
				adjust += 16368
				c.codeTune += 2
			} else if c.latePowerFiltered/5 > c.earlyPowerFiltered/4 {
				c.latePowerFiltered = (c.latePowerFiltered*7 + c.earlyPowerFiltered) / 8
				adjust -= 16368
				c.codeTune -= 2
			}
			c.ncoCode += uint32(adjust)
			c.noAdjust = true
		}
	}
	c.noAdjust = false
}
