// Package navframer turns the per-millisecond BPSK sign stream from a
// tracking channel into parity-checked, framed GPS NAV subframes, and
// extracts the clock-correction and orbit fields used for a position fix.
package navframer

import "math"

const (
	bitLengthMs   = 20
	wordsPerFrame = 10
)

// parity is the fixed 32-entry GPS Hamming syndrome table: entry i gives the
// 6-bit pattern XORed into the accumulator when bit i of the word is set.
var parity = [32]uint32{
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x13, 0x25,
	0x0B, 0x16, 0x2C, 0x19, 0x32, 0x26, 0x0E, 0x1F,
	0x3E, 0x3D, 0x38, 0x31, 0x23, 0x07, 0x0D, 0x1A,
	0x37, 0x2F, 0x1C, 0x3B, 0x34, 0x2A, 0x16, 0x29,
}

// testParity checks the GPS 30-bit Hamming parity of a 32-bit word (the top
// two bits carry the last two bits of the previous word, used to un-invert
// the data bits before checking).
func testParity(d uint32) bool {
	if (d>>30)&1 != 0 {
		d ^= 0x3FFFFFC0
	}
	for i := 6; i < 32; i++ {
		if d&(1<<uint(i)) != 0 {
			d ^= parity[i]
		}
	}
	return d&0x3F == 0
}

func testTelemetry(newWord uint32) bool {
	t := newWord & 0x7FC00000
	return t == 0x5D000000 || t == 0x22C00000
}

func bitsField(val uint32, offset, length int) uint32 {
	return (val >> uint(offset)) & ((1 << uint(length)) - 1)
}

func signExtend(u uint32, length int) int32 {
	if length < 32 && u != 0 {
		if (u>>uint(length-1))&1 != 0 {
			u |= ^uint32(0) << uint(length)
		}
	}
	return int32(u)
}

func joinBitsU(val1 uint32, offset1, len1 int, val2 uint32, offset2, len2 int) uint32 {
	return bitsField(val1, offset1, len1)<<uint(len2) | bitsField(val2, offset2, len2)
}

func joinBitsS(val1 uint32, offset1, len1 int, val2 uint32, offset2, len2 int) int32 {
	return signExtend(joinBitsU(val1, offset1, len1, val2, offset2, len2), len1+len2)
}

// TimeParams are the clock-correction fields extracted from subframe 1.
type TimeParams struct {
	Valid             bool
	WeekNum           int
	UserRangeAccuracy uint32
	Health            uint32
	IssueOfData       uint32
	GroupDelay        float64 // Tgd, seconds
	ReferenceTime     float64 // Toc, seconds of week
	CorrectionF2      float64
	CorrectionF1      float64
	CorrectionF0      float64
}

// OrbitParams are the ephemeris fields extracted once subframes 2 and 3
// agree on IODE.
type OrbitParams struct {
	Valid   bool
	IODE    uint32
	Crs     float64
	DeltaN  float64
	M0      float64
	Cuc     float64
	E       float64
	Cus     float64
	SqrtA   float64
	Toe     float64
	FitFlag uint32
	AODO    uint32

	Cic        float64
	Omega0     float64
	Cis        float64
	I0         float64
	Crc        float64
	W          float64
	OmegaDot   float64
	IDot       float64
}

// SubframeCache persists raw subframe words per SV, one of this spec's
// external collaborators (NAV_<NN>.dat).
type SubframeCache interface {
	SaveSubframe(svID int, frameType int, words [wordsPerFrame]uint32)
}

// Channel is one SV's NAV bit-synchroniser and subframe framer.
type Channel struct {
	SVID int

	newWord   uint32
	validBits uint8

	synced           bool
	subframeInFrame  uint8
	newSubframe      [wordsPerFrame]uint32
	ValidSubframe    [6]bool
	Subframes        [6][wordsPerFrame]uint32

	partInBit uint8
	BitErrors int32

	SubframeOfWeek int32 // -1 until known
	MsOfFrame      int32 // -1 until known

	Time  TimeParams
	Orbit OrbitParams

	cache SubframeCache
}

// New creates a NAV framer for one SV, seeded to the "never synced" state.
func New(svID int, cache SubframeCache) *Channel {
	return &Channel{
		SVID:           svID,
		SubframeOfWeek: -1,
		MsOfFrame:      -1,
		cache:          cache,
	}
}

// ClearBitErrors resets the error counter.
func (c *Channel) ClearBitErrors() { c.BitErrors = 0 }

// AddBit delivers one millisecond of prompt-correlator sign (positive power
// means bit 1). ms_of_frame wraps at 5999 -> 0, matching a 6-second
// subframe period.
func (c *Channel) AddBit(power int32) {
	if c.MsOfFrame == 5999 {
		if c.SubframeOfWeek != -1 {
			c.SubframeOfWeek++
		}
		c.MsOfFrame = 0
	} else {
		c.MsOfFrame++
	}
	sign := uint8(0)
	if power > 0 {
		sign = 1
	}
	c.process(sign)
}

// process is the 20ms bit-sync integrator. A bit is emitted both on normal
// 20ms completion AND immediately on an abandoned (mismatched-sign) sample;
// this mirrors the original's behaviour exactly rather than the simplified
// prose description of it.
func (c *Channel) process(s uint8) {
	switch {
	case c.partInBit == bitLengthMs-1:
		if c.BitErrors > 0 {
			c.BitErrors--
		}
		c.partInBit = 0
	case s != uint8(c.newWord&1):
		c.abandon()
		c.partInBit = 0
	default:
		c.partInBit++
	}
	if c.partInBit == 0 {
		c.newBit(s)
	}
}

func (c *Channel) abandon() {
	c.validBits = 0
	c.synced = false
	c.BitErrors++
}

func (c *Channel) newBit(s uint8) {
	c.newWord <<= 1
	if s != 0 {
		c.newWord |= 1
	}
	c.validBits++
	if c.validBits == 32 {
		if c.validSubframes() {
			c.validBits = 2
		} else {
			c.validBits = 31
		}
	}
}

func (c *Channel) validSubframes() bool {
	if !testParity(c.newWord) {
		return false
	}
	if !c.synced {
		if !testTelemetry(c.newWord) {
			return false
		}
		c.newSubframe[c.subframeInFrame] = c.newWord
		c.synced = true
		c.subframeInFrame = 1
		c.MsOfFrame = 600
		return true
	}
	if c.subframeInFrame == 0 {
		if !testTelemetry(c.newWord) {
			c.synced = false
			return false
		}
		c.newSubframe[c.subframeInFrame] = c.newWord
		c.subframeInFrame = 1
		return true
	}
	c.newSubframe[c.subframeInFrame] = c.newWord
	if c.subframeInFrame == 9 {
		c.saveFrame()
		c.subframeInFrame = 0
	} else {
		c.subframeInFrame++
	}
	return true
}

// saveFrame un-inverts the ten words of the just-completed subframe, pulls
// the handover word's time-of-week and frame type, and (for frames 1-3)
// extracts the clock/orbit fields.
func (c *Channel) saveFrame() {
	var unflipped [wordsPerFrame]uint32
	if c.newSubframe[0]&1 != 0 {
		unflipped[0] = c.newSubframe[0]
	} else {
		unflipped[0] = ^c.newSubframe[0]
	}
	for i := 1; i < wordsPerFrame; i++ {
		if c.newSubframe[i-1]&1 != 0 {
			unflipped[i] = ^c.newSubframe[i]
		} else {
			unflipped[i] = c.newSubframe[i]
		}
	}

	handover := unflipped[1]
	c.SubframeOfWeek = int32((handover >> 13) & 0x1FFFF)
	c.MsOfFrame = 0
	frameType := int((handover >> 8) & 0x7)

	if frameType > 0 && frameType < 6 && c.cache != nil {
		c.cache.SaveSubframe(c.SVID, frameType, unflipped)
	}

	switch frameType {
	case 1:
		c.ValidSubframe[1] = true
		c.Subframes[1] = unflipped
		c.extractTime()
	case 2:
		c.ValidSubframe[2] = true
		c.Subframes[2] = unflipped
		c.tryExtractOrbit()
	case 3:
		c.ValidSubframe[3] = true
		c.Subframes[3] = unflipped
		c.tryExtractOrbit()
	case 4:
		c.ValidSubframe[4] = true
	case 5:
		c.ValidSubframe[5] = true
	}
}

func (c *Channel) extractTime() {
	sf := c.Subframes[1]
	week := int(joinBitsU(0, 0, 0, sf[2], 20, 10))
	// Week 524+1024 begins in September 2009; this rule holds for ~20 years
	// beyond that before needing another rollover epoch.
	if week < 524 {
		week += 1024 * 2
	} else {
		week += 1024
	}
	c.Time = TimeParams{
		Valid:             true,
		WeekNum:           week,
		UserRangeAccuracy: joinBitsU(0, 0, 0, sf[2], 14, 4),
		Health:            joinBitsU(0, 0, 0, sf[2], 8, 6),
		GroupDelay:        float64(joinBitsS(0, 0, 0, sf[6], 6, 8)) * math.Pow(2, -31),
		IssueOfData:       joinBitsU(sf[2], 6, 2, sf[7], 22, 8),
		ReferenceTime:     float64(joinBitsU(0, 0, 0, sf[7], 6, 16)) * math.Pow(2, 4),
		CorrectionF2:      float64(joinBitsS(0, 0, 0, sf[8], 22, 8)) * math.Pow(2, -55),
		CorrectionF1:      float64(joinBitsS(0, 0, 0, sf[8], 6, 16)) * math.Pow(2, -43),
		CorrectionF0:      float64(joinBitsS(0, 0, 0, sf[9], 8, 22)) * math.Pow(2, -31),
	}
}

func (c *Channel) tryExtractOrbit() {
	if !c.ValidSubframe[2] || !c.ValidSubframe[3] {
		return
	}
	sf2 := c.Subframes[2]
	sf3 := c.Subframes[3]
	iode2 := joinBitsU(0, 0, 0, sf2[2], 22, 8)
	iode3 := joinBitsU(0, 0, 0, sf3[9], 22, 8)
	if iode2 != iode3 || iode2 == c.Orbit.IODE {
		return
	}
	const pi = 3.1415926535898
	c.Orbit = OrbitParams{
		Valid:   true,
		IODE:    iode2,
		Crs:     float64(joinBitsS(0, 0, 0, sf2[2], 6, 16)) * math.Pow(2, -5),
		DeltaN:  float64(joinBitsS(0, 0, 0, sf2[3], 14, 16)) * math.Pow(2, -43) * pi,
		M0:      float64(joinBitsS(sf2[3], 6, 8, sf2[4], 6, 24)) * math.Pow(2, -31) * pi,
		Cuc:     float64(joinBitsS(0, 0, 0, sf2[5], 14, 16)) * math.Pow(2, -29),
		E:       float64(joinBitsU(sf2[5], 6, 8, sf2[6], 6, 24)) * math.Pow(2, -33),
		Cus:     float64(joinBitsS(0, 0, 0, sf2[7], 14, 16)) * math.Pow(2, -29),
		SqrtA:   float64(joinBitsU(sf2[7], 6, 8, sf2[8], 6, 24)) * math.Pow(2, -19),
		Toe:     float64(joinBitsU(0, 0, 0, sf2[9], 14, 16)) * 16.0,
		FitFlag: joinBitsU(0, 0, 0, sf2[9], 13, 1),
		AODO:    joinBitsU(0, 0, 0, sf2[9], 8, 6),

		Cic:      float64(joinBitsS(0, 0, 0, sf3[2], 14, 16)) * math.Pow(2, -29),
		Omega0:   float64(joinBitsS(sf3[2], 6, 8, sf3[3], 6, 24)) * math.Pow(2, -31) * pi,
		Cis:      float64(joinBitsS(0, 0, 0, sf3[4], 14, 16)) * math.Pow(2, -29),
		I0:       float64(joinBitsS(sf3[4], 6, 8, sf3[5], 6, 24)) * math.Pow(2, -31) * pi,
		Crc:      float64(joinBitsS(0, 0, 0, sf3[6], 14, 16)) * math.Pow(2, -5),
		W:        float64(joinBitsS(sf3[6], 6, 8, sf3[7], 6, 24)) * math.Pow(2, -31) * pi,
		OmegaDot: float64(joinBitsS(0, 0, 0, sf3[8], 6, 24)) * math.Pow(2, -43) * pi,
		IDot:     float64(joinBitsS(0, 0, 0, sf3[9], 8, 14)) * math.Pow(2, -43) * pi,
	}
}
