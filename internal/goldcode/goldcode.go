// Package goldcode generates the GPS L1 C/A Gold codes (G1 XOR G2, one per
// space vehicle) and the oversampled packed table used by the acquisition
// correlators.
package goldcode

// MaxSVID is the highest GPS space-vehicle PRN id this receiver knows taps
// for.
const MaxSVID = 32

// ChipsPerCode is the length of one C/A code period.
const ChipsPerCode = 1023

// Oversample is the fractional-chip resolution of the packed table: each
// packed entry advances by 1/16 chip.
const Oversample = 16

// tap pair for the G2 LFSR, 1-indexed as in the ICD (converted to 0-indexed
// shift amounts at use).
type tapPair struct {
	tap1, tap2 uint8
}

// svTaps is fixed by the standard L1 C/A G2 tap table, SV 1..32.
var svTaps = [MaxSVID + 1]tapPair{
	1:  {2, 6},
	2:  {3, 7},
	3:  {4, 8},
	4:  {5, 9},
	5:  {1, 9},
	6:  {2, 10},
	7:  {1, 8},
	8:  {2, 9},
	9:  {3, 10},
	10: {2, 3},
	11: {3, 4},
	12: {5, 6},
	13: {6, 7},
	14: {7, 8},
	15: {8, 9},
	16: {9, 10},
	17: {1, 4},
	18: {2, 5},
	19: {3, 6},
	20: {4, 7},
	21: {5, 8},
	22: {6, 9},
	23: {1, 3},
	24: {4, 6},
	25: {5, 7},
	26: {6, 8},
	27: {7, 9},
	28: {8, 10},
	29: {1, 6},
	30: {2, 7},
	31: {3, 8},
	32: {4, 9},
}

// Code holds the immutable per-SV Gold code in two representations: the raw
// chip sequence (with three chips of wraparound duplicated at the end, for
// the tracker's fast_code_nco-style window extraction) and the 16x
// oversampled, 32-bit-packed table used by the acquisition correlator.
//
// Only Chips is stored with wraparound; Packed is built directly from the
// unwrapped 1023-chip sequence since it already folds the index modulo
// ChipsPerCode.
type Code struct {
	SVID int

	// Chips holds ChipsPerCode+3 bytes: chips[0..1022] followed by a
	// duplicate of chips[0..2], so any 3-chip window starting within
	// [0,1023) can be read without modular index arithmetic.
	Chips [ChipsPerCode + 3]byte

	// Packed[i] is a 32-bit bitmap of 32 consecutive oversampled chips
	// starting at fractional chip index i/16, MSB-first: bit j (from the
	// top) is Chips[((i+j)>>4) % ChipsPerCode].
	Packed [ChipsPerCode * Oversample]uint32
}

// g1LFSR returns the 1023-chip G1 code: output is state bit 9, feedback taps
// 9 and 2, state initialised all-ones.
func g1LFSR() [ChipsPerCode]byte {
	var out [ChipsPerCode]byte
	state := 0x3FF
	for i := 0; i < ChipsPerCode; i++ {
		out[i] = byte((state >> 9) & 1)
		newBit := ((state >> 9) ^ (state >> 2)) & 1
		state = ((state << 1) | newBit) & 0x3FF
	}
	return out
}

// g2LFSR returns the 1023-chip G2 code for one SV's tap pair (1-indexed,
// converted to 0-indexed shifts internally).
func g2LFSR(tap1, tap2 uint8) [ChipsPerCode]byte {
	var out [ChipsPerCode]byte
	t0 := int(tap1) - 1
	t1 := int(tap2) - 1
	state := 0x3FF
	for i := 0; i < ChipsPerCode; i++ {
		out[i] = byte(((state >> t0) ^ (state >> t1)) & 1)
		newBit := ((state >> 9) ^ (state >> 8) ^ (state >> 7) ^ (state >> 5) ^ (state >> 2) ^ (state >> 1)) & 1
		state = ((state << 1) | newBit) & 0x3FF
	}
	return out
}

// New builds the Gold code for one SV id (1..MaxSVID). It panics on an
// out-of-range id; callers are expected to validate against MaxSVID before
// calling, same as the rest of the per-SV table lookups in this package.
func New(svID int) *Code {
	if svID < 1 || svID > MaxSVID {
		panic("goldcode: sv id out of range")
	}
	taps := svTaps[svID]
	g1 := g1LFSR()
	g2 := g2LFSR(taps.tap1, taps.tap2)

	c := &Code{SVID: svID}
	for i := 0; i < ChipsPerCode; i++ {
		c.Chips[i] = g1[i] ^ g2[i]
	}
	c.Chips[ChipsPerCode] = c.Chips[0]
	c.Chips[ChipsPerCode+1] = c.Chips[1]
	c.Chips[ChipsPerCode+2] = c.Chips[2]

	for i := 0; i < ChipsPerCode*Oversample; i++ {
		var t uint32
		for j := 0; j < 32; j++ {
			t <<= 1
			if c.Chips[((i+j)>>4)%ChipsPerCode] != 0 {
				t |= 1
			}
		}
		c.Packed[i] = t
	}
	return c
}

// Table is the full set of per-SV codes, built once at startup and shared
// read-only thereafter.
type Table struct {
	codes [MaxSVID + 1]*Code
}

// BuildTable generates every SV's Gold code.
func BuildTable() *Table {
	t := &Table{}
	for sv := 1; sv <= MaxSVID; sv++ {
		t.codes[sv] = New(sv)
	}
	return t
}

// Code returns the SV's code, or nil if svID is out of range.
func (t *Table) Code(svID int) *Code {
	if svID < 1 || svID > MaxSVID {
		return nil
	}
	return t.codes[svID]
}
