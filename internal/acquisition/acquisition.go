// Package acquisition implements the parallel-over-frequency,
// sequential-over-code-phase search that finds a space vehicle's carrier
// Doppler and code phase before a tracking channel can be started.
package acquisition

import (
	"github.com/hamsternz/Full-Stack-GPS-Receiver/internal/goldcode"
	"github.com/hamsternz/Full-Stack-GPS-Receiver/internal/nco"
)

// DefaultBands is the odd, zero-centred band count used unless configured
// otherwise (the source hardcodes 31).
const DefaultBands = 31

// dcBias is subtracted from each band's accumulated correlator sums once per
// completed code period (32 samples/word * 1023/2 words ~ one code period of
// XOR'd all-true correlator drive averages to this bias).
const dcBias = 16368

// triesPerSweep is the number of completed code periods before a search
// gives up on an SV, one full sweep of code-phase offsets.
const triesPerSweep = 1023

// PowerFunc is called whenever a non-edge band's integrated power exceeds
// the previous best for this search, requesting the caller consider starting
// a tracking channel. A new best on the first or last band only updates the
// recorded step; it does not trigger the callback.
type PowerFunc func(svID int, stepIF, offset, power uint32)

// FinishedFunc is called once a search sweep completes (1023 tries),
// regardless of whether any channel was requested.
type FinishedFunc func(svID int, maxPower uint32)

// slot holds the per-SV-search state for one of the engine's concurrent
// search slots.
type slot struct {
	active   bool
	svID     int
	code     *goldcode.Code
	codePhase uint32

	onesS []uint32
	onesC []uint32

	tries     uint32
	maxOffset uint32
	maxPower  uint32
	maxStep   uint32

	onPower    PowerFunc
	onFinished FinishedFunc
}

// Engine runs up to nParallel simultaneous SV searches, each sweeping
// nBands frequency bins in parallel and 1023 code phases sequentially.
type Engine struct {
	nBands    int
	nParallel int

	carrierPhase []uint32
	carrierStep  []uint32

	slots []slot
}

// New builds an acquisition engine with nParallel search slots and nBands
// carrier bins (an even count is rounded up to the next odd one), centred on
// the nominal 0x40000000 carrier step and spaced 525*5000/(nBands/2) step
// units apart.
func New(nBands, nParallel int) *Engine {
	if nBands%2 == 0 {
		nBands++
	}
	e := &Engine{
		nBands:       nBands,
		nParallel:    nParallel,
		carrierPhase: make([]uint32, nBands),
		carrierStep:  make([]uint32, nBands),
		slots:        make([]slot, nParallel),
	}
	ifBand := uint32(525*5000) / uint32(nBands/2)
	center := nBands / 2
	for i := 0; i < nBands; i++ {
		e.carrierStep[i] = 0x40000000 + uint32((i-center))*ifBand
	}
	for s := range e.slots {
		e.slots[s].onesS = make([]uint32, nBands)
		e.slots[s].onesC = make([]uint32, nBands)
	}
	return e
}

// Start begins a search for svID in a free slot. Returns false if every
// slot is busy (the caller, the scheduler, tries again on a later word).
func (e *Engine) Start(svID int, table *goldcode.Table, onPower PowerFunc, onFinished FinishedFunc) bool {
	for i := range e.slots {
		if !e.slots[i].active {
			s := &e.slots[i]
			s.active = true
			s.svID = svID
			s.code = table.Code(svID)
			s.codePhase = 0
			s.tries = 0
			s.maxOffset = 0
			s.maxPower = 0
			s.onPower = onPower
			s.onFinished = onFinished
			for b := 0; b < e.nBands; b++ {
				s.onesS[b] = 0
				s.onesC[b] = 0
			}
			return true
		}
	}
	return false
}

// Stop abandons any in-progress search for svID without invoking its
// finished callback.
func (e *Engine) Stop(svID int) {
	for i := range e.slots {
		if e.slots[i].active && e.slots[i].svID == svID {
			e.slots[i].active = false
		}
	}
}

// Searching reports whether svID currently occupies a search slot.
func (e *Engine) Searching(svID int) bool {
	for i := range e.slots {
		if e.slots[i].active && e.slots[i].svID == svID {
			return true
		}
	}
	return false
}

// Update processes one 32-sample word across every active search slot.
// acquire_update must be called before the channel pool's Update for the
// same word (a channel registered here must not see samples before this
// word).
func (e *Engine) Update(samples uint32) {
	loS := make([]uint32, e.nBands)
	loC := make([]uint32, e.nBands)
	for b := 0; b < e.nBands; b++ {
		loS[b], loC[b] = nco.Samples(e.carrierPhase[b], e.carrierStep[b])
	}

	for si := range e.slots {
		s := &e.slots[si]
		if !s.active {
			continue
		}

		if s.maxOffset < 2 {
			s.maxOffset += triesPerSweep - 2
		} else {
			s.maxOffset -= 2
		}

		if s.codePhase == triesPerSweep {
			s.codePhase = 0
			for b := 0; b < e.nBands; b++ {
				s.onesS[b] -= dcBias
				s.onesC[b] -= dcBias
			}
			for b := 0; b < e.nBands; b++ {
				p := s.onesS[b]*s.onesS[b] + s.onesC[b]*s.onesC[b]
				if p > s.maxPower {
					s.maxPower = p
					s.maxStep = e.carrierStep[b]
					switch {
					case b == 0:
						s.maxStep = e.carrierStep[b]*3/4 + e.carrierStep[b+1]/4
					case b == e.nBands-1:
						s.maxStep = e.carrierStep[b]*3/4 + e.carrierStep[b-1]/4
					default:
						if s.onPower != nil {
							s.onPower(s.svID, s.maxStep, 0, s.maxPower/4)
						}
					}
				}
			}
			for b := 0; b < e.nBands; b++ {
				s.onesS[b] = 0
				s.onesC[b] = 0
			}
			if s.tries == triesPerSweep {
				s.active = false
				if s.onFinished != nil {
					s.onFinished(s.svID, s.maxPower)
				}
			} else {
				s.tries++
			}
			continue
		}

		c := s.code.Packed[s.codePhase*16]
		for b := 0; b < e.nBands; b++ {
			s.onesS[b] += nco.Popcount(samples ^ c ^ loS[b])
			s.onesC[b] += nco.Popcount(samples ^ c ^ loC[b])
		}
		if s.codePhase == triesPerSweep-1 {
			s.codePhase -= triesPerSweep - 2
		} else {
			s.codePhase += 2
		}
	}

	for b := 0; b < e.nBands; b++ {
		e.carrierPhase[b] = nco.Advance(e.carrierPhase[b], e.carrierStep[b])
	}
}
