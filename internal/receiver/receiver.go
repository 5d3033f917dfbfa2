// Package receiver wires the Gold-code tables, acquisition engine,
// tracking-channel pool, NAV framers, and scheduler into the single
// top-level dispatcher that drives the sample-rate loop.
package receiver

import (
	"io"

	"github.com/charmbracelet/log"

	"github.com/hamsternz/Full-Stack-GPS-Receiver/internal/acquisition"
	"github.com/hamsternz/Full-Stack-GPS-Receiver/internal/channel"
	"github.com/hamsternz/Full-Stack-GPS-Receiver/internal/ephemeris"
	"github.com/hamsternz/Full-Stack-GPS-Receiver/internal/goldcode"
	"github.com/hamsternz/Full-Stack-GPS-Receiver/internal/navframer"
	"github.com/hamsternz/Full-Stack-GPS-Receiver/internal/scheduler"
	"github.com/hamsternz/Full-Stack-GPS-Receiver/internal/solve"
)

// SamplesPerMs is the fixed design sample rate (16.368 MS/s -> 16368
// samples/ms), 1 bit/sample, 32 samples per dispatched word.
const SamplesPerMs = 16368

// WordsPerMs is the number of 32-sample words in one millisecond.
const WordsPerMs = SamplesPerMs / 32

// trackedChannel pairs a tracking channel with its NAV framer; both are
// added and removed together.
type trackedChannel struct {
	ch  *channel.Channel
	nav *navframer.Channel
}

// Core owns every sub-component and is the single mutable value the
// dispatcher advances one word at a time. There is no interior concurrency:
// the sample-rate loop calls Core.ProcessWord sequentially.
type Core struct {
	log *log.Logger

	codes *goldcode.Table
	acq   *acquisition.Engine

	maxChannels int
	channels    []trackedChannel

	navCache navframer.SubframeCache
	sched    *scheduler.Scheduler

	wordInMs int

	onSnapshot func(Snapshot)
}

// Config bundles the tunables Core needs at construction.
type Config struct {
	Bands       int
	Parallel    int
	MaxChannels int
	NavCache    navframer.SubframeCache
	Logger      *log.Logger
}

// New builds a Core with an empty channel pool and a scheduler wired to
// this Core's own tracking/bit-error/acquisition-start hooks.
func New(cfg Config) *Core {
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard)
	}
	c := &Core{
		log:         cfg.Logger,
		codes:       goldcode.BuildTable(),
		acq:         acquisition.New(cfg.Bands, cfg.Parallel),
		maxChannels: cfg.MaxChannels,
		navCache:    cfg.NavCache,
	}
	c.sched = scheduler.New(scheduler.Hooks{
		Tracking:         c.isTracking,
		BitErrors:        c.bitErrors,
		StartAcquisition: c.startAcquisition,
	})
	return c
}

// OnSnapshot registers a callback invoked every status period (the
// dispatcher decides the period; Core itself is timer-agnostic).
func (c *Core) OnSnapshot(f func(Snapshot)) { c.onSnapshot = f }

// LoadPriorities seeds the scheduler from a priority file reader.
func (c *Core) LoadPriorities(r io.Reader) { c.sched.LoadPriorities(r) }

// SavePriorities writes the currently tracked SV set.
func (c *Core) SavePriorities(w io.Writer) error {
	return c.sched.SavePriorities(w, c.trackedSVs())
}

// Startup launches initial acquisition searches to fill every free slot.
func (c *Core) Startup(maxAttempts int) {
	c.sched.LaunchStartupSearches(maxAttempts)
}

func (c *Core) isTracking(sv int) bool {
	for _, tc := range c.channels {
		if tc.ch.SVID == sv {
			return true
		}
	}
	return false
}

func (c *Core) bitErrors(sv int) int32 {
	for _, tc := range c.channels {
		if tc.ch.SVID == sv {
			return tc.nav.BitErrors
		}
	}
	return 0
}

func (c *Core) trackedSVs() []int {
	svs := make([]int, 0, len(c.channels))
	for _, tc := range c.channels {
		svs = append(svs, tc.ch.SVID)
	}
	return svs
}

func (c *Core) startAcquisition(sv int) bool {
	if c.isTracking(sv) || c.acq.Searching(sv) {
		return false
	}
	return c.acq.Start(sv, c.codes, c.onAcquirePower, c.onAcquireFinished)
}

func (c *Core) onAcquirePower(sv int, stepIF, offset, power uint32) {
	c.sched.OnPower(sv, stepIF, offset, power, c.channelPower, func(sv int, stepIF, offset uint32) {
		c.addChannel(sv, stepIF, offset)
	})
}

func (c *Core) onAcquireFinished(sv int, power uint32) {
	c.log.Debug("acquisition finished", "sv", sv, "power", power)
	c.sched.OnFinished(sv, power)
}

func (c *Core) channelPower(sv int) (uint32, bool) {
	for _, tc := range c.channels {
		if tc.ch.SVID == sv {
			_, p, _ := tc.ch.Powers()
			return p, true
		}
	}
	return 0, false
}

// addChannel registers a new tracking channel and NAV framer for sv, if the
// pool is not full.
func (c *Core) addChannel(sv int, stepIF, offset uint32) bool {
	if len(c.channels) >= c.maxChannels {
		c.log.Warn("channel pool full, dropping acquisition result", "sv", sv)
		return false
	}
	nav := navframer.New(sv, c.navCache)
	ch := channel.New(sv, stepIF, 0, 0, func(svID int, promptCosine int32) {
		nav.AddBit(promptCosine)
	})
	c.channels = append(c.channels, trackedChannel{ch: ch, nav: nav})
	c.log.Info("channel added", "sv", sv)
	return true
}

// removeChannel drops sv's tracking channel and NAV framer and abandons any
// search in progress for sv.
func (c *Core) removeChannel(sv int) {
	for i, tc := range c.channels {
		if tc.ch.SVID == sv {
			c.channels = append(c.channels[:i], c.channels[i+1:]...)
			c.acq.Stop(sv)
			c.log.Info("channel removed", "sv", sv)
			return
		}
	}
}

// ProcessWord dispatches one 32-sample word: acquisition runs before
// tracking so a channel registered this word only begins tracking on the
// next one, preserving the ordering guarantee.
func (c *Core) ProcessWord(word uint32) {
	c.acq.Update(word)
	for i := range c.channels {
		code := c.codes.Code(c.channels[i].ch.SVID)
		c.channels[i].ch.Update(code, word)
	}

	c.wordInMs++
	if c.wordInMs == WordsPerMs {
		c.wordInMs = 0
	}
}

// Snapshot captures every tracked channel's state at an instant.
type Snapshot struct {
	Channels []ChannelSnapshot
}

// ChannelSnapshot is one tracked SV's published state, for status display
// and the position solver.
type ChannelSnapshot struct {
	SVID              int
	CodeNCOPhase      uint32
	EarlyP, PromptP, LateP uint32
	ValidSubframesMask uint8
	BitErrors          int32
	Time               navframer.TimeParams
	Orbit              navframer.OrbitParams
	SubframeOfWeek     int32
	MsOfFrame          int32
}

// BuildSnapshot assembles the current state of every tracked channel.
func (c *Core) BuildSnapshot() Snapshot {
	snap := Snapshot{Channels: make([]ChannelSnapshot, 0, len(c.channels))}
	for _, tc := range c.channels {
		e, p, l := tc.ch.Powers()
		var mask uint8
		for k := 1; k <= 5; k++ {
			if tc.nav.ValidSubframe[k] {
				mask |= 1 << uint(k-1)
			}
		}
		snap.Channels = append(snap.Channels, ChannelSnapshot{
			SVID:               tc.ch.SVID,
			CodeNCOPhase:       tc.ch.CodePhase(),
			EarlyP:             e,
			PromptP:            p,
			LateP:              l,
			ValidSubframesMask: mask,
			BitErrors:          tc.nav.BitErrors,
			Time:               tc.nav.Time,
			Orbit:              tc.nav.Orbit,
			SubframeOfWeek:     tc.nav.SubframeOfWeek,
			MsOfFrame:          tc.nav.MsOfFrame,
		})
	}
	if c.onSnapshot != nil {
		c.onSnapshot(snap)
	}
	return snap
}

// codePeriodsPerMs is the code NCO's wraparound limit (1023 chips, Q10.22
// fixed point): one full code period is one millisecond, so a channel's raw
// code phase divided by this gives the fractional millisecond within the
// current code period, matching status.c's channel_get_nco_phase /
// (channel_get_nco_limit()+1.0).
const codePeriodsPerMs = 1023 << 22

const speedOfLight = 299792458.0

// minSatellitesForFix is solve.Solve's own requirement (4 unknowns), checked
// here too so BuildFix can report "not enough satellites" distinctly from
// "did not converge".
const minSatellitesForFix = 4

// BuildFix gathers every tracked channel with a complete clock and orbit
// solution, estimates each one's time of transmission from its NAV framer's
// subframe/millisecond counters and its code NCO's sub-millisecond phase
// (status.c's raw_time calculation), propagates satellite position via
// internal/ephemeris, and solves a receiver position fix via internal/solve.
// ok is false if fewer than four satellites currently have a usable orbit.
func (c *Core) BuildFix(previous solve.Fix) (solve.Fix, bool) {
	type txObservation struct {
		x, y, z   float64
		txTimeSec float64
	}
	var obs []txObservation

	for _, tc := range c.channels {
		if !tc.nav.Time.Valid || !tc.nav.Orbit.Valid {
			continue
		}
		if tc.nav.MsOfFrame < 0 || tc.nav.SubframeOfWeek < 0 {
			continue
		}

		codeFraction := float64(tc.ch.CodePhase()) / float64(codePeriodsPerMs)
		rawTimeMs := float64(tc.nav.MsOfFrame) + codeFraction + float64(tc.nav.SubframeOfWeek)*6000.0
		txTime := rawTimeMs / 1000.0

		clk := ephemeris.Clock{
			Toc: tc.nav.Time.ReferenceTime,
			Af0: tc.nav.Time.CorrectionF0,
			Af1: tc.nav.Time.CorrectionF1,
			Af2: tc.nav.Time.CorrectionF2,
			Tgd: tc.nav.Time.GroupDelay,
		}
		txTime -= clk.ClockBias(txTime)

		orbit := ephemeris.Orbit{
			M0: tc.nav.Orbit.M0, DeltaN: tc.nav.Orbit.DeltaN, E: tc.nav.Orbit.E,
			SqrtA: tc.nav.Orbit.SqrtA, Omega0: tc.nav.Orbit.Omega0, I0: tc.nav.Orbit.I0,
			W: tc.nav.Orbit.W, OmegaDot: tc.nav.Orbit.OmegaDot, IDot: tc.nav.Orbit.IDot,
			Cuc: tc.nav.Orbit.Cuc, Cus: tc.nav.Orbit.Cus, Crc: tc.nav.Orbit.Crc,
			Crs: tc.nav.Orbit.Crs, Cic: tc.nav.Orbit.Cic, Cis: tc.nav.Orbit.Cis,
			Toe: tc.nav.Orbit.Toe,
		}
		x, y, z := orbit.Position(txTime)
		obs = append(obs, txObservation{x: x, y: y, z: z, txTimeSec: txTime})
	}

	if len(obs) < minSatellitesForFix {
		return solve.Fix{}, false
	}

	var sumTx float64
	for _, o := range obs {
		sumTx += o.txTimeSec
	}
	refTime := sumTx / float64(len(obs))

	sats := make([]solve.Satellite, len(obs))
	for i, o := range obs {
		sats[i] = solve.Satellite{
			X: o.x, Y: o.y, Z: o.z,
			Pseudorange: speedOfLight * (refTime - o.txTimeSec),
		}
	}
	return solve.Solve(sats, previous), true
}
