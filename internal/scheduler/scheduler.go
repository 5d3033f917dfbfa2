// Package scheduler maintains per-SV acquisition priorities and keeps a
// small pool of acquisition slots busy, converging on a reliable tracked
// subset without central coordination.
package scheduler

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const maxSVID = 32

// SniffLimit is the power threshold above which a finished search's SV
// priority is bumped; half of it earns a smaller bump.
const SniffLimit = 70000

// Hooks give the scheduler the capabilities it needs from the rest of the
// receiver without depending on their concrete types.
type Hooks struct {
	// Tracking reports whether sv is currently held by a tracking channel.
	Tracking func(sv int) bool
	// BitErrors returns the NAV framer's bit-error count for sv.
	BitErrors func(sv int) int32
	// StartAcquisition begins a search for sv; returns false if every slot
	// is busy.
	StartAcquisition func(sv int) bool
}

// Scheduler is the hot-list priority table described in spec.md §4.7.
type Scheduler struct {
	priority [maxSVID + 1]int32
	hooks    Hooks
}

// New creates a scheduler with every SV's priority at the neutral default.
func New(hooks Hooks) *Scheduler {
	s := &Scheduler{hooks: hooks}
	for i := 1; i <= maxSVID; i++ {
		s.priority[i] = 32
	}
	return s
}

// LoadPriorities reads a priority file (one decimal SV id per line) and
// bumps each listed SV by +32, matching priority.txt's startup contract.
func (s *Scheduler) LoadPriorities(r io.Reader) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		sv, err := strconv.Atoi(line)
		if err != nil || sv <= 0 || sv > maxSVID {
			continue
		}
		s.priority[sv] += 32
	}
}

// SavePriorities writes the currently tracked SV ids, one per line, so a
// restarted receiver preferentially re-acquires the same set.
func (s *Scheduler) SavePriorities(w io.Writer, trackedSVs []int) error {
	for _, sv := range trackedSVs {
		if _, err := fmt.Fprintf(w, "%d\n", sv); err != nil {
			return err
		}
	}
	return nil
}

// LaunchStartupSearches starts as many acquisition searches as there are
// free slots, called once at startup.
func (s *Scheduler) LaunchStartupSearches(maxAttempts int) {
	for i := 0; i < maxAttempts; i++ {
		if !s.launchHighestPriority(1) {
			break
		}
	}
}

// OnPower is the acquisition engine's power callback: request a channel if
// power clears the sniff threshold, or if it more than doubles the power of
// an already-tracked SV (to preempt a weaker lock).
func (s *Scheduler) OnPower(sv int, stepIF, offset, power uint32, currentChannelPower func(sv int) (uint32, bool), addChannel func(sv int, stepIF, offset uint32)) {
	if power <= SniffLimit {
		return
	}
	if p, ok := currentChannelPower(sv); ok {
		if power > p*2 {
			addChannel(sv, stepIF, offset)
		}
		return
	}
	addChannel(sv, stepIF, offset)
}

// OnFinished is the acquisition engine's finished callback: bump the
// just-searched SV's priority if it saw meaningful power, decay every SV's
// priority, and launch the next highest-priority search.
func (s *Scheduler) OnFinished(sv int, power uint32) {
	if power > SniffLimit {
		s.priority[sv] += 16
	} else if power > SniffLimit/2 {
		s.priority[sv] += 8
	}

	for i := 1; i <= maxSVID; i++ {
		tracked := s.hooks.Tracking != nil && s.hooks.Tracking(i)
		errs := int32(0)
		if s.hooks.BitErrors != nil {
			errs = s.hooks.BitErrors(i)
		}
		switch {
		case tracked && errs < 10:
			s.priority[i] = 0
		case errs > 500:
			s.priority[i] += 4
		default:
			s.priority[i]++
		}
	}
	s.launchHighestPriority(sv)
}

// launchHighestPriority scans SV 1..32 in id order, picks the
// highest-priority SV that is not already tracked (ties go to the lowest id;
// sv itself is picked when no untracked SV has a positive priority),
// subtracts 32 (clamped at 0) from its priority, and starts a search for it.
func (s *Scheduler) launchHighestPriority(sv int) bool {
	maxSV := sv
	var maxP int32
	for i := 1; i <= maxSVID; i++ {
		tracked := s.hooks.Tracking != nil && s.hooks.Tracking(i)
		if !tracked && s.priority[i] > maxP {
			maxP = s.priority[i]
			maxSV = i
		}
	}
	s.priority[maxSV] -= 32
	if s.priority[maxSV] < 0 {
		s.priority[maxSV] = 0
	}
	if s.hooks.StartAcquisition == nil {
		return false
	}
	return s.hooks.StartAcquisition(maxSV)
}

// Priority returns sv's current priority value, for status/debugging.
func (s *Scheduler) Priority(sv int) int32 {
	if sv < 1 || sv > maxSVID {
		return 0
	}
	return s.priority[sv]
}
