package scheduler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadPrioritiesBumpsListedSVs(t *testing.T) {
	s := New(Hooks{})
	s.LoadPriorities(strings.NewReader("1\n22\nnot-a-number\n33\n0\n"))
	assert.Equal(t, int32(32+32), s.Priority(1))
	assert.Equal(t, int32(32+32), s.Priority(22))
	assert.Equal(t, int32(32), s.Priority(5))
}

func TestSavePrioritiesWritesTrackedSVs(t *testing.T) {
	s := New(Hooks{})
	var sb strings.Builder
	err := s.SavePriorities(&sb, []int{4, 14, 22})
	assert.NoError(t, err)
	assert.Equal(t, "4\n14\n22\n", sb.String())
}

// S8 (loose form): in the absence of successful acquisitions, repeatedly
// finishing searches should eventually attempt every SV at least once.
func TestFairnessAllSVsEventuallyAttempted(t *testing.T) {
	started := map[int]bool{}
	s := New(Hooks{
		Tracking:  func(sv int) bool { return false },
		BitErrors: func(sv int) int32 { return 0 },
		StartAcquisition: func(sv int) bool {
			started[sv] = true
			return true
		},
	})
	s.LaunchStartupSearches(1)
	for round := 0; round < maxSVID*4; round++ {
		s.OnFinished(1, 0)
	}
	for sv := 1; sv <= maxSVID; sv++ {
		assert.Truef(t, started[sv], "sv %d never attempted", sv)
	}
}

func TestOnPowerRequestsChannelAboveThreshold(t *testing.T) {
	s := New(Hooks{})
	var added []int
	addChannel := func(sv int, stepIF, offset uint32) { added = append(added, sv) }
	noCurrent := func(sv int) (uint32, bool) { return 0, false }

	s.OnPower(5, 0, 0, SniffLimit, noCurrent, addChannel)
	assert.Empty(t, added, "exactly at threshold should not trigger")

	s.OnPower(5, 0, 0, SniffLimit+1, noCurrent, addChannel)
	assert.Equal(t, []int{5}, added)
}

// Priority bump amounts on a finished sweep follow spec.md's threshold
// formula (+16 above SniffLimit, +8 above SniffLimit/2), not schedule.c's
// literal 500000/300000 constants. sv 1 is used throughout so ties in the
// decay-and-launch scan resolve in its favor (it's always the first index
// checked), keeping the expected value arithmetic unambiguous.
func TestOnFinishedPriorityBumpAmounts(t *testing.T) {
	cases := []struct {
		name  string
		power uint32
		want  int32
	}{
		{"above sniff limit", SniffLimit + 1, 17},   // 32 + 16 bump + 1 decay - 32 launch
		{"above half sniff limit", SniffLimit/2 + 1, 9}, // 32 + 8 bump + 1 decay - 32 launch
		{"at half sniff limit, no bump", SniffLimit / 2, 1}, // 32 + 0 + 1 decay - 32 launch
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := New(Hooks{})
			s.OnFinished(1, tc.power)
			assert.Equal(t, tc.want, s.Priority(1))
		})
	}
}

func TestOnPowerDoublingPreemption(t *testing.T) {
	s := New(Hooks{})
	var added []int
	addChannel := func(sv int, stepIF, offset uint32) { added = append(added, sv) }
	current := func(sv int) (uint32, bool) { return 100000, true }

	s.OnPower(5, 0, 0, 150000, current, addChannel)
	assert.Empty(t, added, "not more than double, should not preempt")

	s.OnPower(5, 0, 0, 250000, current, addChannel)
	assert.Equal(t, []int{5}, added)
}
