package acquisition

import (
	"testing"

	"github.com/hamsternz/Full-Stack-GPS-Receiver/internal/goldcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartStopSlotAccounting(t *testing.T) {
	tbl := goldcode.BuildTable()
	e := New(DefaultBands, 2)

	require.True(t, e.Start(1, tbl, nil, nil))
	require.True(t, e.Start(22, tbl, nil, nil))
	assert.False(t, e.Start(5, tbl, nil, nil), "both slots busy, should reject")
	assert.True(t, e.Searching(1))
	assert.True(t, e.Searching(22))
	assert.False(t, e.Searching(5))

	e.Stop(1)
	assert.False(t, e.Searching(1))
	assert.True(t, e.Start(5, tbl, nil, nil), "slot freed by Stop should be reusable")
}

// Exercises the engine's sweep bookkeeping with an all-zero sample input: the
// search must run to the end of its sweep and report the searched SV through
// the finished callback. Correlator power is not checked here.
func TestUpdateRunsFullSweepAndFinishes(t *testing.T) {
	tbl := goldcode.BuildTable()
	e := New(DefaultBands, 1)
	var finished bool
	var gotSV int
	e.Start(7, tbl, nil, func(sv int, power uint32) {
		finished = true
		gotSV = sv
	})

	// One code period is 1023 "progress" words plus one completion word, and
	// the search finishes on its (triesPerSweep+1)th completed period, so a
	// full sweep is 1024*1024 words; drive one extra period as margin.
	for i := 0; i < (triesPerSweep+2)*(triesPerSweep+1); i++ {
		if !e.Searching(7) {
			break
		}
		e.Update(0)
	}
	assert.True(t, finished)
	assert.Equal(t, 7, gotSV)
}
