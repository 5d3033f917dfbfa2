package solve

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syntheticSatellites places 4 satellites around a known receiver position
// and clock bias, generating exact pseudoranges so Solve should converge to
// that position from an origin guess.
func syntheticSatellites(rx, ry, rz, biasMetres float64) []Satellite {
	positions := [][3]float64{
		{20000000, 0, 15000000},
		{-15000000, 18000000, 10000000},
		{0, -20000000, 18000000},
		{12000000, 12000000, -18000000},
	}
	sats := make([]Satellite, len(positions))
	for i, p := range positions {
		dx, dy, dz := rx-p[0], ry-p[1], rz-p[2]
		r := math.Sqrt(dx*dx + dy*dy + dz*dz)
		sats[i] = Satellite{X: p[0], Y: p[1], Z: p[2], Pseudorange: r + biasMetres}
	}
	return sats
}

func TestSolveConvergesToKnownPosition(t *testing.T) {
	const rx, ry, rz, bias = 6378137.0, 0.0, 0.0, 1000.0
	sats := syntheticSatellites(rx, ry, rz, bias)

	fix := Solve(sats, Fix{})
	require.True(t, fix.Converged)
	assert.InDelta(t, rx, fix.X, 1.0)
	assert.InDelta(t, ry, fix.Y, 1.0)
	assert.InDelta(t, rz, fix.Z, 1.0)
	assert.InDelta(t, bias, fix.ClockBias, 1.0)
}

func TestSolveRequiresFourSatellites(t *testing.T) {
	sats := syntheticSatellites(0, 0, 0, 0)[:3]
	initial := Fix{X: 1, Y: 2, Z: 3}
	fix := Solve(sats, initial)
	assert.Equal(t, initial, fix)
}
