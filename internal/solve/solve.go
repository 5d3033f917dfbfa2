// Package solve implements the four-unknown (x, y, z, clock bias)
// Gauss-Newton least-squares position fix, grounded on fast_fsgps's
// solve.c solve_location. Like package ephemeris, this runs on the
// slow status/solve path, never the sample-rate loop.
package solve

import "math"

const speedOfLight = 299792458.0
const maxIterations = 20

// Satellite is one space vehicle's contribution to a fix: its ECEF position
// and the pseudorange (metres) measured against a common receive-time
// reference.
type Satellite struct {
	X, Y, Z     float64
	Pseudorange float64
}

// Fix is the solved receiver position (ECEF, metres) and clock bias
// (metres, i.e. already multiplied by the speed of light).
type Fix struct {
	X, Y, Z, ClockBias float64
	Iterations         int
	Converged          bool
}

// Solve runs Gauss-Newton from an initial guess (typically the previous fix,
// or the origin) until convergence or maxIterations, matching the fixed
// 20-iteration cap in solve_location. At least 4 satellites are required.
func Solve(sats []Satellite, initial Fix) Fix {
	if len(sats) < 4 {
		return initial
	}
	x, y, z, b := initial.X, initial.Y, initial.Z, initial.ClockBias

	var iter int
	for iter = 0; iter < maxIterations; iter++ {
		// Build the Jacobian and residual for each satellite.
		jac := make([][4]float64, len(sats))
		res := make([]float64, len(sats))
		for i, s := range sats {
			dx, dy, dz := x-s.X, y-s.Y, z-s.Z
			rangeEst := math.Sqrt(dx*dx + dy*dy + dz*dz)
			if rangeEst == 0 {
				rangeEst = 1e-6
			}
			jac[i] = [4]float64{dx / rangeEst, dy / rangeEst, dz / rangeEst, 1}
			res[i] = s.Pseudorange - (rangeEst + b)
		}

		dx, dy, dz, db, ok := leastSquares4(jac, res)
		if !ok {
			return Fix{X: x, Y: y, Z: z, ClockBias: b, Iterations: iter, Converged: false}
		}
		x += dx
		y += dy
		z += dz
		b += db

		if math.Abs(dx)+math.Abs(dy)+math.Abs(dz)+math.Abs(db) < 1e-3 {
			return Fix{X: x, Y: y, Z: z, ClockBias: b, Iterations: iter + 1, Converged: true}
		}
	}
	return Fix{X: x, Y: y, Z: z, ClockBias: b, Iterations: iter, Converged: false}
}

// leastSquares4 solves the normal equations (J^T J) delta = J^T res for the
// 4-unknown system via Gaussian elimination with partial pivoting.
func leastSquares4(jac [][4]float64, res []float64) (dx, dy, dz, db float64, ok bool) {
	var jtj [4][4]float64
	var jtr [4]float64
	for _, row := range jac {
		for i := 0; i < 4; i++ {
			for j := 0; j < 4; j++ {
				jtj[i][j] += row[i] * row[j]
			}
		}
	}
	for k, row := range jac {
		for i := 0; i < 4; i++ {
			jtr[i] += row[i] * res[k]
		}
	}

	sol, ok := solve4x4(jtj, jtr)
	if !ok {
		return 0, 0, 0, 0, false
	}
	return sol[0], sol[1], sol[2], sol[3], true
}

func solve4x4(a [4][4]float64, b [4]float64) ([4]float64, bool) {
	const n = 4
	var m [n][n + 1]float64
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			m[i][j] = a[i][j]
		}
		m[i][n] = b[i]
	}
	for col := 0; col < n; col++ {
		pivot := col
		for r := col + 1; r < n; r++ {
			if math.Abs(m[r][col]) > math.Abs(m[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(m[pivot][col]) < 1e-12 {
			return [4]float64{}, false
		}
		m[col], m[pivot] = m[pivot], m[col]
		for r := 0; r < n; r++ {
			if r == col {
				continue
			}
			f := m[r][col] / m[col][col]
			for c := col; c <= n; c++ {
				m[r][c] -= f * m[col][c]
			}
		}
	}
	var x [4]float64
	for i := 0; i < n; i++ {
		x[i] = m[i][n] / m[i][i]
	}
	return x, true
}
