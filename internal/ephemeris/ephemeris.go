// Package ephemeris computes satellite ECEF position and clock bias from
// decoded NAV orbit/clock parameters, grounded on fast_fsgps's
// nav_calc_position and orbit_ecc_anom. This is a slow-path collaborator:
// it is never called from the sample-rate loop, only by the status/solve
// path on its own timer.
package ephemeris

import "math"

const (
	mu          = 3.986005e14     // Earth's gravitational parameter, m^3/s^2
	omegaDotE   = 7.2921151467e-5 // Earth's rotation rate, rad/s
)

// Clock holds the subframe-1 clock-correction fields (navframer.TimeParams
// carries the same values; this is the narrow subset the solver needs).
type Clock struct {
	Toc, Af0, Af1, Af2, Tgd float64
}

// Orbit holds the subframe-2/3 ephemeris fields (navframer.OrbitParams
// carries the same values under GPS ICD names).
type Orbit struct {
	M0, DeltaN, E, SqrtA, Omega0, I0, W, OmegaDot, IDot         float64
	Cuc, Cus, Crc, Crs, Cic, Cis                                float64
	Toe                                                         float64
}

// eccentricAnomaly solves Kepler's equation M = E - e*sin(E) for E by
// fixed-point iteration E <- M + e*sin(E), at most 10 steps, matching
// orbit_ecc_anom's convergence loop (a handful of iterations is always
// enough at GPS orbit eccentricities).
func eccentricAnomaly(meanAnomaly, e float64) float64 {
	ea := meanAnomaly
	for i := 0; i < 10; i++ {
		prev := ea
		ea = meanAnomaly + e*math.Sin(ea)
		if math.Abs(ea-prev) < 1e-12 {
			break
		}
	}
	return ea
}

// ClockBias returns the satellite clock correction (seconds) at
// transmission time t (seconds of week), ignoring relativistic correction
// beyond the af0/af1/af2 polynomial (matching solve.c's scope).
func (c Clock) ClockBias(t float64) float64 {
	dt := t - c.Toc
	return c.Af0 + c.Af1*dt + c.Af2*dt*dt - c.Tgd
}

// Position returns the satellite's ECEF position (metres) at transmission
// time t (seconds of week), following the standard GPS ICD orbit
// propagation used by nav_calc_position.
func (o Orbit) Position(t float64) (x, y, z float64) {
	a := o.SqrtA * o.SqrtA
	n0 := math.Sqrt(mu / (a * a * a))
	n := n0 + o.DeltaN
	tk := t - o.Toe
	m := o.M0 + n*tk
	ea := eccentricAnomaly(m, o.E)

	sinE, cosE := math.Sin(ea), math.Cos(ea)
	v := math.Atan2(math.Sqrt(1-o.E*o.E)*sinE, cosE-o.E)
	phi := v + o.W

	sin2phi, cos2phi := math.Sin(2*phi), math.Cos(2*phi)
	du := o.Cus*sin2phi + o.Cuc*cos2phi
	dr := o.Crs*sin2phi + o.Crc*cos2phi
	di := o.Cis*sin2phi + o.Cic*cos2phi

	u := phi + du
	r := a*(1-o.E*cosE) + dr
	i := o.I0 + di + o.IDot*tk

	xOrbit := r * math.Cos(u)
	yOrbit := r * math.Sin(u)

	omega := o.Omega0 + (o.OmegaDot-omegaDotE)*tk - omegaDotE*o.Toe

	sinOmega, cosOmega := math.Sin(omega), math.Cos(omega)
	cosI := math.Cos(i)
	sinI := math.Sin(i)

	x = xOrbit*cosOmega - yOrbit*cosI*sinOmega
	y = xOrbit*sinOmega + yOrbit*cosI*cosOmega
	z = yOrbit * sinI
	return x, y, z
}
