// Package geodetic converts ECEF positions to WGS-84 geodetic coordinates
// via Bowring's method, bridging the solver's ECEF fix to the status
// reporter's lat/lon/alt display (which further converts to UTM/MGRS via
// coordconv).
package geodetic

import "math"

const (
	wgs84A   = 6378137.0
	wgs84Finv = 298.257223563
	wgs84E2  = 0.00669437999014132
)

// ECEFToGeodetic converts ECEF metres to (latitude, longitude) in radians
// and ellipsoidal height in metres, via a single step of Bowring's
// closed-form approximation with no further refinement (sufficient precision
// for a receiver status display, not a geodetic-survey tool).
func ECEFToGeodetic(x, y, z float64) (latRad, lonRad, heightM float64) {
	b := wgs84A * (1 - 1/wgs84Finv)
	ep2 := (wgs84A*wgs84A - b*b) / (b * b)
	p := math.Hypot(x, y)
	theta := math.Atan2(z*wgs84A, p*b)

	lonRad = math.Atan2(y, x)
	lat := math.Atan2(
		z+ep2*b*math.Pow(math.Sin(theta), 3),
		p-wgs84E2*wgs84A*math.Pow(math.Cos(theta), 3),
	)
	sinLat := math.Sin(lat)
	n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)
	height := p/math.Cos(lat) - n

	return lat, lonRad, height
}
