package geodetic

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEquatorialPointOnEllipsoid(t *testing.T) {
	// A point on the equator, at the ellipsoid's semi-major axis, should
	// resolve to latitude 0, longitude 0, height 0.
	lat, lon, h := ECEFToGeodetic(wgs84A, 0, 0)
	assert.InDelta(t, 0, lat, 1e-9)
	assert.InDelta(t, 0, lon, 1e-9)
	assert.InDelta(t, 0, h, 1e-3)
}

func TestLongitudeFollowsAtan2Quadrant(t *testing.T) {
	_, lon, _ := ECEFToGeodetic(0, wgs84A, 0)
	assert.InDelta(t, math.Pi/2, lon, 1e-9)
}

func TestAltitudeAboveSurfaceIsPositive(t *testing.T) {
	_, _, h := ECEFToGeodetic(wgs84A+1000, 0, 0)
	assert.InDelta(t, 1000, h, 1.0)
}
