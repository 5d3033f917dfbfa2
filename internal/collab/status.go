package collab

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/golang/geo/s2"
	"github.com/lestrrat-go/strftime"
	"github.com/tzneal/coordconv"

	"github.com/hamsternz/Full-Stack-GPS-Receiver/internal/geodetic"
	"github.com/hamsternz/Full-Stack-GPS-Receiver/internal/receiver"
	"github.com/hamsternz/Full-Stack-GPS-Receiver/internal/solve"
)

// timeEpoch is the GPS epoch (1980-01-06) expressed as a Unix timestamp,
// matching nav.c's TIME_EPOCH constant.
const timeEpoch = 315964800

var statusTimeFormat = strftime.MustNew("%Y-%m-%d %H:%M:%S UTC")

// StatusReporter logs a periodic snapshot of every tracked channel and, once
// a fix is available, the geodetic position rendered as UTM/MGRS strings.
type StatusReporter struct {
	log *log.Logger
}

// NewStatusReporter builds a reporter writing through logger.
func NewStatusReporter(logger *log.Logger) *StatusReporter {
	return &StatusReporter{log: logger}
}

// ReportSnapshot logs one line per tracked channel: SV id, powers, bit
// errors, and (if a clock is known) the GPS week epoch timestamp.
func (r *StatusReporter) ReportSnapshot(snap receiver.Snapshot) {
	for _, ch := range snap.Channels {
		fields := []any{
			"sv", ch.SVID,
			"early_p", ch.EarlyP,
			"prompt_p", ch.PromptP,
			"late_p", ch.LateP,
			"bit_errors", ch.BitErrors,
			"subframes", fmt.Sprintf("%05b", ch.ValidSubframesMask),
		}
		if ch.Time.Valid {
			epoch := timeEpoch + ch.Time.WeekNum*604800
			fields = append(fields, "week_epoch", formatEpoch(epoch))
		}
		r.log.Info("channel status", fields...)
	}
}

func formatEpoch(unixSeconds int) string {
	var buf []byte
	buf, _ = statusTimeFormat.AppendFormat(buf, time.Unix(int64(unixSeconds), 0).UTC())
	return string(buf)
}

func hemisphereRune(h coordconv.Hemisphere) rune {
	switch h {
	case coordconv.HemisphereNorth:
		return 'N'
	case coordconv.HemisphereSouth:
		return 'S'
	default:
		return '?'
	}
}

// ReportFix logs a solved position fix, converting ECEF to geodetic and
// then to UTM/MGRS display strings.
func (r *StatusReporter) ReportFix(fix solve.Fix) {
	if !fix.Converged {
		r.log.Warn("position fix did not converge", "iterations", fix.Iterations)
		return
	}
	latRad, lonRad, height := geodetic.ECEFToGeodetic(fix.X, fix.Y, fix.Z)
	ll := s2.LatLngFromDegrees(radToDeg(latRad), radToDeg(lonRad))

	utm, err := coordconv.DefaultUTMConverter.ConvertFromGeodetic(ll, 0)
	if err != nil {
		r.log.Warn("utm conversion failed", "err", err)
		r.log.Info("position fix", "lat", ll.Lat.Degrees(), "lon", ll.Lng.Degrees(), "height_m", height)
		return
	}
	utmStr := fmt.Sprintf("%d%c %.0f %.0f", utm.Zone, hemisphereRune(utm.Hemisphere), utm.Easting, utm.Northing)

	mgrs, mgrsErr := coordconv.DefaultMGRSConverter.ConvertFromGeodetic(ll, 5)
	fields := []any{
		"lat", ll.Lat.Degrees(), "lon", ll.Lng.Degrees(), "height_m", height, "utm", utmStr,
	}
	if mgrsErr == nil {
		fields = append(fields, "mgrs", fmt.Sprintf("%s", mgrs))
	}
	r.log.Info("position fix", fields...)
}

func radToDeg(r float64) float64 { return r * 180 / 3.1415926535898 }
