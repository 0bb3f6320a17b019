package telemetry

import (
	"math"
	"time"

	"github.com/sixdouglas/suncalc"
)

// SunInfo is the optional solar-position summary exposed in the status
// snapshot when a site's latitude/longitude is configured. It has no
// bearing on any control decision; it is informational only.
type SunInfo struct {
	AzimuthDeg  float64   `json:"azimuth_deg"`
	AltitudeDeg float64   `json:"altitude_deg"`
	Sunrise     time.Time `json:"sunrise"`
	Sunset      time.Time `json:"sunset"`
}

// CurrentSunInfo computes the sun's position now and today's sunrise/sunset
// for the given coordinates.
func CurrentSunInfo(lat, lng float64) SunInfo {
	now := time.Now()
	pos := suncalc.GetPosition(now, lat, lng)
	times := suncalc.GetTimes(now, lat, lng)
	return SunInfo{
		AzimuthDeg:  pos.Azimuth * 180 / math.Pi,
		AltitudeDeg: pos.Altitude * 180 / math.Pi,
		Sunrise:     times["sunrise"],
		Sunset:      times["sunset"],
	}
}
